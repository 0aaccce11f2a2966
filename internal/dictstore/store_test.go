package dictstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
	"github.com/example/go-ronlp/internal/testutil"
)

func sampleDictionary() *diacritics.Dictionary {
	return diacritics.NewDictionary(map[string]string{
		"tara":   "țară",
		"Tara":   "Țară",
		"si":     "și",
		"pentru": "pentru",
	}, diacritics.Metadata{
		Threshold:   0.95,
		MinCount:    2,
		CorpusTexts: 10,
		CorpusWords: 120,
		BuiltAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
}

func assertSameDictionary(t *testing.T, got, want *diacritics.Dictionary) {
	t.Helper()

	if got.Len() != want.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), want.Len())
	}

	wf := want.Forms()
	for k, v := range got.Forms() {
		if wf[k] != v {
			t.Fatalf("form[%q] = %q, want %q", k, v, wf[k])
		}
	}

	gm, wm := got.Metadata(), want.Metadata()
	if !gm.BuiltAt.Equal(wm.BuiltAt) {
		t.Fatalf("BuiltAt = %v, want %v", gm.BuiltAt, wm.BuiltAt)
	}

	gm.BuiltAt, wm.BuiltAt = time.Time{}, time.Time{}
	if gm != wm {
		t.Fatalf("Metadata = %+v, want %+v", gm, wm)
	}

	if form, ok := got.Lookup("tară"); !ok || form != "țară" {
		t.Fatalf("Lookup(tară) = %q, %v", form, ok)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dictionary.json")
	store := NewFileStore(path)
	defer store.Close()

	want := sampleDictionary()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertSameDictionary(t, got, want)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected only the dictionary file, found %d entries", len(entries))
	}
}

func TestFileStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "dictionary.json"))

	if err := store.Save(ctx, sampleDictionary()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	small := diacritics.NewDictionary(map[string]string{"si": "și"}, diacritics.Metadata{Threshold: 0.9})
	if err := store.Save(ctx, small); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Len() != 1 || got.Metadata().Threshold != 0.9 {
		t.Fatalf("Load = %d entries, %+v", got.Len(), got.Metadata())
	}
}

func TestFileStoreLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(ctx)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing file err = %v, want ErrNotFound", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = NewFileStore(bad).Load(ctx)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt file err = %v, want decode error", err)
	}
}

func TestSaveNilDictionary(t *testing.T) {
	if err := NewFileStore(filepath.Join(t.TempDir(), "d.json")).Save(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil dictionary")
	}
}

func TestMetaFieldsRoundTrip(t *testing.T) {
	want := sampleDictionary().Metadata()
	want.Banned = "a"

	raw := metaFields(want)
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			fields[k] = x
		case int:
			fields[k] = strconv.Itoa(x)
		default:
			t.Fatalf("unexpected field type %T for %s", v, k)
		}
	}

	got, err := parseMetaFields(fields)
	if err != nil {
		t.Fatalf("parseMetaFields: %v", err)
	}

	if !got.BuiltAt.Equal(want.BuiltAt) {
		t.Fatalf("BuiltAt = %v, want %v", got.BuiltAt, want.BuiltAt)
	}

	got.BuiltAt, want.BuiltAt = time.Time{}, time.Time{}
	if got != want {
		t.Fatalf("metadata = %+v, want %+v", got, want)
	}
}

func TestParseMetaFieldsErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"threshold": {"threshold": "high"},
		"count":     {"min_count": "two"},
		"built_at":  {"built_at": "yesterday"},
	}

	for name, fields := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseMetaFields(fields); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Paths.DictionaryPath = filepath.Join(t.TempDir(), "dict.json")
	cfg.Store.Backend = "json"

	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if fs, ok := s.(*FileStore); !ok || fs.Path() != cfg.Paths.DictionaryPath {
		t.Fatalf("Open returned %T", s)
	}

	cfg.Store.Backend = "mongo"
	if _, err := Open(ctx, cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg.Store.Backend = config.StorePostgres
	cfg.Store.PostgresDSN = ""
	if _, err := Open(ctx, cfg); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestRedisStoreIntegration(t *testing.T) {
	addr := testutil.RequireRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Key: "ronlp:test:" + t.Name()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()
	defer store.client.Del(ctx, store.formsKey(), store.metaKey())

	want := sampleDictionary()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertSameDictionary(t, got, want)

	store.client.Del(ctx, store.metaKey())
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after delete err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := testutil.RequirePostgres(t)
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer store.Close()

	want := sampleDictionary()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertSameDictionary(t, got, want)

	// Saving again replaces rather than appends.
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Len() != want.Len() {
		t.Fatalf("Len after resave = %d, want %d", got.Len(), want.Len())
	}
}
