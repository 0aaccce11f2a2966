package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// stubFetch replaces fetchFile with one serving files from a map, keyed by
// filename. It records the requested filenames.
func stubFetch(t *testing.T, files map[string]string) *[]string {
	t.Helper()

	cache := t.TempDir()
	var requested []string

	orig := fetchFile
	t.Cleanup(func() { fetchFile = orig })

	fetchFile = func(_, _, _, _, filename string) (string, error) {
		requested = append(requested, filename)

		content, ok := files[filename]
		if !ok {
			return "", errors.New("404 not found")
		}

		p := filepath.Join(cache, filename)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return "", err
		}

		return p, nil
	}

	return &requested
}

// ---------------------------------------------------------------------------
// PinnedManifest
// ---------------------------------------------------------------------------

func TestPinnedManifest_KnownRepos(t *testing.T) {
	for _, repo := range []string{DiacriticsRepo, EmbedderRepo} {
		t.Run(repo, func(t *testing.T) {
			m, err := PinnedManifest(repo)
			if err != nil {
				t.Fatalf("PinnedManifest(%q) error = %v", repo, err)
			}
			if m.Repo != repo {
				t.Errorf("Repo = %q; want %q", m.Repo, repo)
			}
			if len(m.Files) == 0 {
				t.Fatal("Files is empty")
			}
			for _, f := range m.Files {
				if f.Filename == "" || f.Revision == "" {
					t.Errorf("incomplete entry %+v", f)
				}
				if f.SHA256 != "" && !isSHA256Hex(f.SHA256) {
					t.Errorf("file %q SHA256 %q is not valid hex", f.Filename, f.SHA256)
				}
			}
		})
	}
}

func TestPinnedManifest_AssetsPerPipeline(t *testing.T) {
	tests := []struct {
		repo string
		want []string
	}{
		{DiacriticsRepo, []string{"config.json", "spiece.model", "tokenizer.json"}},
		{EmbedderRepo, []string{"config.json", "vocab.txt"}},
	}

	for _, tt := range tests {
		m, err := PinnedManifest(tt.repo)
		if err != nil {
			t.Fatal(err)
		}

		have := map[string]bool{}
		for _, f := range m.Files {
			if !f.Optional {
				have[f.Filename] = true
			}
		}

		for _, w := range tt.want {
			if !have[w] {
				t.Errorf("%s: required file %q missing", tt.repo, w)
			}
		}
	}
}

func TestPinnedManifest_ReturnsCopy(t *testing.T) {
	m, _ := PinnedManifest(EmbedderRepo)
	m.Files[0].Filename = "changed"

	again, _ := PinnedManifest(EmbedderRepo)
	if again.Files[0].Filename == "changed" {
		t.Fatal("PinnedManifest shares its file slice")
	}
}

func TestPinnedManifest_UnknownRepo(t *testing.T) {
	_, err := PinnedManifest("unknown/repo")
	if err == nil {
		t.Fatal("PinnedManifest(unknown) = nil; want error")
	}
	if !strings.Contains(err.Error(), EmbedderRepo) {
		t.Errorf("error should list known repos: %v", err)
	}
}

// ---------------------------------------------------------------------------
// checksums
// ---------------------------------------------------------------------------

func TestExistingMatches(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "f.bin")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		expected string
		want     bool
		wantErr  bool
	}{
		{"match", p, sha256Hex([]byte("hello")), true, false},
		{"mismatch", p, strings.Repeat("a", 64), false, false},
		{"missing", filepath.Join(tmp, "nope"), "abc", false, false},
		{"directory", tmp, "abc", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := existingMatches(tt.path, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v; wantErr=%v", err, tt.wantErr)
			}
			if ok != tt.want {
				t.Errorf("ok = %v; want %v", ok, tt.want)
			}
		})
	}
}

func TestFileSHA256(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "empty.bin")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := fileSHA256(p)
	if err != nil {
		t.Fatalf("fileSHA256 error = %v", err)
	}
	if got != sha256Hex(nil) {
		t.Errorf("fileSHA256(empty) = %q", got)
	}

	if _, err := fileSHA256(filepath.Join(tmp, "missing")); err == nil {
		t.Error("fileSHA256(missing) = nil; want error")
	}
}

func TestIsSHA256Hex(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("a", 64), true},
		{strings.Repeat("A", 64), true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isSHA256Hex(tt.in); got != tt.want {
			t.Errorf("isSHA256Hex(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// lock manifest
// ---------------------------------------------------------------------------

func TestReadLockManifest_MissingOrInvalid(t *testing.T) {
	tmp := t.TempDir()
	bad := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{filepath.Join(tmp, "missing.json"), bad} {
		lock := readLockManifest(p)
		if lock.Files == nil || len(lock.Files) != 0 {
			t.Errorf("readLockManifest(%s).Files = %v; want empty map", p, lock.Files)
		}
	}
}

func TestWriteReadLockManifest_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), LockName)
	in := lockManifest{
		Repo:      EmbedderRepo,
		Generated: "2026-01-01T00:00:00Z",
		Files: map[string]lockRecord{
			"vocab.txt": {Revision: "main", SHA256: strings.Repeat("b", 64)},
		},
	}

	if err := writeLockManifest(p, in); err != nil {
		t.Fatalf("writeLockManifest: %v", err)
	}

	out := readLockManifest(p)
	if out.Repo != in.Repo || out.Generated != in.Generated {
		t.Errorf("got %+v", out)
	}
	if out.Files["vocab.txt"] != in.Files["vocab.txt"] {
		t.Errorf("record = %+v", out.Files["vocab.txt"])
	}
}

// ---------------------------------------------------------------------------
// Download
// ---------------------------------------------------------------------------

func TestDownload_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opts DownloadOptions
	}{
		{"empty repo", DownloadOptions{OutDir: t.TempDir()}},
		{"empty out dir", DownloadOptions{Repo: EmbedderRepo}},
		{"unknown repo", DownloadOptions{Repo: "x/y", OutDir: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Download(tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDownload_CopiesFilesAndWritesLock(t *testing.T) {
	stubFetch(t, map[string]string{
		"config.json":           `{"model_type":"bert"}`,
		"vocab.txt":             "[PAD]\n[UNK]\n",
		"tokenizer_config.json": `{"do_lower_case":true}`,
	})

	out := t.TempDir()
	var log strings.Builder
	if err := Download(DownloadOptions{Repo: EmbedderRepo, OutDir: out, Stdout: &log}); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(out, "vocab.txt"))
	if err != nil || string(got) != "[PAD]\n[UNK]\n" {
		t.Fatalf("vocab.txt = %q, %v", got, err)
	}

	lock := readLockManifest(filepath.Join(out, LockName))
	if lock.Repo != EmbedderRepo {
		t.Errorf("lock repo = %q", lock.Repo)
	}
	if lock.Files["vocab.txt"].SHA256 != sha256Hex([]byte("[PAD]\n[UNK]\n")) {
		t.Errorf("lock record = %+v", lock.Files["vocab.txt"])
	}

	if !strings.Contains(log.String(), "wrote lock manifest") {
		t.Errorf("log = %q", log.String())
	}
}

func TestDownload_SkipsLockedFiles(t *testing.T) {
	files := map[string]string{
		"config.json": "{}",
		"vocab.txt":   "[PAD]\n",
	}
	stubFetch(t, files)

	out := t.TempDir()
	if err := Download(DownloadOptions{Repo: EmbedderRepo, OutDir: out}); err != nil {
		t.Fatalf("first Download: %v", err)
	}

	requested := stubFetch(t, files)
	if err := Download(DownloadOptions{Repo: EmbedderRepo, OutDir: out}); err != nil {
		t.Fatalf("second Download: %v", err)
	}

	for _, name := range *requested {
		if name == "vocab.txt" || name == "config.json" {
			t.Errorf("%s fetched again despite checksum match", name)
		}
	}
}

func TestDownload_LockedChecksumMismatch(t *testing.T) {
	out := t.TempDir()
	lock := lockManifest{Files: map[string]lockRecord{
		"config.json": {Revision: DefaultRevision, SHA256: strings.Repeat("c", 64)},
	}}
	if err := writeLockManifest(filepath.Join(out, LockName), lock); err != nil {
		t.Fatal(err)
	}

	stubFetch(t, map[string]string{"config.json": "{}", "vocab.txt": "x"})

	err := Download(DownloadOptions{Repo: EmbedderRepo, OutDir: out})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v; want checksum mismatch", err)
	}

	if _, statErr := os.Stat(filepath.Join(out, "config.json")); !os.IsNotExist(statErr) {
		t.Error("mismatched file left in place")
	}
}

func TestDownload_MissingRequiredFileFails(t *testing.T) {
	stubFetch(t, map[string]string{"config.json": "{}"})

	err := Download(DownloadOptions{Repo: EmbedderRepo, OutDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "vocab.txt") {
		t.Fatalf("err = %v; want vocab.txt failure", err)
	}
}
