package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-ronlp/internal/testutil"
)

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	// Ensure env vars point nowhere.
	t.Setenv("RONLP_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireONNXRuntime(fakeT)
	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireModelDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte("[PAD]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}

	testutil.RequireModelDir(fakeT, dir, "vocab.txt")
	if skipped {
		t.Fatal("did not expect a skip when the asset exists")
	}

	testutil.RequireModelDir(fakeT, dir, "vocab.txt", "manifest.json")
	if !skipped {
		t.Error("expected RequireModelDir to skip when an asset is missing")
	}
}

func TestRequireRedis_SkipsWhenUnset(t *testing.T) {
	t.Setenv(testutil.RedisAddrEnv, "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	if addr := testutil.RequireRedis(fakeT); addr != "" || !skipped {
		t.Errorf("RequireRedis = %q, skipped=%v; want skip", addr, skipped)
	}
}

func TestRequirePostgres_SkipsWhenUnset(t *testing.T) {
	t.Setenv(testutil.PostgresDSNEnv, "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	if dsn := testutil.RequirePostgres(fakeT); dsn != "" || !skipped {
		t.Errorf("RequirePostgres = %q, skipped=%v; want skip", dsn, skipped)
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip, that would actually skip the outer test.
}
