// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestRedisStore(t *testing.T) {
//	    addr := testutil.RequireRedis(t)
//	    ...
//	}
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// Environment variables naming integration test services.
const (
	RedisAddrEnv   = "RONLP_TEST_REDIS_ADDR"
	PostgresDSNEnv = "RONLP_TEST_POSTGRES_DSN"
)

const probeTimeout = 2 * time.Second

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the RONLP_ORT_LIB env var, then the
// ORT_LIBRARY_PATH env var, then common system library paths.
func RequireONNXRuntime(tb testing.TB) {
	tb.Helper()

	for _, env := range []string{"RONLP_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			_, err := os.Stat(p)
			if err == nil {
				return // found
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return
		}
	}
	// Fall back to common system locations.
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		_, err := os.Stat(p)
		if err == nil {
			return // found
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set RONLP_ORT_LIB or ORT_LIBRARY_PATH")
}

// RequireModelDir skips the test unless dir contains every named file.
func RequireModelDir(tb testing.TB, dir string, files ...string) {
	tb.Helper()

	for _, f := range files {
		p := filepath.Join(dir, f)
		if _, err := os.Stat(p); err != nil {
			tb.Skipf("model asset %q not available: %v", p, err)
			return
		}
	}
}

// RequireRedis returns the address from RONLP_TEST_REDIS_ADDR after checking
// that the server answers PING, and skips otherwise.
func RequireRedis(tb testing.TB) string {
	tb.Helper()

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		tb.Skipf("redis not configured; set %s", RedisAddrEnv)
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		tb.Skipf("redis at %q not reachable: %v", addr, err)
		return ""
	}

	return addr
}

// RequirePostgres returns the DSN from RONLP_TEST_POSTGRES_DSN after checking
// that the database accepts connections, and skips otherwise.
func RequirePostgres(tb testing.TB) string {
	tb.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		tb.Skipf("postgres not configured; set %s", PostgresDSNEnv)
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		tb.Skipf("postgres not reachable: %v", err)
		return ""
	}
	defer conn.Close(ctx)

	if err := conn.Ping(ctx); err != nil {
		tb.Skipf("postgres ping failed: %v", err)
		return ""
	}

	return dsn
}
