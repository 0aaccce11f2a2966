package config

import (
	"fmt"
	"strings"
)

const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

func NormalizeStoreBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = StoreFile
	}
	switch backend {
	case StoreFile, StoreRedis, StorePostgres:
		return backend, nil
	case "json":
		return StoreFile, nil
	case "pg", "postgresql":
		return StorePostgres, nil
	default:
		return "", fmt.Errorf(
			"invalid store backend %q (expected %s|%s|%s)",
			raw,
			StoreFile,
			StoreRedis,
			StorePostgres,
		)
	}
}
