// Package dictstore persists the mandatory-diacritics dictionary in a JSON
// file, a Redis hash or a PostgreSQL table.
package dictstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/diacritics"
)

// ErrNotFound is returned by Load when no dictionary has been saved.
var ErrNotFound = errors.New("dictstore: dictionary not found")

// Store saves and loads a whole dictionary.
type Store interface {
	Save(ctx context.Context, dict *diacritics.Dictionary) error
	Load(ctx context.Context) (*diacritics.Dictionary, error)
	Close() error
}

// record is the serialized form shared by the file store and tests.
type record struct {
	Metadata diacritics.Metadata `json:"metadata"`
	Forms    map[string]string   `json:"forms"`
}

func toRecord(dict *diacritics.Dictionary) (record, error) {
	if dict == nil {
		return record{}, errors.New("dictstore: nil dictionary")
	}

	return record{Metadata: dict.Metadata(), Forms: dict.Forms()}, nil
}

func (r record) dictionary() *diacritics.Dictionary {
	if r.Forms == nil {
		r.Forms = map[string]string{}
	}

	return diacritics.NewDictionary(r.Forms, r.Metadata)
}

// Open returns the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	backend, err := config.NormalizeStoreBackend(cfg.Store.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.StoreRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Key:      cfg.Store.RedisKey,
		})
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	default:
		if cfg.Paths.DictionaryPath == "" {
			return nil, fmt.Errorf("dictstore: file backend needs paths.dictionary_path")
		}

		return NewFileStore(cfg.Paths.DictionaryPath), nil
	}
}
