package dictstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/go-ronlp/internal/diacritics"
)

// redisBatch bounds the number of fields per HSET.
const redisBatch = 1000

// RedisOptions configures the Redis backend. Entries live in the hash
// Key+":forms" and metadata in Key+":meta".
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps the dictionary in two Redis hashes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("dictstore: ping redis %s: %w", opts.Addr, err)
	}

	return NewRedisStoreWithClient(client, opts.Key), nil
}

// NewRedisStoreWithClient uses an existing client. Close closes it.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "ronlp:diacritics"
	}

	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) formsKey() string { return s.key + ":forms" }
func (s *RedisStore) metaKey() string  { return s.key + ":meta" }

// Save replaces both hashes in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, dict *diacritics.Dictionary) error {
	rec, err := toRecord(dict)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.formsKey(), s.metaKey())

		batch := make(map[string]any, redisBatch)
		for k, v := range rec.Forms {
			batch[k] = v
			if len(batch) == redisBatch {
				pipe.HSet(ctx, s.formsKey(), batch)
				batch = make(map[string]any, redisBatch)
			}
		}

		if len(batch) > 0 {
			pipe.HSet(ctx, s.formsKey(), batch)
		}

		pipe.HSet(ctx, s.metaKey(), metaFields(rec.Metadata))

		return nil
	})
	if err != nil {
		return fmt.Errorf("dictstore: save to redis: %w", err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*diacritics.Dictionary, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("dictstore: load redis metadata: %w", err)
	}

	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: redis key %s", ErrNotFound, s.key)
	}

	md, err := parseMetaFields(meta)
	if err != nil {
		return nil, err
	}

	forms, err := s.client.HGetAll(ctx, s.formsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("dictstore: load redis entries: %w", err)
	}

	return record{Metadata: md, Forms: forms}.dictionary(), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func metaFields(m diacritics.Metadata) map[string]any {
	return map[string]any{
		"threshold":    strconv.FormatFloat(m.Threshold, 'g', -1, 64),
		"min_count":    m.MinCount,
		"corpus_texts": m.CorpusTexts,
		"corpus_words": m.CorpusWords,
		"fixed_words":  m.FixedWords,
		"banned":       m.Banned,
		"built_at":     m.BuiltAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseMetaFields(fields map[string]string) (diacritics.Metadata, error) {
	var (
		m    diacritics.Metadata
		errs []error
	)

	parseInt := func(name string) int {
		v, ok := fields[name]
		if !ok || v == "" {
			return 0
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}

		return n
	}

	if v := fields["threshold"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("threshold: %w", err))
		}
		m.Threshold = f
	}

	m.MinCount = parseInt("min_count")
	m.CorpusTexts = parseInt("corpus_texts")
	m.CorpusWords = parseInt("corpus_words")
	m.FixedWords = parseInt("fixed_words")
	m.Banned = fields["banned"]

	if v := fields["built_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("built_at: %w", err))
		}
		m.BuiltAt = t
	}

	if err := errors.Join(errs...); err != nil {
		return diacritics.Metadata{}, fmt.Errorf("dictstore: parse redis metadata: %w", err)
	}

	return m, nil
}
