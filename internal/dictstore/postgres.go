package dictstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/example/go-ronlp/internal/diacritics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	entriesTable  = "diacritics_entries"
	metadataTable = "diacritics_metadata"

	// pgInsertBatch keeps each INSERT well under the 65535 parameter limit.
	pgInsertBatch = 5000
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps the dictionary in two tables managed by goose
// migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore applies pending migrations and opens a connection pool.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("dictstore: postgres backend needs store.postgres_dsn")
	}

	if err := Migrate(ctx, dsn); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("dictstore: parse database DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("dictstore: create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("dictstore: ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate runs the embedded goose migrations against dsn.
func Migrate(ctx context.Context, dsn string) error {
	// goose requires *sql.DB.
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("dictstore: sql.Open: %w", err)
	}
	defer db.Close()

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("dictstore: migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("dictstore: goose new provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("dictstore: goose up: %w", err)
	}

	return nil
}

// Save replaces all entries and the metadata row in one transaction.
func (s *PostgresStore) Save(ctx context.Context, dict *diacritics.Dictionary) error {
	rec, err := toRecord(dict)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dictstore: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := execBuilder(ctx, tx, psql.Delete(entriesTable)); err != nil {
		return err
	}

	keys := make([]string, 0, len(rec.Forms))
	for k := range rec.Forms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for start := 0; start < len(keys); start += pgInsertBatch {
		end := min(start+pgInsertBatch, len(keys))

		insert := psql.Insert(entriesTable).Columns("key", "form")
		for _, k := range keys[start:end] {
			insert = insert.Values(k, rec.Forms[k])
		}

		if err := execBuilder(ctx, tx, insert); err != nil {
			return err
		}
	}

	m := rec.Metadata
	upsert := psql.Insert(metadataTable).
		Columns("id", "threshold", "min_count", "corpus_texts", "corpus_words", "fixed_words", "banned", "built_at").
		Values(1, m.Threshold, m.MinCount, m.CorpusTexts, m.CorpusWords, m.FixedWords, m.Banned, m.BuiltAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			threshold = EXCLUDED.threshold,
			min_count = EXCLUDED.min_count,
			corpus_texts = EXCLUDED.corpus_texts,
			corpus_words = EXCLUDED.corpus_words,
			fixed_words = EXCLUDED.fixed_words,
			banned = EXCLUDED.banned,
			built_at = EXCLUDED.built_at`)

	if err := execBuilder(ctx, tx, upsert); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dictstore: commit: %w", err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*diacritics.Dictionary, error) {
	query, args, err := psql.
		Select("threshold", "min_count", "corpus_texts", "corpus_words", "fixed_words", "banned", "built_at").
		From(metadataTable).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("dictstore: build query: %w", err)
	}

	var (
		m       diacritics.Metadata
		builtAt time.Time
	)

	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&m.Threshold, &m.MinCount, &m.CorpusTexts, &m.CorpusWords, &m.FixedWords, &m.Banned, &builtAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: table %s is empty", ErrNotFound, metadataTable)
	}

	if err != nil {
		return nil, fmt.Errorf("dictstore: load metadata: %w", err)
	}

	m.BuiltAt = builtAt.UTC()

	query, args, err = psql.Select("key", "form").From(entriesTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("dictstore: build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dictstore: load entries: %w", err)
	}
	defer rows.Close()

	forms := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("dictstore: scan entry: %w", err)
		}
		forms[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dictstore: iterate entries: %w", err)
	}

	return record{Metadata: m, Forms: forms}.dictionary(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func execBuilder(ctx context.Context, tx pgx.Tx, b sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("dictstore: build query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("dictstore: exec: %w", err)
	}

	return nil
}
