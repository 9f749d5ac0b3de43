// internal/store/postgres/postgres.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"kothwatch/internal/store"
)

// Storage implements store.Store on top of Postgres. Each collection
// row carries the JSON-encoded value, which keeps the last-write-wins
// contract of the original remote key-value store.
type Storage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStorage connects to Postgres and prepares the key-value table.
func NewStorage(ctx context.Context, dsn string, logger *zap.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Storage{pool: pool, logger: logger.Named("postgres")}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS kv_records (
			kind       TEXT        NOT NULL,
			id         TEXT        NOT NULL,
			value      JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (kind, id)
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create kv_records table: %w", err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context, kind store.Kind, id string, out any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_records WHERE kind = $1 AND id = $2`,
		string(kind), id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s/%s: %w", kind, id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return true, nil
}

func (s *Storage) Save(ctx context.Context, kind store.Kind, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO kv_records (kind, id, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (kind, id) DO UPDATE SET value = $3, updated_at = now()`,
		string(kind), id, raw)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, kind store.Kind, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_records WHERE kind = $1 AND id = $2`,
		string(kind), id)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, kind store.Kind) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM kv_records WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the connection pool.
func (s *Storage) Close() {
	s.pool.Close()
}

var _ store.Store = (*Storage)(nil)
