// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/scdx/internal/store"
)

// RunStoreConfig controls the Postgres connection pool used for the run ledger.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scdx_runs (
		id            UUID PRIMARY KEY,
		domain        TEXT NOT NULL,
		selected      INTEGER NOT NULL,
		output_path   TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ,
		status        TEXT NOT NULL,
		records       BIGINT NOT NULL DEFAULT 0,
		error_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS scdx_crawls (
		run_id      UUID NOT NULL REFERENCES scdx_runs (id),
		crawl_id    TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		records     BIGINT NOT NULL,
		bytes       BIGINT NOT NULL,
		retries     INTEGER NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, crawl_id)
	)`,
}

// RunStore implements store.RunRepository on Postgres.
type RunStore struct {
	pool execCloser
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore connects to Postgres using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool execCloser) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// EnsureSchema creates the ledger tables when they are missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StartRun inserts the run row, refreshing it if the id already exists.
func (s *RunStore) StartRun(ctx context.Context, run store.RunStart) error {
	query := `
		INSERT INTO scdx_runs (id, domain, selected, output_path, started_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET started_at = EXCLUDED.started_at, status = EXCLUDED.status;
	`
	_, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.Domain,
		run.Selected,
		run.OutputPath,
		run.StartedAt,
		string(store.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// RecordCrawl upserts one crawl outcome.
func (s *RunStore) RecordCrawl(ctx context.Context, crawl store.CrawlResult) error {
	query := `
		INSERT INTO scdx_crawls (run_id, crawl_id, outcome, status_code, records, bytes, retries, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, crawl_id) DO UPDATE
		SET outcome = EXCLUDED.outcome,
			status_code = EXCLUDED.status_code,
			records = EXCLUDED.records,
			bytes = EXCLUDED.bytes,
			retries = EXCLUDED.retries,
			finished_at = EXCLUDED.finished_at;
	`
	_, err := s.pool.Exec(ctx, query,
		crawl.RunID,
		crawl.CrawlID,
		string(crawl.Outcome),
		crawl.StatusCode,
		crawl.Records,
		crawl.Bytes,
		crawl.Retries,
		crawl.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record crawl: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished.
func (s *RunStore) CompleteRun(ctx context.Context, finish store.RunFinish) error {
	query := `
		UPDATE scdx_runs
		SET finished_at = $1, status = $2, records = $3, error_message = $4
		WHERE id = $5;
	`
	res, err := s.pool.Exec(ctx, query,
		finish.FinishedAt,
		string(finish.Status),
		finish.Records,
		finish.ErrorMessage,
		finish.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", finish.RunID, store.ErrNotFound)
	}
	return nil
}

// Close releases the underlying pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
