// Package store declares interfaces for persisting run progress.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the scdx_runs status column.
type RunStatus string

// Run statuses persisted in scdx_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// CrawlOutcome mirrors the scdx_crawls outcome column.
type CrawlOutcome string

// Crawl outcomes persisted in scdx_crawls.outcome.
const (
	CrawlSucceeded CrawlOutcome = "succeeded"
	CrawlSkipped   CrawlOutcome = "skipped"
)

// RunStart captures the row written when a run begins.
type RunStart struct {
	RunID      uuid.UUID
	Domain     string
	Selected   int
	OutputPath string
	StartedAt  time.Time
}

// CrawlResult captures one finished crawl.
type CrawlResult struct {
	RunID      uuid.UUID
	CrawlID    string
	Outcome    CrawlOutcome
	StatusCode int
	Records    int64
	Bytes      int64
	Retries    int
	FinishedAt time.Time
}

// RunFinish captures the final state of a run.
type RunFinish struct {
	RunID        uuid.UUID
	Status       RunStatus
	Records      int64
	FinishedAt   time.Time
	ErrorMessage *string
}

// RunRepository persists the run ledger.
type RunRepository interface {
	// StartRun inserts (or idempotently refreshes) the run row.
	StartRun(ctx context.Context, run RunStart) error
	// RecordCrawl upserts the outcome of one crawl within a run.
	RecordCrawl(ctx context.Context, crawl CrawlResult) error
	// CompleteRun marks the run finished with the provided status.
	CompleteRun(ctx context.Context, finish RunFinish) error
}
