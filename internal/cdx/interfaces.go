package cdx

import (
	"context"
	"io"
	"time"
)

// Querier issues one CDX query for a crawl.
type Querier interface {
	Query(ctx context.Context, crawl Crawl, domain string) (*QueryResponse, error)
}

// RecordWriter appends one compact JSON record per line.
type RecordWriter interface {
	WriteRecord(record []byte) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// QueryResponse is the raw answer to a CDX query. Callers must close Body.
type QueryResponse struct {
	URL        string
	StatusCode int
	Body       io.ReadCloser
}
