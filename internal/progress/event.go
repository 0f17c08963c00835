// Package progress defines the event structures emitted by the fetch loop.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageCrawlStart   Stage = "CRAWL_START"
	StageCrawlRetry   Stage = "CRAWL_RETRY"
	StageCrawlSkipped Stage = "CRAWL_SKIPPED"
	StageCrawlDone    Stage = "CRAWL_DONE"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which run or crawl milestone occurred.
	Stage Stage
	// Domain is the queried domain.
	Domain string
	// Crawl is the crawl id for crawl-scoped stages.
	Crawl string
	// URL is the query URL for crawl-scoped stages.
	URL string
	// StatusCode is the HTTP status that triggered a retry, skip, or completion.
	StatusCode int
	// StatusClass groups StatusCode.
	StatusClass StatusClass
	// Attempt counts retries already made for the crawl.
	Attempt int
	// Records is the number of records written by the crawl (or the run, for RUN_DONE).
	Records int64
	// Bytes is the number of output bytes written.
	Bytes int64
	// Done is the number of crawls that succeeded so far.
	Done int
	// Total is the number of selected crawls.
	Total int
	// Dur is the retry wait for CRAWL_RETRY, otherwise elapsed time.
	Dur time.Duration
	// Path is the output file, set on RUN_START and RUN_DONE.
	Path string
	// Note carries low-volume context such as an error message.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCrawlStart, StageCrawlDone:
		if e.Crawl == "" {
			return fmt.Errorf("%s requires crawl", e.Stage)
		}
	case StageCrawlRetry, StageCrawlSkipped:
		if e.Crawl == "" {
			return fmt.Errorf("%s requires crawl", e.Stage)
		}
		if e.StatusCode == 0 {
			return fmt.Errorf("%s requires status code", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
