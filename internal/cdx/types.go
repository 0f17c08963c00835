// Package cdx queries a web archive's columnar (CDX) index for every record
// of a domain across one or more crawl snapshots.
package cdx

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Crawl describes one crawl snapshot as published in the index catalog.
// Only ID and CDXAPI drive the fetch loop; the other fields are informational.
type Crawl struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	CDXAPI   string `json:"cdx-api"`
	Timegate string `json:"timegate,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// SelectionMode names how the catalog is narrowed before fetching.
type SelectionMode int

// Supported selection modes.
const (
	SelectAll SelectionMode = iota
	SelectByIDs
	SelectLatest
)

// String implements fmt.Stringer.
func (m SelectionMode) String() string {
	switch m {
	case SelectByIDs:
		return "by-ids"
	case SelectLatest:
		return "latest"
	default:
		return "all"
	}
}

// ErrConflictingSelection is returned when both explicit ids and latest-only are requested.
var ErrConflictingSelection = errors.New("crawl ids and latest are mutually exclusive")

// Selection holds the user's crawl filter. It is immutable once built.
type Selection struct {
	mode SelectionMode
	ids  map[string]struct{}
}

// All selects the whole catalog.
func All() Selection {
	return Selection{mode: SelectAll}
}

// LatestOnly selects the first catalog entry.
func LatestOnly() Selection {
	return Selection{mode: SelectLatest}
}

// ByIDs selects the catalog entries whose id is in ids.
func ByIDs(ids ...string) Selection {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Selection{mode: SelectByIDs, ids: set}
}

// NewSelection derives a Selection from CLI input. With neither ids nor latest
// it selects everything.
func NewSelection(ids []string, latest bool) (Selection, error) {
	switch {
	case latest && len(ids) > 0:
		return Selection{}, ErrConflictingSelection
	case latest:
		return LatestOnly(), nil
	case len(ids) > 0:
		return ByIDs(ids...), nil
	default:
		return All(), nil
	}
}

// Mode reports the selection mode.
func (s Selection) Mode() SelectionMode {
	return s.mode
}

// Contains reports whether id was explicitly requested.
func (s Selection) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// RunConfig is built once at startup and passed to the fetch loop.
type RunConfig struct {
	RunID      uuid.UUID
	Domain     string
	Sleep      time.Duration
	OutputPath string
	Selection  Selection
	// MaxRetries bounds retries per crawl; zero keeps retrying forever.
	MaxRetries int
}

// Outcome is the terminal state of one crawl.
type Outcome string

// Crawl outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Summary reports what a run did.
type Summary struct {
	RunID      uuid.UUID     `json:"run_id"`
	Domain     string        `json:"domain"`
	Selected   int           `json:"selected"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Retries    int           `json:"retries"`
	Records    int64         `json:"records"`
	Bytes      int64         `json:"bytes"`
	OutputPath string        `json:"output_path"`
	Duration   time.Duration `json:"duration"`
}
