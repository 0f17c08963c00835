package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/scdx/internal/progress"
)

// RunState describes where a run is in its lifecycle.
type RunState string

// Run states reported by the status snapshot.
const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateFailed  RunState = "failed"
)

// Status is a point-in-time view of the current run.
type Status struct {
	RunID        string    `json:"run_id,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	State        RunState  `json:"state"`
	Done         int       `json:"done"`
	Total        int       `json:"total"`
	Skipped      int       `json:"skipped"`
	Retries      int       `json:"retries"`
	Records      int64     `json:"records"`
	CurrentCrawl string    `json:"current_crawl,omitempty"`
	LastStatus   int       `json:"last_status,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// StatusSink keeps the latest Status for readers on other goroutines.
type StatusSink struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusSink returns a sink in the idle state.
func NewStatusSink() *StatusSink {
	return &StatusSink{status: Status{State: StateIdle}}
}

// Snapshot returns a copy of the current status.
func (s *StatusSink) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Consume folds the batch into the snapshot.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	st := &s.status
	st.UpdatedAt = evt.TS
	switch evt.Stage {
	case progress.StageRunStart:
		*st = Status{
			RunID:      evt.RunUUID().String(),
			Domain:     evt.Domain,
			State:      StateRunning,
			Total:      evt.Total,
			OutputPath: evt.Path,
			StartedAt:  evt.TS,
			UpdatedAt:  evt.TS,
		}
	case progress.StageCrawlStart:
		st.CurrentCrawl = evt.Crawl
	case progress.StageCrawlRetry:
		st.Retries++
		st.LastStatus = evt.StatusCode
	case progress.StageCrawlSkipped:
		st.Skipped++
		st.LastStatus = evt.StatusCode
	case progress.StageCrawlDone:
		st.Done = evt.Done
		st.Records += evt.Records
		st.LastStatus = evt.StatusCode
	case progress.StageRunDone:
		st.State = StateDone
		st.CurrentCrawl = ""
	case progress.StageRunError:
		st.State = StateFailed
		st.Error = evt.Note
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
