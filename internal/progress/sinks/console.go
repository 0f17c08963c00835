package sinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/scdx/internal/progress"
)

// ConsoleSink prints user-facing notices. Retry and skip notices plus the
// [n/total] progress line go to notices; the completion lines go to results.
type ConsoleSink struct {
	mu      sync.Mutex
	notices io.Writer
	results io.Writer
	started time.Time
	skipped int
	retries int
}

// NewConsoleSink builds a console sink. Nil writers discard output.
func NewConsoleSink(notices, results io.Writer) *ConsoleSink {
	if notices == nil {
		notices = io.Discard
	}
	if results == nil {
		results = io.Discard
	}
	return &ConsoleSink{notices: notices, results: results}
}

// Consume renders each event.
func (s *ConsoleSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if err := s.render(evt); err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}
	return nil
}

func (s *ConsoleSink) render(evt progress.Event) error {
	var err error
	switch evt.Stage {
	case progress.StageRunStart:
		s.started, s.skipped, s.retries = evt.TS, 0, 0
	case progress.StageCrawlRetry:
		s.retries++
		if evt.StatusCode == http.StatusServiceUnavailable {
			_, err = fmt.Fprintf(s.notices, "Service unavailable for %s, retrying in %s seconds...\n",
				evt.Crawl, formatSeconds(evt.Dur))
		} else {
			_, err = fmt.Fprintf(s.notices, "Failed to fetch data for %s. Retrying...\n", evt.Crawl)
		}
	case progress.StageCrawlSkipped:
		s.skipped++
		_, err = fmt.Fprintf(s.notices, "No data found for %s in %s. HTTP status code: %d\n",
			evt.Domain, evt.Crawl, evt.StatusCode)
	case progress.StageCrawlDone:
		_, err = fmt.Fprintf(s.notices, "[%d/%d] %s: %d records (%s elapsed)\n",
			evt.Done, evt.Total, evt.Crawl, evt.Records, s.elapsed(evt.TS))
	case progress.StageRunDone:
		if _, err = fmt.Fprintln(s.results, "Data collection complete."); err != nil {
			return err
		}
		if _, err = fmt.Fprintf(s.results, "%d of %d crawls succeeded, %d skipped, %d retries, %d records written.\n",
			evt.Done, evt.Total, s.skipped, s.retries, evt.Records); err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.results, "Results saved to %s.\n", evt.Path)
	}
	return err
}

func (s *ConsoleSink) elapsed(now time.Time) time.Duration {
	if s.started.IsZero() || now.Before(s.started) {
		return 0
	}
	return now.Sub(s.started).Round(time.Second)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Close implements the Sink interface; it performs no action.
func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
