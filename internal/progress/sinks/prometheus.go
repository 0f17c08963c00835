package sinks

import (
	"context"
	"strconv"

	"github.com/JakeFAU/scdx/internal/metrics"
	"github.com/JakeFAU/scdx/internal/progress"
)

// PrometheusSink feeds run and crawl progress into the scdx collectors.
type PrometheusSink struct {
	c *metrics.Collectors
}

// NewPrometheusSink wraps already registered collectors.
func NewPrometheusSink(c *metrics.Collectors) *PrometheusSink {
	return &PrometheusSink{c: c}
}

// Consume updates the collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	if s == nil || s.c == nil {
		return nil
	}
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.c.CrawlsSelected.Set(float64(evt.Total))
		s.c.CrawlsCompleted.Set(0)
	case progress.StageCrawlRetry:
		s.c.RetriesTotal.WithLabelValues(strconv.Itoa(evt.StatusCode)).Inc()
		s.c.RetryWait.Observe(evt.Dur.Seconds())
	case progress.StageCrawlSkipped:
		s.c.CrawlsTotal.WithLabelValues("skipped").Inc()
		s.c.CrawlDuration.WithLabelValues("skipped").Observe(evt.Dur.Seconds())
	case progress.StageCrawlDone:
		s.c.CrawlsTotal.WithLabelValues("succeeded").Inc()
		s.c.CrawlDuration.WithLabelValues("succeeded").Observe(evt.Dur.Seconds())
		s.c.CrawlsCompleted.Set(float64(evt.Done))
		if evt.Records > 0 {
			s.c.RecordsTotal.Add(float64(evt.Records))
		}
		if evt.Bytes > 0 {
			s.c.BytesTotal.Add(float64(evt.Bytes))
		}
	case progress.StageRunDone:
		s.c.RunsTotal.WithLabelValues("success").Inc()
		s.c.RunDuration.Observe(evt.Dur.Seconds())
	case progress.StageRunError:
		if evt.Crawl != "" {
			s.c.CrawlsTotal.WithLabelValues("failed").Inc()
		}
		s.c.RunsTotal.WithLabelValues("error").Inc()
		s.c.RunDuration.Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
