package cdx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scdx/internal/progress"
)

// Runner drives the record fetch loop: one crawl at a time, one query per
// crawl, retrying transient statuses according to a fixed policy.
type Runner struct {
	querier Querier
	writer  RecordWriter
	sleeper Sleeper
	clock   Clock
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewRunner constructs a Runner. A nil emitter discards progress events.
func NewRunner(
	querier Querier,
	writer RecordWriter,
	sleeper Sleeper,
	clock Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Runner {
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		querier: querier,
		writer:  writer,
		sleeper: sleeper,
		clock:   clock,
		emitter: emitter,
		logger:  logger,
	}
}

type crawlResult struct {
	outcome Outcome
	records int64
	bytes   int64
	retries int
}

// Run fetches every crawl in order and appends their records through the
// writer. A 404 skips the crawl; 503 and other statuses are retried after
// cfg.Sleep. Transport failures, malformed records, write failures, and an
// exhausted retry bound end the run with an error.
func (r *Runner) Run(ctx context.Context, cfg RunConfig, crawls []Crawl) (Summary, error) {
	start := r.clock.Now()
	policy := NewFixedRetryPolicy(cfg.Sleep, cfg.MaxRetries)
	summary := Summary{
		RunID:      cfg.RunID,
		Domain:     cfg.Domain,
		Selected:   len(crawls),
		OutputPath: cfg.OutputPath,
	}
	r.emit(cfg, progress.Event{Stage: progress.StageRunStart, Total: len(crawls), Path: cfg.OutputPath})
	r.logger.Info("run started",
		zap.String("run_id", cfg.RunID.String()),
		zap.String("domain", cfg.Domain),
		zap.Stringer("selection", cfg.Selection.Mode()),
		zap.Int("crawls", len(crawls)),
	)

	for _, crawl := range crawls {
		res, err := r.fetchCrawl(ctx, cfg, policy, crawl, summary.Succeeded, len(crawls))
		summary.Retries += res.retries
		summary.Records += res.records
		summary.Bytes += res.bytes
		if err != nil {
			summary.Duration = r.clock.Now().Sub(start)
			r.emit(cfg, progress.Event{
				Stage:   progress.StageRunError,
				Crawl:   crawl.ID,
				Done:    summary.Succeeded,
				Total:   len(crawls),
				Records: summary.Records,
				Dur:     summary.Duration,
				Note:    err.Error(),
			})
			return summary, err
		}
		switch res.outcome {
		case OutcomeSucceeded:
			summary.Succeeded++
		case OutcomeSkipped:
			summary.Skipped++
		}
	}

	summary.Duration = r.clock.Now().Sub(start)
	r.emit(cfg, progress.Event{
		Stage:   progress.StageRunDone,
		Done:    summary.Succeeded,
		Total:   len(crawls),
		Records: summary.Records,
		Bytes:   summary.Bytes,
		Dur:     summary.Duration,
		Path:    cfg.OutputPath,
	})
	r.logger.Info("run finished",
		zap.String("run_id", cfg.RunID.String()),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("records", summary.Records),
		zap.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) fetchCrawl(
	ctx context.Context,
	cfg RunConfig,
	policy RetryPolicy,
	crawl Crawl,
	done int,
	total int,
) (crawlResult, error) {
	var res crawlResult
	started := r.clock.Now()
	r.emit(cfg, progress.Event{Stage: progress.StageCrawlStart, Crawl: crawl.ID, Done: done, Total: total})

	for attempt := 0; ; attempt++ {
		resp, err := r.querier.Query(ctx, crawl, cfg.Domain)
		if err != nil {
			res.outcome = OutcomeFailed
			return res, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			records, written, err := r.copyRecords(resp.Body)
			closeBody(resp.Body)
			res.records, res.bytes = records, written
			if err != nil {
				res.outcome = OutcomeFailed
				return res, fmt.Errorf("crawl %s: %w", crawl.ID, err)
			}
			res.outcome = OutcomeSucceeded
			r.emit(cfg, progress.Event{
				Stage:       progress.StageCrawlDone,
				Crawl:       crawl.ID,
				URL:         resp.URL,
				StatusCode:  resp.StatusCode,
				StatusClass: progress.ClassifyStatus(resp.StatusCode),
				Attempt:     attempt,
				Records:     records,
				Bytes:       written,
				Done:        done + 1,
				Total:       total,
				Dur:         r.clock.Now().Sub(started),
			})
			return res, nil

		case http.StatusNotFound:
			closeBody(resp.Body)
			res.outcome = OutcomeSkipped
			r.emit(cfg, progress.Event{
				Stage:       progress.StageCrawlSkipped,
				Crawl:       crawl.ID,
				URL:         resp.URL,
				StatusCode:  resp.StatusCode,
				StatusClass: progress.ClassifyStatus(resp.StatusCode),
				Attempt:     attempt,
				Done:        done,
				Total:       total,
				Dur:         r.clock.Now().Sub(started),
			})
			return res, nil

		default:
			closeBody(resp.Body)
			if !policy.ShouldRetry(attempt) {
				res.outcome = OutcomeFailed
				return res, fmt.Errorf("crawl %s: %w after %d attempts (last status %d)",
					crawl.ID, ErrRetriesExhausted, attempt+1, resp.StatusCode)
			}
			wait := policy.Backoff(attempt)
			res.retries++
			r.emit(cfg, progress.Event{
				Stage:       progress.StageCrawlRetry,
				Crawl:       crawl.ID,
				URL:         resp.URL,
				StatusCode:  resp.StatusCode,
				StatusClass: progress.ClassifyStatus(resp.StatusCode),
				Attempt:     attempt + 1,
				Done:        done,
				Total:       total,
				Dur:         wait,
			})
			if err := r.sleeper.Sleep(ctx, wait); err != nil {
				res.outcome = OutcomeFailed
				return res, fmt.Errorf("crawl %s: wait before retry: %w", crawl.ID, err)
			}
		}
	}
}

// copyRecords re-serializes every non-empty NDJSON line of body. Only the
// line terminator is stripped, so a line of spaces is a malformed record. The
// first line that is not a single JSON value aborts the copy.
func (r *Runner) copyRecords(body io.Reader) (int64, int64, error) {
	reader := bufio.NewReader(body)
	var (
		compact bytes.Buffer
		records int64
		written int64
		lineNo  int
	)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			trimmed := bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
			if len(trimmed) > 0 {
				compact.Reset()
				if err := json.Compact(&compact, trimmed); err != nil {
					return records, written, fmt.Errorf("%w at line %d: %v", ErrMalformedRecord, lineNo, err)
				}
				if err := r.writer.WriteRecord(compact.Bytes()); err != nil {
					return records, written, fmt.Errorf("write record: %w", err)
				}
				records++
				written += int64(compact.Len()) + 1
			}
		}
		if errors.Is(readErr, io.EOF) {
			return records, written, nil
		}
		if readErr != nil {
			return records, written, fmt.Errorf("read response: %w", readErr)
		}
	}
}

func (r *Runner) emit(cfg RunConfig, evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(cfg.RunID)
	evt.TS = r.clock.Now().UTC()
	evt.Domain = cfg.Domain
	r.emitter.Emit(evt)
}

func closeBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

// DefaultOutputName returns the timestamped output file name used when the
// user does not pick one, e.g. 2023-12-01_14-03-59_output.jsonl.
func DefaultOutputName(now time.Time) string {
	return now.Format("2006-01-02_15-04-05") + "_output.jsonl"
}
