package sinks

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/scdx/internal/metrics"
	"github.com/JakeFAU/scdx/internal/progress"
	"github.com/JakeFAU/scdx/internal/store"
)

var testRunID = uuid.MustParse("0190f1c2-0000-7000-8000-000000000001")

// runEvents replays a run with one retry, one skip and one success.
func runEvents() []progress.Event {
	id := progress.UUIDToBytes(testRunID)
	start := time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC)
	at := func(sec int) time.Time { return start.Add(time.Duration(sec) * time.Second) }
	return []progress.Event{
		{RunID: id, TS: at(0), Stage: progress.StageRunStart, Domain: "example.com", Total: 2, Path: "out.jsonl"},
		{RunID: id, TS: at(0), Stage: progress.StageCrawlStart, Domain: "example.com", Crawl: "CC-MAIN-2023-50", Total: 2},
		{
			RunID: id, TS: at(1), Stage: progress.StageCrawlRetry, Domain: "example.com", Crawl: "CC-MAIN-2023-50",
			StatusCode: 503, StatusClass: progress.Status5xx, Attempt: 1, Total: 2, Dur: 2 * time.Second,
		},
		{
			RunID: id, TS: at(4), Stage: progress.StageCrawlDone, Domain: "example.com", Crawl: "CC-MAIN-2023-50",
			StatusCode: 200, StatusClass: progress.Status2xx, Attempt: 1, Records: 2, Bytes: 60, Done: 1, Total: 2,
			Dur: 4 * time.Second,
		},
		{RunID: id, TS: at(4), Stage: progress.StageCrawlStart, Domain: "example.com", Crawl: "CC-MAIN-2023-40", Done: 1, Total: 2},
		{
			RunID: id, TS: at(5), Stage: progress.StageCrawlSkipped, Domain: "example.com", Crawl: "CC-MAIN-2023-40",
			StatusCode: 404, StatusClass: progress.Status4xx, Done: 1, Total: 2, Dur: time.Second,
		},
		{
			RunID: id, TS: at(5), Stage: progress.StageRunDone, Domain: "example.com", Done: 1, Total: 2,
			Records: 2, Bytes: 60, Dur: 5 * time.Second, Path: "out.jsonl",
		},
	}
}

func TestConsoleSinkRendersNotices(t *testing.T) {
	t.Parallel()

	var notices, results bytes.Buffer
	sink := NewConsoleSink(&notices, &results)
	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	assert.Equal(t,
		"Service unavailable for CC-MAIN-2023-50, retrying in 2 seconds...\n"+
			"[1/2] CC-MAIN-2023-50: 2 records (4s elapsed)\n"+
			"No data found for example.com in CC-MAIN-2023-40. HTTP status code: 404\n",
		notices.String())
	assert.Equal(t,
		"Data collection complete.\n"+
			"1 of 2 crawls succeeded, 1 skipped, 1 retries, 2 records written.\n"+
			"Results saved to out.jsonl.\n",
		results.String())
}

func TestConsoleSinkGenericRetry(t *testing.T) {
	t.Parallel()

	var notices bytes.Buffer
	sink := NewConsoleSink(&notices, nil)
	err := sink.Consume(context.Background(), []progress.Event{{
		Stage: progress.StageCrawlRetry, Crawl: "CC-MAIN-2023-50", StatusCode: 500, Dur: time.Second,
	}})
	require.NoError(t, err)
	require.Equal(t, "Failed to fetch data for CC-MAIN-2023-50. Retrying...\n", notices.String())
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	require.Equal(t, len(runEvents()), logs.Len())
	retries := logs.FilterField(zap.String("stage", string(progress.StageCrawlRetry))).All()
	require.Len(t, retries, 1)
	require.Equal(t, zapcore.WarnLevel, retries[0].Level)
	require.Equal(t, "CC-MAIN-2023-50", retries[0].ContextMap()["crawl"])
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	c, err := metrics.NewCollectors(prometheus.NewRegistry())
	require.NoError(t, err)
	sink := NewPrometheusSink(c)
	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	require.Equal(t, 2.0, testutil.ToFloat64(c.CrawlsSelected))
	require.Equal(t, 1.0, testutil.ToFloat64(c.CrawlsCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(c.CrawlsTotal.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.CrawlsTotal.WithLabelValues("skipped")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.RetriesTotal.WithLabelValues("503")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.RecordsTotal))
	require.Equal(t, 60.0, testutil.ToFloat64(c.BytesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(c.RunsTotal.WithLabelValues("success")))
	require.Equal(t, 1, testutil.CollectAndCount(c.RunDuration, "scdx_run_duration_seconds"))
}

func TestPrometheusSinkCountsFailure(t *testing.T) {
	t.Parallel()

	c, err := metrics.NewCollectors(prometheus.NewRegistry())
	require.NoError(t, err)
	sink := NewPrometheusSink(c)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Stage: progress.StageRunError, Crawl: "CC-MAIN-2023-50", Note: "boom"},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(c.CrawlsTotal.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.RunsTotal.WithLabelValues("error")))
}

// TestStoreSinkPersistsLedger ensures run start, crawl outcomes and completion reach the repository.
func TestStoreSinkPersistsLedger(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	require.Len(t, repo.starts, 1)
	require.Equal(t, testRunID, repo.starts[0].RunID)
	require.Equal(t, 2, repo.starts[0].Selected)
	require.Equal(t, "out.jsonl", repo.starts[0].OutputPath)

	require.Len(t, repo.crawls, 2)
	require.Equal(t, store.CrawlSucceeded, repo.crawls[0].Outcome)
	require.Equal(t, 1, repo.crawls[0].Retries)
	require.Equal(t, int64(2), repo.crawls[0].Records)
	require.Equal(t, store.CrawlSkipped, repo.crawls[1].Outcome)
	require.Equal(t, 404, repo.crawls[1].StatusCode)

	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunSuccess, repo.finishes[0].Status)
	require.Nil(t, repo.finishes[0].ErrorMessage)
}

func TestStoreSinkRecordsErrorNote(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(testRunID), TS: time.Now(), Stage: progress.StageRunError, Note: "malformed record"},
	}))
	require.Len(t, repo.finishes, 1)
	require.Equal(t, store.RunError, repo.finishes[0].Status)
	require.NotNil(t, repo.finishes[0].ErrorMessage)
	require.Equal(t, "malformed record", *repo.finishes[0].ErrorMessage)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(&fakeRunRepo{fail: true}, nil)
	err := sink.Consume(context.Background(), runEvents()[:1])
	require.Error(t, err)
}

func TestStatusSinkSnapshot(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	require.Equal(t, StateIdle, sink.Snapshot().State)

	events := runEvents()
	require.NoError(t, sink.Consume(context.Background(), events[:3]))
	mid := sink.Snapshot()
	require.Equal(t, StateRunning, mid.State)
	require.Equal(t, "CC-MAIN-2023-50", mid.CurrentCrawl)
	require.Equal(t, 1, mid.Retries)
	require.Equal(t, 503, mid.LastStatus)

	require.NoError(t, sink.Consume(context.Background(), events[3:]))
	final := sink.Snapshot()
	require.Equal(t, StateDone, final.State)
	require.Equal(t, testRunID.String(), final.RunID)
	require.Equal(t, 1, final.Done)
	require.Equal(t, 2, final.Total)
	require.Equal(t, 1, final.Skipped)
	require.Equal(t, int64(2), final.Records)
	require.Empty(t, final.CurrentCrawl)
}

type fakeRunRepo struct {
	fail     bool
	starts   []store.RunStart
	crawls   []store.CrawlResult
	finishes []store.RunFinish
}

func (f *fakeRunRepo) StartRun(_ context.Context, run store.RunStart) error {
	if f.fail {
		return errors.New("fail")
	}
	f.starts = append(f.starts, run)
	return nil
}

func (f *fakeRunRepo) RecordCrawl(_ context.Context, crawl store.CrawlResult) error {
	if f.fail {
		return errors.New("fail")
	}
	f.crawls = append(f.crawls, crawl)
	return nil
}

func (f *fakeRunRepo) CompleteRun(_ context.Context, finish store.RunFinish) error {
	if f.fail {
		return errors.New("fail")
	}
	f.finishes = append(f.finishes, finish)
	return nil
}
