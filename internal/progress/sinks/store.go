package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/scdx/internal/progress"
	"github.com/JakeFAU/scdx/internal/store"
)

// StoreSink persists the run ledger via a store.RunRepository.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards run and crawl milestones to the repository. Repository
// errors are returned verbatim after wrapping.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.consumeEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) consumeEvent(ctx context.Context, evt progress.Event) error {
	runID := evt.RunUUID()
	switch evt.Stage {
	case progress.StageRunStart:
		if err := s.repo.StartRun(ctx, store.RunStart{
			RunID:      runID,
			Domain:     evt.Domain,
			Selected:   evt.Total,
			OutputPath: evt.Path,
			StartedAt:  evt.TS,
		}); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	case progress.StageCrawlDone, progress.StageCrawlSkipped:
		outcome := store.CrawlSucceeded
		if evt.Stage == progress.StageCrawlSkipped {
			outcome = store.CrawlSkipped
		}
		if err := s.repo.RecordCrawl(ctx, store.CrawlResult{
			RunID:      runID,
			CrawlID:    evt.Crawl,
			Outcome:    outcome,
			StatusCode: evt.StatusCode,
			Records:    evt.Records,
			Bytes:      evt.Bytes,
			Retries:    evt.Attempt,
			FinishedAt: evt.TS,
		}); err != nil {
			return fmt.Errorf("record crawl: %w", err)
		}
	case progress.StageRunDone, progress.StageRunError:
		finish := store.RunFinish{
			RunID:      runID,
			Status:     store.RunSuccess,
			Records:    evt.Records,
			FinishedAt: evt.TS,
		}
		if evt.Stage == progress.StageRunError {
			finish.Status = store.RunError
			if evt.Note != "" {
				note := evt.Note
				finish.ErrorMessage = &note
			}
		}
		if err := s.repo.CompleteRun(ctx, finish); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		s.logger.Debug("run ledger closed", zap.Stringer("run_id", runID), zap.String("status", string(finish.Status)))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
