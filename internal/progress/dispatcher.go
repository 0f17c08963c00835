package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config controls sink invocation for the Dispatcher.
//   - SinkTimeout: per-sink timeout for each Consume call (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const defaultSinkTimeout = 10 * time.Second

// Dispatcher forwards each event to every registered sink on the caller's
// goroutine, in registration order. A failing sink is logged and skipped so
// that reporting never aborts a run.
type Dispatcher struct {
	cfg    Config
	sinks  []Sink
	logger *zap.Logger
	closed bool
}

// NewDispatcher builds a Dispatcher for the supplied sinks. Nil sinks are ignored.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{cfg: cfg, logger: logger}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Emit validates evt and hands it to every sink. Invalid events are dropped.
func (d *Dispatcher) Emit(evt Event) {
	if d == nil || d.closed {
		return
	}
	if err := evt.Validate(); err != nil {
		d.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	batch := []Event{evt}
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(d.cfg.BaseContext, d.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			d.logger.Warn("progress sink consume failed",
				zap.String("stage", string(evt.Stage)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close closes every sink and returns their joined errors. Later calls are no-ops.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
