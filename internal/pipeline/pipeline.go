package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
	"github.com/couchcryptid/responder-dispatch-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize incident messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.IncidentMessage, error)
}

// Dispatcher resolves one incident into a recorded dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.IncidentRequest) (domain.DispatchRecord, error)
}

// Pipeline orchestrates the extract-decode-dispatch loop for queued incidents.
type Pipeline struct {
	extractor  BatchExtractor
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *observability.Metrics
	running    atomic.Bool
	batchSize  int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, d Dispatcher, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:  e,
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
		batchSize:  batchSize,
	}
}

// CheckReadiness returns nil while Run is consuming the intake topic.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("intake pipeline is not running")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.running.Store(true)
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-dispatch cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		if !retry.SleepWithContext(ctx, *backoff) {
			return false
		}
		*backoff = retry.NextBackoff(*backoff, maxBackoff)
		return true
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.IncidentsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = initialBackoff

	for _, msg := range batch {
		if ctx.Err() != nil {
			// Uncommitted messages are redelivered after restart.
			return false
		}
		if !p.dispatchMessage(ctx, msg) {
			return false
		}
	}

	p.metrics.BatchProcessingTime.Observe(time.Since(start).Seconds())
	return true
}

// dispatchMessage decodes and dispatches one message, then commits it.
// Incidents that can never be dispatched are committed too, so one bad
// incident never blocks the partition. Transient failures (provider outage,
// history store) are retried with backoff and stay uncommitted until they
// succeed. Returns false if the context ended before the message was settled.
func (p *Pipeline) dispatchMessage(ctx context.Context, msg domain.IncidentMessage) bool {
	req, err := domain.DecodeIncident(msg.Value)
	if err != nil {
		p.skip(msg, "decode incident failed, skipping message", err)
		p.commitOffset(ctx, msg)
		return true
	}

	backoff := initialBackoff
	for {
		rec, err := p.dispatcher.Dispatch(ctx, req)
		if err == nil {
			p.logger.Debug("incident dispatched",
				"dispatch_id", rec.ID, "offset", msg.Offset, "partition", msg.Partition)
			p.commitOffset(ctx, msg)
			return true
		}
		if isTerminal(err) {
			p.skip(msg, "dispatch failed, skipping message", err)
			p.commitOffset(ctx, msg)
			return true
		}

		p.metrics.DispatchRetries.Inc()
		p.logger.Warn("dispatch failed, retrying",
			"error", err,
			"backoff", backoff,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return false
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// isTerminal reports whether retrying the same incident cannot succeed.
func isTerminal(err error) bool {
	return errors.Is(err, domain.ErrInvalidIncident) ||
		errors.Is(err, domain.ErrInvalidCategory) ||
		errors.Is(err, domain.ErrNoStationsAvailable) ||
		errors.Is(err, domain.ErrNoParsableEstimate) ||
		errors.Is(err, domain.ErrStationNotInCatalog)
}

func (p *Pipeline) skip(msg domain.IncidentMessage, text string, err error) {
	p.logger.Warn(text,
		"error", err,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	p.metrics.IncidentErrors.Inc()
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, msg domain.IncidentMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}
