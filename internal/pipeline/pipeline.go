package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer invokes a stage for one raw message and returns the
// notification to publish.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple output messages to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Worker drives a stage from a message stream: extract a batch, invoke the
// stage per message, publish the notifications, commit.
type Worker struct {
	name        string
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// NewWorker creates a Worker. The name labels its logs and metrics.
func NewWorker(name string, e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Worker {
	return &Worker{
		name:        name,
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger.With("worker", name),
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the worker has published at least one
// notification.
func (w *Worker) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New(w.name + " worker has not processed any messages yet")
	}
	return nil
}

// Broker backoff bounds. Stage failures never back off; they are skipped.
const (
	minBrokerBackoff = 200 * time.Millisecond
	maxBrokerBackoff = 5 * time.Second
)

// Run executes the batch loop until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "batch_size", w.batchSize)
	w.metrics.WorkerRunning.WithLabelValues(w.name).Set(1)
	defer w.metrics.WorkerRunning.WithLabelValues(w.name).Set(0)

	b := newBackoff(minBrokerBackoff, maxBrokerBackoff)
	for ctx.Err() == nil {
		if err := w.step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("broker operation failed", "error", err, "retry_in", b.current)
			if !b.wait(ctx) {
				break
			}
			continue
		}
		b.reset()
	}

	w.logger.Info("worker stopping", "reason", ctx.Err())
	return nil
}

// step runs one extract, invoke, publish, commit cycle. It returns an error
// only for broker failures; stage failures are logged, counted and committed.
func (w *Worker) step(ctx context.Context) error {
	batch, err := w.extractor.ExtractBatch(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	w.metrics.MessagesConsumed.WithLabelValues(w.name).Add(float64(len(batch)))
	w.metrics.BatchSize.Observe(float64(len(batch)))

	var (
		outs    = make([]domain.OutputEvent, 0, len(batch))
		pending = make([]domain.RawEvent, 0, len(batch))
	)
	for _, raw := range batch {
		out, err := w.transformer.Transform(ctx, raw)
		if err == nil {
			outs = append(outs, out)
			pending = append(pending, raw)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.skip(ctx, raw, err)
	}

	if len(outs) == 0 {
		return nil
	}
	if err := w.publish(ctx, outs); err != nil {
		return err
	}
	w.metrics.MessagesProduced.WithLabelValues(w.name).Add(float64(len(outs)))
	w.ready.Store(true)

	for _, raw := range pending {
		w.commit(ctx, raw)
	}
	return nil
}

// publish retries outs until the broker accepts them. The records behind
// outs are already persisted, so the batch is never extracted again; an
// error means ctx ended and nothing in the batch was committed.
func (w *Worker) publish(ctx context.Context, outs []domain.OutputEvent) error {
	b := newBackoff(minBrokerBackoff, maxBrokerBackoff)
	for {
		err := w.loader.LoadBatch(ctx, outs)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Error("publish failed, retrying batch", "error", err, "count", len(outs), "retry_in", b.current)
		if !b.wait(ctx) {
			return fmt.Errorf("publish %d notifications: %w", len(outs), err)
		}
	}
}

// skip records a failed invocation and commits past the message. The stage
// error carries the step, region and key needed to replay it.
func (w *Worker) skip(ctx context.Context, raw domain.RawEvent, err error) {
	w.logger.Warn("stage invocation failed, skipping message",
		"error", err,
		"kind", domain.Kind(err),
		"retryable", domain.IsRetryable(err),
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	w.metrics.MessageErrors.WithLabelValues(w.name).Inc()
	w.commit(ctx, raw)
}

func (w *Worker) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		w.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoff is a doubling delay capped at max.
type backoff struct {
	min, max, current time.Duration
}

func newBackoff(lo, hi time.Duration) *backoff {
	return &backoff{min: lo, max: hi, current: lo}
}

func (b *backoff) reset() { b.current = b.min }

// wait sleeps for the current delay and doubles it. It returns false if ctx
// ended first.
func (b *backoff) wait(ctx context.Context) bool {
	timer := time.NewTimer(b.current)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	b.current = min(b.current*2, b.max)
	return true
}
