package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	ghlog "github.com/nao1215/ghcrawler/internal/log"
)

// PanicError is recorded for an item whose function panicked.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// BatchResult summarizes a batch.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int

	// Errors holds the error of each item by index; nil for items that
	// succeeded or were never started.
	Errors []error

	Elapsed time.Duration
}

// BatchProcessor runs a function for every index of a batch concurrently.
type BatchProcessor struct {
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many items may run at once. Zero or less means
// no limit; callers that bound network access elsewhere use that.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		b.concurrency = n
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = ghlog.Discard()
	}
	return bp
}

// Process calls fn for every index in [0, count) and waits for all calls to
// return. An error or panic in one call is recorded in the result and does
// not stop the others. Items not yet started when ctx is done record ctx.Err().
func (bp *BatchProcessor) Process(ctx context.Context, count int, fn func(ctx context.Context, index int) error) BatchResult {
	start := time.Now()
	errs := make([]error, count)
	done := make([]bool, count)

	bp.logger.Debug("starting batch processing",
		"total", count,
		"concurrency", bp.concurrency,
	)

	var g errgroup.Group
	if bp.concurrency > 0 {
		g.SetLimit(bp.concurrency)
	}

	for i := range count {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return nil
			default:
			}

			errs[i] = runItem(ctx, i, fn)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // items never return errors to the group

	result := BatchResult{Total: count, Errors: errs, Elapsed: time.Since(start)}
	for i, err := range errs {
		switch {
		case err != nil:
			result.Failed++
		case done[i]:
			result.Succeeded++
		}
	}

	bp.logger.Debug("batch processing complete",
		"total", count,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result
}

func runItem(ctx context.Context, i int, fn func(ctx context.Context, index int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx, i)
}
