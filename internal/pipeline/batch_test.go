package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchProcessorRunsEveryItem(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	seen := make([]bool, 25)

	bp := NewBatchProcessor()
	result := bp.Process(context.Background(), len(seen), func(_ context.Context, i int) error {
		calls.Add(1)
		seen[i] = true
		return nil
	})

	if calls.Load() != 25 {
		t.Errorf("expected 25 calls, got %d", calls.Load())
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("item %d was not processed", i)
		}
	}
	if result.Total != 25 || result.Succeeded != 25 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestBatchProcessorCollectsFailures(t *testing.T) {
	t.Parallel()

	errOdd := errors.New("odd item")
	bp := NewBatchProcessor(WithConcurrency(2))

	result := bp.Process(context.Background(), 6, func(_ context.Context, i int) error {
		switch {
		case i == 4:
			panic("item four exploded")
		case i%2 == 1:
			return errOdd
		}
		return nil
	})

	if result.Succeeded != 2 || result.Failed != 4 {
		t.Fatalf("expected 2 succeeded and 4 failed, got %+v", result)
	}
	for _, i := range []int{1, 3, 5} {
		if !errors.Is(result.Errors[i], errOdd) {
			t.Errorf("item %d: expected errOdd, got %v", i, result.Errors[i])
		}
	}

	var panicErr *PanicError
	if !errors.As(result.Errors[4], &panicErr) {
		t.Fatalf("item 4: expected PanicError, got %v", result.Errors[4])
	}
	if panicErr.Value != "item four exploded" {
		t.Errorf("unexpected panic value %v", panicErr.Value)
	}
}

func TestBatchProcessorConcurrencyLimit(t *testing.T) {
	t.Parallel()

	const limit = 3
	var current, peak atomic.Int64

	bp := NewBatchProcessor(WithConcurrency(limit))
	bp.Process(context.Background(), 20, func(context.Context, int) error {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return nil
	})

	if peak.Load() > limit {
		t.Errorf("peak concurrency %d exceeds limit %d", peak.Load(), limit)
	}
}

func TestBatchProcessorCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	result := NewBatchProcessor().Process(ctx, 5, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})

	if calls.Load() != 0 {
		t.Errorf("expected no calls, got %d", calls.Load())
	}
	if result.Failed != 5 {
		t.Errorf("expected 5 failed items, got %+v", result)
	}
	if !errors.Is(result.Errors[0], context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Errors[0])
	}
}

func TestBatchProcessorEmpty(t *testing.T) {
	t.Parallel()

	result := NewBatchProcessor().Process(context.Background(), 0, func(context.Context, int) error {
		t.Error("fn must not be called for an empty batch")
		return nil
	})
	if result.Total != 0 || result.Succeeded != 0 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPanicErrorMessage(t *testing.T) {
	t.Parallel()

	err := &PanicError{Value: "boom"}
	if err.Error() != "panic: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
