package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunBatchesCallsProgressPerItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	var mu sync.Mutex
	calls := 0
	lastCompleted := 0

	failed, err := RunBatches(context.Background(), items, BatchOptions{Size: 3, Concurrency: 2},
		func(ctx context.Context, item int) error { return nil },
		func(completed, total int, item int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if total != len(items) {
				t.Errorf("expected total %d, got %d", len(items), total)
			}
			if completed <= lastCompleted {
				t.Errorf("completed count went from %d to %d", lastCompleted, completed)
			}
			lastCompleted = completed
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 0 {
		t.Errorf("expected 0 failed, got %d", failed)
	}
	if calls != len(items) {
		t.Errorf("expected %d progress calls, got %d", len(items), calls)
	}
	if lastCompleted != len(items) {
		t.Errorf("expected final completed %d, got %d", len(items), lastCompleted)
	}
}

func TestRunBatchesIsolatesItemFailure(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	var mu sync.Mutex
	processed := 0

	failed, err := RunBatches(context.Background(), items, BatchOptions{Size: 2, Concurrency: 1},
		func(ctx context.Context, item int) error {
			mu.Lock()
			processed++
			mu.Unlock()
			if item == 3 {
				return errors.New("lookup failed")
			}
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected 1 failed, got %d", failed)
	}
	if processed != len(items) {
		t.Errorf("expected all %d items processed, got %d", len(items), processed)
	}
}

func TestRunBatchesIsolatesPanic(t *testing.T) {
	items := []string{"a", "b", "c"}

	failed, err := RunBatches(context.Background(), items, BatchOptions{Size: 3, Concurrency: 3},
		func(ctx context.Context, item string) error {
			if item == "b" {
				panic("worker exploded")
			}
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected panicking item counted as 1 failure, got %d", failed)
	}
}

func TestRunBatchesStopsOnCancel(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	processed := 0

	_, err := RunBatches(ctx, items, BatchOptions{Size: 2, Concurrency: 1, Delay: 50 * time.Millisecond},
		func(ctx context.Context, item int) error {
			mu.Lock()
			processed++
			if processed == 2 {
				cancel()
			}
			mu.Unlock()
			return nil
		}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if processed >= len(items) {
		t.Errorf("expected remaining items abandoned, processed %d of %d", processed, len(items))
	}
}

func TestRunBatchesEmptyInput(t *testing.T) {
	failed, err := RunBatches(context.Background(), nil, BatchOptions{},
		func(ctx context.Context, item int) error { return nil },
		func(completed, total int, item int) {
			t.Error("progress must not fire for empty input")
		})
	if err != nil || failed != 0 {
		t.Fatalf("expected clean no-op, got failed=%d err=%v", failed, err)
	}
}
