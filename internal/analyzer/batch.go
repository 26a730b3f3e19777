package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// BatchOptions tune the batched fan-out in phases that iterate per keyword
type BatchOptions struct {
	// Size is the number of items per batch
	Size int
	// Concurrency caps parallel workers within one batch
	Concurrency int
	// Delay is the pause between batches, the rate-limiting mechanism
	// protecting downstream APIs from bursts
	Delay time.Duration
}

// BatchProgress is invoked after every individual item completes, not only
// at batch boundaries, so progress reporting stays smooth.
type BatchProgress[T any] func(completed, total int, item T)

// RunBatches partitions items into consecutive fixed-size batches and runs
// the worker over each batch with bounded concurrency, sleeping Delay
// between batches.
//
// A single item's failure (or panic) is isolated: it is counted and the
// remaining items still run. Item completion order within a batch is
// unspecified; callers must derive progress from counts only.
//
// Returns the number of failed items. The error is non-nil only when the
// context is cancelled, in which case remaining items are abandoned.
func RunBatches[T any](ctx context.Context, items []T, opts BatchOptions, worker func(context.Context, T) error, progress BatchProgress[T]) (int, error) {
	total := len(items)
	if total == 0 {
		return 0, nil
	}
	size := opts.Size
	if size < 1 {
		size = 1
	}
	concurrency := opts.Concurrency
	if concurrency < 1 || concurrency > size {
		concurrency = size
	}

	var mu sync.Mutex
	completed := 0
	failed := 0

	for start := 0; start < total; start += size {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		end := start + size
		if end > total {
			end = total
		}
		batch := items[start:end]

		var wg sync.WaitGroup
		sem := make(chan struct{}, concurrency)
		for _, item := range batch {
			wg.Add(1)
			sem <- struct{}{}
			go func(item T) {
				defer wg.Done()
				defer func() { <-sem }()

				err := runItem(ctx, item, worker)

				mu.Lock()
				completed++
				if err != nil {
					failed++
				}
				done := completed
				mu.Unlock()

				if progress != nil {
					progress(done, total, item)
				}
			}(item)
		}
		wg.Wait()

		// Inter-batch delay, skipped after the final batch
		if end < total && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return failed, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}

	return failed, nil
}

// runItem confines a worker panic to its own item
func runItem[T any](ctx context.Context, item T, worker func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 2048)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker panic: %v\n%s", r, buf[:n])
		}
	}()
	return worker(ctx, item)
}
