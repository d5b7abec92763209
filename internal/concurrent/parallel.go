// Package concurrent fans work out over goroutines and collects every
// per-item outcome, failed or not.
package concurrent

import (
	"context"
	"sync"
)

// Result is the outcome of one item
type Result[R any] struct {
	Value R
	Err   error
	Index int // position of the item in the input slice
}

// Map applies fn to every item using at most limit goroutines at a time
// (limit <= 0 means one per item) and waits for all of them. Results keep
// input order. Items still waiting for a slot when ctx is done are not run
// and report ctx.Err().
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i := range items {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Value, results[i].Err = fn(ctx, items[i])
		}(i)
	}

	wg.Wait()
	return results
}
