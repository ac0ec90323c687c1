// Package worker runs independent fetch tasks over a bounded pool of goroutines.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ProgressFunc is invoked once per completed task with the running count.
type ProgressFunc func(completed, total int)

// Config controls pool behavior.
type Config struct {
	Concurrency int
	Progress    ProgressFunc
}

// Func processes one item. Tasks must capture their own failures in R; the
// pool never sees an error.
type Func[T, R any] func(ctx context.Context, item T) R

// Run applies fn to every item with at most cfg.Concurrency tasks in flight
// and returns the results in completion order. It blocks until every task
// has finished.
func Run[T, R any](ctx context.Context, cfg Config, items []T, fn Func[T, R]) []R {
	if len(items) == 0 {
		return nil
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu        sync.Mutex
		results   = make([]R, 0, len(items))
		completed atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(limit)
	total := len(items)
	for _, item := range items {
		g.Go(func() error {
			res := fn(ctx, item)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			done := completed.Add(1)
			if cfg.Progress != nil {
				cfg.Progress(int(done), total)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
