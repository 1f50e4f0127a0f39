// Package fanout runs a function over a list of items with a fixed ceiling on
// in-flight calls.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency ceiling used when a caller passes limit <= 0.
const DefaultLimit = 20

// Map calls fn once per item with at most limit calls running at the same time
// and returns the results indexed like items. fn reports its own failures in R;
// one item failing never stops its siblings. Completion order is unspecified.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) R) []R {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			out[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Range is Map over the integers lo..hi inclusive.
func Range[R any](ctx context.Context, limit, lo, hi int, fn func(ctx context.Context, n int) R) []R {
	if hi < lo {
		return nil
	}
	idx := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		idx = append(idx, n)
	}
	return Map(ctx, limit, idx, fn)
}
