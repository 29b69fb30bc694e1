package template

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Strategy folds the per-organization results of a hierarchy walk into a
// single result.
type Strategy[T any] interface {
	// Empty reports whether v is the "no contribution" sentinel.
	Empty(v T) bool

	// Combine folds next into the accumulated result. Returning done stops
	// the walk; the remaining organizations are not queried.
	Combine(acc, next T) (result T, done bool)
}

// FirstFound keeps the first non-empty result walking from leaf to root.
type FirstFound[T any] struct {
	IsEmpty func(T) bool
}

func (f FirstFound[T]) Empty(v T) bool { return f.IsEmpty(v) }

func (f FirstFound[T]) Combine(acc, next T) (T, bool) {
	if !f.IsEmpty(acc) {
		return acc, true
	}
	if f.IsEmpty(next) {
		return acc, false
	}
	return next, true
}

// MergeAll folds every organization's list into one. Entries already in the
// accumulator (closer to the leaf) win over later ones with the same key.
type MergeAll[E any] struct {
	Key func(E) string
}

func (m MergeAll[E]) Empty(v []E) bool { return len(v) == 0 }

func (m MergeAll[E]) Combine(acc, next []E) ([]E, bool) {
	return mergeByKey(acc, next, m.Key), false
}

// mergeByKey appends the entries of next whose key is not already in primary.
func mergeByKey[E any](primary, next []E, key func(E) string) []E {
	if len(next) == 0 {
		return primary
	}
	seen := make(map[string]struct{}, len(primary)+len(next))
	out := make([]E, 0, len(primary)+len(next))
	for _, e := range primary {
		seen[key(e)] = struct{}{}
		out = append(out, e)
	}
	for _, e := range next {
		k := key(e)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// fold walks levels in order, querying each and combining the results. The
// first error stops the walk and is returned unchanged.
func fold[L, T any](ctx context.Context, levels []L, s Strategy[T], query func(context.Context, int, L) (T, error)) (T, error) {
	var acc T
	for i, lvl := range levels {
		next, err := query(ctx, i, lvl)
		if err != nil {
			var zero T
			return zero, err
		}
		var done bool
		acc, done = s.Combine(acc, next)
		if done {
			break
		}
	}
	return acc, nil
}

// foldParallel queries every level concurrently and then folds the results
// in level order, so precedence matches fold. Strategies must not stop early.
// The error of the lowest failing level wins.
func foldParallel[L, T any](ctx context.Context, levels []L, s Strategy[T], limit int, query func(context.Context, int, L) (T, error)) (T, error) {
	results := make([]T, len(levels))
	errs := make([]error, len(levels))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, lvl := range levels {
		g.Go(func() error {
			results[i], errs[i] = query(ctx, i, lvl)
			return nil
		})
	}
	_ = g.Wait()

	var acc T
	for i := range levels {
		if errs[i] != nil {
			var zero T
			return zero, errs[i]
		}
		acc, _ = s.Combine(acc, results[i])
	}
	return acc, nil
}
