// Package pagination provides windowed, optionally sorted views over slices
// together with composable comparators.
package pagination

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownSortKey is returned when an Ordering has no comparator for a key.
var ErrUnknownSortKey = errors.New("pagination: unknown sort key")

// Comparator orders two values, returning a negative number when a sorts
// before b, zero when they are equivalent and a positive number otherwise.
type Comparator[T any] func(a, b T) int

// By builds a comparator from an ordered key extractor.
func By[T any, K cmp.Ordered](key func(T) K) Comparator[T] {
	return func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	}
}

// Then chains a tie-break comparator consulted only when c reports equality.
func (c Comparator[T]) Then(next Comparator[T]) Comparator[T] {
	if c == nil {
		return next
	}
	if next == nil {
		return c
	}
	return func(a, b T) int {
		if r := c(a, b); r != 0 {
			return r
		}
		return next(a, b)
	}
}

// Reverse inverts the comparator.
func (c Comparator[T]) Reverse() Comparator[T] {
	if c == nil {
		return nil
	}
	return func(a, b T) int {
		return c(b, a)
	}
}

// Paginate returns the 1-based inclusive window [start, end] of items after an
// optional stable sort. A nil start selects the first element and a nil end the
// last; out-of-range bounds are clamped. The input slice is never modified.
func Paginate[T any](items []T, start, end *int, order Comparator[T], ascending bool) []T {
	arr := slices.Clone(items)
	if order != nil {
		if !ascending {
			order = order.Reverse()
		}
		slices.SortStableFunc(arr, order)
	}

	from := 0
	if start != nil {
		from = max(0, *start-1)
	}
	to := len(arr)
	if end != nil {
		to = min(len(arr), max(0, *end))
	}
	if from >= to {
		return []T{}
	}
	return arr[from:to:to]
}

// Ordering maps sort-key names to comparators.
type Ordering[T any] map[string]Comparator[T]

// Keys lists the registered sort keys in lexical order.
func (o Ordering[T]) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Paginate resolves key and delegates to Paginate. An empty key keeps input order.
func (o Ordering[T]) Paginate(items []T, start, end *int, key string, ascending bool) ([]T, error) {
	if key == "" {
		return Paginate(items, start, end, nil, ascending), nil
	}
	order, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
	return Paginate(items, start, end, order, ascending), nil
}

// Bound is a convenience for building optional window bounds.
func Bound(n int) *int {
	return &n
}
