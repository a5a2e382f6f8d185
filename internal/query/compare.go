package query

import (
	"cmp"
	"log/slog"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// ValueComparator returns a comparator for property values as the
// backend orders them. Both values are compared by their declared type;
// values of different types are compared as strings and a warning is
// logged. String, name, path, reference and URI values all count as
// strings. Nil sorts low in ascending order. For descending order the
// whole comparator is reversed, so nil sorts high.
func ValueComparator(ascending bool) func(a, b content.Value) int {
	if ascending {
		return compareValues
	}
	return func(a, b content.Value) int { return compareValues(b, a) }
}

func compareValues(a, b content.Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if a.Type().IsStringLike() && b.Type().IsStringLike() {
		return strings.Compare(a.String(), b.String())
	}
	if a.Type() != b.Type() {
		slog.Warn("values have different types, comparing as strings",
			"left", a.Type().String(), "right", b.Type().String())
		return strings.Compare(a.String(), b.String())
	}
	switch av := a.(type) {
	case content.LongValue:
		return cmp.Compare(av, b.(content.LongValue))
	case content.DoubleValue:
		return cmp.Compare(av, b.(content.DoubleValue))
	case content.DecimalValue:
		bv := b.(content.DecimalValue)
		if av.D == nil || bv.D == nil {
			return cmp.Compare(av.Float64(), bv.Float64())
		}
		return av.D.Cmp(bv.D)
	case content.DateValue:
		return av.T.Compare(b.(content.DateValue).T)
	case content.BooleanValue:
		switch {
		case av == b.(content.BooleanValue):
			return 0
		case !bool(av):
			return -1
		}
		return 1
	default:
		// string-like values and binary keys
		return strings.Compare(a.String(), b.String())
	}
}

// PathComparator orders live-shaped paths. Empty paths sort high in
// ascending order.
func PathComparator(ascending bool) func(a, b string) int {
	c := func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "":
			return 1
		case b == "":
			return -1
		}
		return strings.Compare(a, b)
	}
	if ascending {
		return c
	}
	return func(a, b string) int { return c(b, a) }
}

// RowComparator orders rows by one column of the primary selector, then
// by live-shaped path ascending so equal values keep a total order. An
// order of "jcr:path" compares paths only.
func RowComparator(orderBy string, ascending bool) func(a, b *Row) int {
	byPath := PathComparator(true)
	if orderBy == content.PseudoPath {
		paths := PathComparator(ascending)
		return func(a, b *Row) int { return paths(a.Path(), b.Path()) }
	}
	values := ValueComparator(ascending)
	return func(a, b *Row) int {
		if c := values(a.orderValue(orderBy), b.orderValue(orderBy)); c != 0 {
			return c
		}
		return byPath(a.Path(), b.Path())
	}
}

// MergeSorted merges streams that are each sorted by compare into one
// sorted stream. Ties are taken from the earlier stream first.
func MergeSorted[T any](compare func(a, b T) int, streams ...[]T) []T {
	total := 0
	for _, s := range streams {
		total += len(s)
	}
	out := make([]T, 0, total)
	pos := make([]int, len(streams))
	for len(out) < total {
		best := -1
		for i, s := range streams {
			if pos[i] >= len(s) {
				continue
			}
			if best < 0 || compare(s[pos[i]], streams[best][pos[best]]) < 0 {
				best = i
			}
		}
		out = append(out, streams[best][pos[best]])
		pos[best]++
	}
	return out
}

// Paginate returns items[offset:offset+limit], clamped to the slice. A
// negative limit means no limit.
func Paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
