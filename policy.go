package verstats

import "cmp"

// Policy folds a statistic's previous value into its next value.
// ok reports whether a previous value exists; returning keep=false removes
// the statistic. Implementations must be pure.
type Policy[V any] interface {
	Fold(prev V, ok bool) (next V, keep bool)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[V any] func(prev V, ok bool) (V, bool)

func (f PolicyFunc[V]) Fold(prev V, ok bool) (V, bool) { return f(prev, ok) }

// Integer is the constraint for counting policies.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Number is the constraint for accumulating policies.
type Number interface {
	Integer | ~float32 | ~float64
}

// Increment counts occurrences: absent becomes 1, n becomes n+1.
func Increment[N Integer]() Policy[N] {
	return PolicyFunc[N](func(prev N, _ bool) (N, bool) {
		return prev + 1, true
	})
}

// Replace stores v regardless of the previous value.
func Replace[V any](v V) Policy[V] {
	return PolicyFunc[V](func(V, bool) (V, bool) {
		return v, true
	})
}

// Sum adds delta to the previous value, starting from zero.
func Sum[N Number](delta N) Policy[N] {
	return PolicyFunc[N](func(prev N, _ bool) (N, bool) {
		return prev + delta, true
	})
}

// Max keeps the largest value observed.
func Max[V cmp.Ordered](v V) Policy[V] {
	return PolicyFunc[V](func(prev V, ok bool) (V, bool) {
		if ok && prev >= v {
			return prev, true
		}
		return v, true
	})
}

// Min keeps the smallest value observed.
func Min[V cmp.Ordered](v V) Policy[V] {
	return PolicyFunc[V](func(prev V, ok bool) (V, bool) {
		if ok && prev <= v {
			return prev, true
		}
		return v, true
	})
}

// Clear removes the statistic when recorded.
func Clear[V any]() Policy[V] {
	return PolicyFunc[V](func(prev V, _ bool) (V, bool) {
		var zero V
		return zero, false
	})
}
