package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// AlignUp rounds operand up to a multiple of granularity, which must be a
// power of two.
func AlignUp[T constraints.Unsigned](operand, granularity T) T {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}
