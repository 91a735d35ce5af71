package mathx

import "golang.org/x/exp/constraints"

// GCD returns the greatest common divisor of a and b (both treated as
// non-negative magnitudes). GCD(0, b) == b and GCD(a, 0) == a.
func GCD[T constraints.Integer](a, b T) T {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b. LCM(0, x) == 0;
// LCMAll skips zero entries so that a 0 Hz core ("as fast as the
// pipeline allows") contributes nothing to the timebase LCM.
func LCM[T constraints.Integer](a, b T) T {
	if a == 0 || b == 0 {
		return 0
	}
	g := GCD(a, b)
	return (a / g) * b
}

// LCMAll folds LCM over a slice, skipping zero entries (which mean "as
// fast as the pipeline allows" and never constrain the shared timebase).
// Returns 0 if every entry is zero.
func LCMAll[T constraints.Integer](values []T) T {
	var acc T
	for _, v := range values {
		if v == 0 {
			continue
		}
		if acc == 0 {
			acc = v
			continue
		}
		acc = LCM(acc, v)
	}
	return acc
}

// SignExtend sign-extends the low `width` bits of raw (width in [1,64])
// treating bit (width-1) as the sign bit, returning a full-width signed
// value. Used by the scope demultiplexer (§4.3) to turn a masked raw
// sample into its signed magnitude.
func SignExtend(raw uint64, width uint) int64 {
	if width == 0 || width >= 64 {
		return int64(raw)
	}
	shift := 64 - width
	return int64(raw<<shift) >> shift
}

// MaskWidth returns a mask selecting the low `width` bits (width in
// [0,64]).
func MaskWidth(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
