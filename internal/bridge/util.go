package bridge

import "math"

// f32bits reinterprets a float32 as its raw IEEE-754 bit pattern — the
// bit-exact copy the register layouts in §6.4 and the filter taps in
// ApplyFilter require (never a rounding/truncating integer conversion).
func f32bits(v float32) uint32 {
	return math.Float32bits(v)
}
