// Package fixedpt provides the 26.6 fixed-point helpers shared by the text
// shaping engine: sequence advances, glyph origins,
// and baseline tracking are all carried in this format the way freetype and
// harfbuzz do, converting to floating-point pixels only at the very end of
// shaping.
package fixedpt

import "golang.org/x/image/math/fixed"

// T is one 26-bit-integer/6-bit-fraction fixed-point value.
type T = fixed.Int26_6

// FromFloat converts a float64 (pixels, font units,...) to 26.6.
func FromFloat(v float64) T {
	return fixed.Int26_6(v * 64)
}

// ToFloat converts a 26.6 value back to float64.
func ToFloat(v T) float64 {
	return float64(v) / 64
}

// ToInt rounds a 26.6 value to the nearest integer, the way icon geometry
// is rounded while glyph geometry keeps float precision.
func ToInt(v T) int {
	return int((v + 32) >> 6)
}
