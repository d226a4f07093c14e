/*Package fixedpoint converts real-world quantities to and from the 2^14
scaled integer fields used by the waveform generator registers.

A quantity is described by its full-scale divisor: the real value that maps
to exactly 1<<14 counts.  The generator uses

	Volts   2.5   amplitude and offset
	Percent 100   duty cycle
	Degrees 360   phase

Conversion rounds to the nearest count, halves away from zero.  Nothing is
clamped.  A value outside the range of a 16-bit field wraps when it is
narrowed with Unsigned16 or Signed16, which is what the hardware sees.
*/
package fixedpoint

import "math"

const (
	// FractionBits is the number of fractional bits in a field
	FractionBits = 14

	// Scale is the number of counts per full-scale unit
	Scale = 1 << FractionBits

	// Volts is the full-scale divisor of amplitude and offset fields
	Volts = 2.5

	// Percent is the full-scale divisor of the duty cycle field
	Percent = 100.

	// Degrees is the full-scale divisor of the phase field
	Degrees = 360.
)

// ToFixed converts value to counts, round(value * 2^14 / fullScale).
// Counts beyond the int32 range wrap modulo 2^32, the same on every
// architecture, as long as they fit in an int64.  The low 16 bits are what
// a field keeps either way.
func ToFixed(value, fullScale float64) int32 {
	return int32(int64(math.Round(value * Scale / fullScale)))
}

// FromFixed converts counts back to a real value, raw * fullScale / 2^14
func FromFixed(raw int32, fullScale float64) float64 {
	return float64(raw) * fullScale / Scale
}

// Step is the real value of one count for the given full scale
func Step(fullScale float64) float64 {
	return fullScale / Scale
}

// Unsigned16 narrows counts to an unsigned 16-bit field.
// Negative counts produce large encoded values, e.g. -1 -> 0xFFFF.
func Unsigned16(raw int32) uint16 {
	return uint16(raw)
}

// Signed16 narrows counts to a two's complement 16-bit field
func Signed16(raw int32) uint16 {
	return uint16(int16(raw))
}

// FromUnsigned16 widens an unsigned 16-bit field to counts
func FromUnsigned16(field uint16) int32 {
	return int32(field)
}

// FromSigned16 sign-extends a two's complement 16-bit field to counts
func FromSigned16(field uint16) int32 {
	return int32(int16(field))
}

// EncodeUnsigned is ToFixed followed by Unsigned16
func EncodeUnsigned(value, fullScale float64) uint16 {
	return Unsigned16(ToFixed(value, fullScale))
}

// EncodeSigned is ToFixed followed by Signed16
func EncodeSigned(value, fullScale float64) uint16 {
	return Signed16(ToFixed(value, fullScale))
}

// DecodeUnsigned is the inverse of EncodeUnsigned for in-range values
func DecodeUnsigned(field uint16, fullScale float64) float64 {
	return FromFixed(FromUnsigned16(field), fullScale)
}

// DecodeSigned is the inverse of EncodeSigned for in-range values
func DecodeSigned(field uint16, fullScale float64) float64 {
	return FromFixed(FromSigned16(field), fullScale)
}
