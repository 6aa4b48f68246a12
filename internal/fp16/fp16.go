// Package fp16 converts between float32 and the accelerator's 16-bit
// half-precision format (IEEE 754 binary16 layout: 1 sign, 5 exponent,
// 10 mantissa bits).
//
// The encode path reproduces the FPGA's own conversion unit rather than a
// strict IEEE implementation: mantissas are truncated (not rounded),
// magnitudes below the half-precision normal range flush to signed zero,
// and NaN collapses to signed infinity. The decode path is exact, including
// subnormal reconstruction. The asymmetry is required for bit-compatibility
// with the hardware.
package fp16

import "math"

// Half is a raw half-precision bit pattern.
type Half uint16

const (
	signMask16 = 0x8000
	expMask16  = 0x7C00
	manMask16  = 0x03FF

	// PosInf and NegInf are the half-precision infinity patterns.
	PosInf Half = 0x7C00
	NegInf Half = 0xFC00

	// One is 1.0 in half precision.
	One Half = 0x3C00
)

// Encode converts a float32 to the accelerator's half-precision format.
// Total over all inputs: overflow saturates to signed infinity, underflow
// (and every 32-bit subnormal) flushes to signed zero, NaN becomes signed
// infinity. The mantissa is truncated to its top 10 bits.
func Encode(f float32) Half {
	bits := math.Float32bits(f)

	sign := uint16(bits>>16) & signMask16
	exp32 := (bits >> 23) & 0xFF
	man32 := bits & 0x7FFFFF

	switch exp32 {
	case 0:
		// Zero or float32 subnormal. The smallest float32 subnormal is far
		// below the half-precision range, so everything lands on signed zero.
		return Half(sign)
	case 0xFF:
		// Inf or NaN. The hardware has no NaN representation; both map to
		// signed infinity.
		return Half(sign) | PosInf
	}

	// Rebias 127 -> 15. Signed arithmetic so underflow is visible.
	exp16 := int32(exp32) - 127 + 15
	if exp16 >= 0x1F {
		return Half(sign) | PosInf
	}
	if exp16 <= 0 {
		// No subnormal outputs: flush to signed zero.
		return Half(sign)
	}

	man16 := uint16(man32 >> 13) // truncate 23 -> 10 bits
	return Half(sign) | Half(uint16(exp16)<<10) | Half(man16)
}

// Decode converts a half-precision value to float32. Exact for every input:
// half subnormals are renormalized into the float32 exponent range, and
// Inf/NaN pass through with the mantissa shifted into the 23-bit field.
func Decode(h Half) float32 {
	sign := uint32(h&signMask16) << 16
	exp16 := uint32(h&expMask16) >> 10
	man16 := uint32(h & manMask16)

	switch exp16 {
	case 0:
		if man16 == 0 {
			return math.Float32frombits(sign)
		}
		// Half subnormal: value is man16 * 2^-24. Normalize by shifting the
		// mantissa up until the implicit bit reaches position 10.
		exp32 := uint32(127 - 15 + 1)
		man32 := man16 << 13
		for man32&0x800000 == 0 {
			man32 <<= 1
			exp32--
		}
		man32 &= 0x7FFFFF
		return math.Float32frombits(sign | exp32<<23 | man32)
	case 0x1F:
		return math.Float32frombits(sign | 0xFF<<23 | man16<<13)
	}

	exp32 := exp16 - 15 + 127
	return math.Float32frombits(sign | exp32<<23 | man16<<13)
}

// Degrade round-trips a float32 through half precision. This is the value
// the accelerator actually sees for any operand element.
func Degrade(f float32) float32 {
	return Decode(Encode(f))
}
