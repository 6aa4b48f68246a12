package fp16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/x448/float16"
)

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		in   float32
		want Half
	}{
		{0.0, 0x0000},
		{1.0, 0x3C00},
		{-1.0, 0xBC00},
		{2.0, 0x4000},
		{-2.0, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF}, // largest half-precision normal
	}
	for _, c := range cases {
		if got := Encode(c.in); got != c.want {
			t.Errorf("Encode(%v) = 0x%04X, want 0x%04X", c.in, got, c.want)
		}
	}
}

func TestEncodeNegativeZero(t *testing.T) {
	h := Encode(float32(math.Copysign(0, -1)))
	if h != 0x8000 {
		t.Errorf("Encode(-0) = 0x%04X, want 0x8000", h)
	}
}

func TestEncodeInfinity(t *testing.T) {
	if got := Encode(float32(math.Inf(1))); got != PosInf {
		t.Errorf("Encode(+Inf) = 0x%04X, want 0x%04X", got, PosInf)
	}
	if got := Encode(float32(math.Inf(-1))); got != NegInf {
		t.Errorf("Encode(-Inf) = 0x%04X, want 0x%04X", got, NegInf)
	}
}

func TestEncodeNaNCollapsesToInf(t *testing.T) {
	// The hardware conversion unit has no NaN encoding.
	if got := Encode(float32(math.NaN())); got&^signMask16 != PosInf {
		t.Errorf("Encode(NaN) = 0x%04X, want an infinity pattern", got)
	}
}

func TestEncodeOverflowSaturates(t *testing.T) {
	if got := Encode(65520); got != PosInf {
		t.Errorf("Encode(65520) = 0x%04X, want +Inf", got)
	}
	if got := Encode(1e6); got != PosInf {
		t.Errorf("Encode(1e6) = 0x%04X, want +Inf", got)
	}
	if got := Encode(-1e6); got != NegInf {
		t.Errorf("Encode(-1e6) = 0x%04X, want -Inf", got)
	}
}

func TestEncodeUnderflowFlushesToZero(t *testing.T) {
	// Below the half-precision normal range (~6.1e-5) everything flushes,
	// including values a strict IEEE conversion would make subnormal.
	for _, v := range []float32{1e-5, 6e-5, 1e-30, 1e-40} {
		if got := Encode(v); got != 0x0000 {
			t.Errorf("Encode(%g) = 0x%04X, want 0x0000", v, got)
		}
		if got := Encode(-v); got != 0x8000 {
			t.Errorf("Encode(%g) = 0x%04X, want 0x8000", -v, got)
		}
	}
}

func TestDecodeKnownValues(t *testing.T) {
	if got := Decode(One); got != 1.0 {
		t.Errorf("Decode(0x3C00) = %v, want 1.0", got)
	}
	if got := Decode(0x0000); got != 0.0 {
		t.Errorf("Decode(0x0000) = %v, want 0.0", got)
	}
	if bits := math.Float32bits(Decode(0x8000)); bits != 0x80000000 {
		t.Errorf("Decode(0x8000) bits = 0x%08X, want 0x80000000", bits)
	}
	if got := Decode(PosInf); !math.IsInf(float64(got), 1) {
		t.Errorf("Decode(+Inf pattern) = %v, want +Inf", got)
	}
	if got := Decode(NegInf); !math.IsInf(float64(got), -1) {
		t.Errorf("Decode(-Inf pattern) = %v, want -Inf", got)
	}
}

// TestDecodeAgainstReference checks every 16-bit pattern against the x448
// reference implementation. The decode path is strict IEEE, so the two must
// agree bit for bit (NaN compared as NaN, payloads aside).
func TestDecodeAgainstReference(t *testing.T) {
	for i := 0; i <= 0xFFFF; i++ {
		h := Half(i)
		got := Decode(h)
		want := float16.Frombits(uint16(i)).Float32()

		if math.IsNaN(float64(want)) {
			assert.True(t, math.IsNaN(float64(got)), "pattern 0x%04X: want NaN, got %v", i, got)
			continue
		}
		assert.Equal(t, math.Float32bits(want), math.Float32bits(got),
			"pattern 0x%04X: got %v, want %v", i, got, want)
	}
}

func TestDecodeSubnormals(t *testing.T) {
	// Smallest positive half subnormal: 2^-24.
	if got := Decode(0x0001); got != float32(math.Ldexp(1, -24)) {
		t.Errorf("Decode(0x0001) = %g, want 2^-24", got)
	}
	// Largest half subnormal: (1023/1024) * 2^-14.
	want := float32(1023.0 / 1024.0 * math.Ldexp(1, -14))
	if got := Decode(0x03FF); got != want {
		t.Errorf("Decode(0x03FF) = %g, want %g", got, want)
	}
}

// TestRoundTripErrorBound verifies the documented precision-loss policy:
// for finite inputs inside the representable range the round-trip error is
// bounded by max(|x| * 2^-10, 2^-24). Truncation never exceeds one ULP.
func TestRoundTripErrorBound(t *testing.T) {
	inputs := []float32{
		0.0001, 0.001, 0.01, 0.1, 0.33333, 0.5, 1.0, 1.5, 2.71828,
		3.14159, 10.0, 100.0, 1000.0, 30000.0, 65000.0,
	}
	for _, x := range inputs {
		for _, s := range []float32{1, -1} {
			v := x * s
			got := Degrade(v)
			bound := math.Max(math.Abs(float64(v))*math.Pow(2, -10), math.Pow(2, -24))
			if diff := math.Abs(float64(got - v)); diff > bound {
				t.Errorf("Degrade(%g) = %g, error %g exceeds bound %g", v, got, diff, bound)
			}
		}
	}
}

func TestEncodeDecodeIdempotent(t *testing.T) {
	// A degraded value is exactly representable; degrading again is identity.
	for _, v := range []float32{0.1, 1.7, -42.5, 0.0003, 999.25} {
		once := Degrade(v)
		assert.Equal(t, once, Degrade(once), "Degrade not idempotent for %g", v)
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(3.14159)
	}
}

func BenchmarkDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Decode(0x4248)
	}
}
