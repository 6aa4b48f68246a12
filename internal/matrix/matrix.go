// Package matrix provides the host-side matrix value and its wire
// serialization: row-major half-precision elements, two bytes each,
// little-endian, exactly 2*rows*cols bytes per matrix.
package matrix

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mxhost/tpulink/internal/fp16"
)

// ValidationError reports a caller-supplied shape or length mismatch.
// It is a usage error, never worth retrying.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	rows, cols int
	data       []float32
}

// New creates a zero matrix. Panics on non-positive dimensions; the shape
// is host configuration, not runtime input.
func New(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("matrix: invalid shape %dx%d", rows, cols))
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// FromSlice creates a matrix backed by a copy of data (row-major,
// len(data) == rows*cols).
func FromSlice(rows, cols int, data []float32) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, validationf("matrix: data length %d does not match %dx%d", len(data), rows, cols)
	}
	m := New(rows, cols)
	copy(m.data, data)
	return m, nil
}

// Random fills a new matrix with values drawn from rng scaled by scale.
// Used by the demo and benchmark paths.
func Random(rows, cols int, rng *rand.Rand, scale float32) *Matrix {
	m := New(rows, cols)
	for i := range m.data {
		m.data[i] = float32(rng.NormFloat64()) * scale
	}
	return m
}

// Dims returns (rows, cols).
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float32 { return m.data[i*m.cols+j] }

// Set assigns the element at (i, j).
func (m *Matrix) Set(i, j int, v float32) { m.data[i*m.cols+j] = v }

// Data returns the row-major backing slice. Callers must not resize it.
func (m *Matrix) Data() []float32 { return m.data }

// CheckShape fails fast when the matrix does not match the accelerator's
// configured square dimension.
func (m *Matrix) CheckShape(dim int) error {
	if m.rows != dim || m.cols != dim {
		return validationf("matrix: shape %dx%d does not match accelerator dimension %d", m.rows, m.cols, dim)
	}
	return nil
}

// WireSize returns the serialized length in bytes for a rows x cols matrix.
func WireSize(rows, cols int) int { return 2 * rows * cols }

// Serialize encodes the matrix for transfer: each element converted to half
// precision and appended little-endian in row-major order.
func (m *Matrix) Serialize() []byte {
	out := make([]byte, WireSize(m.rows, m.cols))
	for i, v := range m.data {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(fp16.Encode(v)))
	}
	return out
}

// Deserialize decodes a wire payload into a rows x cols matrix. The payload
// length must be exactly 2*rows*cols.
func Deserialize(b []byte, rows, cols int) (*Matrix, error) {
	if want := WireSize(rows, cols); len(b) != want {
		return nil, validationf("matrix: payload length %d, want %d for %dx%d", len(b), want, rows, cols)
	}
	m := New(rows, cols)
	for i := range m.data {
		m.data[i] = fp16.Decode(fp16.Half(binary.LittleEndian.Uint16(b[2*i:])))
	}
	return m, nil
}

// Dense converts to a gonum mat.Dense for reference arithmetic.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			d.Set(i, j, float64(m.At(i, j)))
		}
	}
	return d
}

// MaxAbsDiff returns the largest element-wise absolute difference between m
// and the reference ref. Shapes must already agree.
func (m *Matrix) MaxAbsDiff(ref mat.Matrix) float64 {
	var max float64
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			d := float64(m.At(i, j)) - ref.At(i, j)
			if d < 0 {
				d = -d
			}
			if d > max {
				max = d
			}
		}
	}
	return max
}
