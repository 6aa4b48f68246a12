// Package export serializes computed results for downstream tooling:
// Arrow IPC for result matrices, CBOR for benchmark statistics.
package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/mxhost/tpulink/internal/matrix"
)

// RecordBuilder creates Arrow RecordBatches from result matrices.
type RecordBuilder struct {
	mem memory.Allocator
}

// NewRecordBuilder creates a builder. Pass nil for the default Go allocator.
func NewRecordBuilder(mem memory.Allocator) *RecordBuilder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &RecordBuilder{mem: mem}
}

// MatrixRecord converts a matrix into a RecordBatch with one record per
// matrix row: { row: int32, values: fixed_size_list<float32>[cols] }.
// The caller releases the returned batch.
func (b *RecordBuilder) MatrixRecord(m *matrix.Matrix) arrow.RecordBatch {
	rows, cols := m.Dims()

	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "row", Type: arrow.PrimitiveTypes.Int32},
			{Name: "values", Type: arrow.FixedSizeListOf(int32(cols), arrow.PrimitiveTypes.Float32)},
		},
		nil,
	)

	rowBuilder := array.NewInt32Builder(b.mem)
	defer rowBuilder.Release()

	listBuilder := array.NewFixedSizeListBuilder(b.mem, int32(cols), arrow.PrimitiveTypes.Float32)
	defer listBuilder.Release()
	valueBuilder := listBuilder.ValueBuilder().(*array.Float32Builder)

	data := m.Data()
	for i := 0; i < rows; i++ {
		rowBuilder.Append(int32(i))
		listBuilder.Append(true)
		valueBuilder.AppendValues(data[i*cols:(i+1)*cols], nil)
	}

	rowArr := rowBuilder.NewArray()
	defer rowArr.Release()
	listArr := listBuilder.NewArray()
	defer listArr.Release()

	return array.NewRecordBatch(schema, []arrow.Array{rowArr, listArr}, int64(rows))
}

// WriteIPCStream writes a RecordBatch as an Arrow IPC stream.
func WriteIPCStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
