package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxhost/tpulink/internal/matrix"
	"github.com/mxhost/tpulink/internal/session"
)

func TestMatrixRecordRoundTrip(t *testing.T) {
	m, err := matrix.FromSlice(2, 3, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	b := NewRecordBuilder(nil)
	rec := b.MatrixRecord(m)
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	require.EqualValues(t, 2, rec.NumCols())

	var buf bytes.Buffer
	require.NoError(t, WriteIPCStream(&buf, rec))

	reader, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	got := reader.Record()

	rowArr := got.Column(0).(*array.Int32)
	assert.Equal(t, []int32{0, 1}, rowArr.Int32Values())

	listArr := got.Column(1).(*array.FixedSizeList)
	values := listArr.ListValues().(*array.Float32)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, values.Float32Values())
}

func TestWriteStatsCBOR(t *testing.T) {
	st := session.Stats{
		Count:      4,
		Total:      2 * time.Second,
		Average:    500 * time.Millisecond,
		Last:       450 * time.Millisecond,
		Throughput: 1024,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatsCBOR(&buf, st))

	var got session.Stats
	require.NoError(t, cbor.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, st, got)
}
