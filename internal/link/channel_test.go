package link

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnChannelReadFull(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()
	ch := NewConnChannel(host, time.Second)
	defer ch.Close()

	go func() {
		dev.Write([]byte{1, 2})
		dev.Write([]byte{3, 4})
	}()

	buf := make([]byte, 4)
	n, err := ch.ReadFull(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestConnChannelTimeoutShortRead(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()
	ch := NewConnChannel(host, 30*time.Millisecond)
	defer ch.Close()

	go func() {
		dev.Write([]byte{0xAB})
		// Device goes quiet: the remaining bytes never arrive.
	}()

	buf := make([]byte, 3)
	start := time.Now()
	n, err := ch.ReadFull(buf)

	// Timeout surfaces as a short read with a nil error.
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConnChannelClosedPeer(t *testing.T) {
	host, dev := net.Pipe()
	ch := NewConnChannel(host, time.Second)
	defer ch.Close()
	dev.Close()

	_, err := ch.ReadFull(make([]byte, 1))
	require.Error(t, err)
}

func TestStatusRoundTrip(t *testing.T) {
	st := StatusRegister{Busy: true, Error: true, Cycles: 0xABCDE}
	got := DecodeStatus(EncodeStatus(st))
	assert.Equal(t, st, got)
}

func TestStatusCycles24Bit(t *testing.T) {
	b := EncodeStatus(StatusRegister{Cycles: 0x00FFFFFF})
	assert.Equal(t, [4]byte{0x00, 0xFF, 0xFF, 0xFF}, b)
	assert.Equal(t, uint32(0x00FFFFFF), DecodeStatus(b).Cycles)
}

func TestStatusString(t *testing.T) {
	assert.Contains(t, StatusRegister{Done: true, Cycles: 9}.String(), "done")
	assert.Contains(t, StatusRegister{Error: true}.String(), "error")
	assert.Contains(t, StatusRegister{Busy: true}.String(), "busy")
	assert.Contains(t, StatusRegister{}.String(), "idle")
}
