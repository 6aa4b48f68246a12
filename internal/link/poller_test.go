package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusScript is a Driver stub whose ReadStatus walks a fixed sequence.
type statusScript struct {
	seq   []StatusRegister
	errAt int // 1-based query index that fails, 0 for never
	calls int
}

func (s *statusScript) ReadStatus() (StatusRegister, error) {
	s.calls++
	if s.errAt != 0 && s.calls >= s.errAt {
		return StatusRegister{}, &TransportError{Op: "read", Err: errors.New("gone")}
	}
	i := s.calls - 1
	if i >= len(s.seq) {
		i = len(s.seq) - 1
	}
	return s.seq[i], nil
}

func (s *statusScript) Reset() error                                 { return nil }
func (s *statusScript) LoadOperand(Operand, []byte) error            { return nil }
func (s *statusScript) StartCompute() error                          { return nil }
func (s *statusScript) ReadResult(int) ([]byte, error)               { return nil, nil }
func (s *statusScript) ReadbackOperand(Operand, int) ([]byte, error) { return nil, nil }
func (s *statusScript) Close() error                                 { return nil }

func TestPollDoneImmediately(t *testing.T) {
	drv := &statusScript{seq: []StatusRegister{{Done: true, Cycles: 77}}}
	st, err := PollUntilDone(context.Background(), drv, time.Second, time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, uint32(77), st.Cycles)
	assert.Equal(t, 1, drv.calls)
}

func TestPollBusyThenDone(t *testing.T) {
	drv := &statusScript{seq: []StatusRegister{
		{Busy: true}, {Busy: true}, {Done: true, Cycles: 12},
	}}
	st, err := PollUntilDone(context.Background(), drv, time.Second, time.Millisecond)
	require.NoError(t, err)

	assert.True(t, st.Done)
	assert.Equal(t, 3, drv.calls)
}

func TestPollFault(t *testing.T) {
	drv := &statusScript{seq: []StatusRegister{{Busy: true}, {Error: true}}}
	start := time.Now()
	_, err := PollUntilDone(context.Background(), drv, time.Second, time.Millisecond)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.True(t, fault.Status.Error)
	// Fault reported well before the deadline.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPollTimeout(t *testing.T) {
	drv := &statusScript{seq: []StatusRegister{{Busy: true}}}
	deadline := 50 * time.Millisecond

	start := time.Now()
	_, err := PollUntilDone(context.Background(), drv, deadline, 5*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, deadline)
	assert.Less(t, elapsed, deadline+100*time.Millisecond)
}

func TestPollQueryFailureAborts(t *testing.T) {
	// A dead link must not be mistaken for "not yet done".
	drv := &statusScript{seq: []StatusRegister{{Busy: true}}, errAt: 2}
	_, err := PollUntilDone(context.Background(), drv, time.Second, time.Millisecond)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2, drv.calls)
}

func TestPollContextCancel(t *testing.T) {
	drv := &statusScript{seq: []StatusRegister{{Busy: true}}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := PollUntilDone(ctx, drv, time.Minute, 5*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}
