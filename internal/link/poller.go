package link

import (
	"context"
	"fmt"
	"time"
)

// Poll defaults. Compute latency on the 8x8 array is microseconds to low
// milliseconds; the interval keeps status traffic off the wire between
// checks without adding meaningful latency.
const (
	DefaultPollInterval = 2 * time.Millisecond
	DefaultPollTimeout  = 10 * time.Second
)

// PollUntilDone queries the status register until the done flag is set.
//
// A failed status query aborts immediately (a dead link is not "not yet
// done"). An error flag returns *FaultError before the deadline. Otherwise
// the poller waits interval between queries, never sleeping past the
// deadline, and returns ErrTimeout once the deadline elapses. ctx bounds
// the wait as well; the driver itself only cancels via the deadline.
func PollUntilDone(ctx context.Context, drv Driver, deadline, interval time.Duration) (StatusRegister, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := time.Now()
	for {
		st, err := drv.ReadStatus()
		if err != nil {
			return StatusRegister{}, fmt.Errorf("status query: %w", err)
		}
		if st.Error {
			return st, &FaultError{Status: st}
		}
		if st.Done {
			return st, nil
		}

		remaining := deadline - time.Since(start)
		if remaining <= 0 {
			return st, fmt.Errorf("compute did not finish within %s: %w", deadline, ErrTimeout)
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, ctx.Err()
		case <-timer.C:
		}
	}
}
