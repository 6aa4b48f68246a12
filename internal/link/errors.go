package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates the channel is closed or was never opened.
	ErrNotConnected = errors.New("link: not connected")
	// ErrTimeout indicates the device produced no (or an incomplete)
	// response within the configured deadline. Distinct from a NACK: the
	// caller may retry with a longer deadline.
	ErrTimeout = errors.New("link: timeout")
	// ErrBusy indicates a reentrant call while a transaction is in flight.
	ErrBusy = errors.New("link: transaction already in flight")
)

// TransportError wraps a failure of the underlying byte channel. Fatal to
// the current session; never retried internally.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("link: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// NackError reports that the accelerator rejected a command: the response
// byte was not the ACK sentinel.
type NackError struct {
	Command  Command
	Response byte
}

func (e *NackError) Error() string {
	return fmt.Sprintf("link: %s rejected (response 0x%02X)", e.Command, e.Response)
}

// FaultError reports that the status register carried the error flag. The
// accelerator may require a reset before further use.
type FaultError struct {
	Status StatusRegister
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("link: accelerator fault (%s)", e.Status)
}
