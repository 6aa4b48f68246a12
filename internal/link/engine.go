// Package link implements the wire protocol between the host and the
// matrix-multiply accelerator: the byte channel abstraction, the canonical
// packet-framed command engine, the legacy byte-addressed engine, and the
// status poller. All operations are synchronous with a single outstanding
// request per channel.
package link

import "fmt"

// Command is a canonical protocol opcode.
type Command byte

const (
	CmdWriteA     Command = 0x01
	CmdWriteB     Command = 0x02
	CmdReadResult Command = 0x03
	CmdStart      Command = 0x04
	CmdStatus     Command = 0x05
	CmdReset      Command = 0x06
	CmdReadbackA  Command = 0x07
	CmdReadbackB  Command = 0x08
)

// Canonical response sentinels. Busy and Done are defined by the device's
// command unit but never sent on the canonical framing, where state comes
// from the status register instead; they are kept for wire-log readability.
const (
	RespACK  byte = 0xAA
	RespNACK byte = 0x55
	RespBusy byte = 0xBB
	RespDone byte = 0xDD
)

func (c Command) String() string {
	switch c {
	case CmdWriteA:
		return "write-operand-A"
	case CmdWriteB:
		return "write-operand-B"
	case CmdReadResult:
		return "read-result"
	case CmdStart:
		return "start-compute"
	case CmdStatus:
		return "get-status"
	case CmdReset:
		return "reset"
	case CmdReadbackA:
		return "readback-operand-A"
	case CmdReadbackB:
		return "readback-operand-B"
	}
	return fmt.Sprintf("command-0x%02X", byte(c))
}

// Operand selects one of the two input matrices.
type Operand int

const (
	OperandA Operand = iota
	OperandB
)

func (o Operand) String() string {
	if o == OperandA {
		return "A"
	}
	return "B"
}

// Driver is the abstract protocol engine surface the session controller
// drives. Two wire framings implement it: PacketEngine (canonical) and
// ByteEngine (legacy byte-addressed hardware). Implementations perform
// exactly one attempt per call; retry policy belongs to the caller.
type Driver interface {
	// Reset puts the accelerator in a known idle state.
	Reset() error
	// LoadOperand transfers a serialized operand matrix.
	LoadOperand(op Operand, payload []byte) error
	// StartCompute triggers the multiply.
	StartCompute() error
	// ReadStatus queries and decodes the status register.
	ReadStatus() (StatusRegister, error)
	// ReadResult transfers n bytes of serialized result.
	ReadResult(n int) ([]byte, error)
	// ReadbackOperand reads n bytes of a previously loaded operand, for
	// link verification.
	ReadbackOperand(op Operand, n int) ([]byte, error)
	// Close releases the underlying channel.
	Close() error
}
