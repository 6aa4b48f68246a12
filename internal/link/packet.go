package link

import (
	"fmt"

	"github.com/rs/zerolog"
)

// PacketEngine speaks the canonical framing: a command byte followed by an
// optional payload, answered by a single ACK byte, with read-style commands
// followed by a fixed-length data response.
//
// Each request walks IDLE -> SENDING -> AWAITING_RESPONSE and back; the
// engine is synchronous and must not be used reentrantly against one
// channel.
type PacketEngine struct {
	ch     Channel
	log    zerolog.Logger
	inUse  bool
	closed bool
}

// NewPacketEngine wraps ch. The logger may be zerolog.Nop().
func NewPacketEngine(ch Channel, log zerolog.Logger) *PacketEngine {
	return &PacketEngine{ch: ch, log: log}
}

// maxFramePayload is the largest payload a canonical frame can express:
// a 16-bit length budget, enough for any array up to dim 127.
const maxFramePayload = 0xFFFF

// Send writes cmd plus payload as one frame and awaits the ACK byte.
// Payloads above the frame budget are rejected before anything reaches the
// wire. Outcomes are distinct: nil on ACK, *NackError on any other byte,
// ErrTimeout when no byte arrived, *TransportError on channel failure.
func (e *PacketEngine) Send(cmd Command, payload []byte) error {
	if len(payload) > maxFramePayload {
		return fmt.Errorf("frame payload %d bytes exceeds %d-byte budget", len(payload), maxFramePayload)
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	frame := make([]byte, 1+len(payload))
	frame[0] = byte(cmd)
	copy(frame[1:], payload)

	if _, err := e.ch.Write(frame); err != nil {
		return &TransportError{Op: fmt.Sprintf("write %s", cmd), Err: err}
	}

	var ack [1]byte
	n, err := e.ch.ReadFull(ack[:])
	if err != nil {
		return &TransportError{Op: fmt.Sprintf("read ack for %s", cmd), Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%s: no ack: %w", cmd, ErrTimeout)
	}
	if ack[0] != RespACK {
		e.log.Debug().Str("cmd", cmd.String()).Uint8("resp", ack[0]).Msg("command rejected")
		return &NackError{Command: cmd, Response: ack[0]}
	}
	return nil
}

// Receive reads exactly n bytes of data response. A short read is reported
// as ErrTimeout with the byte counts attached, never swallowed.
func (e *PacketEngine) Receive(n int) ([]byte, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	buf := make([]byte, n)
	got, err := e.ch.ReadFull(buf)
	if err != nil {
		return nil, &TransportError{Op: "read data", Err: err}
	}
	if got != n {
		return nil, fmt.Errorf("data response short: got %d of %d bytes: %w", got, n, ErrTimeout)
	}
	return buf, nil
}

func (e *PacketEngine) Reset() error { return e.Send(CmdReset, nil) }

func (e *PacketEngine) LoadOperand(op Operand, payload []byte) error {
	cmd := CmdWriteA
	if op == OperandB {
		cmd = CmdWriteB
	}
	return e.Send(cmd, payload)
}

func (e *PacketEngine) StartCompute() error { return e.Send(CmdStart, nil) }

func (e *PacketEngine) ReadStatus() (StatusRegister, error) {
	if err := e.Send(CmdStatus, nil); err != nil {
		return StatusRegister{}, err
	}
	raw, err := e.Receive(StatusLen)
	if err != nil {
		return StatusRegister{}, fmt.Errorf("%s: %w", CmdStatus, err)
	}
	var b [StatusLen]byte
	copy(b[:], raw)
	return DecodeStatus(b), nil
}

func (e *PacketEngine) ReadResult(n int) ([]byte, error) {
	if err := e.Send(CmdReadResult, nil); err != nil {
		return nil, err
	}
	data, err := e.Receive(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CmdReadResult, err)
	}
	return data, nil
}

func (e *PacketEngine) ReadbackOperand(op Operand, n int) ([]byte, error) {
	cmd := CmdReadbackA
	if op == OperandB {
		cmd = CmdReadbackB
	}
	if err := e.Send(cmd, nil); err != nil {
		return nil, err
	}
	data, err := e.Receive(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return data, nil
}

func (e *PacketEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.ch.Close()
}

func (e *PacketEngine) enter() error {
	if e.closed {
		return ErrNotConnected
	}
	if e.inUse {
		return ErrBusy
	}
	e.inUse = true
	return nil
}

func (e *PacketEngine) leave() { e.inUse = false }
