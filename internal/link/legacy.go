package link

import (
	"fmt"
)

// Legacy single-byte protocol: one ASCII opcode per transaction, byte-wise
// addressed device memory, 'K' as the ACK sentinel. Still present on boards
// flashed with the first-generation bitstream.
const (
	legacyWriteWeight     byte = 'W' // 0x57
	legacyWriteActivation byte = 'A' // 0x41
	legacyStart           byte = 'S' // 0x53
	legacyRead            byte = 'R' // 0x52
	legacyStatus          byte = '?' // 0x3F
	legacyACK             byte = 'K'
)

// Legacy device memory map (8-bit address space; addresses wrap).
const (
	legacyWeightBase     byte = 0x00
	legacyActivationBase byte = 0x80
	legacyResultBase     byte = 0xC0
)

// legacyMaxPayload caps transfers at what the 8-bit address space holds
// per operand region: 128 bytes, i.e. an 8x8 half-precision matrix.
const legacyMaxPayload = 128

// legacyAddressSpace is the size of the device's 8-bit address space.
// Reads past it must fail rather than wrap back into weight memory.
const legacyAddressSpace = 0x100

// ByteEngine drives first-generation hardware through the legacy protocol.
// It implements the same Driver surface as PacketEngine, translating each
// bulk operation into per-byte addressed transactions.
//
// The legacy status response is a single byte (bit 0 busy, bit 1 done) with
// no error flag and no cycle counter; ReadStatus synthesizes the missing
// fields as false/zero. The protocol has no reset opcode, so Reset is a
// no-op that succeeds.
type ByteEngine struct {
	ch     Channel
	closed bool
}

// NewByteEngine wraps ch.
func NewByteEngine(ch Channel) *ByteEngine {
	return &ByteEngine{ch: ch}
}

func (e *ByteEngine) transact(frame []byte, cmd Command, expectData bool) (byte, error) {
	if e.closed {
		return 0, ErrNotConnected
	}
	if _, err := e.ch.Write(frame); err != nil {
		return 0, &TransportError{Op: fmt.Sprintf("write %s", cmd), Err: err}
	}
	var resp [1]byte
	n, err := e.ch.ReadFull(resp[:])
	if err != nil {
		return 0, &TransportError{Op: fmt.Sprintf("read response for %s", cmd), Err: err}
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: no response: %w", cmd, ErrTimeout)
	}
	if !expectData && resp[0] != legacyACK {
		return 0, &NackError{Command: cmd, Response: resp[0]}
	}
	return resp[0], nil
}

func (e *ByteEngine) writeByte(addr, data byte) error {
	op := legacyWriteWeight
	cmd := CmdWriteA
	if addr >= legacyActivationBase {
		op = legacyWriteActivation
		cmd = CmdWriteB
	}
	_, err := e.transact([]byte{op, addr, data}, cmd, false)
	return err
}

func (e *ByteEngine) readByte(addr byte) (byte, error) {
	return e.transact([]byte{legacyRead, addr}, CmdReadResult, true)
}

// Reset is a no-op: the legacy protocol has no reset opcode.
func (e *ByteEngine) Reset() error {
	if e.closed {
		return ErrNotConnected
	}
	return nil
}

func (e *ByteEngine) LoadOperand(op Operand, payload []byte) error {
	if len(payload) > legacyMaxPayload {
		return fmt.Errorf("legacy protocol: payload %d bytes exceeds %d-byte operand region", len(payload), legacyMaxPayload)
	}
	base := legacyWeightBase
	if op == OperandB {
		base = legacyActivationBase
	}
	for i, b := range payload {
		if err := e.writeByte(base+byte(i), b); err != nil {
			return fmt.Errorf("operand %s byte %d: %w", op, i, err)
		}
	}
	return nil
}

func (e *ByteEngine) StartCompute() error {
	_, err := e.transact([]byte{legacyStart}, CmdStart, false)
	return err
}

func (e *ByteEngine) ReadStatus() (StatusRegister, error) {
	b, err := e.transact([]byte{legacyStatus}, CmdStatus, true)
	if err != nil {
		return StatusRegister{}, err
	}
	return StatusRegister{
		Busy: b&0x01 != 0,
		Done: b&0x02 != 0,
	}, nil
}

func (e *ByteEngine) ReadResult(n int) ([]byte, error) {
	return e.readRegion(legacyResultBase, n)
}

func (e *ByteEngine) ReadbackOperand(op Operand, n int) ([]byte, error) {
	if n > legacyMaxPayload {
		return nil, fmt.Errorf("legacy protocol: readback of %d bytes exceeds %d-byte operand region", n, legacyMaxPayload)
	}
	base := legacyWeightBase
	if op == OperandB {
		base = legacyActivationBase
	}
	return e.readRegion(base, n)
}

func (e *ByteEngine) readRegion(base byte, n int) ([]byte, error) {
	if n > legacyAddressSpace-int(base) {
		return nil, fmt.Errorf("legacy protocol: reading %d bytes from 0x%02X runs past the address space", n, base)
	}
	out := make([]byte, n)
	for i := range out {
		b, err := e.readByte(base + byte(i))
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func (e *ByteEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.ch.Close()
}
