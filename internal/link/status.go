package link

import "fmt"

// StatusLen is the length of the canonical status response.
const StatusLen = 4

// StatusRegister is a decoded snapshot of the accelerator's status response:
// byte 0 carries the flag bits, bytes 1-3 a little-endian 24-bit cycle
// counter. Regenerated on every poll, never mutated in place.
type StatusRegister struct {
	Busy   bool
	Done   bool
	Error  bool
	Cycles uint32
}

// DecodeStatus decodes a 4-byte canonical status response.
func DecodeStatus(b [StatusLen]byte) StatusRegister {
	return StatusRegister{
		Busy:   b[0]&0x01 != 0,
		Done:   b[0]&0x02 != 0,
		Error:  b[0]&0x04 != 0,
		Cycles: uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16,
	}
}

// EncodeStatus is the inverse of DecodeStatus; the simulator uses it to
// frame its status responses.
func EncodeStatus(s StatusRegister) [StatusLen]byte {
	var b [StatusLen]byte
	if s.Busy {
		b[0] |= 0x01
	}
	if s.Done {
		b[0] |= 0x02
	}
	if s.Error {
		b[0] |= 0x04
	}
	b[1] = byte(s.Cycles)
	b[2] = byte(s.Cycles >> 8)
	b[3] = byte(s.Cycles >> 16)
	return b
}

func (s StatusRegister) String() string {
	state := "idle"
	switch {
	case s.Error:
		state = "error"
	case s.Done:
		state = "done"
	case s.Busy:
		state = "busy"
	}
	return fmt.Sprintf("%s, cycles=%d", state, s.Cycles)
}
