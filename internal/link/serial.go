package link

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the accelerator UART's fixed rate (8N1 framing).
const DefaultBaudRate = 115200

// SerialChannel is a Channel over a local UART device.
type SerialChannel struct {
	port serial.Port
}

// OpenSerial opens device (e.g. /dev/ttyUSB0, COM3) at the given baud rate
// with 8N1 framing and a fixed read timeout.
func OpenSerial(device string, baud int, timeout time.Duration) (*SerialChannel, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	// Drop anything buffered from before the host attached.
	_ = port.ResetInputBuffer()
	_ = port.ResetOutputBuffer()
	return &SerialChannel{port: port}, nil
}

// ReadFull reads until p is filled or the port's read timeout elapses.
// The serial library signals a timeout as a zero-byte read.
func (s *SerialChannel) ReadFull(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.port.Read(p[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
	return total, nil
}

func (s *SerialChannel) Write(p []byte) (int, error) { return s.port.Write(p) }

func (s *SerialChannel) Close() error { return s.port.Close() }

// ListPorts enumerates serial devices present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
