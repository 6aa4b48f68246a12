// Package sim provides an in-process accelerator that speaks the canonical
// wire protocol over a net.Pipe. It stands in for the FPGA when no hardware
// is attached: the CLI uses it for dry runs and the end-to-end tests drive
// the full load/compute/poll/read cycle against it.
//
// The simulated device computes the product the way the hardware does:
// operands arrive already degraded to half precision, the accumulation runs
// in full precision, and the result is degraded again on the way out.
package sim

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/mxhost/tpulink/internal/fp16"
	"github.com/mxhost/tpulink/internal/link"
)

// Config controls the simulated device.
type Config struct {
	// Dim is the systolic array dimension (operands are Dim x Dim).
	Dim int
	// ComputeDelay is how long the device reports busy after start-compute.
	ComputeDelay time.Duration
	// FaultOnCompute makes the status register report the error flag after
	// start-compute instead of completing.
	FaultOnCompute bool
	// Reject lists opcodes the device answers with NACK.
	Reject map[link.Command]bool
	// Mute lists opcodes the device silently ignores (no response), to
	// exercise host-side timeouts.
	Mute map[link.Command]bool
}

// DefaultConfig is an 8x8 array with a sub-millisecond compute latency.
func DefaultConfig() Config {
	return Config{Dim: 8, ComputeDelay: 200 * time.Microsecond}
}

// Device is one simulated accelerator. Each Device serves a single host
// connection, mirroring the exclusive channel ownership of real hardware.
type Device struct {
	cfg Config
	log zerolog.Logger

	operandA []byte
	operandB []byte
	result   []byte
	startAt  time.Time
	busy     bool
	faulted  bool
	cycles   uint32
}

// New creates a device. The logger may be zerolog.Nop().
func New(cfg Config, log zerolog.Logger) *Device {
	if cfg.Dim <= 0 {
		cfg.Dim = 8
	}
	return &Device{cfg: cfg, log: log}
}

// Dial connects the host side to the device and starts serving. The
// returned channel carries the given per-call timeout. Closing it tears the
// device down.
func (d *Device) Dial(timeout time.Duration) link.Channel {
	host, dev := net.Pipe()
	go d.serve(dev)
	return link.NewConnChannel(host, timeout)
}

func (d *Device) serve(conn net.Conn) {
	defer conn.Close()
	payloadLen := 2 * d.cfg.Dim * d.cfg.Dim

	var op [1]byte
	for {
		if _, err := io.ReadFull(conn, op[:]); err != nil {
			return // host hung up
		}
		cmd := link.Command(op[0])
		d.log.Trace().Str("cmd", cmd.String()).Msg("sim: command")

		if d.cfg.Mute[cmd] {
			// Swallow the command, including any payload, and say nothing.
			if cmd == link.CmdWriteA || cmd == link.CmdWriteB {
				io.CopyN(io.Discard, conn, int64(payloadLen))
			}
			continue
		}
		if d.cfg.Reject[cmd] {
			conn.Write([]byte{link.RespNACK})
			continue
		}

		switch cmd {
		case link.CmdReset:
			d.operandA, d.operandB, d.result = nil, nil, nil
			d.busy, d.faulted = false, false
			d.cycles = 0
			conn.Write([]byte{link.RespACK})

		case link.CmdWriteA, link.CmdWriteB:
			buf := make([]byte, payloadLen)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			if cmd == link.CmdWriteA {
				d.operandA = buf
			} else {
				d.operandB = buf
			}
			conn.Write([]byte{link.RespACK})

		case link.CmdStart:
			if d.operandA == nil || d.operandB == nil {
				conn.Write([]byte{link.RespNACK})
				continue
			}
			d.busy = true
			d.startAt = time.Now()
			if d.cfg.FaultOnCompute {
				d.faulted = true
			} else {
				d.result = multiply(d.operandA, d.operandB, d.cfg.Dim)
				// Systolic fill + drain plus one MAC wave per column.
				d.cycles = uint32(3*d.cfg.Dim + d.cfg.Dim*d.cfg.Dim)
			}
			conn.Write([]byte{link.RespACK})

		case link.CmdStatus:
			conn.Write([]byte{link.RespACK})
			st := d.status()
			b := link.EncodeStatus(st)
			conn.Write(b[:])

		case link.CmdReadResult:
			if st := d.status(); !st.Done {
				conn.Write([]byte{link.RespNACK})
				continue
			}
			conn.Write([]byte{link.RespACK})
			conn.Write(d.result)

		case link.CmdReadbackA, link.CmdReadbackB:
			buf := d.operandA
			if cmd == link.CmdReadbackB {
				buf = d.operandB
			}
			if buf == nil {
				conn.Write([]byte{link.RespNACK})
				continue
			}
			conn.Write([]byte{link.RespACK})
			conn.Write(buf)

		default:
			conn.Write([]byte{link.RespNACK})
		}
	}
}

func (d *Device) status() link.StatusRegister {
	if d.faulted {
		return link.StatusRegister{Error: true}
	}
	if d.busy && time.Since(d.startAt) < d.cfg.ComputeDelay {
		return link.StatusRegister{Busy: true}
	}
	if d.result != nil {
		return link.StatusRegister{Done: true, Cycles: d.cycles}
	}
	return link.StatusRegister{}
}

// multiply computes the wire-format product of two wire-format operands:
// decode, accumulate in float32, re-encode each result element.
func multiply(aPay, bPay []byte, dim int) []byte {
	a := decodePayload(aPay)
	b := decodePayload(bPay)
	out := make([]byte, 2*dim*dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			var sum float32
			for k := 0; k < dim; k++ {
				sum += a[i*dim+k] * b[k*dim+j]
			}
			binary.LittleEndian.PutUint16(out[2*(i*dim+j):], uint16(fp16.Encode(sum)))
		}
	}
	return out
}

func decodePayload(p []byte) []float32 {
	out := make([]float32, len(p)/2)
	for i := range out {
		out[i] = fp16.Decode(fp16.Half(binary.LittleEndian.Uint16(p[2*i:])))
	}
	return out
}
