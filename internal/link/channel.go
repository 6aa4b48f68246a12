package link

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Channel is a reliable byte channel to the accelerator with a fixed
// per-call timeout.
//
// ReadFull fills p and returns the number of bytes read; it returns fewer
// than len(p) bytes with a nil error only when the timeout elapsed first.
// Any non-nil error is a transport failure, fatal to the session.
type Channel interface {
	ReadFull(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// ConnChannel adapts any net.Conn to Channel using read/write deadlines.
// It serves both net.Pipe peers (tests, the simulator) and TCP serial
// bridges such as ser2net.
type ConnChannel struct {
	conn    net.Conn
	timeout time.Duration
}

// NewConnChannel wraps conn with a fixed per-call timeout.
func NewConnChannel(conn net.Conn, timeout time.Duration) *ConnChannel {
	return &ConnChannel{conn: conn, timeout: timeout}
}

func (c *ConnChannel) ReadFull(p []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(c.conn, p)
	if err != nil && isTimeout(err) {
		// Short read on timeout is part of the channel contract.
		return n, nil
	}
	return n, err
}

func (c *ConnChannel) Write(p []byte) (int, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.conn.Write(p)
}

func (c *ConnChannel) Close() error { return c.conn.Close() }

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
