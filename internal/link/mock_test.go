package link

import "bytes"

// scriptChannel is an in-memory Channel for protocol tests. Bytes queued in
// responses are served to ReadFull; an exhausted queue behaves like a
// timeout (short read, nil error). Writes are captured for inspection.
type scriptChannel struct {
	responses bytes.Buffer
	writes    [][]byte
	writeErr  error
	readErr   error
	closed    bool
}

func (c *scriptChannel) queue(b ...byte) { c.responses.Write(b) }

func (c *scriptChannel) ReadFull(p []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	n, _ := c.responses.Read(p)
	return n, nil
}

func (c *scriptChannel) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	c.writes = append(c.writes, frame)
	return len(p), nil
}

func (c *scriptChannel) Close() error {
	c.closed = true
	return nil
}
