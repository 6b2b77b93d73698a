package serialport

const pollChunk = 64

// BufferedPort adapts a SerialPorter to Transport. go.bug.st/serial has no
// bytes-available query, so Available performs one read bounded by the
// port's read timeout and parks whatever arrived in a pending buffer that
// later Reads drain first.
type BufferedPort struct {
	port    SerialPorter
	pending []byte
	chunk   [pollChunk]byte
}

// NewBufferedPort wraps port.
func NewBufferedPort(port SerialPorter) *BufferedPort {
	return &BufferedPort{port: port}
}

// Write writes p in a single call; a partial write is an ErrShortWrite.
func (b *BufferedPort) Write(p []byte) (int, error) {
	n, err := b.port.Write(p)
	if err != nil {
		return n, &TransportError{Op: "write", Err: err}
	}
	if n != len(p) {
		return n, &TransportError{Op: "write", Err: ErrShortWrite}
	}
	return n, nil
}

// Available polls the port once and returns the number of buffered bytes.
// A read that times out with nothing (0, nil) is not an error. Any read error,
// including io.EOF from a vanished device, is reported so a poll loop cannot
// spin on a dead link; bytes received alongside the error are kept.
func (b *BufferedPort) Available() (int, error) {
	n, err := b.port.Read(b.chunk[:])
	if n > 0 {
		b.pending = append(b.pending, b.chunk[:n]...)
	}
	if err != nil {
		return len(b.pending), &TransportError{Op: "read", Err: err}
	}
	return len(b.pending), nil
}

// Read drains pending bytes first and only then reads from the port.
func (b *BufferedPort) Read(p []byte) (int, error) {
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	n, err := b.port.Read(p)
	if err != nil {
		return n, &TransportError{Op: "read", Err: err}
	}
	return n, nil
}

// Close closes the underlying port and drops any pending bytes.
func (b *BufferedPort) Close() error {
	b.pending = nil
	if err := b.port.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}
