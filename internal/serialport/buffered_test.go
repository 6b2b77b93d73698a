package serialport

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestBufferedPort_AvailableAccumulates(t *testing.T) {
	port := NewTestableSerialPort()
	b := NewBufferedPort(port)

	n, err := b.Available()
	if err != nil || n != 0 {
		t.Fatalf("Available() on idle port = %d, %v", n, err)
	}

	port.AddReadData([]byte{0x06})
	if n, _ := b.Available(); n != 1 {
		t.Fatalf("Available() = %d, want 1", n)
	}

	port.AddReadData([]byte{0x18, 1, 2})
	if n, _ := b.Available(); n != 4 {
		t.Fatalf("Available() = %d, want 4", n)
	}

	// Read drains pending bytes in order and consumes only what was asked
	one := make([]byte, 1)
	if n, err := b.Read(one); err != nil || n != 1 || one[0] != 0x06 {
		t.Fatalf("Read() = %d, %v, % x", n, err, one)
	}
	if n, _ := b.Available(); n != 3 {
		t.Errorf("Available() after one-byte read = %d, want 3", n)
	}

	rest := make([]byte, 3)
	if n, _ := b.Read(rest); n != 3 || !bytes.Equal(rest, []byte{0x18, 1, 2}) {
		t.Errorf("Read() = % x", rest[:n])
	}
}

func TestBufferedPort_ReadFallsThroughToPort(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte{9, 8, 7})
	b := NewBufferedPort(port)

	buf := make([]byte, 3)
	n, err := b.Read(buf)
	if err != nil || n != 3 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
}

func TestBufferedPort_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = io.EOF
	b := NewBufferedPort(port)

	_, err := b.Available()
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected wrapped io.EOF, got %v", err)
	}
}

func TestBufferedPort_Write(t *testing.T) {
	port := NewTestableSerialPort()
	b := NewBufferedPort(port)

	if n, err := b.Write([]byte{0xFE, 0x55, 0x01}); err != nil || n != 3 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if !bytes.Equal(port.GetWrittenData(), []byte{0xFE, 0x55, 0x01}) {
		t.Errorf("written = % x", port.GetWrittenData())
	}

	port.ShortWrite = 2
	_, err := b.Write([]byte{0xFE, 0x55, 0x01})
	if !errors.Is(err, ErrShortWrite) {
		t.Errorf("expected ErrShortWrite, got %v", err)
	}

	port.WriteError = errors.New("EIO")
	_, err = b.Write([]byte{0xFE})
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "write" {
		t.Errorf("expected write TransportError, got %v", err)
	}
}

func TestBufferedPort_Close(t *testing.T) {
	port := NewTestableSerialPort()
	b := NewBufferedPort(port)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.IsClosed() {
		t.Error("underlying port not closed")
	}

	port2 := NewTestableSerialPort()
	port2.CloseError = errors.New("busy")
	if err := NewBufferedPort(port2).Close(); err == nil {
		t.Error("expected close error")
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Op: "write", Err: ErrShortWrite}
	if got := err.Error(); got != "serial write: short write to serial port" {
		t.Errorf("Error() = %q", got)
	}
}
