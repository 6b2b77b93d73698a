// Package serialport owns the byte-level link to the servo controller: opening
// the serial device, and exposing it as a pollable Transport so the driver can
// wait for an exact number of bytes before consuming them.
package serialport

import (
	"errors"
	"fmt"
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortFactory defines an interface for creating serial ports.
type SerialPortFactory interface {
	// Open opens a serial port at the specified path with the given options.
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// SerialPortOpener is a function type for opening serial ports.
// It satisfies SerialPortFactory.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)

// Open calls f.
func (f SerialPortOpener) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}

// Transport is the byte-oriented link the driver talks through.
type Transport interface {
	// Write writes the whole frame and returns the count written.
	Write(p []byte) (int, error)
	// Available reports how many bytes can be read without blocking.
	Available() (int, error)
	// Read consumes up to len(p) bytes.
	Read(p []byte) (int, error)
	// Close releases the underlying device.
	Close() error
}

// ErrShortWrite is returned when the port accepted fewer bytes than a frame.
var ErrShortWrite = errors.New("short write to serial port")

// TransportError reports a failure of the serial link itself: the device
// could not be opened, written or read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
