package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds a single read on a real port. It doubles as the
// granularity of BufferedPort.Available on hardware.
const DefaultReadTimeout = time.Millisecond

// RealFactory opens hardware serial ports with go.bug.st/serial.
type RealFactory struct {
	// ReadTimeout is applied after opening. Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration
}

// Open opens the device at path.
func (f RealFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("%s: %w", path, err)}
	}

	timeout := f.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("set read timeout: %w", err)}
	}

	return port, nil
}

// ListPorts returns the serial devices present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &TransportError{Op: "list ports", Err: err}
	}
	return ports, nil
}
