package serialport

import (
	"errors"
	"testing"
)

func TestRealFactory_Open_InvalidPath(t *testing.T) {
	// No hardware in unit tests; a bogus path must fail with a TransportError
	port, err := RealFactory{}.Open("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		t.Error("Expected error when opening non-existent serial port")
		if port != nil {
			port.Close()
		}
		return
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if terr.Op != "open" {
		t.Errorf("Op = %q, want open", terr.Op)
	}
}

func TestRealFactory_Open_InvalidOptions(t *testing.T) {
	_, err := RealFactory{}.Open("/dev/null", PortOptions{DataBits: 12})
	if err == nil {
		t.Fatal("expected error for invalid options")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
}

func TestSerialPortOpener(t *testing.T) {
	port := NewTestableSerialPort()
	var gotPath string
	var factory SerialPortFactory = SerialPortOpener(func(path string, opts PortOptions) (SerialPorter, error) {
		gotPath = path
		return port, nil
	})

	got, err := factory.Open("/dev/ttyACTROID", PortOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != port {
		t.Error("opener returned a different port")
	}
	if gotPath != "/dev/ttyACTROID" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestMockSerialPortFactory(t *testing.T) {
	port := NewTestableSerialPort()
	f := NewMockSerialPortFactory(port)

	if f.LastCall() != nil {
		t.Error("LastCall should be nil before any Open")
	}

	got, err := f.Open("COM1", DefaultPortOptions())
	if err != nil || got != port {
		t.Fatalf("Open() = %v, %v", got, err)
	}
	if call := f.LastCall(); call == nil || call.Path != "COM1" {
		t.Errorf("LastCall() = %+v", call)
	}

	f.Error = errors.New("busy")
	_, err = f.Open("COM1", DefaultPortOptions())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if len(f.OpenCalls) != 2 {
		t.Errorf("OpenCalls = %d, want 2", len(f.OpenCalls))
	}
}
