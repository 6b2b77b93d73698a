package actroid

import (
	"errors"

	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/serialport"
)

// ErrClosed is returned by every operation on a driver after Close.
var ErrClosed = errors.New("actroid driver is closed")

// IsTransportError reports whether err came from the serial link.
func IsTransportError(err error) bool {
	var terr *serialport.TransportError
	return errors.As(err, &terr)
}

// IsProtocolError reports whether err is a rejection or malformed response
// from the controller.
func IsProtocolError(err error) bool {
	var perr *protocol.ProtocolError
	return errors.As(err, &perr)
}
