// Package protocol implements the Actroid servo controller wire format: the
// fixed control frames, the 24-joint write frame with its checksum, the read
// request and snapshot response, and the single-byte ACK/NACK handshake.
package protocol

import (
	"errors"
	"fmt"
)

// Frame delimiters and opcodes.
const (
	Start    byte = 0xFE
	Stop     byte = 0x01
	OpGet    byte = 0x77
	OpSet    byte = 0x74
	OpSet2   byte = 0x18
	OpOnline byte = 0x55
	// OpOffline is the dedicated offline opcode. Deployed firmware is only
	// ever sent OpOnline for teardown, see OfflineMode.
	OpOffline byte = 0xDF
)

// Handshake bytes.
const (
	Ack  byte = 0x06
	Nack byte = 0x15
)

const (
	// NumJoints is the protocol-fixed joint count. It is also the implicit
	// length field folded into the write-frame checksum.
	NumJoints = 24

	// BaudRate is the only line rate the controller speaks.
	BaudRate = 115200

	// SnapshotLen is the read response length: count byte + joints.
	SnapshotLen = NumJoints + 1

	// WriteFrameLen is start, two opcodes, joints, checksum and stop.
	WriteFrameLen = NumJoints + 5

	controlFrameLen     = 3
	readRequestFrameLen = 5
)

var (
	ErrNack          = errors.New("nack received")
	ErrUnexpectedAck = errors.New("unexpected acknowledgment byte")
	ErrBadCount      = errors.New("invalid joint count in snapshot")
	ErrShortSnapshot = errors.New("short snapshot")
	ErrBadFrame      = errors.New("malformed frame")
	ErrChecksum      = errors.New("checksum mismatch")
)

// ProtocolError reports a wire-level violation by the controller: a rejected
// frame or a response that cannot be interpreted.
type ProtocolError struct {
	Op   string
	Byte byte
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s (byte 0x%02x): %v", e.Op, e.Byte, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// OfflineMode selects the bytes sent when taking the servos offline.
type OfflineMode int

const (
	// OfflineLegacy sends FE 55 01, byte-identical to the online frame. This
	// is what every deployed controller has been receiving on teardown.
	OfflineLegacy OfflineMode = iota
	// OfflineDistinct sends FE DF 01 using the dedicated offline opcode.
	OfflineDistinct
)

func (m OfflineMode) String() string {
	switch m {
	case OfflineLegacy:
		return "legacy"
	case OfflineDistinct:
		return "distinct"
	default:
		return fmt.Sprintf("OfflineMode(%d)", int(m))
	}
}

// ParseOfflineMode parses "legacy" or "distinct". The empty string selects
// OfflineLegacy.
func ParseOfflineMode(s string) (OfflineMode, error) {
	switch s {
	case "", "legacy":
		return OfflineLegacy, nil
	case "distinct":
		return OfflineDistinct, nil
	default:
		return OfflineLegacy, fmt.Errorf("unsupported offline mode %q: expected legacy or distinct", s)
	}
}

// Snapshot is a parsed read response.
type Snapshot struct {
	Count  byte
	Joints [NumJoints]byte
}
