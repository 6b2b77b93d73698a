package protocol

// OnlineFrame returns the control frame that brings the servos online.
func OnlineFrame() []byte {
	return []byte{Start, OpOnline, Stop}
}

// OfflineFrame returns the control frame that takes the servos offline.
func OfflineFrame(mode OfflineMode) []byte {
	if mode == OfflineDistinct {
		return []byte{Start, OpOffline, Stop}
	}
	return []byte{Start, OpOnline, Stop}
}

// ReadRequestFrame returns the frame requesting a snapshot of all joints.
func ReadRequestFrame() []byte {
	return []byte{Start, OpGet, 0x00, NumJoints, Stop}
}

// Checksum returns the byte c such that (24 + sum(payload) + c) mod 256 == 0.
func Checksum(payload [NumJoints]byte) byte {
	sum := byte(NumJoints)
	for _, b := range payload {
		sum += b
	}
	return ^sum + 1
}

// WriteFrame serializes a full target pose.
func WriteFrame(target [NumJoints]byte) []byte {
	frame := make([]byte, WriteFrameLen)
	frame[0] = Start
	frame[1] = OpSet
	frame[2] = OpSet2
	copy(frame[3:3+NumJoints], target[:])
	frame[3+NumJoints] = Checksum(target)
	frame[4+NumJoints] = Stop
	return frame
}

// ParseWriteFrame validates a write frame and returns its payload.
func ParseWriteFrame(frame []byte) ([NumJoints]byte, error) {
	var target [NumJoints]byte
	if len(frame) != WriteFrameLen {
		return target, &ProtocolError{Op: "parse write frame", Err: ErrBadFrame}
	}
	if frame[0] != Start || frame[1] != OpSet || frame[2] != OpSet2 || frame[WriteFrameLen-1] != Stop {
		return target, &ProtocolError{Op: "parse write frame", Byte: frame[1], Err: ErrBadFrame}
	}
	copy(target[:], frame[3:3+NumJoints])
	if cs := frame[3+NumJoints]; cs != Checksum(target) {
		return target, &ProtocolError{Op: "parse write frame", Byte: cs, Err: ErrChecksum}
	}
	return target, nil
}

// ParseSnapshot parses a read response. The joint bytes are only exposed when
// the leading count byte echoes the joint count.
func ParseSnapshot(buf []byte) (Snapshot, error) {
	var s Snapshot
	if len(buf) < SnapshotLen {
		return s, &ProtocolError{Op: "parse snapshot", Err: ErrShortSnapshot}
	}
	if buf[0] != NumJoints {
		return s, &ProtocolError{Op: "parse snapshot", Byte: buf[0], Err: ErrBadCount}
	}
	s.Count = buf[0]
	copy(s.Joints[:], buf[1:SnapshotLen])
	return s, nil
}

// CheckAck interprets the byte received after a frame write.
func CheckAck(b byte) error {
	switch b {
	case Ack:
		return nil
	case Nack:
		return &ProtocolError{Op: "acknowledge", Byte: b, Err: ErrNack}
	default:
		return &ProtocolError{Op: "acknowledge", Byte: b, Err: ErrUnexpectedAck}
	}
}

// FrameKind classifies an outgoing frame by its leading bytes.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameOnline
	FrameOffline
	FrameReadRequest
	FrameWrite
)

func (k FrameKind) String() string {
	switch k {
	case FrameOnline:
		return "online"
	case FrameOffline:
		return "offline"
	case FrameReadRequest:
		return "read-request"
	case FrameWrite:
		return "write"
	default:
		return "unknown"
	}
}

// FrameLen returns the total frame length implied by the opcode following the
// start byte, or 0 when the opcode is not recognised.
func FrameLen(op byte) int {
	switch op {
	case OpOnline, OpOffline:
		return controlFrameLen
	case OpGet:
		return readRequestFrameLen
	case OpSet:
		return WriteFrameLen
	default:
		return 0
	}
}

// Classify reports the kind of a complete frame. A legacy offline frame is
// indistinguishable from an online frame and classifies as FrameOnline.
func Classify(frame []byte) FrameKind {
	if len(frame) < controlFrameLen || frame[0] != Start || frame[len(frame)-1] != Stop {
		return FrameUnknown
	}
	if len(frame) != FrameLen(frame[1]) {
		return FrameUnknown
	}
	switch frame[1] {
	case OpOnline:
		return FrameOnline
	case OpOffline:
		return FrameOffline
	case OpGet:
		return FrameReadRequest
	case OpSet:
		return FrameWrite
	}
	return FrameUnknown
}
