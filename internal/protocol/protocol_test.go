package protocol

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  []byte
	}{
		{"online", OnlineFrame(), []byte{0xFE, 0x55, 0x01}},
		{"offline legacy", OfflineFrame(OfflineLegacy), []byte{0xFE, 0x55, 0x01}},
		{"offline distinct", OfflineFrame(OfflineDistinct), []byte{0xFE, 0xDF, 0x01}},
		{"read request", ReadRequestFrame(), []byte{0xFE, 0x77, 0x00, 0x18, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.frame); diff != "" {
				t.Errorf("frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFramesAreFreshSlices(t *testing.T) {
	f := OnlineFrame()
	f[1] = 0x00
	assert.Equal(t, OpOnline, OnlineFrame()[1], "mutating a returned frame must not leak")
}

func TestChecksumLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	payloads := [][NumJoints]byte{{}, allBytes(0xFF), allBytes(127), allBytes(128)}
	for i := 0; i < 500; i++ {
		var p [NumJoints]byte
		rng.Read(p[:])
		payloads = append(payloads, p)
	}

	for _, p := range payloads {
		c := Checksum(p)
		sum := NumJoints + int(c)
		for _, b := range p {
			sum += int(b)
		}
		require.Zerof(t, sum%256, "payload % x checksum 0x%02x", p, c)
	}
}

func TestChecksumKnownValues(t *testing.T) {
	// 24 + 0 = 24 -> 256 - 24 = 232
	assert.Equal(t, byte(0xE8), Checksum([NumJoints]byte{}))
	// 24 + 24*127 = 3072 = 0x0C00 -> sum byte 0 -> checksum 0
	assert.Equal(t, byte(0x00), Checksum(allBytes(127)))
	// 24 + 24*128 = 3096 -> 0x18 -> 0xE8
	assert.Equal(t, byte(0xE8), Checksum(allBytes(128)))
}

func TestWriteFrameLayout(t *testing.T) {
	var target [NumJoints]byte
	for i := range target {
		target[i] = byte(i * 10)
	}

	frame := WriteFrame(target)
	require.Len(t, frame, WriteFrameLen)
	assert.Equal(t, []byte{0xFE, 0x74, 0x18}, frame[:3])
	assert.Equal(t, target[:], frame[3:27])
	assert.Equal(t, Checksum(target), frame[27])
	assert.Equal(t, Stop, frame[28])
}

func TestParseWriteFrame(t *testing.T) {
	target := allBytes(200)
	target[8] = 91

	got, err := ParseWriteFrame(WriteFrame(target))
	require.NoError(t, err)
	assert.Equal(t, target, got)

	t.Run("bad checksum", func(t *testing.T) {
		frame := WriteFrame(target)
		frame[27]++
		_, err := ParseWriteFrame(frame)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("bad length", func(t *testing.T) {
		_, err := ParseWriteFrame(WriteFrame(target)[:10])
		assert.ErrorIs(t, err, ErrBadFrame)
	})

	t.Run("bad opcode", func(t *testing.T) {
		frame := WriteFrame(target)
		frame[2] = 0x00
		_, err := ParseWriteFrame(frame)
		assert.ErrorIs(t, err, ErrBadFrame)
	})
}

func TestParseSnapshot(t *testing.T) {
	buf := make([]byte, SnapshotLen)
	buf[0] = NumJoints
	for i := 1; i < SnapshotLen; i++ {
		buf[i] = byte(100 + i)
	}

	s, err := ParseSnapshot(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(24), s.Count)
	assert.Equal(t, byte(101), s.Joints[0])
	assert.Equal(t, byte(124), s.Joints[23])
}

func TestParseSnapshot_BadCount(t *testing.T) {
	buf := make([]byte, SnapshotLen)
	buf[0] = 23
	for i := 1; i < SnapshotLen; i++ {
		buf[i] = 0xAA
	}

	s, err := ParseSnapshot(buf)
	require.Error(t, err)

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, byte(23), perr.Byte)
	assert.ErrorIs(t, err, ErrBadCount)
	assert.Equal(t, Snapshot{}, s, "joint bytes must not be interpreted")
}

func TestParseSnapshot_Short(t *testing.T) {
	_, err := ParseSnapshot([]byte{NumJoints, 1, 2})
	assert.ErrorIs(t, err, ErrShortSnapshot)
}

func TestCheckAck(t *testing.T) {
	assert.NoError(t, CheckAck(Ack))

	err := CheckAck(Nack)
	assert.ErrorIs(t, err, ErrNack)

	for _, b := range []byte{0x00, 0x01, 0x05, 0x07, 0xFE, 0xFF} {
		err := CheckAck(b)
		var perr *ProtocolError
		require.Truef(t, errors.As(err, &perr), "byte 0x%02x", b)
		assert.Equal(t, b, perr.Byte)
		assert.ErrorIs(t, err, ErrUnexpectedAck)
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := &ProtocolError{Op: "acknowledge", Byte: Nack, Err: ErrNack}
	assert.Equal(t, "protocol error during acknowledge (byte 0x15): nack received", err.Error())
}

func TestParseOfflineMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OfflineMode
		wantErr bool
	}{
		{"", OfflineLegacy, false},
		{"legacy", OfflineLegacy, false},
		{"distinct", OfflineDistinct, false},
		{"off", OfflineLegacy, true},
	}
	for _, tt := range tests {
		got, err := ParseOfflineMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, tt.in, got.String())
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		frame []byte
		want  FrameKind
	}{
		{OnlineFrame(), FrameOnline},
		{OfflineFrame(OfflineLegacy), FrameOnline},
		{OfflineFrame(OfflineDistinct), FrameOffline},
		{ReadRequestFrame(), FrameReadRequest},
		{WriteFrame(allBytes(1)), FrameWrite},
		{[]byte{0xFE, 0x55}, FrameUnknown},
		{[]byte{0xFE, 0x99, 0x01}, FrameUnknown},
		{[]byte{0x00, 0x55, 0x01}, FrameUnknown},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Classify(tt.frame), "frame % x", tt.frame)
	}
	assert.Equal(t, "read-request", FrameReadRequest.String())
}

func allBytes(v byte) [NumJoints]byte {
	var p [NumJoints]byte
	for i := range p {
		p[i] = v
	}
	return p
}
