// Package simulator emulates the Actroid servo controller on the far side of
// the serial link. It backs the CLI's -dev mode and the driver tests.
package simulator

import (
	"bytes"
	"errors"
	"sync"

	"github.com/banshee-data/actroid/internal/monitoring"
	"github.com/banshee-data/actroid/internal/protocol"
)

// ErrClosed is returned by I/O on a closed device.
var ErrClosed = errors.New("simulated port closed")

// Frame is one frame received by the device.
type Frame struct {
	Kind  protocol.FrameKind
	Bytes []byte
	Reply byte
}

// Device implements serialport.SerialPorter. Frames written to it are parsed
// as they complete and answered through the read side.
type Device struct {
	mu sync.Mutex

	in  []byte
	out bytes.Buffer

	online bool
	closed bool
	pose   [protocol.NumJoints]byte

	frames []Frame

	nackNext    int
	replyNext   []byte
	corruptNext int
}

// NewDevice returns an offline device holding pose.
func NewDevice(pose [protocol.NumJoints]byte) *Device {
	return &Device{pose: pose}
}

// Write feeds bytes to the controller.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	d.in = append(d.in, p...)
	d.drain()
	return len(p), nil
}

// Read returns queued replies. An empty queue reads as (0, nil), like a
// timed out hardware read.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	if d.out.Len() == 0 {
		return 0, nil
	}
	return d.out.Read(p)
}

// Close closes the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

// drain consumes every complete frame in the input buffer. Bytes before a
// start byte are line noise and are discarded.
func (d *Device) drain() {
	for len(d.in) > 0 {
		start := bytes.IndexByte(d.in, protocol.Start)
		if start < 0 {
			d.in = d.in[:0]
			return
		}
		d.in = d.in[start:]
		if len(d.in) < 2 {
			return
		}
		n := protocol.FrameLen(d.in[1])
		if n == 0 {
			monitoring.Logf("simulator: unknown opcode 0x%02x", d.in[1])
			d.reply(Frame{Kind: protocol.FrameUnknown, Bytes: d.in[:2]}, protocol.Nack)
			d.in = d.in[2:]
			continue
		}
		if len(d.in) < n {
			return
		}
		frame := append([]byte(nil), d.in[:n]...)
		d.in = d.in[n:]
		d.handle(frame)
	}
}

func (d *Device) handle(frame []byte) {
	kind := protocol.Classify(frame)
	f := Frame{Kind: kind, Bytes: frame}

	if len(d.replyNext) > 0 {
		b := d.replyNext[0]
		d.replyNext = d.replyNext[1:]
		d.reply(f, b)
		return
	}
	if d.nackNext > 0 {
		d.nackNext--
		d.reply(f, protocol.Nack)
		return
	}

	switch kind {
	case protocol.FrameOnline:
		d.online = true
		d.reply(f, protocol.Ack)
	case protocol.FrameOffline:
		d.online = false
		d.reply(f, protocol.Ack)
	case protocol.FrameReadRequest:
		d.reply(f, protocol.Ack)
		count := byte(protocol.NumJoints)
		if d.corruptNext > 0 {
			d.corruptNext--
			count = protocol.NumJoints - 1
		}
		d.out.WriteByte(count)
		d.out.Write(d.pose[:])
	case protocol.FrameWrite:
		target, err := protocol.ParseWriteFrame(frame)
		if err != nil || !d.online {
			d.reply(f, protocol.Nack)
			return
		}
		d.pose = target
		d.reply(f, protocol.Ack)
	default:
		d.reply(f, protocol.Nack)
	}
}

func (d *Device) reply(f Frame, b byte) {
	f.Reply = b
	d.frames = append(d.frames, f)
	d.out.WriteByte(b)
}

// NackNext makes the device reject the next n frames.
func (d *Device) NackNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nackNext = n
}

// ReplyNext queues raw acknowledgment bytes for the next frames, replacing
// the normal handling of those frames.
func (d *Device) ReplyNext(b ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replyNext = append(d.replyNext, b...)
}

// CorruptCountNext makes the next n snapshots carry a wrong count byte.
func (d *Device) CorruptCountNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corruptNext = n
}

// SetPose moves the servos, as if an operator pushed a limb by hand.
func (d *Device) SetPose(pose [protocol.NumJoints]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pose = pose
}

// Pose returns the servo positions.
func (d *Device) Pose() [protocol.NumJoints]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pose
}

// Online reports whether the servos are enabled.
func (d *Device) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Frames returns every frame received so far with the byte sent in reply.
func (d *Device) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Frame, len(d.frames))
	copy(out, d.frames)
	return out
}

// Pending returns the number of reply bytes nobody has read.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Len()
}
