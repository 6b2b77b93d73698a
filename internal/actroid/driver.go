// Package actroid drives the 24 servo joints of an Actroid animatronic figure
// over its serial controller.
//
// A Driver is synchronous and not safe for concurrent use: every call blocks
// the caller, and the caller must serialize access. Waiting on the controller
// has no timeout; a device that never answers blocks the calling goroutine.
// Liveness is the job of whatever supervises the process.
package actroid

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/monitoring"
	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/serialport"
)

// ErrPoseSize is returned when a pose does not hold exactly one angle per joint.
var ErrPoseSize = errors.New("pose must have one angle per joint")

// Driver is an online connection to the figure. It owns the serial port from
// construction until Close.
type Driver struct {
	port   serialport.Transport
	opts   Options
	cal    *calibration.Table
	state  *jointState
	closed bool
}

// Open opens the serial device at path and brings the servos online.
func Open(path string, opts Options) (*Driver, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	port, err := opts.Factory.Open(path, opts.Port)
	if err != nil {
		if !IsTransportError(err) {
			err = &serialport.TransportError{Op: "open", Err: err}
		}
		return nil, err
	}
	return New(port, opts)
}

// New takes ownership of an open port and brings the servos online. On any
// failure the port is closed and no driver is returned.
func New(port serialport.SerialPorter, opts Options) (*Driver, error) {
	opts, err := opts.withDefaults()
	if err == nil {
		err = opts.Calibration.Validate()
	}
	if err != nil {
		if cerr := port.Close(); cerr != nil {
			monitoring.Logf("actroid: closing port after invalid calibration: %v", cerr)
		}
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}

	// The driver owns its copy of the validated table.
	cal := *opts.Calibration
	opts.Calibration = &cal
	d := &Driver{
		port: serialport.NewBufferedPort(port),
		opts: opts,
		cal:  &cal,
	}

	if err := d.writePacket("online", protocol.OnlineFrame()); err != nil {
		if cerr := d.port.Close(); cerr != nil {
			monitoring.Logf("actroid: closing port after failed online: %v", cerr)
		}
		return nil, fmt.Errorf("bring servos online: %w", err)
	}

	d.state = newJointState(Pose(d.cal.DefaultPose()))
	return d, nil
}

// Close sends the offline frame and releases the port. A failed offline frame
// is logged, not returned; the only error reported is from releasing the port.
// Close is idempotent.
func (d *Driver) Close() (err error) {
	if d.closed {
		return nil
	}
	d.closed = true
	d.state = nil

	defer func() {
		if cerr := d.port.Close(); cerr != nil {
			err = cerr
		}
	}()

	if werr := d.writePacket("offline", protocol.OfflineFrame(d.opts.OfflineMode)); werr != nil {
		monitoring.Logf("actroid: offline frame failed during close: %v", werr)
	}
	return nil
}

// Online reports whether the driver still holds the port.
func (d *Driver) Online() bool {
	return !d.closed
}

// Calibration returns a copy of the table the driver converts with.
func (d *Driver) Calibration() *calibration.Table {
	cal := *d.cal
	return &cal
}

// SetTargetAngle clamps angle to the joint's safe range and stores it for the
// next UpdateTargetAngles. It performs no I/O.
func (d *Driver) SetTargetAngle(index int, angle float64) error {
	if d.closed {
		return ErrClosed
	}
	raw, err := d.cal.RadiansToRaw(index, angle)
	if err != nil {
		return err
	}
	d.state.setTarget(index, raw)
	return nil
}

// SetTargetRawAngle stores a raw servo value for the next UpdateTargetAngles.
func (d *Driver) SetTargetRawAngle(index int, raw uint8) error {
	if d.closed {
		return ErrClosed
	}
	if _, err := d.cal.Joint(index); err != nil {
		return err
	}
	d.state.setTarget(index, raw)
	return nil
}

// SetTargetPose sets every joint at once. Either all angles are accepted or
// the target pose is left untouched.
func (d *Driver) SetTargetPose(angles []float64) error {
	if d.closed {
		return ErrClosed
	}
	if len(angles) != protocol.NumJoints {
		return fmt.Errorf("%w: got %d angles", ErrPoseSize, len(angles))
	}
	var target Pose
	for i, a := range angles {
		raw, err := d.cal.RadiansToRaw(i, a)
		if err != nil {
			return err
		}
		target[i] = raw
	}
	d.state.target = target
	return nil
}

// UpdateTargetAngles sends the whole target pose in one frame. The controller
// accepts or rejects the frame as a unit.
func (d *Driver) UpdateTargetAngles() error {
	if d.closed {
		return ErrClosed
	}
	if err := d.writePacket("write target", protocol.WriteFrame(d.state.target)); err != nil {
		return fmt.Errorf("update target angles: %w", err)
	}
	return nil
}

// UpdateCurrentAngles reads a snapshot of every joint. The cached pose is only
// replaced once the whole snapshot has been received and validated.
func (d *Driver) UpdateCurrentAngles() error {
	if d.closed {
		return ErrClosed
	}
	if err := d.writePacket("read request", protocol.ReadRequestFrame()); err != nil {
		return fmt.Errorf("update current angles: %w", err)
	}
	if err := d.waitFor(protocol.SnapshotLen, d.opts.SnapshotPollInterval); err != nil {
		return fmt.Errorf("update current angles: %w", err)
	}

	var buf [protocol.SnapshotLen]byte
	if err := d.readExact(buf[:]); err != nil {
		return fmt.Errorf("update current angles: %w", err)
	}
	snap, err := protocol.ParseSnapshot(buf[:])
	if err != nil {
		return fmt.Errorf("update current angles: %w", err)
	}
	d.state.commit(snap)
	return nil
}

// CurrentAngle returns the last read position of a joint in radians.
func (d *Driver) CurrentAngle(index int) (float64, error) {
	raw, err := d.CurrentRawAngle(index)
	if err != nil {
		return 0, err
	}
	return d.cal.RawToRadians(index, raw)
}

// CurrentRawAngle returns the last read raw position of a joint.
func (d *Driver) CurrentRawAngle(index int) (uint8, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if _, err := d.cal.Joint(index); err != nil {
		return 0, err
	}
	return d.state.current[index], nil
}

// TargetRawAngle returns the raw value the next write will command.
func (d *Driver) TargetRawAngle(index int) (uint8, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if _, err := d.cal.Joint(index); err != nil {
		return 0, err
	}
	return d.state.target[index], nil
}

// TargetAngle returns the pending target of a joint in radians, after
// clamping and quantization.
func (d *Driver) TargetAngle(index int) (float64, error) {
	raw, err := d.TargetRawAngle(index)
	if err != nil {
		return 0, err
	}
	return d.cal.RawToRadians(index, raw)
}

// CurrentPose returns the last read raw pose.
func (d *Driver) CurrentPose() (Pose, error) {
	if d.closed {
		return Pose{}, ErrClosed
	}
	return d.state.current, nil
}

// TargetPose returns the pending raw target pose.
func (d *Driver) TargetPose() (Pose, error) {
	if d.closed {
		return Pose{}, ErrClosed
	}
	return d.state.target, nil
}

// writePacket writes one frame and consumes exactly one acknowledgment byte.
func (d *Driver) writePacket(op string, frame []byte) error {
	if _, err := d.port.Write(frame); err != nil {
		return err
	}
	monitoring.Debugf("actroid: %s frame % x", op, frame)

	if err := d.waitFor(1, d.opts.AckPollInterval); err != nil {
		return err
	}
	var ack [1]byte
	if err := d.readExact(ack[:]); err != nil {
		return err
	}
	if err := protocol.CheckAck(ack[0]); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// waitFor polls until at least n bytes can be read.
func (d *Driver) waitFor(n int, interval time.Duration) error {
	for {
		avail, err := d.port.Available()
		if err != nil {
			return err
		}
		if avail >= n {
			return nil
		}
		d.opts.Clock.Sleep(interval)
	}
}

// readExact consumes len(buf) bytes that waitFor has already seen arrive.
func (d *Driver) readExact(buf []byte) error {
	n, err := d.port.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return &serialport.TransportError{
			Op:  "read",
			Err: fmt.Errorf("short read: got %d of %d bytes", n, len(buf)),
		}
	}
	return nil
}
