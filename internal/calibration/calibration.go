// Package calibration converts between joint angles in radians and the raw
// servo bytes used on the wire. Each hardware revision has its own immutable
// table of per-joint ranges, safety margins and power-on defaults.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/actroid/internal/protocol"
)

// NumJoints is the number of servo channels on the figure.
const NumJoints = protocol.NumJoints

// MaxRaw is the largest raw servo value.
const MaxRaw = 255

var (
	ErrInvalidJoint = errors.New("joint index out of range")
	ErrInvalidAngle = errors.New("angle is not finite")
)

// Joint holds the calibration constants for one servo channel. Angles are in
// radians.
type Joint struct {
	Name       string  `json:"name"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Margin     float64 `json:"margin"`
	DefaultRaw uint8   `json:"default_raw"`
}

// Lower returns the smallest angle a target may be set to.
func (j Joint) Lower() float64 { return j.Min + j.Margin }

// Upper returns the largest angle a target may be set to.
func (j Joint) Upper() float64 { return j.Max - j.Margin }

// Table is a complete calibration for one hardware revision. A Table is never
// mutated after construction; Lookup and LoadTable hand out independent copies.
type Table struct {
	Revision string           `json:"revision"`
	Joints   [NumJoints]Joint `json:"joints"`
}

func checkIndex(index int) error {
	if index < 0 || index >= NumJoints {
		return fmt.Errorf("%w: %d", ErrInvalidJoint, index)
	}
	return nil
}

// Joint returns the constants for one channel.
func (t *Table) Joint(index int) (Joint, error) {
	if err := checkIndex(index); err != nil {
		return Joint{}, err
	}
	return t.Joints[index], nil
}

// JointIndex resolves a channel by decimal index or by name.
func (t *Table) JointIndex(key string) (int, error) {
	key = strings.TrimSpace(key)
	if i, err := strconv.Atoi(key); err == nil {
		return i, checkIndex(i)
	}
	for i, j := range t.Joints {
		if j.Name != "" && strings.EqualFold(j.Name, key) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no joint named %q", ErrInvalidJoint, key)
}

// Clamp limits angle to [min+margin, max-margin] for the joint.
func (t *Table) Clamp(index int, angle float64) (float64, error) {
	if err := checkIndex(index); err != nil {
		return 0, err
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, fmt.Errorf("%w: joint %d got %v", ErrInvalidAngle, index, angle)
	}
	j := t.Joints[index]
	return math.Min(math.Max(angle, j.Lower()), j.Upper()), nil
}

// RadiansToRaw clamps angle to the joint's safe range and maps it linearly
// onto [0, 255].
func (t *Table) RadiansToRaw(index int, angle float64) (uint8, error) {
	clamped, err := t.Clamp(index, angle)
	if err != nil {
		return 0, err
	}
	j := t.Joints[index]
	raw := math.Round((clamped - j.Min) * MaxRaw / (j.Max - j.Min))
	return uint8(math.Min(math.Max(raw, 0), MaxRaw)), nil
}

// RawToRadians maps a raw servo byte back to radians.
func (t *Table) RawToRadians(index int, raw uint8) (float64, error) {
	if err := checkIndex(index); err != nil {
		return 0, err
	}
	j := t.Joints[index]
	return float64(raw)*(j.Max-j.Min)/MaxRaw + j.Min, nil
}

// QuantizationStep returns the angle covered by one raw count.
func (t *Table) QuantizationStep(index int) (float64, error) {
	if err := checkIndex(index); err != nil {
		return 0, err
	}
	j := t.Joints[index]
	return (j.Max - j.Min) / MaxRaw, nil
}

// DefaultPose returns the power-on raw value of every joint.
func (t *Table) DefaultPose() [NumJoints]uint8 {
	var pose [NumJoints]uint8
	for i, j := range t.Joints {
		pose[i] = j.DefaultRaw
	}
	return pose
}

// Validate checks every joint has a usable range.
func (t *Table) Validate() error {
	if t.Revision == "" {
		return errors.New("calibration revision must not be empty")
	}
	for i, j := range t.Joints {
		for _, v := range []float64{j.Min, j.Max, j.Margin} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("joint %d (%s): non-finite constant", i, j.Name)
			}
		}
		if j.Min >= j.Max {
			return fmt.Errorf("joint %d (%s): min %f must be below max %f", i, j.Name, j.Min, j.Max)
		}
		if j.Margin < 0 {
			return fmt.Errorf("joint %d (%s): margin %f must not be negative", i, j.Name, j.Margin)
		}
		if 2*j.Margin >= j.Max-j.Min {
			return fmt.Errorf("joint %d (%s): margin %f leaves no usable range", i, j.Name, j.Margin)
		}
	}
	return nil
}
