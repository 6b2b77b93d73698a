// Package units provides shared constants and conversion for joint angle units
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants
const (
	Radians = "rad"
	Degrees = "deg"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Radians, Degrees}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// ToRadians converts an angle expressed in unit to radians.
// The driver works in radians; unknown units are treated as radians.
func ToRadians(angle float64, unit string) float64 {
	switch unit {
	case Degrees:
		return DegreesToRadians(angle)
	default:
		return angle
	}
}

// FromRadians converts an angle in radians to the target unit.
func FromRadians(rad float64, unit string) float64 {
	switch unit {
	case Degrees:
		return RadiansToDegrees(rad)
	default:
		return rad
	}
}

// ParseAngle parses a numeric angle with an optional "deg" or "rad" suffix.
// Without a suffix the value is interpreted in defaultUnit. The result is
// always in radians.
func ParseAngle(s string, defaultUnit string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	unit := defaultUnit
	for _, u := range ValidUnits {
		if strings.HasSuffix(s, u) {
			unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}
	if !IsValid(unit) {
		return 0, fmt.Errorf("invalid angle unit %q: expected one of %s", unit, GetValidUnitsString())
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}
	return ToRadians(v, unit), nil
}
