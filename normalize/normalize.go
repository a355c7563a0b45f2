// Package normalize holds the pure numeric rules applied between a raw
// joystick reading and a device command.
//
// Axis values travel through the system as floats in [-1, 1]. Only the final
// mapping into device units (ToDeviceAxis) produces integers.
package normalize

import "math"

// AxisScale is the magnitude of a fully deflected stick in device units.
const AxisScale = 100

// DefaultDeadzone suppresses spring-return imprecision on typical sticks.
const DefaultDeadzone = 0.08

// Deadzone returns 0 when |v| is below threshold and v unchanged otherwise.
func Deadzone(v, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

// Clamp saturates v to [-1, 1]. NaN is treated as centered.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// ToDeviceAxis maps v to device units in [-AxisScale, AxisScale].
// Exact halves round to even (0.125 -> 12, 0.375 -> 38), matching the
// rounding of the receivers this bridge replaced.
func ToDeviceAxis(v float64) int {
	return int(math.RoundToEven(Clamp(v) * AxisScale))
}

// FlipY converts the input convention (up is negative) into the device
// convention (up is positive). It must be applied exactly once per value.
func FlipY(v float64) float64 {
	if v == 0 {
		return 0
	}
	return -v
}
