// Package drive implements the X-drive controller: inverse kinematics from a
// motion vector to four wheel voltages, and the policy that picks a drive mode
// from a motion input reading.
package drive

import (
	"math"

	"xdrive/chassis"
)

// Angle offsets of each wheel's roller axis, indexed by chassis.WheelPosition.
var mixOffsets = [4]float64{
	chassis.FrontLeft:  math.Pi / 4,
	chassis.FrontRight: 3 * math.Pi / 4,
	chassis.BackLeft:   -math.Pi / 4,
	chassis.BackRight:  -3 * math.Pi / 4,
}

// Voltages is a wheel voltage set indexed by chassis.WheelPosition.
type Voltages [4]float64

// Get returns the voltage of the wheel at p.
func (v Voltages) Get(p chassis.WheelPosition) float64 {
	return v[p]
}

// Scale returns v with every wheel multiplied by k.
func (v Voltages) Scale(k float64) Voltages {
	for i := range v {
		v[i] *= k
	}
	return v
}

// Zero reports whether every wheel is at 0.
func (v Voltages) Zero() bool {
	return v == Voltages{}
}

// Mix projects the motion vector (x, y) onto each wheel's roller axis:
// r*sin(theta + offset) with theta = atan2(y, x) and r = |(x, y)|.
func Mix(x, y float64) Voltages {
	angle := math.Atan2(y, x)
	magnitude := math.Hypot(x, y)

	var v Voltages
	for _, p := range chassis.Positions {
		v[p] = magnitude * math.Sin(angle+mixOffsets[p])
	}
	return v
}

// MixWithRotation gives half of every wheel's voltage budget to translation and
// half to rotation. The split is fixed, not balanced against the command.
func MixWithRotation(x, y, rotation float64) Voltages {
	v := Mix(x, y)
	for i := range v {
		v[i] = v[i]/2 + rotation/2
	}
	return v
}

// Spin sets every wheel to the same voltage, turning the robot in place.
// Positive is clockwise.
func Spin(rotation float64) Voltages {
	return Voltages{rotation, rotation, rotation, rotation}
}
