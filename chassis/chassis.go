// Package chassis describes the physical layout of an X-drive robot: its four
// wheel positions, their mounting signs and the geometry constants shared by
// the drive controller and the heading estimator.
package chassis

import (
	"math"
	"time"

	"xdrive/actuator"
)

// WheelPosition is one of the four wheel mounting positions.
type WheelPosition int

// Wheel positions, in the order used to index Wheels and voltage sets.
const (
	FrontLeft WheelPosition = iota
	FrontRight
	BackLeft
	BackRight
)

// Positions lists every wheel position in index order.
var Positions = [4]WheelPosition{FrontLeft, FrontRight, BackLeft, BackRight}

var positionNames = [4]string{"front_left", "front_right", "back_left", "back_right"}

var positionLabels = [4]string{"Front Left", "Front Right", "Back Left", "Back Right"}

func (p WheelPosition) String() string {
	if p < FrontLeft || p > BackRight {
		return "unknown"
	}
	return positionNames[p]
}

// Label returns a human readable name such as "Front Left".
func (p WheelPosition) Label() string {
	if p < FrontLeft || p > BackRight {
		return "Unknown"
	}
	return positionLabels[p]
}

// Left reports whether the wheel is on the left side of the chassis.
func (p WheelPosition) Left() bool {
	return p == FrontLeft || p == BackLeft
}

// DefaultSign is the mounting sign of a wheel when none is configured. The
// right-hand motors are mirrored, so a positive voltage drives them backwards.
func (p WheelPosition) DefaultSign() float64 {
	if p.Left() {
		return 1
	}
	return -1
}

// A Wheel binds a motor to its mounting position and direction sign. The sign
// converts the motor's own rotation into chassis-forward rotation.
type Wheel struct {
	Position WheelPosition
	Sign     float64
	Motor    actuator.Actuator
}

// Wheels holds the four wheels indexed by WheelPosition.
type Wheels [4]Wheel

// NewWheels binds four motors using each position's default sign.
func NewWheels(frontLeft, frontRight, backLeft, backRight actuator.Actuator) Wheels {
	motors := [4]actuator.Actuator{frontLeft, frontRight, backLeft, backRight}
	var w Wheels
	for _, p := range Positions {
		w[p] = Wheel{Position: p, Sign: p.DefaultSign(), Motor: motors[p]}
	}
	return w
}

// Geometry holds the immutable chassis constants.
type Geometry struct {
	WheelDiameterIn float64 `json:"wheel_diameter_in"`
	TrackWidthIn    float64 `json:"track_width_in"`
	TickMs          int     `json:"tick_ms"`
}

// Default geometry of a 4 inch omni wheel X-drive on a 50 Hz loop.
const (
	DefaultWheelDiameterIn = 4.0
	DefaultTrackWidthIn    = 15.0
	DefaultTickMs          = 20
)

// DefaultGeometry returns the default chassis geometry.
func DefaultGeometry() Geometry {
	return Geometry{
		WheelDiameterIn: DefaultWheelDiameterIn,
		TrackWidthIn:    DefaultTrackWidthIn,
		TickMs:          DefaultTickMs,
	}
}

// Tick is the fixed delay between control loop iterations.
func (g Geometry) Tick() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

// WheelCircumferenceIn is the distance covered by one wheel revolution.
func (g Geometry) WheelCircumferenceIn() float64 {
	return math.Pi * g.WheelDiameterIn
}

// RPMToInchesPerTick converts a wheel velocity in rpm to the distance it covers
// during one tick.
func (g Geometry) RPMToInchesPerTick() float64 {
	return g.WheelCircumferenceIn() / 60 * g.Tick().Seconds()
}
