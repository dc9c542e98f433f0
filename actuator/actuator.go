// Package actuator defines the wheel motor contract the drive core relies on and
// the fault-absorbing wrapper that turns a fallible hardware driver into it.
package actuator

import (
	"context"
	"math"

	"go.uber.org/multierr"
)

// Voltage limits accepted by every wheel motor.
const (
	MaxVoltage = 127.0
	MinVoltage = -127.0
)

// TemperatureUnknown is reported when a motor cannot be reached. Check it with IsUnknown.
var TemperatureUnknown = math.NaN()

// IsUnknown reports whether a temperature reading is the unknown sentinel.
func IsUnknown(temperature float64) bool {
	return math.IsNaN(temperature)
}

// An Actuator is a single drivable wheel motor. Every method is total: a
// disconnected or faulted motor never makes these panic or block past the
// hardware I/O timeout; it degrades to zero velocity and TemperatureUnknown.
type Actuator interface {
	// SetVoltage commands a signed voltage in [MinVoltage, MaxVoltage]. Values
	// outside the range are clamped.
	SetVoltage(v float64)

	// Temperature returns the motor temperature in Celsius or TemperatureUnknown.
	Temperature() float64

	// ActualVelocity returns the instantaneous wheel velocity in revolutions per
	// minute, or 0 when the motor is unreachable.
	ActualVelocity() float64
}

// A Driver talks to one physical motor and is allowed to fail. Drivers are
// wrapped by a SafeMotor before the drive core sees them.
type Driver interface {
	SetVoltage(ctx context.Context, v float64) error
	Temperature(ctx context.Context) (float64, error)
	Velocity(ctx context.Context) (float64, error)
	Close() error
}

// Clamp limits v to the accepted voltage range. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, MinVoltage), MaxVoltage)
}

// CloseAll closes every driver and combines their errors.
func CloseAll(drivers ...Driver) error {
	var err error
	for _, d := range drivers {
		if d == nil {
			continue
		}
		err = multierr.Combine(err, d.Close())
	}
	return err
}
