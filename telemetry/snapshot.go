// Package telemetry captures per-tick robot state and publishes it to an MQTT
// broker as JSON.
package telemetry

import (
	"math"
	"time"

	"xdrive/actuator"
	"xdrive/chassis"
)

// Snapshot is the robot state at one control tick.
type Snapshot struct {
	Time           time.Time `json:"time"`
	HeadingRadians float64   `json:"heading_rad"`
	HeadingDegrees float64   `json:"heading_deg"`
	Rotating       bool      `json:"rotating"`
	Wheels         [4]Wheel  `json:"wheels"`
}

// Wheel is one wheel's state. Temperature is nil when the motor did not report one.
type Wheel struct {
	Position    string   `json:"position"`
	Voltage     float64  `json:"voltage"`
	VelocityRPM float64  `json:"velocity_rpm"`
	Temperature *float64 `json:"temperature_c"`
	Faulted     bool     `json:"faulted"`
}

type faultReporter interface {
	Faulted() bool
}

// Capture reads temperature and fault state from every wheel. voltages holds
// the last commanded voltage and velocities the last velocity read, both per
// wheel position.
func Capture(wheels chassis.Wheels, voltages, velocities [4]float64, headingRad float64, rotating bool) Snapshot {
	s := Snapshot{
		Time:           time.Now(),
		HeadingRadians: headingRad,
		HeadingDegrees: headingRad * 180 / math.Pi,
		Rotating:       rotating,
	}
	temps := ReadTemperatures(wheels)
	for _, w := range wheels {
		ws := Wheel{
			Position:    w.Position.String(),
			Voltage:     voltages[w.Position],
			VelocityRPM: velocities[w.Position],
		}
		if t := temps[w.Position]; !actuator.IsUnknown(t) {
			ws.Temperature = &t
		}
		if f, ok := w.Motor.(faultReporter); ok {
			ws.Faulted = f.Faulted()
		}
		s.Wheels[w.Position] = ws
	}
	return s
}

// ReadTemperatures reads every wheel's temperature, which also lets a motor
// with an over-temperature limit act on it.
func ReadTemperatures(wheels chassis.Wheels) [4]float64 {
	out := [4]float64{actuator.TemperatureUnknown, actuator.TemperatureUnknown, actuator.TemperatureUnknown, actuator.TemperatureUnknown}
	for _, w := range wheels {
		if w.Motor != nil {
			out[w.Position] = w.Motor.Temperature()
		}
	}
	return out
}

// Temperatures returns each wheel's temperature, actuator.TemperatureUnknown
// where none was read.
func (s Snapshot) Temperatures() [4]float64 {
	var out [4]float64
	for i, w := range s.Wheels {
		if w.Temperature == nil {
			out[i] = actuator.TemperatureUnknown
			continue
		}
		out[i] = *w.Temperature
	}
	return out
}
