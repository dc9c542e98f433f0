// Package heading estimates the robot's orientation by integrating wheel
// velocities once per control tick.
package heading

import (
	"math"
	"sync"

	"github.com/edaniels/golog"

	"xdrive/chassis"
)

// An Estimator accumulates heading in radians. The value is never wrapped, so
// two full clockwise turns read as 4π.
type Estimator struct {
	wheels   chassis.Wheels
	geometry chassis.Geometry
	logger   golog.Logger

	// inches travelled per tick by a wheel turning at 1 rpm
	inchesPerRPM float64

	mu      sync.RWMutex
	heading float64
	// motor-frame rpm read by the last Update
	velocities [4]float64
}

// NewEstimator returns an estimator starting at heading 0.
func NewEstimator(wheels chassis.Wheels, geometry chassis.Geometry, logger golog.Logger) *Estimator {
	return &Estimator{
		wheels:       wheels,
		geometry:     geometry,
		logger:       logger,
		inchesPerRPM: geometry.RPMToInchesPerTick(),
	}
}

// Update reads every wheel's velocity and adds the heading change over the
// last tick. A wheel that cannot be read reports 0 and contributes nothing.
// Update returns the change applied.
func (e *Estimator) Update() float64 {
	var velocities, distance [4]float64
	for _, w := range e.wheels {
		if w.Motor == nil {
			continue
		}
		velocities[w.Position] = w.Motor.ActualVelocity()
		distance[w.Position] = velocities[w.Position] * w.Sign * e.inchesPerRPM
	}
	e.mu.Lock()
	e.velocities = velocities
	e.mu.Unlock()

	left := (distance[chassis.FrontLeft] + distance[chassis.BackLeft]) / 2
	right := (distance[chassis.FrontRight] + distance[chassis.BackRight]) / 2
	delta := (left - right) / e.geometry.TrackWidthIn
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		e.logger.Warnw("discarding heading update", "left", left, "right", right, "track_width_in", e.geometry.TrackWidthIn)
		return 0
	}

	e.mu.Lock()
	e.heading += delta
	e.mu.Unlock()
	return delta
}

// Heading returns the accumulated heading in radians; positive is clockwise.
func (e *Estimator) Heading() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.heading
}

// Velocities returns the wheel velocities in rpm read by the last Update,
// indexed by wheel position and in each motor's own frame.
func (e *Estimator) Velocities() [4]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.velocities
}

// SetHeading overwrites the accumulated heading.
func (e *Estimator) SetHeading(radians float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heading = radians
}

// Degrees returns the accumulated heading in degrees.
func (e *Estimator) Degrees() float64 {
	return e.Heading() * 180 / math.Pi
}
