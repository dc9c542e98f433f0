package drive

import (
	"sync"

	"github.com/edaniels/golog"

	"xdrive/chassis"
	"xdrive/input"
)

// DefaultDeadband is the rotation axis magnitude, on the input's 127 scale, at or
// below which rotation is treated as no input.
const DefaultDeadband = 5.0

// A Controller owns the four wheels for writing and applies voltage sets to them.
type Controller struct {
	wheels   chassis.Wheels
	deadband float64
	logger   golog.Logger

	mu   sync.Mutex
	last Voltages
}

// NewController returns a controller over wheels. A deadband <= 0 selects
// DefaultDeadband.
func NewController(wheels chassis.Wheels, deadband float64, logger golog.Logger) *Controller {
	if deadband <= 0 {
		deadband = DefaultDeadband
	}
	return &Controller{
		wheels:   wheels,
		deadband: deadband,
		logger:   logger,
	}
}

// Wheels returns the wheels the controller drives.
func (c *Controller) Wheels() chassis.Wheels {
	return c.wheels
}

// Deadband returns the rotation deadband used by DriveFrom.
func (c *Controller) Deadband() float64 {
	return c.deadband
}

// Drive translates the robot along (x, y) at a speed proportional to its length.
// x and y range from -127 to 127.
func (c *Controller) Drive(x, y float64) {
	c.Apply(Mix(x, y))
}

// DriveWithRotation translates along (x, y) while rotating.
func (c *Controller) DriveWithRotation(x, y, rotation float64) {
	c.Apply(MixWithRotation(x, y, rotation))
}

// Rotate spins in place; -127 is full speed counterclockwise, 127 full speed clockwise.
func (c *Controller) Rotate(rotation float64) {
	c.Apply(Spin(rotation))
}

// Stop sets every wheel to 0.
func (c *Controller) Stop() {
	c.Apply(Voltages{})
}

// DriveFrom picks a drive mode from an input reading, applies it and returns
// the command chosen.
func (c *Controller) DriveFrom(r input.Reading) Command {
	cmd := Select(r, c.deadband)
	if cmd.Rotating {
		c.DriveWithRotation(cmd.X, cmd.Y, cmd.Rotation)
	} else {
		c.Drive(cmd.X, cmd.Y)
	}
	return cmd
}

// RotateFrom spins in place using the reading's rotation axis.
func (c *Controller) RotateFrom(r input.Reading) {
	c.Rotate(r.Rotation)
}

// Apply writes v to the wheels. Every write completes before Apply returns.
func (c *Controller) Apply(v Voltages) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, w := range c.wheels {
		if w.Motor == nil {
			continue
		}
		w.Motor.SetVoltage(v[w.Position])
	}
	c.last = v
	c.logger.Debugw("wheel voltages",
		"front_left", v[chassis.FrontLeft],
		"front_right", v[chassis.FrontRight],
		"back_left", v[chassis.BackLeft],
		"back_right", v[chassis.BackRight],
	)
}

// Last returns the voltage set most recently applied.
func (c *Controller) Last() Voltages {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
