package control

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"xdrive/drive"
	"xdrive/heading"
	"xdrive/telemetry"
)

// A Step applies a drive command and holds it for Duration. A nil Apply only waits.
type Step struct {
	Name     string
	Apply    func(c *drive.Controller)
	Duration time.Duration
}

// Routine is a timed, open-loop sequence of drive steps.
type Routine []Step

// AutonomousRoutine drives diagonally, spins counterclockwise and then strafes
// left while spinning clockwise, pausing between each.
func AutonomousRoutine() Routine {
	stop := func(c *drive.Controller) { c.Stop() }
	return Routine{
		{Name: "settle", Duration: time.Second},
		{Name: "diagonal", Apply: func(c *drive.Controller) { c.Drive(127, 127) }, Duration: time.Second},
		{Name: "stop", Apply: stop, Duration: 500 * time.Millisecond},
		{Name: "spin", Apply: func(c *drive.Controller) { c.Rotate(-100) }, Duration: time.Second},
		{Name: "stop", Apply: stop, Duration: 500 * time.Millisecond},
		{Name: "strafe and spin", Apply: func(c *drive.Controller) { c.DriveWithRotation(-50, 0, 127) }, Duration: time.Second},
		{Name: "stop", Apply: stop},
	}
}

// A Runner executes routines, updating heading every tick while a step is held.
type Runner struct {
	Controller *drive.Controller
	Estimator  *heading.Estimator
	Logger     golog.Logger
	Tick       time.Duration
}

// Run executes every step in order. The wheels are always stopped on return;
// a cancelled ctx ends the routine early with its error.
func (r *Runner) Run(ctx context.Context, routine Routine) error {
	defer r.Controller.Stop()
	for i, step := range routine {
		r.Logger.Debugw("routine step", "index", i, "step", step.Name, "duration", step.Duration)
		if step.Apply != nil {
			step.Apply(r.Controller)
		}
		if err := r.hold(ctx, step.Duration); err != nil {
			return errors.Wrapf(err, "routine step %q", step.Name)
		}
	}
	return nil
}

func (r *Runner) hold(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		wait := r.Tick
		if wait <= 0 || remaining < wait {
			wait = remaining
		}
		if !viamutils.SelectContextOrWait(ctx, wait) {
			return ctx.Err()
		}
		if r.Estimator != nil {
			r.Estimator.Update()
		}
		telemetry.ReadTemperatures(r.Controller.Wheels())
	}
}
