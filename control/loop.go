// Package control runs the per-tick drive cycle and timed autonomous routines.
package control

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"xdrive/display"
	"xdrive/drive"
	"xdrive/heading"
	"xdrive/input"
	"xdrive/telemetry"
)

// A Loop polls input, drives and updates heading once per tick, strictly in
// that order, so a tick's voltage writes happen before its velocity reads.
type Loop struct {
	Source     input.Source
	Controller *drive.Controller
	Estimator  *heading.Estimator
	Logger     golog.Logger
	Tick       time.Duration

	// optional
	Display   display.Display
	Publisher telemetry.Publisher

	inputFailing   bool
	publishFailing bool
}

// Step runs one tick without the trailing delay and returns the command applied.
func (l *Loop) Step(ctx context.Context) drive.Command {
	r, err := l.Source.Poll(ctx)
	if err != nil {
		if !l.inputFailing {
			l.Logger.Warnw("input poll error, holding still", "error", err)
		}
		l.inputFailing = true
		r = input.Reading{}
	} else if l.inputFailing {
		l.Logger.Infow("input poll recovered")
		l.inputFailing = false
	}

	cmd := l.Controller.DriveFrom(r)
	l.Estimator.Update()

	// read even with no display or publisher; the over-temperature cutoff acts on these reads
	snap := telemetry.Capture(l.Controller.Wheels(), l.Controller.Last(), l.Estimator.Velocities(), l.Estimator.Heading(), cmd.Rotating)
	if l.Display != nil {
		display.Show(l.Display, display.Status{
			HeadingDegrees: snap.HeadingDegrees,
			Temperatures:   snap.Temperatures(),
		})
	}
	if l.Publisher != nil {
		err := l.Publisher.Publish(snap)
		if err != nil && !l.publishFailing {
			l.Logger.Warnw("telemetry publish error", "error", err)
		}
		l.publishFailing = err != nil
	}
	return cmd
}

// Run steps until ctx is done, then stops every wheel. It never fails on its
// own; the returned error is always nil unless the loop is misconfigured.
func (l *Loop) Run(ctx context.Context) error {
	if l.Source == nil || l.Controller == nil || l.Estimator == nil {
		return errors.New("control loop needs an input source, controller and estimator")
	}
	defer l.Controller.Stop()

	l.Logger.Infow("control loop started", "tick", l.Tick)
	for {
		if ctx.Err() != nil {
			break
		}
		l.Step(ctx)
		if !viamutils.SelectContextOrWait(ctx, l.Tick) {
			break
		}
	}
	l.Logger.Infow("control loop stopped", "heading_deg", l.Estimator.Degrees())
	return nil
}
