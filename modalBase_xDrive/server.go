// Package main is a viam module exposing an X-drive robot as a base component.

package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	viamutils "go.viam.com/utils"

	"go.viam.com/rdk/components/base"
	rdkinput "go.viam.com/rdk/components/input"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"xdrive/chassis"
	"xdrive/config"
	"xdrive/control"
	"xdrive/drive"
	"xdrive/hardware"
	"xdrive/heading"
	"xdrive/input"
	"xdrive/input/viaminput"
	"xdrive/telemetry"
)

var model = resource.NewModel("xdrive", "base", "xdrive")

// Version number
var version = "0.3.0"

const kInchesToMeters = 0.0254

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewDebugLogger("xdriveBaseModule"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	registerBase()
	xdriveModule, err := module.NewModuleFromArgs(ctx, logger)
	if err != nil {
		return err
	}
	xdriveModule.AddModelFromRegistry(ctx, base.API, model)

	err = xdriveModule.Start(ctx)
	defer xdriveModule.Close(ctx)

	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// helper function to add the base's constructor and metadata to the component registry, so that we can later construct it.
func registerBase() {
	resource.RegisterComponent(
		base.API,
		model,
		resource.Registration[resource.Resource, *config.Config]{Constructor: func(
			ctx context.Context,
			deps resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (resource.Resource, error) {
			return newBase(ctx, deps, conf, golog.NewDevelopmentLogger(conf.Name))
		}})
}

type xdriveBase struct {
	resource.Named

	cfg        *config.Config
	rig        *hardware.Rig
	controller *drive.Controller
	estimator  *heading.Estimator
	publisher  *telemetry.MQTTPublisher
	geometries []spatialmath.Geometry
	logger     golog.Logger

	// held by every open-loop move so only one runs at a time
	moveMu   sync.Mutex
	isMoving atomic.Bool

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// newBase opens the wheel motors and starts the background tick loop. With an
// input controller configured the loop drives from it; otherwise it only
// tracks heading and the base API commands the wheels.
func newBase(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger golog.Logger) (base.Base, error) {
	cfg, err := resource.NativeConfig[*config.Config](conf)
	if err != nil {
		return nil, err
	}
	cfg.PopulateDefaults()
	if _, err := cfg.Validate(conf.Name); err != nil {
		return nil, err
	}

	var geometries = []spatialmath.Geometry{}
	if conf.Frame != nil {
		frame, err := conf.Frame.ParseConfig()
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, frame.Geometry())
	}

	var source input.Source
	if cfg.InputController != "" {
		ctrl, err := rdkinput.FromDependencies(deps, cfg.InputController)
		if err != nil {
			return nil, errors.Wrapf(err, "finding input controller %q", cfg.InputController)
		}
		source = viaminput.New(ctrl)
	}

	rig, err := hardware.Build(cfg, logger, false)
	if err != nil {
		return nil, err
	}
	xb := &xdriveBase{
		Named:      conf.ResourceName().AsNamed(),
		cfg:        cfg,
		rig:        rig,
		controller: drive.NewController(rig.Wheels, cfg.Deadband, logger),
		estimator:  heading.NewEstimator(rig.Wheels, cfg.Geometry, logger),
		geometries: geometries,
		logger:     logger,
	}
	if cfg.MQTT != nil {
		pub, err := telemetry.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, logger)
		if err != nil {
			return nil, multierr.Combine(err, rig.Close())
		}
		xb.publisher = pub
	}
	xb.start(source)
	logger.Infow("xdrive base ready", "version", version, "driven_by_input", source != nil)
	return xb, nil
}

func (xb *xdriveBase) start(source input.Source) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	xb.cancel = cancel

	xb.activeBackgroundWorkers.Add(1)
	if source != nil {
		loop := &control.Loop{
			Source:     source,
			Controller: xb.controller,
			Estimator:  xb.estimator,
			Logger:     xb.logger,
			Tick:       xb.cfg.Tick(),
		}
		if xb.publisher != nil {
			loop.Publisher = xb.publisher
		}
		viamutils.ManagedGo(func() {
			if err := loop.Run(cancelCtx); err != nil {
				xb.logger.Errorw("control loop error", "error", err)
			}
		}, xb.activeBackgroundWorkers.Done)
		return
	}
	viamutils.ManagedGo(func() {
		xb.headingThread(cancelCtx)
	}, xb.activeBackgroundWorkers.Done)
}

// headingThread integrates heading and reads wheel temperatures every tick
// while the base API drives.
func (xb *xdriveBase) headingThread(ctx context.Context) {
	tick := xb.cfg.Tick()
	for {
		if ctx.Err() != nil {
			return
		}
		xb.estimator.Update()
		snap := telemetry.Capture(xb.rig.Wheels, xb.controller.Last(), xb.estimator.Velocities(), xb.estimator.Heading(), false)
		if xb.publisher != nil {
			if err := xb.publisher.Publish(snap); err != nil {
				xb.logger.Debugw("telemetry publish error", "error", err)
			}
		}
		if !viamutils.SelectContextOrWait(ctx, tick) {
			return
		}
	}
}

/*
	X-drive Base Implementation
	Base motion is open loop: each move applies a wheel voltage set and holds it for
	the time the move should take at the requested speed.
*/

func (xb *xdriveBase) maxRPM() float64 {
	var maxRPM float64
	for _, p := range chassis.Positions {
		maxRPM = math.Max(maxRPM, xb.cfg.Wheels.At(p).MaxRPM)
	}
	return maxRPM
}

// topSpeedMmPerSec is the chassis speed with every wheel at full voltage.
func (xb *xdriveBase) topSpeedMmPerSec() float64 {
	// forward mixing runs each wheel at sin(pi/4) of full speed and the 45
	// degree rollers scale that back up by 1/cos(pi/4)
	inPerSec := xb.maxRPM() / 60 * xb.cfg.WheelCircumferenceIn()
	return inPerSec * kInchesToMeters * 1000
}

// topSpinDegsPerSec is the in-place spin rate with every wheel at full voltage.
func (xb *xdriveBase) topSpinDegsPerSec() float64 {
	radPerSec := xb.maxRPM() / 60 * xb.cfg.WheelCircumferenceIn() / (xb.cfg.TrackWidthIn / 2) * math.Sin(math.Pi/4)
	return radPerSec * 180 / math.Pi
}

// hold applies v for d, then stops the wheels.
func (xb *xdriveBase) hold(ctx context.Context, v drive.Voltages, d time.Duration) error {
	xb.moveMu.Lock()
	defer xb.moveMu.Unlock()

	xb.controller.Apply(v)
	xb.isMoving.Store(true)
	defer func() {
		xb.controller.Stop()
		xb.isMoving.Store(false)
	}()

	if !viamutils.SelectContextOrWait(ctx, d) {
		return ctx.Err()
	}
	return nil
}

// MoveStraight moves the base forward the given distance and speed.
func (xb *xdriveBase) MoveStraight(ctx context.Context, distanceMm int, mmPerSec float64, extra map[string]interface{}) error {
	if distanceMm == 0 || mmPerSec == 0 {
		return xb.Stop(ctx, extra)
	}
	top := xb.topSpeedMmPerSec()
	fraction := math.Min(math.Abs(mmPerSec)/top, 1)
	y := input.FullScale * fraction
	if (distanceMm < 0) != (mmPerSec < 0) {
		y = -y
	}
	duration := time.Duration(math.Abs(float64(distanceMm)) / (fraction * top) * float64(time.Second))
	xb.logger.Debugw("MoveStraight", "distance_mm", distanceMm, "mm_per_sec", mmPerSec, "duration", duration)
	return xb.hold(ctx, drive.Mix(0, y), duration)
}

// Spin spins the base by the given angleDeg and degsPerSec. Positive angles turn
// counterclockwise.
func (xb *xdriveBase) Spin(ctx context.Context, angleDeg, degsPerSec float64, extra map[string]interface{}) error {
	if angleDeg == 0 || degsPerSec == 0 {
		return xb.Stop(ctx, extra)
	}
	top := xb.topSpinDegsPerSec()
	fraction := math.Min(math.Abs(degsPerSec)/top, 1)
	rotation := input.FullScale * fraction
	if (angleDeg < 0) == (degsPerSec < 0) {
		rotation = -rotation
	}
	duration := time.Duration(math.Abs(angleDeg) / (fraction * top) * float64(time.Second))
	xb.logger.Debugw("Spin", "angle_deg", angleDeg, "degs_per_sec", degsPerSec, "duration", duration)
	return xb.hold(ctx, drive.Spin(rotation), duration)
}

// SetPower sets the linear and angular [-1, 1] drive power. X strafes right, Y
// drives forward and positive angular Z turns counterclockwise.
func (xb *xdriveBase) SetPower(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	if linear.Z != 0 {
		xb.logger.Warnw("Linear Z command non-zero and has no effect")
	}
	if angular.X != 0 || angular.Y != 0 {
		xb.logger.Warnw("Angular X and Y commands have no effect")
	}
	x := input.FullScale * clampUnit(linear.X)
	y := input.FullScale * clampUnit(linear.Y)
	rotation := -input.FullScale * clampUnit(angular.Z)

	cmd := drive.Select(input.Reading{X: x, Y: y, Rotation: rotation}, xb.controller.Deadband())
	if cmd.Rotating {
		xb.controller.DriveWithRotation(cmd.X, cmd.Y, cmd.Rotation)
	} else {
		xb.controller.Drive(cmd.X, cmd.Y)
	}
	xb.isMoving.Store(!xb.controller.Last().Zero())
	return nil
}

// SetVelocity sets the linear (mmPerSec) and angular (degsPerSec) velocity.
func (xb *xdriveBase) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	top := xb.topSpeedMmPerSec()
	spin := xb.topSpinDegsPerSec()
	return xb.SetPower(ctx,
		r3.Vector{X: linear.X / top, Y: linear.Y / top},
		r3.Vector{Z: angular.Z / spin},
		extra)
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, -1), 1)
}

// Stop stops the base. It is assumed the base stops immediately.
func (xb *xdriveBase) Stop(ctx context.Context, extra map[string]interface{}) error {
	xb.controller.Stop()
	xb.isMoving.Store(false)
	return nil
}

// DoCommand exposes the heading estimator and wheel telemetry.
func (xb *xdriveBase) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, ok := cmd["command"]
	if !ok {
		return nil, errors.New("missing 'command' value")
	}
	switch name {
	case "get_heading":
		return map[string]interface{}{
			"heading_rad": xb.estimator.Heading(),
			"heading_deg": xb.estimator.Degrees(),
		}, nil

	case "set_heading":
		raw, ok := cmd["heading_deg"]
		if !ok {
			return nil, errors.New("heading_deg must be set to a float")
		}
		deg, ok := raw.(float64)
		if !ok {
			return nil, errors.Errorf("heading_deg value must be a float but is type %T", raw)
		}
		xb.estimator.SetHeading(deg * math.Pi / 180)
		return map[string]interface{}{"return": fmt.Sprintf("set_heading command processed: %f", deg)}, nil

	case "get_telemetry":
		last := xb.controller.Last()
		snap := telemetry.Capture(xb.rig.Wheels, last, xb.estimator.Velocities(), xb.estimator.Heading(), false)
		wheels := map[string]interface{}{}
		temps := snap.Temperatures()
		for i, w := range snap.Wheels {
			temp := interface{}(nil)
			if w.Temperature != nil {
				temp = temps[i]
			}
			wheels[w.Position] = map[string]interface{}{
				"voltage":       w.Voltage,
				"velocity_rpm":  w.VelocityRPM,
				"temperature_c": temp,
				"faulted":       w.Faulted,
			}
		}
		return map[string]interface{}{
			"heading_deg": snap.HeadingDegrees,
			"wheels":      wheels,
		}, nil

	default:
		return nil, fmt.Errorf("no such command: %s", name)
	}
}

func (xb *xdriveBase) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return xb.geometries, nil
}

// Reconfigure always asks for a rebuild since the wheel drivers are opened once.
func (xb *xdriveBase) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	return resource.NewMustRebuildError(conf.ResourceName())
}

func (xb *xdriveBase) Properties(ctx context.Context, extra map[string]interface{}) (base.Properties, error) {
	return base.Properties{
		WidthMeters:              xb.cfg.TrackWidthIn * kInchesToMeters,
		WheelCircumferenceMeters: xb.cfg.WheelCircumferenceIn() * kInchesToMeters,
	}, nil
}

func (xb *xdriveBase) IsMoving(ctx context.Context) (bool, error) {
	return xb.isMoving.Load(), nil
}

// Close cleanly closes the base.
func (xb *xdriveBase) Close(ctx context.Context) error {
	xb.cancel()
	xb.activeBackgroundWorkers.Wait()
	xb.controller.Stop()

	var err error
	if xb.publisher != nil {
		err = xb.publisher.Close()
	}
	return multierr.Combine(err, xb.rig.Close())
}
