// Package hardware builds the wheel motors described by a configuration.
package hardware

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"xdrive/actuator"
	"xdrive/actuator/canmotor"
	"xdrive/actuator/fake"
	"xdrive/actuator/sabertooth"
	"xdrive/chassis"
	"xdrive/config"
)

// A Rig owns every driver opened for a robot.
type Rig struct {
	Wheels  chassis.Wheels
	Motors  [4]*actuator.SafeMotor
	Drivers [4]actuator.Driver

	bus *canmotor.Bus
}

// Build opens a driver for every wheel in cfg. With simulate set every wheel
// gets a fake driver regardless of its configured kind.
func Build(cfg *config.Config, logger golog.Logger, simulate bool) (*Rig, error) {
	rig := &Rig{}
	opts := []actuator.Option{
		actuator.WithIOTimeout(cfg.IOTimeout()),
		actuator.WithMaxTemperature(cfg.MaxTemperatureC),
	}

	for _, p := range chassis.Positions {
		wc := cfg.Wheels.At(p)
		driver, err := rig.openDriver(cfg, p, wc, logger, simulate)
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "opening %s motor", p), rig.Close())
		}
		rig.Drivers[p] = driver
		rig.Motors[p] = actuator.NewSafeMotor(p.String(), driver, logger, opts...)
		rig.Wheels[p] = chassis.Wheel{Position: p, Sign: wc.Sign, Motor: rig.Motors[p]}
		logger.Debugw("wheel ready", "wheel", p, "driver", wc.Driver, "simulated", simulate)
	}
	return rig, nil
}

func (r *Rig) openDriver(
	cfg *config.Config,
	p chassis.WheelPosition,
	wc *config.Wheel,
	logger golog.Logger,
	simulate bool,
) (actuator.Driver, error) {
	if simulate {
		return fake.NewMotor(p.String(), wc.MaxRPM), nil
	}
	switch wc.Driver {
	case config.DriverFake:
		return fake.NewMotor(p.String(), wc.MaxRPM), nil
	case config.DriverCAN:
		if r.bus == nil {
			bus, err := canmotor.Open(cfg.CAN.Channel, logger)
			if err != nil {
				return nil, err
			}
			r.bus = bus
		}
		canID := wc.CanID
		if canID == 0 {
			canID = canmotor.DefaultCanID(p)
		}
		return r.bus.Motor(p, canID, wc.MaxRPM), nil
	case config.DriverSabertooth:
		return sabertooth.NewMotor(sabertooth.Config{
			SerialPath:    wc.SerialPath,
			BaudRate:      wc.BaudRate,
			SerialAddress: wc.SerialAddress,
			MotorChannel:  wc.MotorChannel,
			DirectionFlip: wc.DirectionFlip,
			MaxRPM:        wc.MaxRPM,
		}, logger)
	default:
		return nil, errors.Errorf("unknown driver %q", wc.Driver)
	}
}

// Close stops and closes every driver, then the CAN bus they share.
func (r *Rig) Close() error {
	var err error
	for i, m := range r.Motors {
		if m != nil {
			err = multierr.Combine(err, m.Close())
			continue
		}
		if r.Drivers[i] != nil {
			err = multierr.Combine(err, r.Drivers[i].Close())
		}
	}
	r.Motors = [4]*actuator.SafeMotor{}
	r.Drivers = [4]actuator.Driver{}
	if r.bus != nil {
		err = multierr.Combine(err, r.bus.Close())
		r.bus = nil
	}
	return err
}
