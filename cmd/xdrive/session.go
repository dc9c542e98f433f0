package main

import (
	"context"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"

	"xdrive/config"
	"xdrive/display"
	"xdrive/drive"
	"xdrive/hardware"
	"xdrive/heading"
	"xdrive/telemetry"
)

// session owns everything opened for one command.
type session struct {
	rig        *hardware.Rig
	controller *drive.Controller
	estimator  *heading.Estimator
	display    display.Display
	terminal   *display.Terminal
	publisher  *telemetry.MQTTPublisher
}

func newSession(ctx context.Context, cfg *config.Config, logger golog.Logger, simulate bool) (*session, error) {
	rig, err := hardware.Build(cfg, logger, simulate)
	if err != nil {
		return nil, err
	}
	s := &session{
		rig:        rig,
		controller: drive.NewController(rig.Wheels, cfg.Deadband, logger),
		estimator:  heading.NewEstimator(rig.Wheels, cfg.Geometry, logger),
		display:    display.Discard{},
	}

	switch cfg.Display {
	case config.DisplayTerminal:
		term, err := display.NewTerminal()
		if err != nil {
			return nil, multierr.Combine(err, s.Close())
		}
		s.terminal = term
		s.display = term
	case config.DisplayLog:
		s.display = display.NewLog(logger)
	}

	if cfg.MQTT != nil && ctx.Err() == nil {
		pub, err := telemetry.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, logger)
		if err != nil {
			return nil, multierr.Combine(err, s.Close())
		}
		s.publisher = pub
	}
	return s, nil
}

// Close stops the wheels and releases every resource.
func (s *session) Close() error {
	s.controller.Stop()
	var err error
	if s.terminal != nil {
		err = multierr.Combine(err, s.terminal.Close())
	}
	if s.publisher != nil {
		err = multierr.Combine(err, s.publisher.Close())
	}
	return multierr.Combine(err, s.rig.Close())
}
