// Package main is the xdrive command: it drives an X-drive robot from an input
// script or runs the autonomous routine.
package main

import (
	"context"
	"fmt"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"xdrive/config"
	"xdrive/control"
	"xdrive/input"
)

const (
	flagConfig   = "config"
	flagSimulate = "simulate"
	flagDebug    = "debug"
	flagQuiet    = "quiet"
	flagScript   = "script"
	flagDisplay  = "display"
)

func main() {
	goutils.ContextualMain(mainWithArgs, golog.NewDevelopmentLogger("xdrive"))
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	app := &cli.App{
		Name:  "xdrive",
		Usage: "drive a four wheel X-drive robot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load robot configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagSimulate,
				Usage: "replace every motor with a simulated one",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagQuiet,
				Usage: "disable logging",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Bool(flagQuiet):
				logger = zap.NewNop().Sugar()
			case c.Bool(flagDebug):
				logger = golog.NewDebugLogger("xdrive")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the drive loop until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagScript,
						Usage: "replay input readings from a JSON `FILE` instead of holding still",
					},
					&cli.StringFlag{
						Name:  flagDisplay,
						Usage: fmt.Sprintf("status display, one of %s|%s|%s", config.DisplayTerminal, config.DisplayLog, config.DisplayNone),
					},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "autonomous",
				Usage: "run the timed autonomous routine once",
				Action: func(c *cli.Context) error {
					return autonomousAction(c, logger)
				},
			},
			{
				Name:  "check-config",
				Usage: "load and validate a configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					logger.Infow("configuration valid",
						"front_left", cfg.Wheels.FrontLeft.Driver,
						"front_right", cfg.Wheels.FrontRight.Driver,
						"back_left", cfg.Wheels.BackLeft.Driver,
						"back_right", cfg.Wheels.BackRight.Driver,
						"tick_ms", cfg.TickMs,
					)
					return nil
				},
			},
		},
	}
	return app.RunContext(ctx, args)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		if !c.Bool(flagSimulate) {
			return nil, errors.New("a --config file is required unless --simulate is set")
		}
		return config.Simulated(), nil
	}
	return config.Load(path)
}

func runAction(c *cli.Context, logger golog.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if kind := c.String(flagDisplay); kind != "" {
		cfg.Display = kind
		if _, err := cfg.Validate(""); err != nil {
			return err
		}
	}

	var src input.Source = input.Idle{}
	if path := c.String(flagScript); path != "" {
		script, err := input.LoadScript(path)
		if err != nil {
			return err
		}
		src = script
	}

	s, err := newSession(c.Context, cfg, logger, c.Bool(flagSimulate))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Errorw("shutdown error", "error", err)
		}
	}()

	loop := &control.Loop{
		Source:     src,
		Controller: s.controller,
		Estimator:  s.estimator,
		Logger:     logger,
		Tick:       cfg.Tick(),
		Display:    s.display,
	}
	if s.publisher != nil {
		loop.Publisher = s.publisher
	}
	return loop.Run(c.Context)
}

func autonomousAction(c *cli.Context, logger golog.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := newSession(c.Context, cfg, logger, c.Bool(flagSimulate))
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Errorw("shutdown error", "error", err)
		}
	}()

	runner := &control.Runner{
		Controller: s.controller,
		Estimator:  s.estimator,
		Logger:     logger,
		Tick:       cfg.Tick(),
	}
	if err := runner.Run(c.Context, control.AutonomousRoutine()); err != nil {
		if c.Context.Err() != nil {
			logger.Info("autonomous routine interrupted")
			return nil
		}
		return err
	}
	logger.Infow("autonomous routine finished", "heading_deg", s.estimator.Degrees())
	return nil
}
