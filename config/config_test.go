package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"xdrive/chassis"
)

const mixedConfig = `{
	"wheel_diameter_in": 3.25,
	"track_width_in": 12,
	"max_temperature_c": 55,
	"display": "terminal",
	"wheels": {
		"front_left":  {"driver": "can"},
		"front_right": {"driver": "can", "can_id": 555},
		"back_left":   {"driver": "sabertooth", "serial_path": "/dev/ttyUSB0", "motor_channel": 1},
		"back_right":  {"driver": "sabertooth", "serial_path": "/dev/ttyUSB0", "motor_channel": 2, "sign": 1, "dir_flip": true}
	},
	"mqtt": {"broker": "tcp://localhost:1883"}
}`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(mixedConfig))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.WheelDiameterIn, test.ShouldEqual, 3.25)
	test.That(t, cfg.TrackWidthIn, test.ShouldEqual, 12.0)
	test.That(t, cfg.TickMs, test.ShouldEqual, chassis.DefaultTickMs)
	test.That(t, cfg.IOTimeout(), test.ShouldEqual, 20*time.Millisecond)
	test.That(t, cfg.Deadband, test.ShouldEqual, 0.0)
	test.That(t, cfg.Display, test.ShouldEqual, DisplayTerminal)

	test.That(t, cfg.CAN, test.ShouldNotBeNil)
	test.That(t, cfg.CAN.Channel, test.ShouldEqual, "can0")
	test.That(t, cfg.Wheels.FrontRight.CanID, test.ShouldEqual, uint32(555))

	test.That(t, cfg.Wheels.FrontLeft.Sign, test.ShouldEqual, 1.0)
	test.That(t, cfg.Wheels.FrontRight.Sign, test.ShouldEqual, -1.0)
	test.That(t, cfg.Wheels.BackLeft.Sign, test.ShouldEqual, 1.0)
	test.That(t, cfg.Wheels.BackRight.Sign, test.ShouldEqual, 1.0)

	test.That(t, cfg.Wheels.BackLeft.BaudRate, test.ShouldEqual, 9600)
	test.That(t, cfg.Wheels.BackLeft.SerialAddress, test.ShouldEqual, 128)
	test.That(t, cfg.Wheels.BackRight.DirectionFlip, test.ShouldBeTrue)
	test.That(t, cfg.Wheels.BackRight.MaxRPM, test.ShouldEqual, defaultMaxRPM)

	test.That(t, cfg.MQTT.Topic, test.ShouldEqual, "xdrive/telemetry")
	test.That(t, cfg.MQTT.ClientID, test.ShouldEqual, "xdrive")
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		config string
		errMsg string
	}{
		{
			name:   "bad json",
			config: `{"wheels": [`,
			errMsg: "parsing config",
		},
		{
			name:   "missing driver",
			config: `{"wheels": {"front_left": {"driver": "fake"}}}`,
			errMsg: "driver",
		},
		{
			name: "unknown driver",
			config: `{"wheels": {
				"front_left": {"driver": "fake"}, "front_right": {"driver": "stepper"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "unknown driver",
		},
		{
			name: "sabertooth without port",
			config: `{"wheels": {
				"front_left": {"driver": "sabertooth", "motor_channel": 1}, "front_right": {"driver": "fake"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "serial_path",
		},
		{
			name: "bad sign",
			config: `{"wheels": {
				"front_left": {"driver": "fake", "sign": 2}, "front_right": {"driver": "fake"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "sign must be 1 or -1",
		},
		{
			name: "negative track width",
			config: `{"track_width_in": -3, "wheels": {
				"front_left": {"driver": "fake"}, "front_right": {"driver": "fake"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "track_width_in",
		},
		{
			name: "mqtt without broker",
			config: `{"mqtt": {}, "wheels": {
				"front_left": {"driver": "fake"}, "front_right": {"driver": "fake"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "mqtt.broker",
		},
		{
			name: "unknown display",
			config: `{"display": "lcd", "wheels": {
				"front_left": {"driver": "fake"}, "front_right": {"driver": "fake"},
				"back_left": {"driver": "fake"}, "back_right": {"driver": "fake"}}}`,
			errMsg: "display must be one of",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.config))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}

func TestSimulated(t *testing.T) {
	cfg := Simulated()
	_, err := cfg.Validate("sim")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Geometry, test.ShouldResemble, chassis.DefaultGeometry())
	for _, p := range chassis.Positions {
		test.That(t, cfg.Wheels.At(p).Driver, test.ShouldEqual, DriverFake)
		test.That(t, cfg.Wheels.At(p).Sign, test.ShouldEqual, p.DefaultSign())
	}
	test.That(t, cfg.CAN, test.ShouldBeNil)
	test.That(t, cfg.MQTT, test.ShouldBeNil)

	cfg.InputController = "gamepad"
	deps, err := cfg.Validate("sim")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"gamepad"})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robot.json")
	test.That(t, os.WriteFile(path, []byte(mixedConfig), 0o600), test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Wheels.BackLeft.SerialPath, test.ShouldEqual, "/dev/ttyUSB0")

	_, err = Load(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.json")
}
