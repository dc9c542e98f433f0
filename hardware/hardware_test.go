package hardware

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"xdrive/actuator/fake"
	"xdrive/chassis"
	"xdrive/config"
)

func TestBuildFake(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := config.Simulated()
	cfg.Wheels.FrontRight.Sign = 1

	rig, err := Build(cfg, logger, false)
	test.That(t, err, test.ShouldBeNil)

	for _, p := range chassis.Positions {
		w := rig.Wheels[p]
		test.That(t, w.Position, test.ShouldEqual, p)
		test.That(t, w.Motor, test.ShouldNotBeNil)
		_, ok := rig.Drivers[p].(*fake.Motor)
		test.That(t, ok, test.ShouldBeTrue)
	}
	test.That(t, rig.Wheels[chassis.FrontLeft].Sign, test.ShouldEqual, 1.0)
	test.That(t, rig.Wheels[chassis.FrontRight].Sign, test.ShouldEqual, 1.0)
	test.That(t, rig.Wheels[chassis.BackRight].Sign, test.ShouldEqual, -1.0)

	rig.Wheels[chassis.BackLeft].Motor.SetVoltage(300)
	test.That(t, rig.Drivers[chassis.BackLeft].(*fake.Motor).Voltage(), test.ShouldEqual, 127.0)

	drivers := rig.Drivers
	test.That(t, rig.Close(), test.ShouldBeNil)
	for _, d := range drivers {
		test.That(t, d.(*fake.Motor).Closed(), test.ShouldBeTrue)
	}
	test.That(t, rig.Close(), test.ShouldBeNil)
}

func TestBuildSimulatedOverridesDrivers(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
		"wheels": {
			"front_left": {"driver": "can"},
			"front_right": {"driver": "can"},
			"back_left": {"driver": "sabertooth", "serial_path": "/dev/does-not-exist", "motor_channel": 1},
			"back_right": {"driver": "sabertooth", "serial_path": "/dev/does-not-exist", "motor_channel": 2}
		}
	}`))
	test.That(t, err, test.ShouldBeNil)

	rig, err := Build(cfg, golog.NewTestLogger(t), true)
	test.That(t, err, test.ShouldBeNil)
	for _, d := range rig.Drivers {
		_, ok := d.(*fake.Motor)
		test.That(t, ok, test.ShouldBeTrue)
	}
	test.That(t, rig.bus, test.ShouldBeNil)
	test.That(t, rig.Close(), test.ShouldBeNil)
}

func TestBuildOpenFailure(t *testing.T) {
	cfg := config.Simulated()
	cfg.Wheels.BackRight = config.Wheel{
		Driver:        config.DriverSabertooth,
		SerialPath:    "/dev/does-not-exist-xdrive",
		SerialAddress: 128,
		MotorChannel:  1,
		BaudRate:      9600,
		Sign:          -1,
	}

	rig, err := Build(cfg, golog.NewTestLogger(t), false)
	test.That(t, rig, test.ShouldBeNil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "opening back_right motor")
}
