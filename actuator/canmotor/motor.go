package canmotor

import (
	"context"

	"github.com/pkg/errors"

	"xdrive/actuator"
	"xdrive/chassis"
)

var errNoTelemetry = errors.Wrap(actuator.ErrNoFeedback, "no CAN telemetry")

var _ actuator.Driver = &Motor{}

// A Motor is one wheel controller on a Bus.
type Motor struct {
	bus      *Bus
	position chassis.WheelPosition
	canID    uint32
	maxRPM   float64
}

// SetVoltage sends a speed command proportional to v.
func (m *Motor) SetVoltage(ctx context.Context, v float64) error {
	cmd := speedCommand(v / actuator.MaxVoltage * m.maxRPM)
	return m.bus.send(ctx, cmd.toFrame(m.canID))
}

// Temperature returns the last broadcast controller temperature.
func (m *Motor) Temperature(ctx context.Context) (float64, error) {
	return m.bus.telemGet(telemKey(telemTemperature, m.position))
}

// Velocity returns the last broadcast wheel speed in rpm.
func (m *Motor) Velocity(ctx context.Context) (float64, error) {
	return m.bus.telemGet(telemKey(telemSpeed, m.position))
}

// Close disables the wheel controller. The bus stays open.
func (m *Motor) Close() error {
	frame := disableCommand.toFrame(m.canID)
	return m.bus.send(context.Background(), frame)
}
