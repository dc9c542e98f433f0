package canmotor

import (
	"math"

	"github.com/go-daq/canbus"

	"xdrive/chassis"
)

// Default CAN identifiers of the four wheel controllers.
const (
	DefaultCanIDFrontRight uint32 = 0x0000022A
	DefaultCanIDFrontLeft  uint32 = 0x0000022B
	DefaultCanIDRearRight  uint32 = 0x0000022C
	DefaultCanIDRearLeft   uint32 = 0x0000022D
)

// DefaultCanID returns the factory identifier of the controller at position.
func DefaultCanID(position chassis.WheelPosition) uint32 {
	switch position {
	case chassis.FrontLeft:
		return DefaultCanIDFrontLeft
	case chassis.FrontRight:
		return DefaultCanIDFrontRight
	case chassis.BackLeft:
		return DefaultCanIDRearLeft
	default:
		return DefaultCanIDRearRight
	}
}

// Telemetry frames broadcast by the wheel controllers.
const (
	kCanIDTelemWheelSpeed  uint32 = 0x241
	kCanIDTelemTemperature uint32 = 0x242
)

const (
	stateDisable byte = 0x00
	stateEnable  byte = 0x01

	modeSpeed byte = 0x00

	// kDefaultCurrent is the motor current limit sent with every speed command.
	kDefaultCurrent int16 = 5

	// rpm travels as a 12 bit signed field
	kMaxCommandRPM = 2047
)

// command is a single wheel controller instruction.
type command struct {
	state   byte
	mode    byte
	rpm     int16
	current int16
	encoder int32
}

// speedCommand returns an enabled speed-mode command for rpm, saturated to the
// width of the rpm field.
func speedCommand(rpm float64) command {
	rpm = math.Round(rpm)
	rpm = math.Max(-kMaxCommandRPM, math.Min(kMaxCommandRPM, rpm))
	return command{
		state:   stateEnable,
		mode:    modeSpeed,
		rpm:     int16(rpm),
		current: kDefaultCurrent,
	}
}

var disableCommand = command{state: stateDisable, mode: modeSpeed, current: kDefaultCurrent}

// toFrame packs the command into an extended frame addressed to canID.
func (cmd command) toFrame(canID uint32) canbus.Frame {
	frame := canbus.Frame{
		ID:   canID,
		Data: make([]byte, 0, 8),
		Kind: canbus.EFF,
	}
	frame.Data = append(frame.Data, (cmd.state&0x0F)|((cmd.mode&0x0F)<<4))
	frame.Data = append(frame.Data, byte(cmd.rpm&0xFF))
	frame.Data = append(frame.Data, byte((cmd.rpm>>8)&0x0F)|byte((cmd.current&0x0F)<<4))
	frame.Data = append(frame.Data, byte((cmd.current>>4)&0xFF))
	frame.Data = append(frame.Data, byte(cmd.encoder&0xFF))
	frame.Data = append(frame.Data, byte((cmd.encoder>>8)&0xFF))
	frame.Data = append(frame.Data, byte((cmd.encoder>>16)&0xFF))
	frame.Data = append(frame.Data, byte((cmd.encoder>>24)&0xFF))
	return frame
}
