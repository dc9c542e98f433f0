package sabertooth

import "xdrive/actuator"

// Packetized serial opcodes.
const (
	opMotor1Forward   byte = 0x00
	opMotor1Backwards byte = 0x01
	opMotor2Forward   byte = 0x04
	opMotor2Backwards byte = 0x05
)

func opcode(channel int, forward bool) (byte, error) {
	switch channel {
	case 1:
		if forward {
			return opMotor1Forward, nil
		}
		return opMotor1Backwards, nil
	case 2:
		if forward {
			return opMotor2Forward, nil
		}
		return opMotor2Backwards, nil
	default:
		return 0, actuator.NewInvalidChannelError(channel)
	}
}

// newPacket returns address, opcode, data and a 7 bit checksum.
func newPacket(address, op, data byte) []byte {
	checksum := (address + op + data) & 0x7F
	return []byte{address, op, data, checksum}
}
