package canmotor

import "math"

const kNumBitsPerByte = 8

// signal describes where a scaled value lives in a CAN payload.
type signal struct {
	scale        float32
	offset       float32
	start        uint8 // least significant bit
	length       uint8 // in bits, at most 32
	littleEndian bool
	signed       bool
}

var (
	signalWheelSpeedFrontLeft  = signal{scale: 0.0078125, start: 0, length: 16, littleEndian: true, signed: true}
	signalWheelSpeedFrontRight = signal{scale: 0.0078125, start: 16, length: 16, littleEndian: true, signed: true}
	signalWheelSpeedRearLeft   = signal{scale: 0.0078125, start: 32, length: 16, littleEndian: true, signed: true}
	signalWheelSpeedRearRight  = signal{scale: 0.0078125, start: 48, length: 16, littleEndian: true, signed: true}

	signalTemperatureFrontLeft  = signal{scale: 1, offset: -40, start: 0, length: 8, littleEndian: true}
	signalTemperatureFrontRight = signal{scale: 1, offset: -40, start: 8, length: 8, littleEndian: true}
	signalTemperatureRearLeft   = signal{scale: 1, offset: -40, start: 16, length: 8, littleEndian: true}
	signalTemperatureRearRight  = signal{scale: 1, offset: -40, start: 24, length: 8, littleEndian: true}
)

// byteMask returns the bits of payload byte n that belong to a signal spanning
// bits lsb..msb of the payload.
func byteMask(n, lsb, msb uint8) uint8 {
	byteLsb := int32(n) * kNumBitsPerByte
	byteMsb := (int32(n)+1)*kNumBitsPerByte - 1

	var maskLsb, maskMsb uint8
	if int32(lsb) > byteLsb {
		maskLsb = uint8(int32(lsb) - byteLsb)
	}
	if int32(msb) >= byteMsb {
		maskMsb = kNumBitsPerByte - 1
	} else {
		maskMsb = uint8(int32(msb) - byteLsb)
	}
	return uint8((math.MaxUint8 << (maskMsb + 1)) ^ (math.MaxUint8 << maskLsb))
}

// extract decodes s from data. ok is false when data is too short to hold it.
func extract(data []byte, s signal) (value float32, ok bool) {
	lsb := s.start
	msb := lsb + s.length - 1
	first := lsb / kNumBitsPerByte
	last := msb / kNumBitsPerByte
	if int(last) >= len(data) {
		return 0, false
	}

	var raw uint32
	for i := first; i <= last; i++ {
		shift := last - i
		if s.littleEndian {
			shift = i - first
		}
		raw += (uint32(byteMask(i, lsb, msb)) & uint32(data[i])) << (shift * kNumBitsPerByte)
	}
	raw >>= lsb - kNumBitsPerByte*first

	if !s.signed {
		return float32(raw)*s.scale + s.offset, true
	}
	if s.length < 32 && raw&(1<<(s.length-1)) != 0 {
		raw |= math.MaxUint32 << s.length
	}
	return float32(int32(raw))*s.scale + s.offset, true
}
