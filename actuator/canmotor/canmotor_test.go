package canmotor

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"xdrive/actuator"
	"xdrive/chassis"
)

type fakeSocket struct {
	mu     sync.Mutex
	sent   []canbus.Frame
	frames chan canbus.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{frames: make(chan canbus.Frame, 16), closed: make(chan struct{})}
}

func (s *fakeSocket) Send(frame canbus.Frame) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return 0, errors.New("socket closed")
	default:
	}
	s.sent = append(s.sent, frame)
	return len(frame.Data), nil
}

func (s *fakeSocket) Recv() (canbus.Frame, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.closed:
		return canbus.Frame{}, errors.New("socket closed")
	}
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) Sent() []canbus.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]canbus.Frame(nil), s.sent...)
}

func speedFrame(fl, fr, rl, rr float64) canbus.Frame {
	data := make([]byte, 8)
	for i, v := range []float64{fl, fr, rl, rr} {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(int16(v/0.0078125)))
	}
	return canbus.Frame{ID: kCanIDTelemWheelSpeed, Data: data, Kind: canbus.SFF}
}

func TestExtract(t *testing.T) {
	data := []byte{0x00, 0x32, 0x00, 0xCE, 0x80, 0x00, 0xFF, 0xFF}

	v, ok := extract(data, signalWheelSpeedFrontLeft)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, float32(100))

	v, _ = extract(data, signalWheelSpeedFrontRight)
	test.That(t, v, test.ShouldEqual, float32(-100))

	v, _ = extract(data, signalWheelSpeedRearLeft)
	test.That(t, v, test.ShouldEqual, float32(1))

	v, _ = extract(data, signalWheelSpeedRearRight)
	test.That(t, v, test.ShouldEqual, float32(-0.0078125))

	v, _ = extract([]byte{65, 0, 140, 40}, signalTemperatureFrontLeft)
	test.That(t, v, test.ShouldEqual, float32(25))
	v, _ = extract([]byte{65, 0, 140, 40}, signalTemperatureFrontRight)
	test.That(t, v, test.ShouldEqual, float32(-40))
	v, _ = extract([]byte{65, 0, 140, 40}, signalTemperatureRearLeft)
	test.That(t, v, test.ShouldEqual, float32(100))

	_, ok = extract([]byte{1, 2}, signalWheelSpeedRearRight)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestByteMask(t *testing.T) {
	test.That(t, byteMask(0, 0, 15), test.ShouldEqual, uint8(0xFF))
	test.That(t, byteMask(1, 4, 11), test.ShouldEqual, uint8(0x0F))
	test.That(t, byteMask(0, 4, 11), test.ShouldEqual, uint8(0xF0))
	test.That(t, byteMask(0, 2, 5), test.ShouldEqual, uint8(0x3C))
}

func TestCommandFrame(t *testing.T) {
	frame := speedCommand(-100).toFrame(DefaultCanIDFrontLeft)
	test.That(t, frame.ID, test.ShouldEqual, DefaultCanIDFrontLeft)
	test.That(t, frame.Kind, test.ShouldEqual, canbus.EFF)
	test.That(t, len(frame.Data), test.ShouldEqual, 8)

	// enable in the low nibble, speed mode in the high nibble
	test.That(t, frame.Data[0], test.ShouldEqual, byte(0x01))
	// -100 as 12 bits is 0xF9C
	test.That(t, frame.Data[1], test.ShouldEqual, byte(0x9C))
	test.That(t, frame.Data[2], test.ShouldEqual, byte(0x0F|0x50))
	test.That(t, frame.Data[3], test.ShouldEqual, byte(0x00))
	test.That(t, frame.Data[4:], test.ShouldResemble, []byte{0, 0, 0, 0})

	test.That(t, speedCommand(1e6).rpm, test.ShouldEqual, int16(kMaxCommandRPM))
	test.That(t, speedCommand(-1e6).rpm, test.ShouldEqual, int16(-kMaxCommandRPM))
	test.That(t, speedCommand(49.6).rpm, test.ShouldEqual, int16(50))

	frame = disableCommand.toFrame(DefaultCanIDRearLeft)
	test.That(t, frame.Data[0], test.ShouldEqual, byte(0x00))
}

func TestMotorOverBus(t *testing.T) {
	logger := golog.NewTestLogger(t)
	tx, rx := newFakeSocket(), newFakeSocket()
	bus := newBus("vcan0", tx, rx, logger)
	defer bus.Close()

	fl := bus.Motor(chassis.FrontLeft, DefaultCanIDFrontLeft, 200)
	br := bus.Motor(chassis.BackRight, DefaultCanIDRearRight, 200)
	ctx := context.Background()

	test.That(t, fl.SetVoltage(ctx, actuator.MaxVoltage/2), test.ShouldBeNil)
	sent := tx.Sent()
	test.That(t, len(sent), test.ShouldEqual, 1)
	test.That(t, sent[0].ID, test.ShouldEqual, DefaultCanIDFrontLeft)
	test.That(t, sent[0].Data[1], test.ShouldEqual, byte(100))

	_, err := fl.Velocity(ctx)
	test.That(t, errors.Is(err, actuator.ErrNoFeedback), test.ShouldBeTrue)

	rx.frames <- speedFrame(12.5, -3, 0, -40)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		v, err := br.Velocity(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, v, test.ShouldEqual, -40.0)
	})
	v, err := fl.Velocity(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 12.5)

	rx.frames <- canbus.Frame{ID: kCanIDTelemTemperature, Data: []byte{81, 82, 83, 84}}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		temp, err := br.Temperature(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, temp, test.ShouldEqual, 44.0)
	})

	test.That(t, fl.Close(), test.ShouldBeNil)
	sent = tx.Sent()
	test.That(t, sent[len(sent)-1].Data[0], test.ShouldEqual, byte(0x00))
}

func TestStaleTelemetry(t *testing.T) {
	logger := golog.NewTestLogger(t)
	tx, rx := newFakeSocket(), newFakeSocket()
	bus := newBus("vcan0", tx, rx, logger)
	defer bus.Close()

	now := time.Now()
	bus.now = func() time.Time { return now }
	bus.handleFrame(speedFrame(10, 10, 10, 10))

	m := bus.Motor(chassis.FrontRight, DefaultCanIDFrontRight, 200)
	v, err := m.Velocity(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 10.0)

	now = now.Add(time.Second)
	_, err = m.Velocity(context.Background())
	test.That(t, errors.Is(err, actuator.ErrNoFeedback), test.ShouldBeTrue)
}

func TestClosedBus(t *testing.T) {
	logger := golog.NewTestLogger(t)
	tx, rx := newFakeSocket(), newFakeSocket()
	bus := newBus("vcan0", tx, rx, logger)
	test.That(t, bus.Close(), test.ShouldBeNil)
	test.That(t, bus.Close(), test.ShouldBeNil)

	m := bus.Motor(chassis.FrontLeft, DefaultCanIDFrontLeft, 200)
	test.That(t, m.SetVoltage(context.Background(), 10), test.ShouldNotBeNil)
}

func TestDefaultCanID(t *testing.T) {
	test.That(t, DefaultCanID(chassis.FrontLeft), test.ShouldEqual, DefaultCanIDFrontLeft)
	test.That(t, DefaultCanID(chassis.FrontRight), test.ShouldEqual, DefaultCanIDFrontRight)
	test.That(t, DefaultCanID(chassis.BackLeft), test.ShouldEqual, DefaultCanIDRearLeft)
	test.That(t, DefaultCanID(chassis.BackRight), test.ShouldEqual, DefaultCanIDRearRight)
}
