// Package canmotor drives wheel controllers that take per-wheel speed commands
// over a CAN bus and broadcast wheel speed and temperature telemetry.
package canmotor

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"
	"golang.org/x/sys/unix"

	"xdrive/chassis"
)

// DefaultStaleAfter is how long a telemetry value stays valid without a refresh.
const DefaultStaleAfter = 500 * time.Millisecond

const (
	telemSpeed       = "speed"
	telemTemperature = "temperature"
)

// socket is the subset of *canbus.Socket the bus uses.
type socket interface {
	Send(frame canbus.Frame) (int, error)
	Recv() (canbus.Frame, error)
	Close() error
}

type telemValue struct {
	value float64
	at    time.Time
}

// A Bus owns the CAN sockets shared by the four wheel controllers and keeps the
// latest telemetry they broadcast.
type Bus struct {
	channel    string
	tx         socket
	rx         socket
	logger     golog.Logger
	staleAfter time.Duration
	now        func() time.Time

	txMu sync.Mutex

	telemetryLock sync.RWMutex
	telemetry     map[string]telemValue

	activeBackgroundWorkers sync.WaitGroup
	cancel                  func()
	closeOnce               sync.Once
}

// Open binds a transmit and a filtered receive socket to channel (for example
// "can0") and starts the telemetry receive thread.
func Open(channel string, logger golog.Logger) (*Bus, error) {
	socketSend, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "creating CAN TX socket")
	}
	if err := socketSend.Bind(channel); err != nil {
		return nil, errors.Wrapf(err, "binding CAN TX socket to %q", channel)
	}

	socketRecv, err := canbus.New()
	if err != nil {
		socketSend.Close()
		return nil, errors.Wrap(err, "creating CAN RX socket")
	}
	err = socketRecv.SetFilters([]unix.CanFilter{
		{Id: kCanIDTelemWheelSpeed, Mask: unix.CAN_SFF_MASK},
		{Id: kCanIDTelemTemperature, Mask: unix.CAN_SFF_MASK},
	})
	if err != nil {
		socketSend.Close()
		socketRecv.Close()
		return nil, errors.Wrap(err, "setting CAN RX filters")
	}
	if err := socketRecv.Bind(channel); err != nil {
		socketSend.Close()
		socketRecv.Close()
		return nil, errors.Wrapf(err, "binding CAN RX socket to %q", channel)
	}

	return newBus(channel, socketSend, socketRecv, logger), nil
}

func newBus(channel string, tx, rx socket, logger golog.Logger) *Bus {
	cancelCtx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		channel:    channel,
		tx:         tx,
		rx:         rx,
		logger:     logger,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		telemetry:  map[string]telemValue{},
		cancel:     cancel,
	}

	b.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		b.receiveThread(cancelCtx)
	}, b.activeBackgroundWorkers.Done)
	return b
}

// Channel returns the CAN interface name.
func (b *Bus) Channel() string {
	return b.channel
}

// Motor returns the driver for the wheel at position, addressed by canID.
// maxRPM is the wheel speed commanded at full voltage.
func (b *Bus) Motor(position chassis.WheelPosition, canID uint32, maxRPM float64) *Motor {
	return &Motor{bus: b, position: position, canID: canID, maxRPM: maxRPM}
}

// Close stops the receive thread and closes both sockets.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		// closing rx unblocks a pending Recv
		err = b.rx.Close()
		b.activeBackgroundWorkers.Wait()
		b.txMu.Lock()
		defer b.txMu.Unlock()
		if txErr := b.tx.Close(); err == nil {
			err = txErr
		}
	})
	return err
}

func (b *Bus) send(ctx context.Context, frame canbus.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.txMu.Lock()
	defer b.txMu.Unlock()
	if _, err := b.tx.Send(frame); err != nil {
		return errors.Wrapf(err, "CAN TX to 0x%X", frame.ID)
	}
	return nil
}

func telemKey(kind string, position chassis.WheelPosition) string {
	return kind + "_" + position.String()
}

func (b *Bus) telemSet(key string, value float64) {
	b.telemetryLock.Lock()
	defer b.telemetryLock.Unlock()
	b.telemetry[key] = telemValue{value: value, at: b.now()}
}

// telemGet returns the latest value for key, or ErrNoFeedback when it was never
// received or has gone stale.
func (b *Bus) telemGet(key string) (float64, error) {
	b.telemetryLock.RLock()
	v, ok := b.telemetry[key]
	b.telemetryLock.RUnlock()
	if !ok {
		return 0, errors.Wrapf(errNoTelemetry, "%s on %s", key, b.channel)
	}
	if age := b.now().Sub(v.at); age > b.staleAfter {
		return 0, errors.Wrapf(errNoTelemetry, "%s on %s is %s old", key, b.channel, age)
	}
	return v.value, nil
}

// receiveThread receives telemetry frames until the bus is closed.
func (b *Bus) receiveThread(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := b.rx.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Errorw("CAN Rx error", "error", err)
			if !viamutils.SelectContextOrWait(ctx, 10*time.Millisecond) {
				return
			}
			continue
		}
		b.handleFrame(frame)
	}
}

func (b *Bus) handleFrame(frame canbus.Frame) {
	var signals [4]signal
	var kind string
	switch frame.ID {
	case kCanIDTelemWheelSpeed:
		kind = telemSpeed
		signals = [4]signal{
			chassis.FrontLeft:  signalWheelSpeedFrontLeft,
			chassis.FrontRight: signalWheelSpeedFrontRight,
			chassis.BackLeft:   signalWheelSpeedRearLeft,
			chassis.BackRight:  signalWheelSpeedRearRight,
		}
	case kCanIDTelemTemperature:
		kind = telemTemperature
		signals = [4]signal{
			chassis.FrontLeft:  signalTemperatureFrontLeft,
			chassis.FrontRight: signalTemperatureFrontRight,
			chassis.BackLeft:   signalTemperatureRearLeft,
			chassis.BackRight:  signalTemperatureRearRight,
		}
	default:
		return
	}

	for _, p := range chassis.Positions {
		value, ok := extract(frame.Data, signals[p])
		if !ok {
			b.logger.Warnw("short CAN telemetry frame", "id", frame.ID, "len", len(frame.Data))
			return
		}
		b.telemSet(telemKey(kind, p), float64(value))
	}
}
