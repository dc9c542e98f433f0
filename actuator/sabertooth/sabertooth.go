// Package sabertooth drives wheel motors through Dimension Engineering
// Sabertooth controllers in packetized serial mode. Two motors share each
// controller and several controllers can share one serial line.
package sabertooth

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/multierr"

	"xdrive/actuator"
)

// Config describes one motor channel.
type Config struct {
	// path to /dev/ttyXXXX file
	SerialPath string `json:"serial_path"`

	BaudRate int `json:"serial_baud_rate,omitempty"`

	// Valid values are 128-135
	SerialAddress int `json:"serial_address"`

	// Valid values are 1/2
	MotorChannel int `json:"motor_channel"`

	// Flip the direction of the signal sent to the controller.
	DirectionFlip bool `json:"dir_flip,omitempty"`

	// Free-running wheel speed at full power, used for an open-loop velocity
	// estimate. 0 means velocity is not reported.
	MaxRPM float64 `json:"max_rpm,omitempty"`

	// TestChan is a fake "serial" path for test use only
	TestChan chan []byte `json:"-"`
}

var validBaudRates = []int{115200, 38400, 19200, 9600, 2400}

const defaultBaudRate = 9600

func (cfg *Config) populateDefaults() {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
}

func (cfg *Config) validateValues() error {
	errs := make([]string, 0)
	if cfg.SerialPath == "" {
		errs = append(errs, "serial_path is required")
	}
	if cfg.MotorChannel != 1 && cfg.MotorChannel != 2 {
		errs = append(errs, fmt.Sprintf("invalid channel %v, acceptable values are 1 and 2", cfg.MotorChannel))
	}
	if cfg.SerialAddress < 128 || cfg.SerialAddress > 135 {
		errs = append(errs, "invalid address, acceptable values are 128 thru 135")
	}
	validBaud := false
	for _, b := range validBaudRates {
		if b == cfg.BaudRate {
			validBaud = true
		}
	}
	if !validBaud {
		errs = append(errs, fmt.Sprintf("invalid baud_rate, acceptable values are %v", validBaudRates))
	}
	if cfg.MaxRPM < 0 {
		errs = append(errs, "invalid max_rpm, must not be negative")
	}
	if len(errs) > 0 {
		return errors.Errorf("error validating sabertooth controller config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// controllers is global to all motors, keyed by serial device.
var (
	globalMu    sync.Mutex
	controllers = map[string]*controller{}
)

var openPort = func(path string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(path, mode)
}

// controller is one serial line, shared by every motor on it.
type controller struct {
	mu           sync.Mutex
	port         io.WriteCloser
	testChan     chan []byte
	serialDevice string
	// channels claimed on this line, keyed by address and channel
	active map[[2]int]bool
}

func newController(cfg *Config) (*controller, error) {
	ctrl := &controller{
		serialDevice: cfg.SerialPath,
		active:       map[[2]int]bool{},
	}
	if cfg.TestChan != nil {
		ctrl.testChan = cfg.TestChan
		return ctrl, nil
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(cfg.SerialPath, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", cfg.SerialPath)
	}
	ctrl.port = port
	return ctrl, nil
}

// send must be called with c.mu held.
func (c *controller) send(packet []byte) error {
	if c.testChan != nil {
		c.testChan <- packet
		return nil
	}
	_, err := c.port.Write(packet)
	return err
}

var _ actuator.Driver = &Motor{}

// A Motor is one channel of a Sabertooth controller.
type Motor struct {
	c       *controller
	logger  golog.Logger
	address int
	channel int
	dirFlip bool
	maxRPM  float64

	mu      sync.Mutex
	voltage float64
	closed  bool
}

// NewMotor claims the configured channel and stops it.
func NewMotor(cfg Config, logger golog.Logger) (*Motor, error) {
	cfg.populateDefaults()
	if err := cfg.validateValues(); err != nil {
		return nil, err
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	// a new controller is only registered once its first motor is stopped
	ctrl, registered := controllers[cfg.SerialPath]
	if !registered {
		newCtrl, err := newController(&cfg)
		if err != nil {
			return nil, err
		}
		ctrl = newCtrl
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	axis := [2]int{cfg.SerialAddress, cfg.MotorChannel}
	if ctrl.active[axis] {
		return nil, errors.Errorf("sabertooth %d channel %d is already in use", cfg.SerialAddress, cfg.MotorChannel)
	}

	m := &Motor{
		c:       ctrl,
		logger:  logger,
		address: cfg.SerialAddress,
		channel: cfg.MotorChannel,
		dirFlip: cfg.DirectionFlip,
		maxRPM:  cfg.MaxRPM,
	}
	packet, err := m.packet(0)
	if err == nil {
		err = errors.Wrap(ctrl.send(packet), "stopping sabertooth motor")
	}
	if err != nil {
		if !registered && ctrl.port != nil {
			err = multierr.Combine(err, errors.Wrap(ctrl.port.Close(), "closing serial connection"))
		}
		return nil, err
	}
	ctrl.active[axis] = true
	controllers[cfg.SerialPath] = ctrl
	return m, nil
}

// SetVoltage drives the motor at |v|/127 of full power in the direction of v.
func (m *Motor) SetVoltage(ctx context.Context, v float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v = actuator.Clamp(v)
	packet, err := m.packet(v)
	if err != nil {
		return err
	}

	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	if err := m.c.send(packet); err != nil {
		return errors.Wrapf(err, "writing to %s", m.c.serialDevice)
	}
	m.mu.Lock()
	m.voltage = v
	m.mu.Unlock()
	return nil
}

// Temperature is not reported by the controller.
func (m *Motor) Temperature(ctx context.Context) (float64, error) {
	return actuator.TemperatureUnknown, actuator.ErrUnsupported
}

// Velocity estimates the wheel speed from the commanded power. The controller
// has no feedback, so this may not reflect reality.
func (m *Motor) Velocity(ctx context.Context) (float64, error) {
	if m.maxRPM == 0 {
		return 0, actuator.ErrUnsupported
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voltage / actuator.MaxVoltage * m.maxRPM, nil
}

// Close stops the motor and releases its channel. The serial port is closed
// with the last channel on it.
func (m *Motor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	packet, err := m.packet(0)
	if err == nil {
		err = m.c.send(packet)
	}
	if err != nil {
		m.logger.Errorw("failed to stop sabertooth motor", "address", m.address, "channel", m.channel, "error", err)
	}

	delete(m.c.active, [2]int{m.address, m.channel})
	if len(m.c.active) > 0 {
		return nil
	}
	delete(controllers, m.c.serialDevice)
	if m.c.port != nil {
		return errors.Wrap(m.c.port.Close(), "closing serial connection")
	}
	return nil
}

func (m *Motor) packet(v float64) ([]byte, error) {
	forward := v >= 0
	if m.dirFlip {
		forward = !forward
	}
	speed := byte(math.Min(math.Abs(v), actuator.MaxVoltage))
	op, err := opcode(m.channel, forward)
	if err != nil {
		return nil, err
	}
	return newPacket(byte(m.address), op, speed), nil
}
