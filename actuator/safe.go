package actuator

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// DefaultIOTimeout bounds every hardware call made by a SafeMotor.
const DefaultIOTimeout = 20 * time.Millisecond

// SafeMotor adapts a Driver to the Actuator contract. Driver errors, panics and
// timeouts are logged once per fault transition and replaced by safe values.
type SafeMotor struct {
	name      string
	driver    Driver
	logger    golog.Logger
	ioTimeout time.Duration

	// voltage is forced to zero while the last temperature read is at or above this; 0 disables
	maxTemperature float64

	mu          sync.Mutex
	faulted     bool
	faults      map[string]bool
	overheated  bool
	lastVoltage float64

	// driver calls abandoned at the timeout that have not returned yet
	stuck int
}

var _ Actuator = &SafeMotor{}

// Option configures a SafeMotor.
type Option func(*SafeMotor)

// WithIOTimeout overrides DefaultIOTimeout.
func WithIOTimeout(d time.Duration) Option {
	return func(m *SafeMotor) {
		if d > 0 {
			m.ioTimeout = d
		}
	}
}

// WithMaxTemperature enables the over-temperature cutoff.
func WithMaxTemperature(celsius float64) Option {
	return func(m *SafeMotor) {
		m.maxTemperature = celsius
	}
}

// NewSafeMotor wraps driver. A nil driver is allowed and behaves as a
// permanently disconnected motor.
func NewSafeMotor(name string, driver Driver, logger golog.Logger, opts ...Option) *SafeMotor {
	m := &SafeMotor{
		name:      name,
		driver:    driver,
		logger:    logger,
		ioTimeout: DefaultIOTimeout,
		faults:    map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the motor name used in logs.
func (m *SafeMotor) Name() string {
	return m.name
}

// SetVoltage clamps v and sends it to the driver.
func (m *SafeMotor) SetVoltage(v float64) {
	v = Clamp(v)

	m.mu.Lock()
	if m.overheated && v != 0 {
		v = 0
	}
	m.lastVoltage = v
	m.mu.Unlock()

	err := m.call(func(ctx context.Context) error {
		return m.driver.SetVoltage(ctx, v)
	})
	m.record("set voltage", err)
}

// Voltage returns the last voltage actually commanded.
func (m *SafeMotor) Voltage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastVoltage
}

// Temperature returns the driver temperature or TemperatureUnknown.
func (m *SafeMotor) Temperature() float64 {
	temp := TemperatureUnknown
	err := m.call(func(ctx context.Context) error {
		t, err := m.driver.Temperature(ctx)
		if err != nil {
			return err
		}
		temp = t
		return nil
	})
	m.record("read temperature", err)
	if err != nil {
		return TemperatureUnknown
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxTemperature > 0 {
		hot := temp >= m.maxTemperature
		if hot && !m.overheated {
			m.logger.Warnw("motor over temperature, cutting voltage", "motor", m.name, "temperature", temp, "limit", m.maxTemperature)
		} else if !hot && m.overheated {
			m.logger.Infow("motor back under temperature limit", "motor", m.name, "temperature", temp)
		}
		m.overheated = hot
	}
	return temp
}

// ActualVelocity returns the driver velocity in rpm, or 0 on any fault.
func (m *SafeMotor) ActualVelocity() float64 {
	var velocity float64
	err := m.call(func(ctx context.Context) error {
		v, err := m.driver.Velocity(ctx)
		if err != nil {
			return err
		}
		velocity = v
		return nil
	})
	m.record("read velocity", err)
	if err != nil {
		return 0
	}
	return velocity
}

// Faulted reports whether the most recent driver call failed.
func (m *SafeMotor) Faulted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faulted
}

// Close closes the underlying driver.
func (m *SafeMotor) Close() error {
	if m.driver == nil {
		return nil
	}
	return m.driver.Close()
}

// call runs fn against the driver under the I/O timeout. A driver that ignores
// its context is abandoned once the timeout passes, and no further calls reach
// the driver until the abandoned one returns.
func (m *SafeMotor) call(fn func(ctx context.Context) error) error {
	if m.driver == nil {
		return ErrDisconnected
	}
	m.mu.Lock()
	if m.stuck > 0 {
		m.mu.Unlock()
		return errors.Wrap(ErrNoFeedback, "earlier motor I/O still blocked")
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.ioTimeout)
	defer cancel()

	// both guarded by m.mu
	var finished, abandoned bool
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("driver panic: %v", r)
			}
			m.mu.Lock()
			finished = true
			if abandoned {
				m.stuck--
			}
			m.mu.Unlock()
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		m.mu.Lock()
		if !finished {
			abandoned = true
			m.stuck++
		}
		m.mu.Unlock()
		return errors.Wrap(ctx.Err(), "motor I/O timed out")
	}
}

// record tracks faults per operation so a motor that can be written but not
// read logs once rather than on every tick.
func (m *SafeMotor) record(op string, err error) {
	if errors.Is(err, ErrUnsupported) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faulted = err != nil
	if err != nil {
		if !m.faults[op] {
			m.logger.Errorw("motor fault", "motor", m.name, "op", op, "error", err)
		}
		m.faults[op] = true
		return
	}
	if m.faults[op] {
		m.logger.Infow("motor recovered", "motor", m.name, "op", op)
	}
	m.faults[op] = false
}
