// Package fake implements an in-memory wheel motor driver.
package fake

import (
	"context"
	"sync"

	"xdrive/actuator"
)

const (
	defaultMaxRPM      = 200
	defaultTemperature = 25.0
)

var _ actuator.Driver = &Motor{}

// A Motor records commanded voltages and, unless a velocity has been pinned
// with SetVelocity, reports a velocity proportional to the last voltage.
type Motor struct {
	Name   string
	MaxRPM float64

	mu           sync.Mutex
	voltage      float64
	history      []float64
	velocity     float64
	pinned       bool
	temperature  float64
	tempSet      bool
	noTempSensor bool
	disconnected bool
	hang         bool
	panics       bool
	closed       bool
}

// NewMotor returns a connected fake motor.
func NewMotor(name string, maxRPM float64) *Motor {
	if maxRPM <= 0 {
		maxRPM = defaultMaxRPM
	}
	return &Motor{Name: name, MaxRPM: maxRPM}
}

// SetVoltage records v.
func (m *Motor) SetVoltage(ctx context.Context, v float64) error {
	if err := m.fault(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voltage = v
	m.history = append(m.history, v)
	return nil
}

// Temperature returns the configured temperature.
func (m *Motor) Temperature(ctx context.Context) (float64, error) {
	if err := m.fault(ctx); err != nil {
		return actuator.TemperatureUnknown, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noTempSensor {
		return actuator.TemperatureUnknown, actuator.ErrUnsupported
	}
	if !m.tempSet {
		return defaultTemperature, nil
	}
	return m.temperature, nil
}

// Velocity returns the pinned velocity, or the free-running velocity for the
// last voltage.
func (m *Motor) Velocity(ctx context.Context) (float64, error) {
	if err := m.fault(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned {
		return m.velocity, nil
	}
	return m.voltage / actuator.MaxVoltage * m.MaxRPM, nil
}

// Close marks the motor closed.
func (m *Motor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Voltage returns the last voltage received.
func (m *Motor) Voltage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voltage
}

// History returns every voltage received, oldest first.
func (m *Motor) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.history))
	copy(out, m.history)
	return out
}

// SetVelocity pins the reported velocity to rpm.
func (m *Motor) SetVelocity(rpm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.velocity = rpm
	m.pinned = true
}

// ReleaseVelocity makes the reported velocity follow the voltage again.
func (m *Motor) ReleaseVelocity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = false
}

// SetTemperature sets the reported temperature.
func (m *Motor) SetTemperature(celsius float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = celsius
	m.tempSet = true
}

// RemoveTemperatureSensor makes Temperature report actuator.ErrUnsupported.
func (m *Motor) RemoveTemperatureSensor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noTempSensor = true
}

// SetConnected simulates unplugging or replugging the motor.
func (m *Motor) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = !connected
}

// SetHang makes every call block until its context expires.
func (m *Motor) SetHang(hang bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang = hang
}

// SetPanics makes every call panic.
func (m *Motor) SetPanics(panics bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = panics
}

// Closed reports whether Close was called.
func (m *Motor) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Motor) fault(ctx context.Context) error {
	m.mu.Lock()
	disconnected, hang, panics := m.disconnected, m.hang, m.panics
	m.mu.Unlock()

	if panics {
		panic("fake motor " + m.Name + " exploded")
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if disconnected {
		return actuator.ErrDisconnected
	}
	return nil
}
