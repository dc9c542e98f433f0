// Package config loads and validates the robot configuration: chassis geometry,
// the driver behind each wheel and the optional CAN bus and MQTT settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"xdrive/actuator"
	"xdrive/chassis"
)

// Wheel driver kinds.
const (
	DriverCAN        = "can"
	DriverSabertooth = "sabertooth"
	DriverFake       = "fake"
)

// Display kinds.
const (
	DisplayTerminal = "terminal"
	DisplayLog      = "log"
	DisplayNone     = "none"
)

const (
	defaultMaxRPM      = 200.0
	defaultMQTTTopic   = "xdrive/telemetry"
	defaultMQTTClient  = "xdrive"
	defaultCANChannel  = "can0"
	defaultSerialBaud  = 9600
	defaultSerialAddr  = 128
	defaultDisplayKind = DisplayLog
)

// Config is the whole robot configuration.
type Config struct {
	// flattened for both encoding/json and the viam attribute decoder
	chassis.Geometry `json:",squash"`

	// rotation axis magnitude treated as no input
	Deadband float64 `json:"deadband,omitempty"`

	IOTimeoutMs     int     `json:"io_timeout_ms,omitempty"`
	MaxTemperatureC float64 `json:"max_temperature_c,omitempty"`
	Display         string  `json:"display,omitempty"`

	// name of an input controller resource to drive from when running as a module
	InputController string `json:"input_controller,omitempty"`

	Wheels Wheels      `json:"wheels"`
	CAN    *CANConfig  `json:"can,omitempty"`
	MQTT   *MQTTConfig `json:"mqtt,omitempty"`
}

// Wheels configures the motor behind each wheel position.
type Wheels struct {
	FrontLeft  Wheel `json:"front_left"`
	FrontRight Wheel `json:"front_right"`
	BackLeft   Wheel `json:"back_left"`
	BackRight  Wheel `json:"back_right"`
}

// At returns the wheel configured at p.
func (w *Wheels) At(p chassis.WheelPosition) *Wheel {
	switch p {
	case chassis.FrontLeft:
		return &w.FrontLeft
	case chassis.FrontRight:
		return &w.FrontRight
	case chassis.BackLeft:
		return &w.BackLeft
	default:
		return &w.BackRight
	}
}

// Wheel configures a single wheel motor.
type Wheel struct {
	Driver string `json:"driver"`

	// +1 or -1; converts motor rotation into chassis-forward rotation.
	// 0 selects the position default.
	Sign float64 `json:"sign,omitempty"`

	// free-running wheel speed at full voltage
	MaxRPM float64 `json:"max_rpm,omitempty"`

	// can; 0 selects the controller's factory address for the position
	CanID uint32 `json:"can_id,omitempty"`

	// sabertooth
	SerialPath    string `json:"serial_path,omitempty"`
	SerialAddress int    `json:"serial_address,omitempty"`
	MotorChannel  int    `json:"motor_channel,omitempty"`
	BaudRate      int    `json:"serial_baud_rate,omitempty"`
	DirectionFlip bool   `json:"dir_flip,omitempty"`
}

// CANConfig selects the CAN interface shared by every "can" wheel.
type CANConfig struct {
	Channel string `json:"channel"`
}

// MQTTConfig enables telemetry publishing.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Load reads, defaults and validates the JSON configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading config %q", path)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a JSON configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.PopulateDefaults()
	if _, err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Simulated returns a configuration with fake motors on every wheel.
func Simulated() *Config {
	cfg := &Config{Geometry: chassis.DefaultGeometry()}
	for _, p := range chassis.Positions {
		cfg.Wheels.At(p).Driver = DriverFake
	}
	cfg.PopulateDefaults()
	return cfg
}

// PopulateDefaults fills every optional field left unset.
func (cfg *Config) PopulateDefaults() {
	if cfg.WheelDiameterIn == 0 {
		cfg.WheelDiameterIn = chassis.DefaultWheelDiameterIn
	}
	if cfg.TrackWidthIn == 0 {
		cfg.TrackWidthIn = chassis.DefaultTrackWidthIn
	}
	if cfg.TickMs == 0 {
		cfg.TickMs = chassis.DefaultTickMs
	}
	if cfg.IOTimeoutMs == 0 {
		cfg.IOTimeoutMs = int(actuator.DefaultIOTimeout / time.Millisecond)
	}
	if cfg.Display == "" {
		cfg.Display = defaultDisplayKind
	}

	usesCAN := false
	for _, p := range chassis.Positions {
		w := cfg.Wheels.At(p)
		if w.Sign == 0 {
			w.Sign = p.DefaultSign()
		}
		if w.MaxRPM == 0 {
			w.MaxRPM = defaultMaxRPM
		}
		switch w.Driver {
		case DriverCAN:
			usesCAN = true
		case DriverSabertooth:
			if w.BaudRate == 0 {
				w.BaudRate = defaultSerialBaud
			}
			if w.SerialAddress == 0 {
				w.SerialAddress = defaultSerialAddr
			}
		}
	}
	if usesCAN && cfg.CAN == nil {
		cfg.CAN = &CANConfig{}
	}
	if cfg.CAN != nil && cfg.CAN.Channel == "" {
		cfg.CAN.Channel = defaultCANChannel
	}
	if cfg.MQTT != nil {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = defaultMQTTTopic
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = defaultMQTTClient
		}
	}
}

// Validate ensures all parts of the config are valid. It has the signature of
// a viam resource config validator; the input controller, when set, is the only
// dependency.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.WheelDiameterIn <= 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "wheel_diameter_in")
	}
	if cfg.TrackWidthIn <= 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "track_width_in")
	}
	if cfg.TickMs <= 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "tick_ms")
	}
	if cfg.Deadband < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("deadband cannot be negative"))
	}
	if cfg.IOTimeoutMs < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("io_timeout_ms cannot be negative"))
	}
	switch cfg.Display {
	case "", DisplayTerminal, DisplayLog, DisplayNone:
	default:
		return nil, utils.NewConfigValidationError(path,
			errors.Errorf("display must be one of %s|%s|%s", DisplayTerminal, DisplayLog, DisplayNone))
	}

	wheelsPath := "wheels"
	if path != "" {
		wheelsPath = path + ".wheels"
	}
	for _, p := range chassis.Positions {
		if err := cfg.Wheels.At(p).validate(fmt.Sprintf("%s.%s", wheelsPath, p)); err != nil {
			return nil, err
		}
		if cfg.Wheels.At(p).Driver == DriverCAN && (cfg.CAN == nil || cfg.CAN.Channel == "") {
			return nil, utils.NewConfigValidationFieldRequiredError(path, "can.channel")
		}
	}
	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "mqtt.broker")
	}
	if cfg.InputController != "" {
		return []string{cfg.InputController}, nil
	}
	return nil, nil
}

func (w *Wheel) validate(path string) error {
	switch w.Driver {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "driver")
	case DriverCAN, DriverFake:
	case DriverSabertooth:
		if w.SerialPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "serial_path")
		}
		if w.MotorChannel == 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "motor_channel")
		}
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown driver %q, must be one of %s|%s|%s", w.Driver, DriverCAN, DriverSabertooth, DriverFake))
	}
	if w.Sign != 0 && w.Sign != 1 && w.Sign != -1 {
		return utils.NewConfigValidationError(path, errors.New("sign must be 1 or -1"))
	}
	if w.MaxRPM < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_rpm cannot be negative"))
	}
	return nil
}

// IOTimeout is the bound on every motor call.
func (cfg *Config) IOTimeout() time.Duration {
	return time.Duration(cfg.IOTimeoutMs) * time.Millisecond
}
