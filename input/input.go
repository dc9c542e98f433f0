// Package input defines the motion input polled by the control loop once per tick.
package input

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FullScale is the magnitude of a fully deflected analog axis.
const FullScale = 127.0

// A Reading is one poll of a motion input device. Axes are in
// [-FullScale, FullScale]; Y is positive forward and Rotation is positive
// clockwise.
type Reading struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`

	Up    bool `json:"up,omitempty"`
	Down  bool `json:"down,omitempty"`
	Left  bool `json:"left,omitempty"`
	Right bool `json:"right,omitempty"`
}

// AnyDirection reports whether any directional trigger is held.
func (r Reading) AnyDirection() bool {
	return r.Up || r.Down || r.Left || r.Right
}

// A Source is polled once per control tick.
type Source interface {
	Poll(ctx context.Context) (Reading, error)
}

// Idle is a Source that always reports a centered device.
type Idle struct{}

// Poll returns the zero Reading.
func (Idle) Poll(context.Context) (Reading, error) {
	return Reading{}, nil
}

// A Script replays a fixed list of readings, one per poll, and then keeps
// returning the zero Reading.
type Script struct {
	mu       sync.Mutex
	readings []Reading
	next     int
}

// NewScript returns a Script over readings.
func NewScript(readings ...Reading) *Script {
	return &Script{readings: readings}
}

// LoadScript reads a JSON array of readings from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input script %q", path)
	}
	var readings []Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, errors.Wrapf(err, "parsing input script %q", path)
	}
	return NewScript(readings...), nil
}

// Poll returns the next scripted reading.
func (s *Script) Poll(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.readings) {
		return Reading{}, nil
	}
	r := s.readings[s.next]
	s.next++
	return r, nil
}

// Done reports whether every scripted reading has been returned.
func (s *Script) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next >= len(s.readings)
}
