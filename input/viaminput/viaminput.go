// Package viaminput adapts a viam input controller (gamepad, web gamepad) to an
// input.Source.
package viaminput

import (
	"context"
	"math"

	"github.com/pkg/errors"
	rdkinput "go.viam.com/rdk/components/input"

	"xdrive/input"
)

// EventReader is the part of a viam input controller the adapter reads.
type EventReader interface {
	Events(ctx context.Context, extra map[string]interface{}) (map[rdkinput.Control]rdkinput.Event, error)
}

// Mapping names the controls read for each part of a Reading.
type Mapping struct {
	X        rdkinput.Control
	Y        rdkinput.Control
	Rotation rdkinput.Control
	HatX     rdkinput.Control
	HatY     rdkinput.Control
}

// DefaultMapping drives with the left stick, rotates with the right stick and
// uses the d-pad for the directional triggers.
var DefaultMapping = Mapping{
	X:        rdkinput.AbsoluteX,
	Y:        rdkinput.AbsoluteY,
	Rotation: rdkinput.AbsoluteRX,
	HatX:     rdkinput.AbsoluteHat0X,
	HatY:     rdkinput.AbsoluteHat0Y,
}

// hatThreshold is how far a hat axis must be pushed to count as pressed.
const hatThreshold = 0.5

// Source polls a controller's latest events once per tick.
type Source struct {
	controller EventReader
	mapping    Mapping
}

var _ input.Source = &Source{}

// New returns a Source reading controller with DefaultMapping.
func New(controller EventReader) *Source {
	return NewWithMapping(controller, DefaultMapping)
}

// NewWithMapping returns a Source reading the given controls.
func NewWithMapping(controller EventReader, mapping Mapping) *Source {
	return &Source{controller: controller, mapping: mapping}
}

// Poll scales the controller's axes to the 127 input range. Controller axes
// report up as negative, so Y is inverted.
func (s *Source) Poll(ctx context.Context) (input.Reading, error) {
	events, err := s.controller.Events(ctx, nil)
	if err != nil {
		return input.Reading{}, errors.Wrap(err, "reading input controller events")
	}

	value := func(c rdkinput.Control) float64 {
		ev, ok := events[c]
		if !ok || ev.Event == rdkinput.Disconnect {
			return 0
		}
		return math.Max(-1, math.Min(1, ev.Value))
	}

	hatX := value(s.mapping.HatX)
	hatY := value(s.mapping.HatY)
	return input.Reading{
		X:        input.FullScale * value(s.mapping.X),
		Y:        -input.FullScale * value(s.mapping.Y),
		Rotation: input.FullScale * value(s.mapping.Rotation),
		Up:       hatY <= -hatThreshold,
		Down:     hatY >= hatThreshold,
		Left:     hatX <= -hatThreshold,
		Right:    hatX >= hatThreshold,
	}, nil
}
