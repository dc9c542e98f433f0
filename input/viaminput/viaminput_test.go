package viaminput

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	rdkinput "go.viam.com/rdk/components/input"
	"go.viam.com/test"

	"xdrive/input"
)

type fakeController struct {
	events map[rdkinput.Control]rdkinput.Event
	err    error
}

func (f *fakeController) Events(ctx context.Context, extra map[string]interface{}) (map[rdkinput.Control]rdkinput.Event, error) {
	return f.events, f.err
}

func axis(c rdkinput.Control, v float64) rdkinput.Event {
	return rdkinput.Event{Event: rdkinput.PositionChangeAbs, Control: c, Value: v}
}

func TestPoll(t *testing.T) {
	ctrl := &fakeController{events: map[rdkinput.Control]rdkinput.Event{
		rdkinput.AbsoluteX:     axis(rdkinput.AbsoluteX, 0.5),
		rdkinput.AbsoluteY:     axis(rdkinput.AbsoluteY, -1),
		rdkinput.AbsoluteRX:    axis(rdkinput.AbsoluteRX, -0.25),
		rdkinput.AbsoluteHat0X: axis(rdkinput.AbsoluteHat0X, 1),
		rdkinput.AbsoluteHat0Y: axis(rdkinput.AbsoluteHat0Y, -1),
	}}
	src := New(ctrl)

	r, err := src.Poll(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, input.Reading{
		X:        63.5,
		Y:        127,
		Rotation: -31.75,
		Up:       true,
		Right:    true,
	})
}

func TestPollClampsAndIgnoresDisconnected(t *testing.T) {
	ctrl := &fakeController{events: map[rdkinput.Control]rdkinput.Event{
		rdkinput.AbsoluteX:     axis(rdkinput.AbsoluteX, 3),
		rdkinput.AbsoluteY:     {Event: rdkinput.Disconnect, Control: rdkinput.AbsoluteY, Value: 1},
		rdkinput.AbsoluteHat0X: axis(rdkinput.AbsoluteHat0X, -0.2),
		rdkinput.AbsoluteHat0Y: axis(rdkinput.AbsoluteHat0Y, 1),
	}}

	r, err := New(ctrl).Poll(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.X, test.ShouldEqual, 127.0)
	test.That(t, r.Y, test.ShouldEqual, 0.0)
	test.That(t, r.Rotation, test.ShouldEqual, 0.0)
	test.That(t, r.Left, test.ShouldBeFalse)
	test.That(t, r.Down, test.ShouldBeTrue)
}

func TestPollCustomMapping(t *testing.T) {
	ctrl := &fakeController{events: map[rdkinput.Control]rdkinput.Event{
		rdkinput.AbsoluteZ: axis(rdkinput.AbsoluteZ, 1),
	}}
	mapping := DefaultMapping
	mapping.Rotation = rdkinput.AbsoluteZ

	r, err := NewWithMapping(ctrl, mapping).Poll(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Rotation, test.ShouldEqual, 127.0)
}

func TestPollError(t *testing.T) {
	ctrl := &fakeController{err: errors.New("gamepad unplugged")}
	_, err := New(ctrl).Poll(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gamepad unplugged")
}
