package input_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"xdrive/input"
)

func TestScript(t *testing.T) {
	ctx := context.Background()
	s := input.NewScript(input.Reading{X: 10}, input.Reading{Up: true})

	r, err := s.Poll(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, input.Reading{X: 10})
	test.That(t, s.Done(), test.ShouldBeFalse)

	r, _ = s.Poll(ctx)
	test.That(t, r.AnyDirection(), test.ShouldBeTrue)
	test.That(t, s.Done(), test.ShouldBeTrue)

	r, err = s.Poll(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, input.Reading{})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Poll(cancelled)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	data := `[{"x": 127, "y": -20}, {"rotation": 40}, {"left": true, "down": true}]`
	test.That(t, os.WriteFile(path, []byte(data), 0o600), test.ShouldBeNil)

	s, err := input.LoadScript(path)
	test.That(t, err, test.ShouldBeNil)

	var got []input.Reading
	for !s.Done() {
		r, err := s.Poll(context.Background())
		test.That(t, err, test.ShouldBeNil)
		got = append(got, r)
	}
	test.That(t, got, test.ShouldResemble, []input.Reading{
		{X: 127, Y: -20},
		{Rotation: 40},
		{Left: true, Down: true},
	})

	test.That(t, os.WriteFile(path, []byte(`{"x": 1}`), 0o600), test.ShouldBeNil)
	_, err = input.LoadScript(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parsing input script")
}

func TestIdle(t *testing.T) {
	r, err := input.Idle{}.Poll(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.AnyDirection(), test.ShouldBeFalse)
	test.That(t, r, test.ShouldResemble, input.Reading{})
}
