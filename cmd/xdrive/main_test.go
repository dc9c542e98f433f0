package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestCheckConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	ctx := context.Background()

	err := mainWithArgs(ctx, []string{"xdrive", "check-config"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "--config")

	test.That(t, mainWithArgs(ctx, []string{"xdrive", "--simulate", "check-config"}, logger), test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "robot.json")
	test.That(t, os.WriteFile(path, []byte(`{"wheels": {"front_left": {"driver": "warp"}}}`), 0o600), test.ShouldBeNil)
	err = mainWithArgs(ctx, []string{"xdrive", "--config", path, "check-config"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "warp")
}

func TestRunSimulated(t *testing.T) {
	logger := golog.NewTestLogger(t)
	script := filepath.Join(t.TempDir(), "script.json")
	test.That(t, os.WriteFile(script, []byte(`[{"y": 127}, {"rotation": 60}, {"up": true}]`), 0o600), test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := mainWithArgs(ctx, []string{"xdrive", "--simulate", "--quiet", "run", "--script", script, "--display", "log"}, logger)
	test.That(t, err, test.ShouldBeNil)

	err = mainWithArgs(context.Background(), []string{"xdrive", "--simulate", "run", "--display", "lcd"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "display")
}

func TestAutonomousInterrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := mainWithArgs(ctx, []string{"xdrive", "--simulate", "autonomous"}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
}
