// Package display renders robot status as numbered text lines on a write-only
// status display.
package display

import (
	"fmt"
	"sync"

	"github.com/edaniels/golog"

	"xdrive/actuator"
	"xdrive/chassis"
)

// A Display shows numbered lines of text. It is never read back.
type Display interface {
	SetText(line int, text string)
}

// Line numbers used by Show.
const (
	HeadingLine          = 0
	FirstTemperatureLine = 1
	NumLines             = FirstTemperatureLine + len(chassis.Positions)
)

// Status is what the control loop reports each tick.
type Status struct {
	HeadingDegrees float64
	// indexed by chassis.WheelPosition; actuator.TemperatureUnknown when unreachable
	Temperatures [4]float64
}

// Lines formats s, one entry per display line.
func (s Status) Lines() []string {
	lines := make([]string, NumLines)
	lines[HeadingLine] = fmt.Sprintf("Heading: %.1f deg", s.HeadingDegrees)
	for _, p := range chassis.Positions {
		lines[FirstTemperatureLine+int(p)] = fmt.Sprintf("%s Temperature: %s", p.Label(), FormatTemperature(s.Temperatures[p]))
	}
	return lines
}

// FormatTemperature renders a temperature in Celsius or "unknown".
func FormatTemperature(celsius float64) string {
	if actuator.IsUnknown(celsius) {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", celsius)
}

// Show writes every status line to d.
func Show(d Display, s Status) {
	for i, line := range s.Lines() {
		d.SetText(i, line)
	}
}

// Discard drops every line.
type Discard struct{}

// SetText does nothing.
func (Discard) SetText(int, string) {}

// Log writes a line to the logger whenever its text changes.
type Log struct {
	logger golog.Logger

	mu    sync.Mutex
	lines map[int]string
}

// NewLog returns a Log display.
func NewLog(logger golog.Logger) *Log {
	return &Log{logger: logger, lines: map[int]string{}}
}

// SetText logs text if line previously held something else.
func (l *Log) SetText(line int, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.lines[line]; ok && prev == text {
		return
	}
	l.lines[line] = text
	l.logger.Debugw("status", "line", line, "text", text)
}

// Text returns the text last written to line.
func (l *Log) Text(line int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines[line]
}
