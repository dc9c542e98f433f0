package display

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

type areaPrinter interface {
	Update(text ...interface{})
	Stop() error
}

type areaFactory func() (areaPrinter, error)

var defaultAreaFactory areaFactory = func() (areaPrinter, error) {
	area, err := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
	if err != nil {
		return nil, err
	}
	return area, nil
}

// Terminal redraws all lines in place in a terminal area.
type Terminal struct {
	mu    sync.Mutex
	area  areaPrinter
	lines []string
}

// NewTerminal starts a terminal area. Call Close to release it.
func NewTerminal() (*Terminal, error) {
	return newTerminal(defaultAreaFactory)
}

func newTerminal(factory areaFactory) (*Terminal, error) {
	area, err := factory()
	if err != nil {
		return nil, errors.Wrap(err, "starting terminal display")
	}
	return &Terminal{area: area, lines: make([]string, NumLines)}, nil
}

// SetText replaces line and redraws the area. Lines past the end grow it.
func (t *Terminal) SetText(line int, text string) {
	if line < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.lines) <= line {
		t.lines = append(t.lines, "")
	}
	if t.lines[line] == text {
		return
	}
	t.lines[line] = text
	t.area.Update(strings.Join(t.lines, "\n"))
}

// Close stops redrawing; the last frame stays on screen.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.area.Stop()
}
