// Package sim provides a simulation terminal for tests: the real tcell
// backend running against tcell's in-memory SimulationScreen, with helpers
// to inject input and capture what was presented.
package sim

import (
	"strings"
	"sync"

	tcellv2 "github.com/gdamore/tcell/v2"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/backend/tcell"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
)

// Backend is a testable terminal.
type Backend struct {
	*tcell.Backend
	screen tcellv2.SimulationScreen

	mu       sync.Mutex
	presents int
}

// New creates a simulation terminal with the given dimensions.
func New(width, height int) *Backend {
	screen := tcellv2.NewSimulationScreen("")
	screen.SetSize(width, height)
	return &Backend{
		Backend: tcell.NewWithScreen(screen),
		screen:  screen,
	}
}

// Init initializes the screen and re-applies the configured size, which the
// simulation screen resets during Init.
func (s *Backend) Init() error {
	w, h := s.screen.Size()
	if err := s.Backend.Init(); err != nil {
		return err
	}
	if w > 0 && h > 0 {
		s.screen.SetSize(w, h)
	}
	return nil
}

// Present forwards to the tcell backend and counts successful presentations.
func (s *Backend) Present(frame backend.Surface) error {
	if err := s.Backend.Present(frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
	return nil
}

// Presents returns how many frames have been presented.
func (s *Backend) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// InjectKey posts a special key press.
func (s *Backend) InjectKey(key terminal.Key) {
	if k, ok := reverseKeys[key]; ok {
		s.screen.PostEvent(tcellv2.NewEventKey(k, 0, tcellv2.ModNone))
	}
}

// InjectKeyRune posts a character key press.
func (s *Backend) InjectKeyRune(r rune) {
	s.screen.PostEvent(tcellv2.NewEventKey(tcellv2.KeyRune, r, tcellv2.ModNone))
}

// InjectKeyString posts each rune of str as a key press.
func (s *Backend) InjectKeyString(str string) {
	for _, r := range str {
		s.InjectKeyRune(r)
	}
}

// InjectResize resizes the screen and posts the matching event.
func (s *Backend) InjectResize(width, height int) {
	s.screen.SetSize(width, height)
	s.screen.PostEvent(tcellv2.NewEventResize(width, height))
}

// Capture returns the current screen content, one line per row.
func (s *Backend) Capture() string {
	w, h := s.screen.Size()
	return s.CaptureRegion(0, 0, w, h)
}

// CaptureRegion returns a rectangular region of the screen.
func (s *Backend) CaptureRegion(x, y, w, h int) string {
	lines := make([]string, 0, h)
	for row := y; row < y+h; row++ {
		var line strings.Builder
		for col := x; col < x+w; col++ {
			mainc, comb, _, _ := s.screen.GetContent(col, row)
			if mainc == 0 {
				mainc = ' '
			}
			line.WriteRune(mainc)
			for _, c := range comb {
				line.WriteRune(c)
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// ContainsText reports whether text appears anywhere on screen.
func (s *Backend) ContainsText(text string) bool {
	x, _ := s.FindText(text)
	return x >= 0
}

// FindText returns the position of the first occurrence of text, or -1, -1.
func (s *Backend) FindText(text string) (x, y int) {
	for row, line := range strings.Split(s.Capture(), "\n") {
		if col := strings.Index(line, text); col >= 0 {
			return len([]rune(line[:col])), row
		}
	}
	return -1, -1
}

var reverseKeys = map[terminal.Key]tcellv2.Key{
	terminal.KeyEnter:     tcellv2.KeyEnter,
	terminal.KeyBackspace: tcellv2.KeyBackspace2,
	terminal.KeyTab:       tcellv2.KeyTab,
	terminal.KeyBacktab:   tcellv2.KeyBacktab,
	terminal.KeyEscape:    tcellv2.KeyEscape,
	terminal.KeyUp:        tcellv2.KeyUp,
	terminal.KeyDown:      tcellv2.KeyDown,
	terminal.KeyLeft:      tcellv2.KeyLeft,
	terminal.KeyRight:     tcellv2.KeyRight,
	terminal.KeyHome:      tcellv2.KeyHome,
	terminal.KeyEnd:       tcellv2.KeyEnd,
	terminal.KeyPageUp:    tcellv2.KeyPgUp,
	terminal.KeyPageDown:  tcellv2.KeyPgDn,
	terminal.KeyDelete:    tcellv2.KeyDelete,
	terminal.KeyCtrlC:     tcellv2.KeyCtrlC,
	terminal.KeyCtrlL:     tcellv2.KeyCtrlL,
	terminal.KeyCtrlS:     tcellv2.KeyCtrlS,
	terminal.KeyCtrlT:     tcellv2.KeyCtrlT,
	terminal.KeyCtrlU:     tcellv2.KeyCtrlU,
}

var _ backend.Terminal = (*Backend)(nil)
