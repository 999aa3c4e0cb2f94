// Package tcell provides the terminal backend used on real terminals.
package tcell

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
)

const eventQueueSize = 64

// Backend implements backend.Terminal on top of a tcell screen. A single pump
// goroutine moves tcell events into a buffered channel; Poll is its only
// consumer.
type Backend struct {
	screen tcell.Screen

	events chan tcell.Event
	quit   chan struct{}

	mu       sync.Mutex
	ready    bool
	finished bool
	needSync bool

	// bracketed paste accumulation, touched only by Poll
	inPaste     bool
	pasteBuffer strings.Builder
}

// New creates a backend for the controlling terminal. It fails when no
// terminal is available.
func New() (*Backend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen), nil
}

// NewWithScreen wraps an existing tcell screen (e.g. a simulation screen).
func NewWithScreen(screen tcell.Screen) *Backend {
	return &Backend{
		screen: screen,
		events: make(chan tcell.Event, eventQueueSize),
		quit:   make(chan struct{}),
	}
}

// Screen exposes the wrapped tcell screen.
func (b *Backend) Screen() tcell.Screen {
	return b.screen
}

// Init initializes the screen and starts the input pump.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}
	if err := b.screen.Init(); err != nil {
		return err
	}
	b.screen.EnablePaste()
	b.screen.HideCursor()
	b.screen.Clear()
	b.ready = true

	go b.pump()
	return nil
}

func (b *Backend) pump() {
	defer close(b.events)
	for {
		ev := b.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case b.events <- ev:
		case <-b.quit:
			return
		}
	}
}

// Fini restores the terminal. Calling it more than once is harmless.
func (b *Backend) Fini() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.finished {
		return
	}
	b.finished = true
	close(b.quit)
	b.screen.Fini()
}

// Size returns the terminal dimensions.
func (b *Backend) Size() (width, height int) {
	return b.screen.Size()
}

// Present copies the frame into the screen and flushes it.
func (b *Backend) Present(frame backend.Surface) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.finished {
		return backend.ErrNotInitialized
	}

	sw, sh := b.screen.Size()
	fw, fh := frame.Size()
	w, h := min(sw, fw), min(sh, fh)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, style := frame.Cell(x, y)
			if r == 0 {
				continue
			}
			b.screen.SetContent(x, y, r, nil, convertStyle(style))
		}
	}

	if b.needSync {
		b.needSync = false
		b.screen.Sync()
		return nil
	}
	b.screen.Show()
	return nil
}

// Poll waits up to timeout for the next translated event.
func (b *Backend) Poll(ctx context.Context, timeout time.Duration) (terminal.Event, error) {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case ev, ok := <-b.events:
			if !ok {
				return nil, backend.ErrInputClosed
			}
			if out := b.translate(ev); out != nil {
				return out, nil
			}
		}
	}
}

// translate converts a tcell event, folding bracketed paste into a single
// PasteEvent. It returns nil for events that were absorbed.
func (b *Backend) translate(ev tcell.Event) terminal.Event {
	switch e := ev.(type) {
	case *tcell.EventPaste:
		if e.Start() {
			b.inPaste = true
			b.pasteBuffer.Reset()
			return nil
		}
		b.inPaste = false
		text := b.pasteBuffer.String()
		b.pasteBuffer.Reset()
		if text == "" {
			return nil
		}
		return terminal.PasteEvent{Text: text}
	case *tcell.EventKey:
		if b.inPaste {
			switch e.Key() {
			case tcell.KeyRune:
				b.pasteBuffer.WriteRune(e.Rune())
			case tcell.KeyEnter:
				b.pasteBuffer.WriteRune('\n')
			case tcell.KeyTab:
				b.pasteBuffer.WriteRune('\t')
			}
			return nil
		}
		return convertKeyEvent(e)
	case *tcell.EventResize:
		b.mu.Lock()
		b.needSync = true
		b.mu.Unlock()
		w, h := e.Size()
		return terminal.ResizeEvent{Width: w, Height: h}
	default:
		return nil
	}
}

func convertKeyEvent(e *tcell.EventKey) terminal.Event {
	key := convertKey(e.Key())
	if key == terminal.KeyNone {
		return nil
	}
	mods := e.Modifiers()
	return terminal.KeyEvent{
		Key:   key,
		Rune:  e.Rune(),
		Alt:   mods&tcell.ModAlt != 0,
		Ctrl:  mods&tcell.ModCtrl != 0,
		Shift: mods&tcell.ModShift != 0,
	}
}

func convertKey(k tcell.Key) terminal.Key {
	switch k {
	case tcell.KeyRune:
		return terminal.KeyRune
	case tcell.KeyUp:
		return terminal.KeyUp
	case tcell.KeyDown:
		return terminal.KeyDown
	case tcell.KeyRight:
		return terminal.KeyRight
	case tcell.KeyLeft:
		return terminal.KeyLeft
	case tcell.KeyPgUp:
		return terminal.KeyPageUp
	case tcell.KeyPgDn:
		return terminal.KeyPageDown
	case tcell.KeyHome:
		return terminal.KeyHome
	case tcell.KeyEnd:
		return terminal.KeyEnd
	case tcell.KeyInsert:
		return terminal.KeyInsert
	case tcell.KeyDelete:
		return terminal.KeyDelete
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return terminal.KeyBackspace
	case tcell.KeyTab:
		return terminal.KeyTab
	case tcell.KeyBacktab:
		return terminal.KeyBacktab
	case tcell.KeyEnter:
		return terminal.KeyEnter
	case tcell.KeyEscape:
		return terminal.KeyEscape
	case tcell.KeyCtrlC:
		return terminal.KeyCtrlC
	case tcell.KeyCtrlD:
		return terminal.KeyCtrlD
	case tcell.KeyCtrlL:
		return terminal.KeyCtrlL
	case tcell.KeyCtrlR:
		return terminal.KeyCtrlR
	case tcell.KeyCtrlS:
		return terminal.KeyCtrlS
	case tcell.KeyCtrlT:
		return terminal.KeyCtrlT
	case tcell.KeyCtrlU:
		return terminal.KeyCtrlU
	case tcell.KeyF1:
		return terminal.KeyF1
	case tcell.KeyF2:
		return terminal.KeyF2
	case tcell.KeyF3:
		return terminal.KeyF3
	case tcell.KeyF4:
		return terminal.KeyF4
	case tcell.KeyF5:
		return terminal.KeyF5
	default:
		return terminal.KeyNone
	}
}

func convertStyle(s backend.Style) tcell.Style {
	fg, bg, attrs := s.Decompose()
	style := tcell.StyleDefault.
		Foreground(convertColor(fg)).
		Background(convertColor(bg))

	if attrs&backend.AttrBold != 0 {
		style = style.Bold(true)
	}
	if attrs&backend.AttrDim != 0 {
		style = style.Dim(true)
	}
	if attrs&backend.AttrItalic != 0 {
		style = style.Italic(true)
	}
	if attrs&backend.AttrUnderline != 0 {
		style = style.Underline(true)
	}
	if attrs&backend.AttrReverse != 0 {
		style = style.Reverse(true)
	}
	if attrs&backend.AttrBlink != 0 {
		style = style.Blink(true)
	}
	return style
}

func convertColor(c backend.Color) tcell.Color {
	if c == backend.ColorDefault {
		return tcell.ColorDefault
	}
	if c.IsRGB() {
		r, g, b := c.RGB()
		return tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}
	return tcell.PaletteColor(int(c))
}

var _ backend.Terminal = (*Backend)(nil)
