// Package terminal provides the backend-neutral input event types consumed by
// the engine and routed to windows.
package terminal

import (
	"fmt"
	"strings"
)

// Event represents a terminal input event.
type Event interface {
	eventMarker()
}

// KeyEvent represents a key press.
type KeyEvent struct {
	Key   Key
	Rune  rune
	Alt   bool
	Ctrl  bool
	Shift bool
}

func (KeyEvent) eventMarker() {}

// Is reports whether the event is the given special key.
func (e KeyEvent) Is(k Key) bool {
	return e.Key == k
}

// IsRune reports whether the event is a plain (unmodified) character key.
func (e KeyEvent) IsRune(r rune) bool {
	return e.Key == KeyRune && e.Rune == r && !e.Ctrl && !e.Alt
}

// IsInterrupt reports whether the event is Ctrl+C in any of the forms
// terminals deliver it.
func (e KeyEvent) IsInterrupt() bool {
	if e.Key == KeyCtrlC {
		return true
	}
	return e.Ctrl && e.Key == KeyRune && (e.Rune == 'c' || e.Rune == 'C')
}

// String renders the key in a compact form for diagnostics, e.g. "ctrl+c",
// "enter" or "rune(q)".
func (e KeyEvent) String() string {
	var sb strings.Builder
	if e.Ctrl && e.Key == KeyRune {
		sb.WriteString("ctrl+")
	}
	if e.Alt {
		sb.WriteString("alt+")
	}
	if e.Key == KeyRune {
		sb.WriteString(fmt.Sprintf("rune(%c)", e.Rune))
		return sb.String()
	}
	sb.WriteString(e.Key.String())
	return sb.String()
}

// ResizeEvent indicates terminal size changed.
type ResizeEvent struct {
	Width  int
	Height int
}

func (ResizeEvent) eventMarker() {}

// PasteEvent represents bracketed paste content.
type PasteEvent struct {
	Text string
}

func (PasteEvent) eventMarker() {}

// Key represents special keys.
type Key int

const (
	KeyNone Key = iota
	KeyRune     // Regular character
	KeyEnter
	KeyBackspace
	KeyTab
	KeyBacktab
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
	KeyInsert
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyCtrlC
	KeyCtrlD
	KeyCtrlL
	KeyCtrlR
	KeyCtrlS
	KeyCtrlT
	KeyCtrlU
)

var keyNames = map[Key]string{
	KeyNone:      "none",
	KeyRune:      "rune",
	KeyEnter:     "enter",
	KeyBackspace: "backspace",
	KeyTab:       "tab",
	KeyBacktab:   "backtab",
	KeyEscape:    "esc",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPageUp:    "pgup",
	KeyPageDown:  "pgdn",
	KeyDelete:    "delete",
	KeyInsert:    "insert",
	KeyF1:        "f1",
	KeyF2:        "f2",
	KeyF3:        "f3",
	KeyF4:        "f4",
	KeyF5:        "f5",
	KeyCtrlC:     "ctrl+c",
	KeyCtrlD:     "ctrl+d",
	KeyCtrlL:     "ctrl+l",
	KeyCtrlR:     "ctrl+r",
	KeyCtrlS:     "ctrl+s",
	KeyCtrlT:     "ctrl+t",
	KeyCtrlU:     "ctrl+u",
}

// String returns the key's short name.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Describe returns a short description of any event for logs.
func Describe(ev Event) string {
	switch e := ev.(type) {
	case KeyEvent:
		return e.String()
	case ResizeEvent:
		return fmt.Sprintf("resize(%dx%d)", e.Width, e.Height)
	case PasteEvent:
		return fmt.Sprintf("paste(%d bytes)", len(e.Text))
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", ev)
	}
}
