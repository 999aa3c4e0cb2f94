// Package backend defines the two terminal collaborators the engine consumes:
// a RenderBackend that presents whole frames and an InputSource that yields
// input events with a bounded wait. Concrete implementations live in the
// tcell (real terminals) and sim (tests) subpackages.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/odvcencio/dnetui/pkg/ui/terminal"
)

var (
	// ErrInputClosed is returned by an InputSource that can no longer deliver
	// events. The engine treats it as a lost backend, not a transient error.
	ErrInputClosed = errors.New("input source closed")

	// ErrNotInitialized is returned when a backend is used before Init or
	// after Fini.
	ErrNotInitialized = errors.New("backend not initialized")
)

// Surface is a read-only view of a composed frame.
type Surface interface {
	Size() (width, height int)
	// Cell returns the rune and style at (x, y). A zero rune marks the
	// trailing half of a wide character and must not be written.
	Cell(x, y int) (rune, Style)
}

// RenderBackend owns terminal output.
type RenderBackend interface {
	// Init enters raw mode and the alternate screen.
	Init() error

	// Fini restores the terminal. Safe to call more than once.
	Fini()

	// Size returns the current terminal dimensions.
	Size() (width, height int)

	// Present writes a full frame and flushes it to the terminal in one
	// update. An error means the terminal is gone.
	Present(frame Surface) error
}

// InputSource yields input events.
type InputSource interface {
	// Poll waits up to timeout for the next event. It returns (nil, nil) when
	// nothing arrived in time, ErrInputClosed when the source is finished, and
	// any other error for a single failed read.
	Poll(ctx context.Context, timeout time.Duration) (terminal.Event, error)
}

// Terminal is implemented by backends that provide both halves.
type Terminal interface {
	RenderBackend
	InputSource
}
