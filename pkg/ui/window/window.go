// Package window defines the contract every window implements and the
// type-erased adapter the engine dispatches through.
//
// A window owns a private state value S. The engine keeps that value in a
// slot only the window's own adapter can see, hands a copy to Draw, and
// commits the value returned by Tick or Handle only when the call succeeds.
package window

import (
	"time"

	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
)

// ID identifies a window. IDs are unique and fix the composition order.
type ID string

// Window is implemented once per concrete window.
type Window[S any] interface {
	// Init returns the initial private state.
	Init() S

	// Views returns the window's complete view table.
	Views() view.Table

	// Draw renders s in view v into r. It must not retain r or mutate shared
	// data reachable from s.
	Draw(s S, v view.View, r *frame.Region)

	// Tick advances time-based effects once per tick boundary.
	Tick(ctx *Context, s S) (S, error)

	// Handle consumes one input event while the window is focused.
	Handle(ctx *Context, s S, ev terminal.Event) (S, Request, error)
}

// Closer is implemented by windows that need cleanup during shutdown.
type Closer[S any] interface {
	Close(s S) error
}

type requestKind uint8

const (
	requestNone requestKind = iota
	requestFocus
	requestQuit
)

// Request is what a handler asks the scheduler to do after it returns.
type Request struct {
	kind   requestKind
	target ID
}

// None is the empty request.
func None() Request { return Request{} }

// FocusTo asks the scheduler to move focus to id.
func FocusTo(id ID) Request { return Request{kind: requestFocus, target: id} }

// Quit asks the scheduler to shut down.
func Quit() Request { return Request{kind: requestQuit} }

// Focus returns the focus target, if this is a focus request.
func (r Request) Focus() (ID, bool) {
	return r.target, r.kind == requestFocus
}

// IsQuit reports whether this is a quit request.
func (r Request) IsQuit() bool { return r.kind == requestQuit }

// IsNone reports whether nothing was requested.
func (r Request) IsNone() bool { return r.kind == requestNone }

func (r Request) String() string {
	switch r.kind {
	case requestFocus:
		return "focus:" + string(r.target)
	case requestQuit:
		return "quit"
	default:
		return "none"
	}
}

// Facts are the coarse cross-window facts a window may read.
type Facts interface {
	Focused() (ID, bool)
	IsFocused(id ID) bool
	TickCount() uint64
}

// Context is passed to Tick and Handle. It scopes view changes to the
// dispatched window and exposes read-only facts about the rest of the app.
type Context struct {
	id      ID
	facts   Facts
	machine *view.Machine
	now     time.Time
	fault   error
}

// NewContext creates a dispatch context. The machine is mutated by Fire;
// callers pass a clone and keep it only if the dispatch succeeds.
func NewContext(id ID, facts Facts, machine *view.Machine, now time.Time) *Context {
	return &Context{id: id, facts: facts, machine: machine, now: now}
}

// ID returns the dispatched window's ID.
func (c *Context) ID() ID { return c.id }

// View returns the dispatched window's current view.
func (c *Context) View() view.View { return c.machine.Current() }

// Fire changes the current view along a declared edge. A rejected trigger
// is also recorded on the context, so the dispatch fails even if the window
// drops the returned error.
func (c *Context) Fire(trigger view.Trigger) error {
	_, err := c.machine.Fire(trigger)
	if err != nil && c.fault == nil {
		c.fault = err
	}
	return err
}

// Fault returns the first rejected transition of this dispatch.
func (c *Context) Fault() error { return c.fault }

// Now returns the cycle's timestamp.
func (c *Context) Now() time.Time { return c.now }

// Focused returns the focused window, if any.
func (c *Context) Focused() (ID, bool) { return c.facts.Focused() }

// IsFocused reports whether id has focus.
func (c *Context) IsFocused(id ID) bool { return c.facts.IsFocused(id) }

// TickCount returns the number of tick boundaries crossed so far.
func (c *Context) TickCount() uint64 { return c.facts.TickCount() }
