package window

import (
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
)

// Entry is a registered window with its state type erased. The set of
// entries is fixed when the engine is built.
type Entry interface {
	ID() ID
	Views() view.Table
	NewSlot() Slot
}

// Slot holds one window's private state. Tick and Handle commit the new
// state only when the window returns no error and fired no rejected
// transition.
type Slot interface {
	Draw(v view.View, r *frame.Region)
	Tick(ctx *Context) error
	Handle(ctx *Context, ev terminal.Event) (Request, error)
	Close() error
}

// Register adapts w to an Entry under id.
func Register[S any](id ID, w Window[S]) Entry {
	return &entry[S]{id: id, w: w}
}

type entry[S any] struct {
	id ID
	w  Window[S]
}

func (e *entry[S]) ID() ID            { return e.id }
func (e *entry[S]) Views() view.Table { return e.w.Views() }

func (e *entry[S]) NewSlot() Slot {
	return &slot[S]{w: e.w, state: e.w.Init()}
}

type slot[S any] struct {
	w     Window[S]
	state S
}

func (s *slot[S]) Draw(v view.View, r *frame.Region) {
	s.w.Draw(s.state, v, r)
}

func (s *slot[S]) Tick(ctx *Context) error {
	next, err := s.w.Tick(ctx, s.state)
	if err == nil {
		err = ctx.Fault()
	}
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *slot[S]) Handle(ctx *Context, ev terminal.Event) (Request, error) {
	next, req, err := s.w.Handle(ctx, s.state, ev)
	if err == nil {
		err = ctx.Fault()
	}
	if err != nil {
		return None(), err
	}
	s.state = next
	return req, nil
}

func (s *slot[S]) Close() error {
	if c, ok := s.w.(Closer[S]); ok {
		return c.Close(s.state)
	}
	return nil
}

// StateOf returns the state held by a slot created for a Window[S]. It is
// meant for tests and diagnostics; windows never see other slots.
func StateOf[S any](sl Slot) (S, bool) {
	if s, ok := sl.(*slot[S]); ok {
		return s.state, true
	}
	var zero S
	return zero, false
}
