// Package engine runs a fixed set of windows against a terminal: it owns the
// aggregate application state, routes input to the focused window, ticks
// every window on a fixed cadence and presents one composed frame per cycle.
package engine

import (
	"fmt"
	"sort"

	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

type slot struct {
	window.Slot
	machine *view.Machine
}

// State is the aggregate application state. Its exported methods are read
// only; mutation happens inside the scheduler's dispatch path, one window at
// a time.
type State struct {
	order []window.ID
	slots map[window.ID]*slot

	focused    window.ID
	hasFocus   bool
	tickCount  uint64
	shouldQuit bool
}

// NewState initializes every window with its initial state and view and
// focuses initial. An empty initial focuses the first window in composition
// order.
func NewState(entries []window.Entry, initial window.ID) (*State, error) {
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrCodeConfigurationFault, "no windows registered")
	}
	st := &State{slots: make(map[window.ID]*slot, len(entries))}
	for _, e := range entries {
		id := e.ID()
		if id == "" {
			return nil, errors.New(errors.ErrCodeConfigurationFault, "window registered with empty id")
		}
		if _, dup := st.slots[id]; dup {
			return nil, errors.New(errors.ErrCodeConfigurationFault, fmt.Sprintf("window %q registered twice", id)).
				WithContext("window", string(id))
		}
		m, err := view.NewMachine(string(id), e.Views())
		if err != nil {
			return nil, err
		}
		st.slots[id] = &slot{Slot: e.NewSlot(), machine: m}
		st.order = append(st.order, id)
	}
	sort.Slice(st.order, func(i, j int) bool { return st.order[i] < st.order[j] })

	if initial == "" {
		initial = st.order[0]
	}
	if err := st.setFocus("", initial); err != nil {
		return nil, err
	}
	return st, nil
}

// IDs returns the window IDs in composition order.
func (st *State) IDs() []window.ID {
	return append([]window.ID(nil), st.order...)
}

// Focused returns the focused window. It is absent only once shutdown has
// begun.
func (st *State) Focused() (window.ID, bool) {
	return st.focused, st.hasFocus
}

// IsFocused reports whether id has focus.
func (st *State) IsFocused(id window.ID) bool {
	return st.hasFocus && st.focused == id
}

// TickCount returns the number of tick boundaries crossed.
func (st *State) TickCount() uint64 {
	return st.tickCount
}

// ShouldQuit reports whether a window requested quit.
func (st *State) ShouldQuit() bool {
	return st.shouldQuit
}

// View returns a window's current view.
func (st *State) View(id window.ID) (view.View, bool) {
	sl, ok := st.slots[id]
	if !ok {
		return "", false
	}
	return sl.machine.Current(), true
}

func (st *State) setFocus(from, to window.ID) error {
	if _, ok := st.slots[to]; !ok {
		return errors.ConfigurationFault(string(from), string(to))
	}
	st.focused = to
	st.hasFocus = true
	return nil
}

func (st *State) clearFocus() {
	st.focused = ""
	st.hasFocus = false
}

var _ window.Facts = (*State)(nil)
