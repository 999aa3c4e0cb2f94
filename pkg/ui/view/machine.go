package view

import (
	"github.com/odvcencio/dnetui/pkg/errors"
)

// Machine tracks the current view of one window against its table.
type Machine struct {
	owner   string
	table   Table
	current View
}

// NewMachine validates t and starts at its initial view.
func NewMachine(owner string, t Table) (*Machine, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigurationFault, "invalid view table").
			WithContext("window", owner)
	}
	return &Machine{owner: owner, table: t, current: t.Initial}, nil
}

// Current returns the current view.
func (m *Machine) Current() View {
	return m.current
}

// Fire moves along the edge (current, trigger). An undeclared edge leaves
// the machine unchanged and returns an INVALID_TRANSITION error.
func (m *Machine) Fire(trigger Trigger) (View, error) {
	to, ok := m.table.Next(m.current, trigger)
	if !ok {
		return m.current, errors.InvalidTransition(m.owner, string(m.current), string(trigger))
	}
	m.current = to
	return to, nil
}

// Clone returns an independent copy sharing the read-only table.
func (m *Machine) Clone() *Machine {
	c := *m
	return &c
}
