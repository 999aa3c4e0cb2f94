// Package view holds the per-window view state machine. A window declares
// its full transition table as data; the engine rejects any transition that
// is not in it.
package view

import (
	"fmt"
	"sort"
)

// View names one presentation mode of a window.
type View string

// Trigger names the reason for a transition (usually a key or a data event).
type Trigger string

// Edge is a (from view, trigger) pair.
type Edge struct {
	From    View
	Trigger Trigger
}

// Table is a window's complete view state machine.
type Table struct {
	Views   []View
	Initial View
	Edges   map[Edge]View
}

// Single returns a table with one view and no transitions.
func Single(v View) Table {
	return Table{Views: []View{v}, Initial: v}
}

// Complete builds a table in which trigger moves from every view to every
// other view. Use it for windows whose views are freely navigable; the edges
// still exist explicitly, so closure checks apply unchanged. The trigger is
// suffixed with the target view name, e.g. "goto:detail".
func Complete(initial View, views ...View) Table {
	t := Table{Views: views, Initial: initial, Edges: make(map[Edge]View)}
	for _, from := range views {
		for _, to := range views {
			if from != to {
				t.Edges[Edge{From: from, Trigger: Goto(to)}] = to
			}
		}
	}
	return t
}

// Goto is the trigger Complete uses to reach v.
func Goto(v View) Trigger {
	return Trigger("goto:" + string(v))
}

// Has reports whether v is declared.
func (t Table) Has(v View) bool {
	for _, d := range t.Views {
		if d == v {
			return true
		}
	}
	return false
}

// Validate checks that the table is closed: the view set is non-empty and
// unique, the initial view is declared, and every edge starts and ends on a
// declared view.
func (t Table) Validate() error {
	if len(t.Views) == 0 {
		return fmt.Errorf("no views declared")
	}
	seen := make(map[View]bool, len(t.Views))
	for _, v := range t.Views {
		if v == "" {
			return fmt.Errorf("empty view name")
		}
		if seen[v] {
			return fmt.Errorf("view %q declared twice", v)
		}
		seen[v] = true
	}
	if !seen[t.Initial] {
		return fmt.Errorf("initial view %q not declared", t.Initial)
	}
	for _, e := range t.sortedEdges() {
		if !seen[e.From] {
			return fmt.Errorf("edge %s/%s starts at undeclared view", e.From, e.Trigger)
		}
		if to := t.Edges[e]; !seen[to] {
			return fmt.Errorf("edge %s/%s targets undeclared view %q", e.From, e.Trigger, to)
		}
	}
	return nil
}

// Next looks up the target of (from, trigger).
func (t Table) Next(from View, trigger Trigger) (View, bool) {
	to, ok := t.Edges[Edge{From: from, Trigger: trigger}]
	return to, ok
}

// Triggers lists the triggers declared for from, sorted.
func (t Table) Triggers(from View) []Trigger {
	var out []Trigger
	for e := range t.Edges {
		if e.From == from {
			out = append(out, e.Trigger)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reachable returns the views reachable from the initial view, in
// breadth-first order.
func (t Table) Reachable() []View {
	visited := map[View]bool{t.Initial: true}
	order := []View{t.Initial}
	edges := t.sortedEdges()
	for i := 0; i < len(order); i++ {
		for _, e := range edges {
			if e.From != order[i] {
				continue
			}
			if to := t.Edges[e]; !visited[to] {
				visited[to] = true
				order = append(order, to)
			}
		}
	}
	return order
}

func (t Table) sortedEdges() []Edge {
	edges := make([]Edge, 0, len(t.Edges))
	for e := range t.Edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].Trigger < edges[j].Trigger
	})
	return edges
}
