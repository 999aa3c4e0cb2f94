package engine

import (
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// Layout assigns each window a rect of the frame for the current focus.
// Windows without a rect draw into an empty region. Rects should not
// overlap; when they do, later windows in composition order win.
type Layout interface {
	Arrange(area frame.Rect, focused window.ID) map[window.ID]frame.Rect
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func(area frame.Rect, focused window.ID) map[window.ID]frame.Rect

// Arrange calls f.
func (f LayoutFunc) Arrange(area frame.Rect, focused window.ID) map[window.ID]frame.Rect {
	return f(area, focused)
}

// Columns splits the area into equal-width columns in the given order. The
// last column absorbs the remainder.
func Columns(ids ...window.ID) Layout {
	return LayoutFunc(func(area frame.Rect, _ window.ID) map[window.ID]frame.Rect {
		out := make(map[window.ID]frame.Rect, len(ids))
		if len(ids) == 0 {
			return out
		}
		w := area.Width / len(ids)
		rest := area
		for i, id := range ids {
			if i == len(ids)-1 {
				out[id] = rest
				break
			}
			var col frame.Rect
			col, rest = rest.SplitLeft(w)
			out[id] = col
		}
		return out
	})
}

// FocusedOnly gives the whole area to the focused window.
func FocusedOnly() Layout {
	return LayoutFunc(func(area frame.Rect, focused window.ID) map[window.ID]frame.Rect {
		if focused == "" {
			return nil
		}
		return map[window.ID]frame.Rect{focused: area}
	})
}
