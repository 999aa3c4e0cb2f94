package windows

import (
	"github.com/odvcencio/dnetui/pkg/ui/engine"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// minMainWidth keeps the content area usable on narrow terminals.
const minMainWidth = 20

// Layout places the menu in a left sidebar, the status bar on the last row
// and the focused content window in the remaining area. When the menu (or
// nothing content-like) has focus the about window fills the main area.
func Layout() engine.Layout {
	return engine.LayoutFunc(func(area frame.Rect, focused window.ID) map[window.ID]frame.Rect {
		out := make(map[window.ID]frame.Rect, 3)
		if area.Empty() {
			return out
		}
		body, status := area.SplitBottom(theme.Layout.StatusHeight)
		out[Status] = status

		sidebar := theme.Layout.SidebarWidth
		if body.Width-sidebar < minMainWidth {
			sidebar = body.Width / 3
		}
		menu, main := body.SplitLeft(sidebar)
		out[Menu] = menu
		out[mainWindow(focused)] = main
		return out
	})
}

func mainWindow(focused window.ID) window.ID {
	switch focused {
	case Chat, Developer, Devices, Model, Settings, Topology, Unload:
		return focused
	default:
		return About
	}
}
