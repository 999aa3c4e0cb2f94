package windows

import (
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const viewBrowse view.View = "browse"

// menuItem moves focus to target. An item without a target quits.
type menuItem struct {
	label  string
	target window.ID
}

var menuItems = []menuItem{
	{label: "Chat", target: Chat},
	{label: "Devices", target: Devices},
	{label: "Topology", target: Topology},
	{label: "Load Model", target: Model},
	{label: "Unload Model", target: Unload},
	{label: "Settings", target: Settings},
	{label: "Developer", target: Developer},
	{label: "Exit"},
}

type menuState struct {
	selected       int
	focused        bool
	modelLoaded    bool
	topologyLoaded bool
}

// disabled applies the availability rules: the topology needs a prepared
// topology, chat and unloading need a loaded model.
func (s menuState) disabled(i int) bool {
	switch menuItems[i].label {
	case "Topology":
		return !s.topologyLoaded
	case "Chat", "Unload Model":
		return !s.modelLoaded
	}
	return false
}

func (s menuState) description(i int) string {
	switch menuItems[i].label {
	case "Chat":
		if s.modelLoaded {
			return "Chat with the loaded model"
		}
		return "Load a model first"
	case "Devices":
		return "View discovered devices"
	case "Topology":
		if s.topologyLoaded {
			return "View dnet topology"
		}
		return "No topology available"
	case "Load Model":
		return "Load a model"
	case "Unload Model":
		if s.modelLoaded {
			return "Unload model"
		}
		return "No model loaded"
	case "Settings":
		return "Edit configuration"
	case "Developer":
		return "Assign layers by hand"
	default:
		return "Quit application"
	}
}

type menuWindow struct {
	deps Deps
}

func (w *menuWindow) Init() menuState { return menuState{} }

func (w *menuWindow) Views() view.Table { return view.Single(viewBrowse) }

func (w *menuWindow) Tick(ctx *window.Context, s menuState) (menuState, error) {
	topo := w.deps.Watcher.Topology.Load().Value
	s.topologyLoaded = topo != nil
	s.modelLoaded = topo.ModelLoaded()
	s.focused = ctx.IsFocused(ctx.ID())
	return s, nil
}

func (w *menuWindow) Handle(ctx *window.Context, s menuState, ev terminal.Event) (menuState, window.Request, error) {
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	switch {
	case k.IsInterrupt(), k.Is(terminal.KeyEscape), k.IsRune('q'):
		return s, window.Quit(), nil
	case k.Is(terminal.KeyUp):
		s.selected = wrap(s.selected-1, len(menuItems))
	case k.Is(terminal.KeyDown), k.Is(terminal.KeyTab):
		s.selected = wrap(s.selected+1, len(menuItems))
	case k.Is(terminal.KeyEnter):
		return w.activate(s)
	}
	return s, window.None(), nil
}

func (w *menuWindow) activate(s menuState) (menuState, window.Request, error) {
	if s.disabled(s.selected) {
		return s, window.None(), nil
	}
	item := menuItems[s.selected]
	if item.target == "" {
		return s, window.Quit(), nil
	}
	s.focused = false
	return s, window.FocusTo(item.target), nil
}

func (w *menuWindow) Draw(s menuState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	border := th.Border
	if s.focused {
		border = th.BorderFocus
	}
	inner := r.Box("dnet", border, th.Title)
	if inner.Empty() {
		return
	}

	for i, item := range menuItems {
		y := i*2 + 1
		label := "  " + item.label
		style := th.Text
		switch {
		case i == s.selected && s.disabled(i):
			label = theme.Symbols.Arrow + " " + item.label
			style = th.SelectedDisabled
		case i == s.selected:
			label = theme.Symbols.Arrow + " " + item.label
			style = th.Selected
		case s.disabled(i):
			style = th.Disabled
		}
		inner.Line(y, label, style)
	}

	hint := inner.Height() - 2
	if hint > len(menuItems)*2 {
		inner.Line(hint, s.description(s.selected), th.Muted)
		inner.Line(hint+1, "Esc quit", th.Muted)
	}
}
