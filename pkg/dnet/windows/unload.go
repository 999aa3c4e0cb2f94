package windows

import (
	"context"

	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewConfirm   view.View = "confirm"
	viewUnloading view.View = "unloading"
	viewUnloaded  view.View = "unloaded"

	triggerUnload view.Trigger = "unload"
)

type unloadState struct {
	loaded  string
	model   string
	err     string
	spinner string
}

// unloadWindow asks for confirmation, then unloads the model from every
// shard. The unload keeps running if focus moves away.
type unloadWindow struct {
	deps   Deps
	unload watch.Task[struct{}]
}

func (w *unloadWindow) Init() unloadState { return unloadState{} }

func (w *unloadWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewConfirm, viewUnloading, viewUnloaded, viewFailed},
		Initial: viewConfirm,
		Edges: map[view.Edge]view.View{
			{From: viewConfirm, Trigger: triggerUnload}: viewUnloading,
			{From: viewUnloading, Trigger: triggerDone}: viewUnloaded,
			{From: viewUnloading, Trigger: triggerFail}: viewFailed,
			{From: viewUnloaded, Trigger: triggerBack}:  viewConfirm,
			{From: viewFailed, Trigger: triggerBack}:    viewConfirm,
		},
	}
}

func (w *unloadWindow) Tick(ctx *window.Context, s unloadState) (unloadState, error) {
	s.spinner = theme.SpinnerFrame(ctx.TickCount())
	s.loaded = w.deps.Watcher.Topology.Load().Value.ModelName()
	if ctx.View() != viewUnloading {
		return s, nil
	}
	r, ok := w.unload.Take()
	if !ok {
		return s, nil
	}
	w.deps.Watcher.Refresh(watch.KindTopology)
	if r.Err != nil {
		s.err = "Failed to unload model: " + errors.UserMessage(r.Err)
		_ = ctx.Fire(triggerFail)
		return s, nil
	}
	_ = ctx.Fire(triggerDone)
	return s, nil
}

func (w *unloadWindow) Handle(ctx *window.Context, s unloadState, ev terminal.Event) (unloadState, window.Request, error) {
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	if k.IsInterrupt() {
		return s, window.Quit(), nil
	}

	switch ctx.View() {
	case viewConfirm:
		switch {
		case k.Is(terminal.KeyEscape):
			return s, window.FocusTo(Menu), nil
		case k.Is(terminal.KeyEnter), k.IsRune('y'):
			if s.loaded == "" {
				break
			}
			if !w.unload.Start(w.deps.Jobs, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, w.deps.Actions.UnloadModel(ctx)
			}) {
				break
			}
			s.model, s.err = s.loaded, ""
			if err := ctx.Fire(triggerUnload); err != nil {
				return s, window.None(), err
			}
		}
	case viewUnloading:
		if k.Is(terminal.KeyEscape) {
			return s, window.FocusTo(Menu), nil
		}
	default:
		if k.Is(terminal.KeyEscape) || k.Is(terminal.KeyEnter) {
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
			return s, window.FocusTo(Menu), nil
		}
	}
	return s, window.None(), nil
}

func (w *unloadWindow) Draw(s unloadState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	switch v {
	case viewConfirm:
		body := chrome(r, th, "Unload Model", "Enter unload  |  Esc back")
		if s.loaded == "" {
			paragraph(body, body.Height()/2, line{"No model loaded", th.Muted})
			return
		}
		paragraph(body, max(0, body.Height()/2-1),
			line{"Unload " + s.loaded + "?", th.Text},
			line{"", th.Text},
			line{"Every shard releases its layers.", th.Muted},
		)
	case viewUnloading:
		body := chrome(r, th, "Unload Model", "Esc back (keeps running)")
		paragraph(body, body.Height()/2-1,
			line{s.spinner + " Unloading model" + theme.Symbols.Ellipsis, th.Spinner},
			line{s.model, th.Muted},
		)
	case viewUnloaded:
		body := chrome(r, th, "Unload Model", "Esc back")
		paragraph(body, body.Height()/2, line{"Model unloaded successfully!", th.Success})
	case viewFailed:
		body := chrome(r, th, "Unload Model", "Esc back")
		paragraph(body, max(0, body.Height()/2-1),
			line{"Error", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.err, th.Error},
		)
	}
}
