package windows

import (
	"fmt"

	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewOK       view.View = "ok"
	viewDegraded view.View = "degraded"

	triggerUp   view.Trigger = "up"
	triggerDown view.Trigger = "down"
)

type statusState struct {
	focused window.ID
	ticks   uint64
	spinner string
	reason  string
}

// statusWindow is the bottom bar. It is never focused and never asks for
// focus.
type statusWindow struct {
	deps Deps
}

func (w *statusWindow) Init() statusState { return statusState{spinner: theme.SpinnerFrame(0)} }

func (w *statusWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewDegraded, viewOK},
		Initial: viewDegraded,
		Edges: map[view.Edge]view.View{
			{From: viewDegraded, Trigger: triggerUp}: viewOK,
			{From: viewOK, Trigger: triggerDown}:     viewDegraded,
		},
	}
}

func (w *statusWindow) Tick(ctx *window.Context, s statusState) (statusState, error) {
	s.ticks = ctx.TickCount()
	s.spinner = theme.SpinnerFrame(s.ticks)
	s.focused, _ = ctx.Focused()

	h := w.deps.Watcher.Health.Load()
	switch {
	case h.Err != nil:
		s.reason = errors.UserMessage(h.Err)
		move(ctx, viewDegraded, triggerDown)
	case !h.Valid:
		s.reason = "connecting"
		move(ctx, viewDegraded, triggerDown)
	case !h.Value:
		s.reason = "unhealthy"
		move(ctx, viewDegraded, triggerDown)
	default:
		s.reason = ""
		move(ctx, viewOK, triggerUp)
	}
	return s, nil
}

func (w *statusWindow) Handle(ctx *window.Context, s statusState, ev terminal.Event) (statusState, window.Request, error) {
	if isInterrupt(ev) {
		return s, window.Quit(), nil
	}
	return s, window.None(), nil
}

func (w *statusWindow) Draw(s statusState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	r.Fill(' ', th.StatusBar)

	api := theme.Symbols.Bullet + " online"
	if v == viewDegraded {
		api = theme.Symbols.BulletEmpty + " " + s.reason
	}
	left := fmt.Sprintf(" %s dnet %s  %s  %s", s.spinner, w.deps.Version, w.deps.Config.APIURL(), api)
	right := fmt.Sprintf("%s  tick %d ", s.focused, s.ticks)

	n := r.Text(0, 0, left, th.StatusBar)
	if x := r.Width() - len(right); x > n {
		r.Text(x, 0, right, th.StatusBar)
	}
}
