package windows

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewLoading view.View = "loading"
	viewLoaded  view.View = "loaded"
	viewFailed  view.View = "failed"

	triggerOK   view.Trigger = "ok"
	triggerFail view.Trigger = "fail"
)

type devicesState struct {
	seen        uint64
	devices     []api.DeviceProperties
	err         string
	refreshedAt time.Time
	now         time.Time
	offset      int
}

type devicesWindow struct {
	deps Deps
}

func (w *devicesWindow) Init() devicesState { return devicesState{} }

func (w *devicesWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewLoading, viewLoaded, viewFailed},
		Initial: viewLoading,
		Edges: map[view.Edge]view.View{
			{From: viewLoading, Trigger: triggerOK}:   viewLoaded,
			{From: viewLoading, Trigger: triggerFail}: viewFailed,
			{From: viewLoaded, Trigger: triggerFail}:  viewFailed,
			{From: viewFailed, Trigger: triggerOK}:    viewLoaded,
		},
	}
}

func (w *devicesWindow) Tick(ctx *window.Context, s devicesState) (devicesState, error) {
	s.now = ctx.Now()
	snap := w.deps.Watcher.Devices.Load()
	if !snap.Fresh(s.seen) {
		return s, nil
	}
	s.seen = snap.Version
	s.refreshedAt = snap.At
	if snap.Err != nil {
		s.err = errors.UserMessage(snap.Err)
		move(ctx, viewFailed, triggerFail)
		return s, nil
	}
	s.err = ""
	s.devices = snap.Value
	s.offset = min(s.offset, max(0, len(s.devices)-1))
	move(ctx, viewLoaded, triggerOK)
	return s, nil
}

func (w *devicesWindow) Handle(ctx *window.Context, s devicesState, ev terminal.Event) (devicesState, window.Request, error) {
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	switch {
	case k.IsInterrupt():
		return s, window.Quit(), nil
	case k.Is(terminal.KeyEscape):
		return s, window.FocusTo(Menu), nil
	case k.IsRune('r'):
		w.deps.Watcher.Refresh(watch.KindDevices)
	case k.Is(terminal.KeyUp):
		s.offset = max(0, s.offset-1)
	case k.Is(terminal.KeyDown):
		s.offset = min(s.offset+1, max(0, len(s.devices)-1))
	}
	return s, window.None(), nil
}

func (w *devicesWindow) Draw(s devicesState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	footer := "r refresh  |  Esc back"
	if !s.refreshedAt.IsZero() && !s.now.IsZero() {
		footer = "refreshed " + humanize.RelTime(s.refreshedAt, s.now, "ago", "from now") + "  |  " + footer
	}
	body := chrome(r, th, "Discovered Devices", footer)

	switch v {
	case viewLoading:
		paragraph(body, body.Height()/2, line{"Loading devices" + theme.Symbols.Ellipsis, th.Muted})
	case viewFailed:
		paragraph(body, max(0, body.Height()/2-1),
			line{"Error Loading Devices", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.err, th.Error},
		)
	default:
		if len(s.devices) == 0 {
			paragraph(body, body.Height()/2, line{"No devices found", th.Muted})
			return
		}
		list := body.Box(fmt.Sprintf("%d Devices", len(s.devices)), th.BorderFocus, th.Heading)
		for i, d := range s.devices[s.offset:] {
			if i >= list.Height() {
				break
			}
			list.Line(i, DeviceLine(d), deviceStyle(th, d))
		}
	}
}

// DeviceLine is the one-row summary of a device.
func DeviceLine(d api.DeviceProperties) string {
	var tags []string
	if d.IsManager {
		tags = append(tags, "[MANAGER]")
	}
	if d.IsBusy {
		tags = append(tags, "[BUSY]")
	}
	if d.Thunderbolt != nil {
		tags = append(tags, "[TB "+d.Thunderbolt.IPAddr+"]")
	}
	out := fmt.Sprintf("%s %s - HTTP:%s gRPC:%s",
		pad(d.Instance, 32), pad(d.LocalIP, 15), pad(strconv.Itoa(d.ServerPort), 6), pad(strconv.Itoa(d.ShardPort), 6))
	if len(tags) > 0 {
		out += " " + strings.Join(tags, " ")
	}
	return out
}

func deviceStyle(th *theme.Theme, d api.DeviceProperties) backend.Style {
	switch {
	case d.IsManager:
		return th.Manager
	case d.IsBusy:
		return th.Busy
	default:
		return th.Success
	}
}
