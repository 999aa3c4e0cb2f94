package windows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewUnavailable view.View = "unavailable"
	viewRing        view.View = "ring"
	viewShard       view.View = "shard"

	triggerReady view.Trigger = "ready"
	triggerGone  view.Trigger = "gone"
	triggerEnter view.Trigger = "enter"
	triggerBack  view.Trigger = "back"
)

const nameWidth = 30

type topologyState struct {
	seen     uint64
	topology *api.TopologyInfo
	err      string
	selected int

	shard     api.DeviceProperties
	health    *api.ShardHealth
	healthErr string

	start   time.Time
	elapsed time.Duration
}

type topologyWindow struct {
	deps  Deps
	shard watch.Task[shardReading]
}

func (w *topologyWindow) Init() topologyState { return topologyState{} }

func (w *topologyWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewUnavailable, viewRing, viewShard},
		Initial: viewUnavailable,
		Edges: map[view.Edge]view.View{
			{From: viewUnavailable, Trigger: triggerReady}: viewRing,
			{From: viewRing, Trigger: triggerGone}:         viewUnavailable,
			{From: viewRing, Trigger: triggerEnter}:        viewShard,
			{From: viewShard, Trigger: triggerBack}:        viewRing,
			{From: viewShard, Trigger: triggerGone}:        viewUnavailable,
		},
	}
}

func (w *topologyWindow) Tick(ctx *window.Context, s topologyState) (topologyState, error) {
	if s.start.IsZero() {
		s.start = ctx.Now()
	}
	s.elapsed = ctx.Now().Sub(s.start)

	if r, ok := w.shard.Take(); ok && ctx.View() == viewShard {
		switch {
		case r.Value.instance != s.shard.Instance:
			w.fetchShard(s.shard)
		case r.Err != nil:
			s.health, s.healthErr = nil, errors.UserMessage(r.Err)
		default:
			s.health, s.healthErr = r.Value.health, ""
		}
	}

	snap := w.deps.Watcher.Topology.Load()
	if !snap.Fresh(s.seen) {
		return s, nil
	}
	s.seen = snap.Version
	if snap.Err != nil {
		s.err = errors.UserMessage(snap.Err)
	} else {
		s.err = ""
		s.topology = snap.Value
	}

	if s.topology == nil || len(s.topology.Devices) == 0 {
		move(ctx, viewUnavailable, triggerGone)
		return s, nil
	}
	s.selected = min(s.selected, len(s.topology.Devices)-1)
	if ctx.View() == viewUnavailable {
		_ = ctx.Fire(triggerReady)
	}
	return s, nil
}

func (w *topologyWindow) Handle(ctx *window.Context, s topologyState, ev terminal.Event) (topologyState, window.Request, error) {
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	if k.IsInterrupt() {
		return s, window.Quit(), nil
	}

	switch ctx.View() {
	case viewRing:
		n := len(s.topology.Devices)
		switch {
		case k.Is(terminal.KeyEscape):
			return s, window.FocusTo(Menu), nil
		case k.Is(terminal.KeyUp):
			s.selected = wrap(s.selected-1, n)
		case k.Is(terminal.KeyDown):
			s.selected = wrap(s.selected+1, n)
		case k.Is(terminal.KeyEnter):
			s.shard = s.topology.Devices[s.selected]
			s.health, s.healthErr = nil, ""
			w.fetchShard(s.shard)
			if err := ctx.Fire(triggerEnter); err != nil {
				return s, window.None(), err
			}
		}
	case viewShard:
		switch {
		case k.Is(terminal.KeyEscape):
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
		case k.IsRune('r'):
			s.health, s.healthErr = nil, ""
			w.fetchShard(s.shard)
		}
	default:
		switch {
		case k.Is(terminal.KeyEscape):
			return s, window.FocusTo(Menu), nil
		case k.IsRune('r'):
			w.deps.Watcher.Refresh(watch.KindTopology)
		}
	}
	return s, window.None(), nil
}

// shardReading is a health result tagged with the shard it came from, so a
// late answer for a previously selected shard is not shown.
type shardReading struct {
	instance string
	health   *api.ShardHealth
}

func (w *topologyWindow) fetchShard(d api.DeviceProperties) {
	w.shard.Start(w.deps.Jobs, func(ctx context.Context) (shardReading, error) {
		h, err := w.deps.Actions.ShardHealth(ctx, d)
		return shardReading{instance: d.Instance, health: h}, err
	})
}

func (w *topologyWindow) Draw(s topologyState, v view.View, r *frame.Region) {
	switch v {
	case viewRing:
		w.drawRing(s, r)
	case viewShard:
		w.drawShard(s, r)
	default:
		w.drawUnavailable(s, r)
	}
}

func (w *topologyWindow) drawUnavailable(s topologyState, r *frame.Region) {
	th := w.deps.Theme
	body := chrome(r, th, "Topology", "r refresh  |  Esc back")
	y := max(0, body.Height()/2-5)
	if s.err != "" {
		paragraph(body, y,
			line{"Connection Error", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.err, th.Error},
			line{"", th.Text},
			line{"Check that the dnet API is running at " + w.deps.Config.APIURL(), th.Muted},
		)
		return
	}
	paragraph(body, y,
		line{"No Topology Configured", th.Warning.Bold(true)},
		line{"", th.Text},
		line{"The API is running, but no topology has been set up yet.", th.Warning},
		line{"Load a model from the menu to prepare one.", th.Warning},
	)
}

func (w *topologyWindow) drawRing(s topologyState, r *frame.Region) {
	th := w.deps.Theme
	body := chrome(r, th, "Topology Ring", "↑↓ select device  |  Enter inspect  |  Esc back")
	topo := s.topology

	title := fmt.Sprintf("Model: %s  |  Layers: %d", orNone(topo.ModelName()), topo.NumLayers)
	if topo.KVBits != "" {
		title += "  |  KV: " + topo.KVBits
	}
	ring := body.Box(title, th.BorderFocus, th.Heading)

	y := 0
	for i, d := range topo.Devices {
		if y >= ring.Height() {
			break
		}
		marker, style := theme.Symbols.BulletEmpty, th.Success
		if i == s.selected {
			marker, style = theme.Symbols.Bullet, th.Selected
		}
		name := SlidingText(strings.TrimPrefix(d.Instance, "shard-"), nameWidth, s.elapsed)
		addr := fmt.Sprintf("%s:%d (%d)", d.LocalIP, d.ShardPort, d.ServerPort)
		ring.Line(y, fmt.Sprintf(" %s %s  %s", marker, pad(name, nameWidth), addr), style)
		y++

		if a, ok := topo.Assignment(d.Instance); ok {
			ring.Line(y, fmt.Sprintf("   │ layers %s  rounds %d  window %d", FormatLayers(a.Layers), len(a.Layers), a.WindowSize), th.Muted)
			y++
			next := a.NextInstance
			if next == "" && len(topo.Devices) > 0 {
				next = topo.Devices[(i+1)%len(topo.Devices)].Instance
			}
			ring.Line(y, "   ↓ "+strings.TrimPrefix(next, "shard-"), th.Border)
			y++
		}
	}
}

func (w *topologyWindow) drawShard(s topologyState, r *frame.Region) {
	th := w.deps.Theme
	body := chrome(r, th, "Shard: "+s.shard.Instance, "r refresh  |  Esc back to topology")

	if s.health == nil && s.healthErr == "" {
		paragraph(body, body.Height()/2, line{"Loading shard health" + theme.Symbols.Ellipsis, th.Muted})
		return
	}
	if s.healthErr != "" {
		paragraph(body, max(0, body.Height()/2-1),
			line{"Error Loading Shard Health", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.healthErr, th.Error},
		)
		return
	}

	h := s.health
	box := body.Box("Health Status", th.BorderFocus, th.Heading)
	y := 1

	statusStyle, running := th.Success, "RUNNING"
	switch {
	case !h.Running:
		statusStyle, running = th.Error, "STOPPED"
	case h.Status != "ok":
		statusStyle = th.Warning
	}
	box.Line(y, fmt.Sprintf(" Status: %s %s %s", h.Status, theme.Symbols.Bullet, running), statusStyle.Bold(true))
	y += 2

	section := func(title string) {
		box.Line(y, " ━━━ "+title+" ━━━", th.Info.Bold(true))
		y++
	}
	field := func(label, value string) {
		box.Line(y, "   "+pad(label+":", 16)+value, th.Text)
		y++
	}

	section("Node Information")
	field("Instance", h.Instance)
	field("HTTP Port", fmt.Sprint(h.HTTPPort))
	field("gRPC Port", fmt.Sprint(h.GRPCPort))
	y++

	section("Model Information")
	if h.ModelLoaded {
		field("Model Status", "Loaded")
	} else {
		field("Model Status", "Not Loaded")
	}
	if h.ModelPath != nil {
		field("Model Path", *h.ModelPath)
	}
	y++

	section("Layer Assignment")
	if len(h.AssignedLayers) == 0 {
		box.Line(y, "   No layers assigned", th.Muted)
		y++
	} else {
		field("Assigned", FormatLayers([][]int{h.AssignedLayers}))
		field("Count", fmt.Sprintf("%d layers", len(h.AssignedLayers)))
	}
	y++

	section("Queue Status")
	field("Queue Size", fmt.Sprintf("%d (%s)", h.QueueSize, QueueLoad(h.QueueSize)))
}

// QueueLoad classifies a shard queue depth.
func QueueLoad(n int) string {
	switch {
	case n <= 0:
		return "idle"
	case n < 10:
		return "active"
	default:
		return "busy"
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
