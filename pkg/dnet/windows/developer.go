package windows

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

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
	viewFetching   view.View = "fetching"
	viewAssigning  view.View = "assigning"
	viewInput      view.View = "input"
	viewSubmitting view.View = "submitting"
)

// shardSlot is one shard in a manual assignment.
type shardSlot struct {
	device    api.DeviceProperties
	reachable bool
	hasModel  bool
	current   []int
	layers    []int
}

type developerState struct {
	selected int
	model    string
	total    int

	shards []shardSlot
	cursor int
	input  string
	notice string
	bad    bool

	result  *api.LoadModelResponse
	err     string
	spinner string
}

// assigned maps each shard to the layers given to it so far.
func (s developerState) assigned() map[string][]int {
	out := make(map[string][]int, len(s.shards))
	for _, sh := range s.shards {
		out[sh.device.Instance] = sh.layers
	}
	return out
}

// developerWindow builds a topology by hand: pick a model, give each shard
// a set of layers, then submit and load.
type developerWindow struct {
	deps   Deps
	fetch  watch.Task[[]shardSlot]
	submit watch.Task[struct{}]
	load   watch.Task[*api.LoadModelResponse]
}

func (w *developerWindow) Init() developerState { return developerState{} }

func (w *developerWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewSelect, viewFetching, viewAssigning, viewInput, viewSubmitting, viewLoading, viewLoaded, viewFailed},
		Initial: viewSelect,
		Edges: map[view.Edge]view.View{
			{From: viewSelect, Trigger: triggerLoad}:         viewFetching,
			{From: viewFetching, Trigger: triggerOK}:         viewAssigning,
			{From: viewFetching, Trigger: triggerFail}:       viewFailed,
			{From: viewAssigning, Trigger: triggerEdit}:      viewInput,
			{From: viewAssigning, Trigger: triggerSave}:      viewSubmitting,
			{From: viewAssigning, Trigger: triggerBack}:      viewSelect,
			{From: viewInput, Trigger: triggerApply}:         viewAssigning,
			{From: viewInput, Trigger: triggerCancel}:        viewAssigning,
			{From: viewSubmitting, Trigger: triggerPrepared}: viewLoading,
			{From: viewSubmitting, Trigger: triggerFail}:     viewFailed,
			{From: viewLoading, Trigger: triggerDone}:        viewLoaded,
			{From: viewLoading, Trigger: triggerFail}:        viewFailed,
			{From: viewLoaded, Trigger: triggerBack}:         viewSelect,
			{From: viewFailed, Trigger: triggerBack}:         viewSelect,
		},
	}
}

func (w *developerWindow) Tick(ctx *window.Context, s developerState) (developerState, error) {
	s.spinner = theme.SpinnerFrame(ctx.TickCount())

	switch ctx.View() {
	case viewFetching:
		r, ok := w.fetch.Take()
		if !ok {
			break
		}
		if r.Err != nil {
			s.err = "Failed to fetch shards: " + errors.UserMessage(r.Err)
			_ = ctx.Fire(triggerFail)
			break
		}
		s.shards, s.cursor, s.notice, s.bad = r.Value, 0, "", false
		_ = ctx.Fire(triggerOK)

	case viewSubmitting:
		r, ok := w.submit.Take()
		if !ok {
			break
		}
		if r.Err != nil {
			s.err = "Failed to submit topology: " + errors.UserMessage(r.Err)
			_ = ctx.Fire(triggerFail)
			break
		}
		model := s.model
		w.load.Start(w.deps.Jobs, func(ctx context.Context) (*api.LoadModelResponse, error) {
			return w.deps.Actions.LoadModel(ctx, model)
		})
		_ = ctx.Fire(triggerPrepared)

	case viewLoading:
		r, ok := w.load.Take()
		if !ok {
			break
		}
		w.deps.Watcher.Refresh(watch.KindTopology)
		if r.Err != nil {
			s.err = "Failed to load model: " + errors.UserMessage(r.Err)
			_ = ctx.Fire(triggerFail)
			break
		}
		s.result = r.Value
		_ = ctx.Fire(triggerDone)
	}
	return s, nil
}

func (w *developerWindow) Handle(ctx *window.Context, s developerState, ev terminal.Event) (developerState, window.Request, error) {
	if p, ok := ev.(terminal.PasteEvent); ok && ctx.View() == viewInput {
		s.input += layerChars(p.Text)
		return s, window.None(), nil
	}
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	if k.IsInterrupt() {
		return s, window.Quit(), nil
	}

	var trigger view.Trigger
	switch ctx.View() {
	case viewSelect:
		switch {
		case k.Is(terminal.KeyEscape):
			return s, window.FocusTo(Menu), nil
		case k.Is(terminal.KeyUp):
			s.selected = wrap(s.selected-1, len(Catalog))
		case k.Is(terminal.KeyDown):
			s.selected = wrap(s.selected+1, len(Catalog))
		case k.Is(terminal.KeyEnter):
			if !w.fetch.Start(w.deps.Jobs, w.fetchShards) {
				break
			}
			s.model = Catalog[s.selected]
			s.total = ModelLayers(s.model)
			s.result, s.err = nil, ""
			trigger = triggerLoad
		}

	case viewAssigning:
		switch {
		case k.Is(terminal.KeyEscape):
			trigger = triggerBack
		case k.Is(terminal.KeyUp):
			s.cursor = wrap(s.cursor-1, len(s.shards))
		case k.Is(terminal.KeyDown):
			s.cursor = wrap(s.cursor+1, len(s.shards))
		case k.Is(terminal.KeyEnter):
			if len(s.shards) == 0 {
				break
			}
			s.input = ""
			if layers := s.shards[s.cursor].layers; len(layers) > 0 {
				s.input = FormatLayerSet(layers)
			}
			s.notice, s.bad = "", false
			trigger = triggerEdit
		case k.IsRune('c'), k.IsRune('C'):
			if missing := MissingLayers(s.assigned(), s.total); len(missing) > 0 {
				s.notice, s.bad = "Missing layers: "+FormatLayerSet(missing), true
				break
			}
			req := w.manualRequest(s)
			if !w.submit.Start(w.deps.Jobs, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, w.deps.Actions.PrepareTopologyManual(ctx, req)
			}) {
				break
			}
			trigger = triggerSave
		}

	case viewInput:
		switch {
		case k.Is(terminal.KeyEscape):
			s.input, s.notice, s.bad = "", "", false
			trigger = triggerCancel
		case k.Is(terminal.KeyBackspace):
			if len(s.input) > 0 {
				s.input = s.input[:len(s.input)-1]
			}
		case k.Is(terminal.KeyEnter):
			layers := ParseLayers(s.input, s.total)
			if len(layers) == 0 {
				s.notice, s.bad = fmt.Sprintf("Invalid layers %q (use 0-%d)", s.input, s.total-1), true
				break
			}
			s.shards = s.assign(s.cursor, layers)
			s.notice, s.bad = fmt.Sprintf("%s: %s", s.shards[s.cursor].device.Instance, FormatLayerSet(layers)), false
			s.input = ""
			trigger = triggerApply
		case k.Key == terminal.KeyRune && !k.Ctrl && !k.Alt:
			s.input += layerChars(string(k.Rune))
		}

	case viewLoaded, viewFailed:
		switch {
		case k.Is(terminal.KeyEscape):
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
			return s, window.FocusTo(Menu), nil
		case k.Is(terminal.KeyEnter):
			trigger = triggerBack
		}

	default:
		if k.Is(terminal.KeyEscape) {
			return s, window.FocusTo(Menu), nil
		}
	}

	if trigger != "" {
		if err := ctx.Fire(trigger); err != nil {
			return s, window.None(), err
		}
	}
	return s, window.None(), nil
}

// assign gives layers to shard i and takes them away from every other
// shard, so each layer has one owner.
func (s developerState) assign(i int, layers []int) []shardSlot {
	out := slices.Clone(s.shards)
	for j := range out {
		if j == i {
			out[j].layers = layers
			continue
		}
		out[j].layers = slices.DeleteFunc(slices.Clone(out[j].layers), func(l int) bool {
			_, found := slices.BinarySearch(layers, l)
			return found
		})
	}
	return out
}

func (w *developerWindow) manualRequest(s developerState) api.ManualTopologyRequest {
	next := NextInstances(s.assigned())
	req := api.ManualTopologyRequest{Model: s.model, NumLayers: s.total}
	for _, sh := range s.shards {
		if len(sh.layers) == 0 {
			continue
		}
		req.Devices = append(req.Devices, sh.device)
		req.Assignments = append(req.Assignments, api.AssignmentInfo{
			Instance:      sh.device.Instance,
			Layers:        [][]int{slices.Clone(sh.layers)},
			NextInstance:  next[sh.device.Instance],
			WindowSize:    len(sh.layers),
			ResidencySize: len(sh.layers),
		})
	}
	return req
}

// fetchShards lists the non-manager devices and asks each for its health.
// A shard that does not answer is still listed.
func (w *developerWindow) fetchShards(ctx context.Context) ([]shardSlot, error) {
	devices, err := w.deps.Actions.Devices(ctx)
	if err != nil {
		return nil, err
	}
	var slots []shardSlot
	for _, d := range devices {
		if !d.IsManager {
			slots = append(slots, shardSlot{device: d})
		}
	}
	if len(slots) == 0 {
		return nil, errors.New(errors.ErrCodeAPIRequest, "no shards discovered")
	}
	slices.SortFunc(slots, func(a, b shardSlot) int { return strings.Compare(a.device.Instance, b.device.Instance) })

	g, gctx := errgroup.WithContext(ctx)
	for i := range slots {
		g.Go(func() error {
			h, err := w.deps.Actions.ShardHealth(gctx, slots[i].device)
			if err != nil {
				return nil
			}
			slots[i].reachable = true
			slots[i].hasModel = h.ModelLoaded
			slots[i].current = h.AssignedLayers
			return nil
		})
	}
	_ = g.Wait()
	return slots, nil
}

// layerChars keeps the characters a layer list can contain.
func layerChars(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '-' || r == ' ' {
			return r
		}
		return -1
	}, s)
}

func (w *developerWindow) Draw(s developerState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	const title = "Developer: Manual Layer Assignment"
	switch v {
	case viewSelect:
		body := chrome(r, th, title, "↑↓ select  |  Enter assign layers  |  Esc back")
		body.Line(0, "Select a model:", th.Heading)
		first := max(0, s.selected-body.Height()+3)
		for i, y := first, 2; i < len(Catalog) && y < body.Height(); i, y = i+1, y+1 {
			label := fmt.Sprintf("  %s (%d layers)", Catalog[i], ModelLayers(Catalog[i]))
			style := th.Text
			if i == s.selected {
				label = theme.Symbols.Arrow + label[1:]
				style = th.Selected
			}
			body.Line(y, label, style)
		}
	case viewFetching:
		body := chrome(r, th, title, "Esc back (keeps running)")
		paragraph(body, body.Height()/2, line{s.spinner + " Fetching shards" + theme.Symbols.Ellipsis, th.Spinner})
	case viewAssigning, viewInput:
		w.drawAssign(s, v, r)
	case viewSubmitting:
		body := chrome(r, th, title, "Esc back (keeps running)")
		paragraph(body, body.Height()/2-1,
			line{s.spinner + " Submitting topology" + theme.Symbols.Ellipsis, th.Spinner},
			line{s.model, th.Muted},
		)
	case viewLoading:
		body := chrome(r, th, title, "Esc back (keeps running)")
		paragraph(body, body.Height()/2-1,
			line{s.spinner + " Loading model" + theme.Symbols.Ellipsis, th.Spinner},
			line{s.model, th.Muted},
		)
	case viewLoaded:
		body := chrome(r, th, title, "Enter assign another  |  Esc back")
		drawLoadResult(th, body, s.model, s.result)
	case viewFailed:
		body := chrome(r, th, title, "Enter try again  |  Esc back")
		paragraph(body, max(0, body.Height()/2-1),
			line{"Error", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.err, th.Error},
		)
	}
}

func (w *developerWindow) drawAssign(s developerState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	footer := "↑↓ select  |  Enter assign  |  c complete  |  Esc back"
	if v == viewInput {
		footer = "digits , - space  |  Enter apply  |  Esc cancel"
	}
	body := chrome(r, th, "Developer: Manual Layer Assignment", footer)
	if body.Empty() {
		return
	}

	body.Line(0, fmt.Sprintf("Model: %s (%d layers)", s.model, s.total), th.Heading)
	y := 2
	for i, sh := range s.shards {
		label := "  " + pad(sh.device.Instance, nameWidth) + " " + FormatLayerSet(sh.layers)
		switch {
		case !sh.reachable:
			label += "  (unreachable)"
		case sh.hasModel:
			label += "  (loaded " + FormatLayerSet(sh.current) + ")"
		}
		style := th.Text
		if i == s.cursor {
			label = theme.Symbols.Arrow + label[1:]
			style = th.Selected
		}
		body.Line(y, label, style)
		y++
	}
	y++

	if missing := MissingLayers(s.assigned(), s.total); len(missing) > 0 {
		body.Line(y, "Missing: "+FormatLayerSet(missing), th.Warning)
	} else {
		body.Line(y, "All layers assigned. Press c to submit.", th.Success)
	}
	y++
	if s.notice != "" {
		style := th.Info
		if s.bad {
			style = th.Error
		}
		body.Line(y, s.notice, style)
	}
	y++

	if v == viewInput && len(s.shards) > 0 {
		prompt := "Layers for " + s.shards[s.cursor].device.Instance + ": "
		n := body.Text(0, y, prompt, th.Muted)
		body.Text(n, y, s.input+"_", th.Input)
	}
}
