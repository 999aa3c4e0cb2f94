package windows

import (
	"context"
	"fmt"
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// Catalog is the built-in list of loadable models. Models the API reports
// are appended after it.
var Catalog = []string{
	"Qwen/Qwen3-4B-MLX-4bit",
	"Qwen/Qwen3-4B-MLX-8bit",
	"Qwen/Qwen3-30B-A3B-MLX-8bit",
	"Qwen/Qwen3-30B-A3B-MLX-bf16",
	"Qwen/Qwen3-30B-A3B-MLX-6bit",
	"Qwen/Qwen3-32B-MLX-bf16",
	"Qwen/Qwen3-32B-MLX-8bit",
	"Qwen/Qwen3-32B-MLX-6bit",
	"openai/gpt-oss-120b",
	"openai/gpt-oss-20b",
	"NousResearch/Hermes-4-70B",
}

const (
	viewSelect    view.View = "select"
	viewPreparing view.View = "preparing"

	triggerLoad     view.Trigger = "load"
	triggerPrepared view.Trigger = "prepared"
	triggerDone     view.Trigger = "done"
)

type modelState struct {
	catalog    []string
	modelsSeen uint64
	filter     string
	selected   int

	loaded  string
	model   string
	result  *api.LoadModelResponse
	err     string
	spinner string
}

// visible is the catalog narrowed by the filter, in catalog order.
func (s modelState) visible() []string {
	if s.filter == "" {
		return s.catalog
	}
	return fuzzy.FindNormalizedFold(s.filter, s.catalog)
}

type modelWindow struct {
	deps    Deps
	prepare watch.Task[*api.TopologyInfo]
	load    watch.Task[*api.LoadModelResponse]
}

func (w *modelWindow) Init() modelState {
	return modelState{catalog: slices.Clone(Catalog)}
}

func (w *modelWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewSelect, viewPreparing, viewLoading, viewLoaded, viewFailed},
		Initial: viewSelect,
		Edges: map[view.Edge]view.View{
			{From: viewSelect, Trigger: triggerLoad}:        viewPreparing,
			{From: viewPreparing, Trigger: triggerPrepared}: viewLoading,
			{From: viewPreparing, Trigger: triggerFail}:     viewFailed,
			{From: viewLoading, Trigger: triggerDone}:       viewLoaded,
			{From: viewLoading, Trigger: triggerFail}:       viewFailed,
			{From: viewLoaded, Trigger: triggerBack}:        viewSelect,
			{From: viewFailed, Trigger: triggerBack}:        viewSelect,
		},
	}
}

func (w *modelWindow) Tick(ctx *window.Context, s modelState) (modelState, error) {
	s.spinner = theme.SpinnerFrame(ctx.TickCount())
	s.loaded = w.deps.Watcher.Topology.Load().Value.ModelName()

	if snap := w.deps.Watcher.Models.Load(); snap.Fresh(s.modelsSeen) {
		s.modelsSeen = snap.Version
		if snap.Err == nil {
			s.catalog = mergeCatalog(Catalog, snap.Value)
			s.selected = min(s.selected, max(0, len(s.visible())-1))
		}
	}

	switch ctx.View() {
	case viewPreparing:
		r, ok := w.prepare.Take()
		if !ok {
			break
		}
		if r.Err != nil {
			s.err = "Failed to prepare topology: " + errors.UserMessage(r.Err)
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

func (w *modelWindow) Handle(ctx *window.Context, s modelState, ev terminal.Event) (modelState, window.Request, error) {
	k, ok := keyOf(ev)
	if !ok {
		if p, isPaste := ev.(terminal.PasteEvent); isPaste && ctx.View() == viewSelect {
			s.filter += p.Text
			s.selected = 0
		}
		return s, window.None(), nil
	}
	if k.IsInterrupt() {
		return s, window.Quit(), nil
	}

	switch ctx.View() {
	case viewSelect:
		return w.handleSelect(ctx, s, k)
	case viewLoaded, viewFailed:
		switch {
		case k.Is(terminal.KeyEscape):
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
			return s, window.FocusTo(Menu), nil
		case k.Is(terminal.KeyEnter):
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
		}
	default:
		if k.Is(terminal.KeyEscape) {
			return s, window.FocusTo(Menu), nil
		}
	}
	return s, window.None(), nil
}

func (w *modelWindow) handleSelect(ctx *window.Context, s modelState, k terminal.KeyEvent) (modelState, window.Request, error) {
	list := s.visible()
	switch {
	case k.Is(terminal.KeyEscape):
		if s.filter != "" {
			s.filter, s.selected = "", 0
			return s, window.None(), nil
		}
		return s, window.FocusTo(Menu), nil
	case k.Is(terminal.KeyUp):
		s.selected = wrap(s.selected-1, len(list))
	case k.Is(terminal.KeyDown):
		s.selected = wrap(s.selected+1, len(list))
	case k.Is(terminal.KeyBackspace):
		if r := []rune(s.filter); len(r) > 0 {
			s.filter = string(r[:len(r)-1])
			s.selected = 0
		}
	case k.Is(terminal.KeyCtrlU):
		s.filter, s.selected = "", 0
	case k.Is(terminal.KeyEnter):
		if len(list) == 0 {
			break
		}
		s.model = list[s.selected]
		s.result, s.err = nil, ""
		cfg := w.deps.Config.Topology
		req := api.PrepareTopologyRequest{
			Model:       s.model,
			KVBits:      cfg.KVBits,
			SeqLen:      cfg.SeqLen,
			MaxBatchExp: cfg.MaxBatchExp,
		}
		if !w.prepare.Start(w.deps.Jobs, func(ctx context.Context) (*api.TopologyInfo, error) {
			return w.deps.Actions.PrepareTopology(ctx, req)
		}) {
			break
		}
		if err := ctx.Fire(triggerLoad); err != nil {
			return s, window.None(), err
		}
	case k.Key == terminal.KeyRune && !k.Ctrl && !k.Alt:
		s.filter += string(k.Rune)
		s.selected = 0
	}
	return s, window.None(), nil
}

func (w *modelWindow) Draw(s modelState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	switch v {
	case viewSelect:
		w.drawSelect(s, r)
	case viewPreparing:
		body := chrome(r, th, "Load Model", "Esc back (keeps running)")
		paragraph(body, body.Height()/2-1,
			line{s.spinner + " Preparing topology" + theme.Symbols.Ellipsis, th.Spinner},
			line{s.model, th.Muted},
		)
	case viewLoading:
		body := chrome(r, th, "Load Model", "Esc back (keeps running)")
		paragraph(body, body.Height()/2-1,
			line{s.spinner + " Loading model" + theme.Symbols.Ellipsis, th.Spinner},
			line{s.model, th.Muted},
		)
	case viewFailed:
		body := chrome(r, th, "Load Model", "Enter try again  |  Esc back")
		paragraph(body, max(0, body.Height()/2-1),
			line{"Error", th.Error.Bold(true)},
			line{"", th.Text},
			line{s.err, th.Error},
		)
	case viewLoaded:
		w.drawLoaded(s, r)
	}
}

func (w *modelWindow) drawSelect(s modelState, r *frame.Region) {
	th := w.deps.Theme
	body := chrome(r, th, "Load Model", "↑↓ select  |  type to filter  |  Enter load  |  Ctrl-U clear  |  Esc back")
	if body.Empty() {
		return
	}

	y := 0
	if s.loaded != "" {
		body.Line(y, "Loaded: "+s.loaded, th.Success)
	} else {
		body.Line(y, "No model loaded", th.Muted)
	}
	y++
	body.Text(0, y, "Filter: ", th.Muted)
	body.Text(8, y, s.filter+"_", th.Input)
	y += 2

	list := s.visible()
	if len(list) == 0 {
		body.Line(y, "No models match", th.Muted)
		return
	}
	rows := body.Height() - y
	first := max(0, s.selected-rows+1)
	for i := first; i < len(list) && y < body.Height(); i++ {
		label := "  " + list[i]
		style := th.Text
		if i == s.selected {
			label = theme.Symbols.Arrow + " " + list[i]
			style = th.Selected
		}
		if list[i] == s.loaded {
			label += "  " + theme.Symbols.Check
		}
		body.Line(y, label, style)
		y++
	}
}

func (w *modelWindow) drawLoaded(s modelState, r *frame.Region) {
	body := chrome(r, w.deps.Theme, "Load Model", "Enter select another  |  Esc back")
	drawLoadResult(w.deps.Theme, body, s.model, s.result)
}

// drawLoadResult lists the per-shard outcome of a model load.
func drawLoadResult(th *theme.Theme, body *frame.Region, model string, res *api.LoadModelResponse) {
	if res == nil {
		return
	}

	y := 1
	name := res.Model
	if name == "" {
		name = model
	}
	body.Line(y, "Model: "+name, th.Text)
	y++
	if res.Success {
		body.Line(y, "Status: All shards loaded successfully!", th.Success)
	} else {
		body.Line(y, "Status: Some shards failed to load", th.Error)
	}
	y++
	if res.Message != "" {
		body.Line(y, res.Message, th.Muted)
		y++
	}
	y++
	body.Line(y, "Shard Statuses:", th.Heading)
	y++
	for _, st := range res.ShardStatuses {
		mark, style := theme.Symbols.Check, th.Success
		if !st.Success {
			mark, style = theme.Symbols.Cross, th.Error
		}
		text := fmt.Sprintf("  %s %s  Layers: %s", mark, st.Instance, st.LayerRange())
		if st.Message != "" {
			text += "  " + st.Message
		}
		body.Line(y, text, style)
		y++
	}
}

// mergeCatalog appends API models missing from the built-in list.
func mergeCatalog(builtin []string, models []api.ModelInfo) []string {
	out := slices.Clone(builtin)
	for _, m := range models {
		if m.ID != "" && !slices.Contains(out, m.ID) {
			out = append(out, m.ID)
		}
	}
	return out
}
