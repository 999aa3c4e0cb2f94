package windows

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/dnetui/pkg/config"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewView   view.View = "view"
	viewEdit   view.View = "edit"
	viewSaving view.View = "saving"
	viewSaved  view.View = "saved"

	triggerEdit   view.Trigger = "edit"
	triggerApply  view.Trigger = "apply"
	triggerCancel view.Trigger = "cancel"
	triggerSave   view.Trigger = "save"
)

// setting is one editable config field.
type setting struct {
	label string
	get   func(c *config.Config) string
	set   func(c *config.Config, v string) error
}

var settings = []setting{
	{
		label: "API Host",
		get:   func(c *config.Config) string { return c.API.Host },
		set:   func(c *config.Config, v string) error { c.API.Host = v; return nil },
	},
	{
		label: "API Port",
		get:   func(c *config.Config) string { return strconv.Itoa(c.API.Port) },
		set:   intSetter(func(c *config.Config, n int) { c.API.Port = n }),
	},
	{
		label: "Max Tokens",
		get:   func(c *config.Config) string { return strconv.Itoa(c.Chat.MaxTokens) },
		set:   intSetter(func(c *config.Config, n int) { c.Chat.MaxTokens = n }),
	},
	{
		label: "Temperature",
		get:   func(c *config.Config) string { return strconv.FormatFloat(c.Chat.Temperature, 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return parseError(v, "a number")
			}
			c.Chat.Temperature = f
			return nil
		},
	},
	{
		label: "Device Refresh (s)",
		get:   func(c *config.Config) string { return strconv.Itoa(int(c.Refresh.Devices / time.Second)) },
		set:   intSetter(func(c *config.Config, n int) { c.Refresh.Devices = time.Duration(n) * time.Second }),
	},
	{
		label: "KV Bits",
		get:   func(c *config.Config) string { return c.Topology.KVBits },
		set:   func(c *config.Config, v string) error { c.Topology.KVBits = v; return nil },
	},
	{
		label: "Max Batch Exponent",
		get:   func(c *config.Config) string { return strconv.Itoa(c.Topology.MaxBatchExp) },
		set:   intSetter(func(c *config.Config, n int) { c.Topology.MaxBatchExp = n }),
	},
	{
		label: "Sequence Length",
		get:   func(c *config.Config) string { return strconv.Itoa(c.Topology.SeqLen) },
		set:   intSetter(func(c *config.Config, n int) { c.Topology.SeqLen = n }),
	},
	{
		label: "Tick (ms)",
		get:   func(c *config.Config) string { return strconv.Itoa(int(c.UI.Tick / time.Millisecond)) },
		set:   intSetter(func(c *config.Config, n int) { c.UI.Tick = time.Duration(n) * time.Millisecond }),
	},
}

func intSetter(apply func(c *config.Config, n int)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return parseError(v, "a whole number")
		}
		apply(c, n)
		return nil
	}
}

func parseError(v, want string) error {
	return errors.Newf(errors.ErrCodeConfigInvalid, "%q is not %s", v, want)
}

type settingsState struct {
	cfg      *config.Config
	selected int
	input    string
	status   string
	failed   bool
}

type settingsWindow struct {
	deps Deps
	save watch.Task[*config.Config]
}

func (w *settingsWindow) Init() settingsState {
	return settingsState{cfg: w.deps.Config.Clone()}
}

func (w *settingsWindow) Views() view.Table {
	edges := map[view.Edge]view.View{
		{From: viewEdit, Trigger: triggerApply}:  viewView,
		{From: viewEdit, Trigger: triggerCancel}: viewView,
		{From: viewSaving, Trigger: triggerOK}:   viewSaved,
		{From: viewSaving, Trigger: triggerFail}: viewFailed,
	}
	for _, v := range []view.View{viewView, viewSaved, viewFailed} {
		edges[view.Edge{From: v, Trigger: triggerEdit}] = viewEdit
		edges[view.Edge{From: v, Trigger: triggerSave}] = viewSaving
	}
	return view.Table{
		Views:   []view.View{viewView, viewEdit, viewSaving, viewSaved, viewFailed},
		Initial: viewView,
		Edges:   edges,
	}
}

func (w *settingsWindow) Tick(ctx *window.Context, s settingsState) (settingsState, error) {
	if ctx.View() != viewSaving {
		return s, nil
	}
	r, ok := w.save.Take()
	if !ok {
		return s, nil
	}
	if r.Err != nil {
		s.status, s.failed = "[ERROR] Failed to save: "+errors.UserMessage(r.Err), true
		_ = ctx.Fire(triggerFail)
		return s, nil
	}
	s.cfg = r.Value
	s.status, s.failed = "Configuration saved to "+r.Value.Location(), false
	_ = ctx.Fire(triggerOK)
	return s, nil
}

func (w *settingsWindow) Handle(ctx *window.Context, s settingsState, ev terminal.Event) (settingsState, window.Request, error) {
	if p, ok := ev.(terminal.PasteEvent); ok && ctx.View() == viewEdit {
		s.input += strings.TrimSpace(p.Text)
		return s, window.None(), nil
	}
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}
	if k.IsInterrupt() {
		return s, window.Quit(), nil
	}

	switch ctx.View() {
	case viewEdit:
		return w.handleEdit(ctx, s, k)
	case viewSaving:
		if k.Is(terminal.KeyEscape) {
			return s, window.FocusTo(Menu), nil
		}
		return s, window.None(), nil
	}

	switch {
	case k.Is(terminal.KeyEscape):
		return s, window.FocusTo(Menu), nil
	case k.Is(terminal.KeyUp):
		s.selected = wrap(s.selected-1, len(settings))
	case k.Is(terminal.KeyDown), k.Is(terminal.KeyTab):
		s.selected = wrap(s.selected+1, len(settings))
	case k.Is(terminal.KeyEnter):
		s.input = settings[s.selected].get(s.cfg)
		s.status, s.failed = "", false
		if err := ctx.Fire(triggerEdit); err != nil {
			return s, window.None(), err
		}
	case k.IsRune('s'), k.Is(terminal.KeyCtrlS):
		cfg, path := s.cfg.Clone(), s.cfg.SavePath()
		if !w.save.Start(w.deps.Jobs, func(context.Context) (*config.Config, error) {
			return cfg, cfg.Save(path)
		}) {
			break
		}
		s.status, s.failed = "Saving to "+path, false
		if err := ctx.Fire(triggerSave); err != nil {
			return s, window.None(), err
		}
	}
	return s, window.None(), nil
}

func (w *settingsWindow) handleEdit(ctx *window.Context, s settingsState, k terminal.KeyEvent) (settingsState, window.Request, error) {
	switch {
	case k.Is(terminal.KeyEscape):
		s.input, s.status, s.failed = "", "", false
		if err := ctx.Fire(triggerCancel); err != nil {
			return s, window.None(), err
		}
	case k.Is(terminal.KeyBackspace):
		if r := []rune(s.input); len(r) > 0 {
			s.input = string(r[:len(r)-1])
		}
	case k.Is(terminal.KeyCtrlU):
		s.input = ""
	case k.Is(terminal.KeyEnter):
		field := settings[s.selected]
		next := s.cfg.Clone()
		err := field.set(next, strings.TrimSpace(s.input))
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			s.status, s.failed = "[ERROR] "+errors.UserMessage(err), true
			return s, window.None(), nil
		}
		s.cfg, s.input = next, ""
		s.status, s.failed = field.label+" updated (press 's' to save)", false
		if err := ctx.Fire(triggerApply); err != nil {
			return s, window.None(), err
		}
	case k.Key == terminal.KeyRune && !k.Ctrl && !k.Alt:
		s.input += string(k.Rune)
	}
	return s, window.None(), nil
}

func (w *settingsWindow) Draw(s settingsState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	footer := "↑↓ select  |  Enter edit  |  s save  |  Esc back"
	if v == viewEdit {
		footer = "Enter apply  |  Esc cancel"
	}
	body := chrome(r, th, "Settings", footer)
	if body.Empty() {
		return
	}

	body.Line(0, "Current config: "+s.cfg.Location(), th.Muted)
	labelWidth := 0
	for _, f := range settings {
		labelWidth = max(labelWidth, len(f.label))
	}

	y := 2
	for i, f := range settings {
		label := "  " + pad(f.label, labelWidth) + "  "
		style := th.Text
		if i == s.selected {
			style = th.Selected
		}
		n := body.Text(0, y, label, style)
		if i == s.selected && v == viewEdit {
			body.Text(n, y, s.input+"_", th.Input)
		} else {
			body.Text(n, y, f.get(s.cfg), th.Accent)
		}
		y++
	}

	if s.status != "" {
		style := th.Success
		if s.failed {
			style = th.Error
		}
		body.Line(y+1, s.status, style)
	}
	if v == viewEdit && settings[s.selected].label == "KV Bits" {
		body.Line(y+2, fmt.Sprintf("one of %s", strings.Join(config.KVBitsOptions, ", ")), th.Muted)
	}
	if v == viewSaved {
		body.Line(y+2, "Changes apply on next start", th.Muted)
	}
}
