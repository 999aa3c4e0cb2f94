// Package windows is the dnet cluster console: the fixed set of windows the
// engine runs and the layout that places them. Each window owns the job
// slots it starts; only that window reads their results.
package windows

import (
	"context"

	"github.com/odvcencio/dnetui/pkg/config"
	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// Window IDs. Composition order is alphabetical.
const (
	About     window.ID = "about"
	Chat      window.ID = "chat"
	Developer window.ID = "developer"
	Devices   window.ID = "devices"
	Menu      window.ID = "menu"
	Model     window.ID = "model"
	Settings  window.ID = "settings"
	Status    window.ID = "status"
	Topology  window.ID = "topology"
	Unload    window.ID = "unload"
)

// Actions are the API calls windows start as jobs.
type Actions interface {
	PrepareTopology(ctx context.Context, req api.PrepareTopologyRequest) (*api.TopologyInfo, error)
	LoadModel(ctx context.Context, model string) (*api.LoadModelResponse, error)
	UnloadModel(ctx context.Context) error
	ShardHealth(ctx context.Context, d api.DeviceProperties) (*api.ShardHealth, error)
	Devices(ctx context.Context) (map[string]api.DeviceProperties, error)
	PrepareTopologyManual(ctx context.Context, req api.ManualTopologyRequest) error
	ChatStream(ctx context.Context, req api.ChatRequest, onDelta func(string)) error
}

var _ Actions = (*api.Client)(nil)

// Deps is everything the windows read. None of it is window state: cells
// are safe to share and are only read, never edited.
type Deps struct {
	Config  *config.Config
	Watcher *watch.Watcher
	Jobs    *watch.Jobs
	Actions Actions
	Theme   *theme.Theme
	Version string
}

// All registers every window. The menu has initial focus.
func All(deps Deps) ([]window.Entry, error) {
	if deps.Config == nil || deps.Watcher == nil || deps.Jobs == nil || deps.Actions == nil {
		return nil, errors.New(errors.ErrCodeConfigurationFault, "windows need config, watcher, jobs and actions")
	}
	if deps.Theme == nil {
		deps.Theme = theme.DefaultTheme()
	}
	return []window.Entry{
		window.Register(About, &aboutWindow{deps: deps}),
		window.Register(Chat, &chatWindow{deps: deps}),
		window.Register(Developer, &developerWindow{deps: deps}),
		window.Register(Devices, &devicesWindow{deps: deps}),
		window.Register(Menu, &menuWindow{deps: deps}),
		window.Register(Model, &modelWindow{deps: deps}),
		window.Register(Settings, &settingsWindow{deps: deps}),
		window.Register(Status, &statusWindow{deps: deps}),
		window.Register(Topology, &topologyWindow{deps: deps}),
		window.Register(Unload, &unloadWindow{deps: deps}),
	}, nil
}

// move fires trigger unless the window is already in view to.
func move(ctx *window.Context, to view.View, trigger view.Trigger) {
	if ctx.View() != to {
		_ = ctx.Fire(trigger)
	}
}

func keyOf(ev terminal.Event) (terminal.KeyEvent, bool) {
	k, ok := ev.(terminal.KeyEvent)
	return k, ok
}

func isInterrupt(ev terminal.Event) bool {
	k, ok := keyOf(ev)
	return ok && k.IsInterrupt()
}

func isKey(ev terminal.Event, key terminal.Key) bool {
	k, ok := keyOf(ev)
	return ok && k.Is(key)
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}
