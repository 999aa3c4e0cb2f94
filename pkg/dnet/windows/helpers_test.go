package windows

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/dnetui/pkg/config"
	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

type fakeActions struct {
	mu         sync.Mutex
	prepareErr error
	loadErr    error
	unloadErr  error
	health     *api.ShardHealth
	healthErr  error
	prepared   []api.PrepareTopologyRequest
	loaded     []string

	devices   map[string]api.DeviceProperties
	manual    []api.ManualTopologyRequest
	manualErr error

	chats     []api.ChatRequest
	deltas    []string
	chatErr   error
	chatGate  chan struct{}
	chatCalls atomic.Int32

	unloads     atomic.Int32
	healthCalls atomic.Int32
}

func (f *fakeActions) PrepareTopology(ctx context.Context, req api.PrepareTopologyRequest) (*api.TopologyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, req)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &api.TopologyInfo{Model: &req.Model, NumLayers: 36}, nil
}

func (f *fakeActions) LoadModel(ctx context.Context, model string) (*api.LoadModelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, model)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &api.LoadModelResponse{
		Model:   model,
		Success: true,
		ShardStatuses: []api.ShardLoadStatus{
			{Instance: "shard-a", Success: true, LayersLoaded: []int{0, 1, 2}},
			{Instance: "shard-b", Success: true, LayersLoaded: []int{3, 4, 5}},
		},
	}, nil
}

func (f *fakeActions) UnloadModel(ctx context.Context) error {
	f.unloads.Add(1)
	return f.unloadErr
}

func (f *fakeActions) ShardHealth(ctx context.Context, d api.DeviceProperties) (*api.ShardHealth, error) {
	f.healthCalls.Add(1)
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	h := *f.health
	h.Instance = d.Instance
	return &h, nil
}

func (f *fakeActions) Devices(ctx context.Context) (map[string]api.DeviceProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeActions) PrepareTopologyManual(ctx context.Context, req api.ManualTopologyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manual = append(f.manual, req)
	return f.manualErr
}

// ChatStream emits the scripted deltas, then waits on chatGate when set.
func (f *fakeActions) ChatStream(ctx context.Context, req api.ChatRequest, onDelta func(string)) error {
	f.chatCalls.Add(1)
	f.mu.Lock()
	f.chats = append(f.chats, req)
	deltas, gate, err := f.deltas, f.chatGate, f.chatErr
	f.mu.Unlock()

	for _, d := range deltas {
		onDelta(d)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

type fixture struct {
	deps    Deps
	actions *fakeActions
	entries map[window.ID]window.Entry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	jobs := watch.NewJobs(context.Background())
	t.Cleanup(func() { _ = jobs.Close() })

	actions := &fakeActions{health: &api.ShardHealth{Status: "ok", Running: true, AssignedLayers: []int{0, 1, 2}}}
	deps := Deps{
		Config:  config.DefaultConfig(),
		Watcher: watch.New(nil, watch.Intervals{}, nil),
		Jobs:    jobs,
		Actions: actions,
		Version: "v0.1.0-test",
	}
	entries, err := All(deps)
	require.NoError(t, err)

	f := &fixture{deps: deps, actions: actions, entries: make(map[window.ID]window.Entry)}
	for _, e := range entries {
		f.entries[e.ID()] = e
	}
	return f
}

// facts is a fixed view of the rest of the app.
type facts struct {
	focused window.ID
	ticks   uint64
}

func (f *facts) Focused() (window.ID, bool)  { return f.focused, f.focused != "" }
func (f *facts) IsFocused(id window.ID) bool { return f.focused == id }
func (f *facts) TickCount() uint64           { return f.ticks }

// harness drives one window the way the scheduler does: a cloned machine
// per dispatch, kept only on success.
type harness struct {
	t       *testing.T
	id      window.ID
	slot    window.Slot
	machine *view.Machine
	facts   *facts
	now     time.Time
}

func (f *fixture) open(t *testing.T, id window.ID) *harness {
	t.Helper()
	e, ok := f.entries[id]
	require.True(t, ok, "window %s not registered", id)
	m, err := view.NewMachine(string(id), e.Views())
	require.NoError(t, err)
	return &harness{
		t:       t,
		id:      id,
		slot:    e.NewSlot(),
		machine: m,
		facts:   &facts{focused: id},
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) tick() {
	h.t.Helper()
	h.facts.ticks++
	h.now = h.now.Add(100 * time.Millisecond)
	m := h.machine.Clone()
	err := h.slot.Tick(window.NewContext(h.id, h.facts, m, h.now))
	require.NoError(h.t, err)
	h.machine = m
}

func (h *harness) send(ev terminal.Event) window.Request {
	h.t.Helper()
	m := h.machine.Clone()
	req, err := h.slot.Handle(window.NewContext(h.id, h.facts, m, h.now), ev)
	require.NoError(h.t, err)
	h.machine = m
	return req
}

func (h *harness) key(k terminal.Key) window.Request {
	return h.send(terminal.KeyEvent{Key: k})
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(terminal.KeyEvent{Key: terminal.KeyRune, Rune: r})
	}
}

func (h *harness) view() view.View { return h.machine.Current() }

// tickUntil ticks until the window reaches v.
func (h *harness) tickUntil(v view.View) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.tick()
		return h.view() == v
	}, 2*time.Second, 5*time.Millisecond, "window %s never reached %s (at %s)", h.id, v, h.view())
}

func (h *harness) render(w, ht int) string {
	buf := frame.NewBuffer(w, ht)
	h.slot.Draw(h.machine.Current(), buf.Region(buf.Bounds()))
	lines := make([]string, ht)
	for y := range lines {
		lines[y] = buf.Line(y)
	}
	return strings.Join(lines, "\n")
}

func ptr[T any](v T) *T { return &v }

func sampleTopology(model string) *api.TopologyInfo {
	t := &api.TopologyInfo{
		NumLayers: 6,
		KVBits:    "8bit",
		Devices: []api.DeviceProperties{
			{Instance: "shard-a", LocalIP: "10.0.0.1", ServerPort: 8081, ShardPort: 58081},
			{Instance: "shard-b", LocalIP: "10.0.0.2", ServerPort: 8081, ShardPort: 58081},
		},
		Assignments: []api.AssignmentInfo{
			{Instance: "shard-a", Layers: [][]int{{0, 1, 2}}, NextInstance: "shard-b", WindowSize: 3},
			{Instance: "shard-b", Layers: [][]int{{3, 4, 5}}, NextInstance: "shard-a", WindowSize: 3},
		},
	}
	if model != "" {
		t.Model = ptr(model)
	}
	return t
}
