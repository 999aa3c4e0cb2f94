package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// step is one scripted Poll result. An idle step lets the full timeout
// elapse; advance overrides how far the clock moves.
type step struct {
	ev      terminal.Event
	err     error
	idle    bool
	advance time.Duration
}

func key(r rune) step { return step{ev: terminal.KeyEvent{Key: terminal.KeyRune, Rune: r}} }
func special(k terminal.Key) step {
	return step{ev: terminal.KeyEvent{Key: k}}
}
func idle() step { return step{idle: true} }

// fakeTerm is a scripted terminal. When the script runs out it cancels the
// run's context so tests always terminate.
type fakeTerm struct {
	clock  *fakeClock
	width  int
	height int
	steps  []step
	cancel context.CancelFunc

	polls      []time.Duration
	frames     [][]string
	presentErr error
	onPresent  func()
}

func newFakeTerm(clock *fakeClock, w, h int, steps ...step) *fakeTerm {
	return &fakeTerm{clock: clock, width: w, height: h, steps: steps}
}

func (f *fakeTerm) Init() error               { return nil }
func (f *fakeTerm) Fini()                     {}
func (f *fakeTerm) Size() (width, height int) { return f.width, f.height }

func (f *fakeTerm) Present(s backend.Surface) error {
	if f.presentErr != nil {
		return f.presentErr
	}
	w, h := s.Size()
	lines := make([]string, h)
	for y := 0; y < h; y++ {
		var sb strings.Builder
		for x := 0; x < w; x++ {
			if r, _ := s.Cell(x, y); r != 0 {
				sb.WriteRune(r)
			}
		}
		lines[y] = sb.String()
	}
	f.frames = append(f.frames, lines)
	if f.onPresent != nil {
		f.onPresent()
	}
	return nil
}

func (f *fakeTerm) Poll(_ context.Context, timeout time.Duration) (terminal.Event, error) {
	f.polls = append(f.polls, timeout)
	if len(f.steps) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		f.clock.Advance(timeout)
		return nil, nil
	}
	st := f.steps[0]
	f.steps = f.steps[1:]
	switch {
	case st.advance > 0:
		f.clock.Advance(st.advance)
	case st.idle:
		f.clock.Advance(timeout)
	}
	return st.ev, st.err
}

func (f *fakeTerm) lastFrame() string {
	if len(f.frames) == 0 {
		return ""
	}
	return strings.Join(f.frames[len(f.frames)-1], "\n")
}

// listState and detailState are the private states of the two test windows.
type listState struct {
	Items   []string
	Cursor  int
	Handled int
	Ticks   int
}

type listWindow struct {
	closed *bool
}

func (listWindow) Init() listState {
	return listState{Items: []string{"alpha", "beta"}}
}

func (listWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{"browse"},
		Initial: "browse",
		Edges: map[view.Edge]view.View{
			{From: "browse", Trigger: "select"}: "browse",
		},
	}
}

func (listWindow) Draw(s listState, v view.View, r *frame.Region) {
	r.Text(0, 0, "list:"+string(v), backend.DefaultStyle())
}

func (listWindow) Tick(_ *window.Context, s listState) (listState, error) {
	s.Ticks++
	return s, nil
}

func (listWindow) Handle(ctx *window.Context, s listState, ev terminal.Event) (listState, window.Request, error) {
	k, ok := ev.(terminal.KeyEvent)
	if !ok {
		return s, window.None(), nil
	}
	s.Handled++
	switch {
	case k.Is(terminal.KeyEnter):
		if err := ctx.Fire("select"); err != nil {
			return s, window.None(), err
		}
		return s, window.FocusTo("detail"), nil
	case k.Is(terminal.KeyDown):
		s.Cursor = (s.Cursor + 1) % len(s.Items)
	case k.IsRune('q'):
		return s, window.Quit(), nil
	case k.IsRune('x'):
		return s, window.None(), ctx.Fire("bogus")
	case k.IsRune('f'):
		return s, window.FocusTo("nowhere"), nil
	case k.IsRune('e'):
		return s, window.None(), errors.New("handler failed")
	}
	return s, window.None(), nil
}

func (w listWindow) Close(listState) error {
	if w.closed != nil {
		*w.closed = true
	}
	return nil
}

type detailState struct {
	Handled int
	Ticks   int
}

type detailWindow struct{}

func (detailWindow) Init() detailState { return detailState{} }

func (detailWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{"empty", "showing"},
		Initial: "empty",
		Edges: map[view.Edge]view.View{
			{From: "empty", Trigger: "show"}:   "showing",
			{From: "showing", Trigger: "back"}: "empty",
		},
	}
}

func (detailWindow) Draw(s detailState, v view.View, r *frame.Region) {
	r.Text(0, 0, "detail:"+string(v), backend.DefaultStyle())
}

func (detailWindow) Tick(_ *window.Context, s detailState) (detailState, error) {
	s.Ticks++
	return s, nil
}

func (detailWindow) Handle(ctx *window.Context, s detailState, ev terminal.Event) (detailState, window.Request, error) {
	s.Handled++
	if k, ok := ev.(terminal.KeyEvent); ok && k.Is(terminal.KeyEscape) {
		return s, window.FocusTo("list"), nil
	}
	if k, ok := ev.(terminal.KeyEvent); ok && k.IsRune('s') {
		return s, window.None(), ctx.Fire("show")
	}
	return s, window.None(), nil
}

type closeErrWindow struct{ detailWindow }

func (closeErrWindow) Close(detailState) error { return errors.New("close failed") }

func entries(closed *bool) []window.Entry {
	return []window.Entry{
		window.Register[detailState]("detail", detailWindow{}),
		window.Register[listState]("list", listWindow{closed: closed}),
	}
}

func stateOf[S any](s *Scheduler, id window.ID) S {
	st, _ := window.StateOf[S](s.state.slots[id].Slot)
	return st
}

// syncBuffer is a goroutine-safe writer for log capture.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
