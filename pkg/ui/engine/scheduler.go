package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/logging"
	"github.com/odvcencio/dnetui/pkg/telemetry"
	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// DefaultTickInterval is used when Options.TickInterval is zero.
const DefaultTickInterval = 100 * time.Millisecond

// Phase is the scheduler's lifecycle state.
type Phase int

const (
	Running Phase = iota
	ShuttingDown
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Clock supplies cycle timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Scheduler.
type Options struct {
	// TickInterval is the tick cadence and the upper bound of one input poll.
	TickInterval time.Duration

	// Initial is the window focused at startup. Empty means the first window
	// in composition order.
	Initial window.ID

	// Layout arranges windows in the frame. Nil splits the frame into one
	// column per window.
	Layout Layout

	// Strict makes a rejected view transition end the run. Otherwise it is
	// logged, counted and the offending dispatch is discarded.
	Strict bool

	Logger  *logging.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
	Clock   Clock
}

//go:generate mockgen -package=engine -destination=mock_backend_test.go github.com/odvcencio/dnetui/pkg/ui/backend RenderBackend,InputSource

// Scheduler is the single-threaded loop that owns State.
type Scheduler struct {
	state *State
	out   backend.RenderBackend
	in    backend.InputSource
	opts  Options

	frame    *frame.Buffer
	phase    Phase
	nextTick time.Time

	inputLimiter    *rate.Limiter
	inputSuppressed int
}

// New builds the application state and a scheduler for it.
func New(entries []window.Entry, out backend.RenderBackend, in backend.InputSource, opts Options) (*Scheduler, error) {
	if out == nil || in == nil {
		return nil, errors.New(errors.ErrCodeConfigurationFault, "render backend and input source are required")
	}
	st, err := NewState(entries, opts.Initial)
	if err != nil {
		return nil, err
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Layout == nil {
		opts.Layout = Columns(st.order...)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer()
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	return &Scheduler{
		state:        st,
		out:          out,
		in:           in,
		opts:         opts,
		phase:        Running,
		inputLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// State exposes the application state for inspection.
func (s *Scheduler) State() *State { return s.state }

// Phase returns the lifecycle phase.
func (s *Scheduler) Phase() Phase { return s.phase }

// Run drives cycles until a window requests quit, ctx is cancelled or a
// fatal fault occurs. It returns nil after a requested quit, ctx.Err() after
// cancellation, and the fault otherwise. Window cleanup runs in every case.
// The backends must already be initialized; the caller releases them.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.phase != Running {
		return errors.New(errors.ErrCodeInternal, "scheduler already ran")
	}
	w, h := s.out.Size()
	s.frame = frame.NewBuffer(w, h)
	s.nextTick = s.opts.Clock.Now().Add(s.opts.TickInterval)

	var runErr error
	for s.phase == Running {
		if s.state.shouldQuit {
			s.phase = ShuttingDown
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			s.phase = ShuttingDown
			break
		}
		if err := s.cycle(ctx); err != nil {
			runErr = err
			s.phase = ShuttingDown
		}
	}

	s.shutdown()
	return runErr
}

func (s *Scheduler) cycle(ctx context.Context) error {
	start := s.opts.Clock.Now()
	ctx, span := s.opts.Tracer.Start(ctx, "engine.cycle")
	defer span.End()

	ev, err := s.poll(ctx, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if ev != nil {
		if err := s.dispatch(ctx, ev); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if now := s.opts.Clock.Now(); !now.Before(s.nextTick) {
		if err := s.tickAll(ctx, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		s.nextTick = now.Add(s.opts.TickInterval)
	}

	if err := s.drawAndPresent(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	elapsed := s.opts.Clock.Now().Sub(start)
	s.opts.Metrics.Cycle(elapsed)
	if elapsed > s.opts.TickInterval {
		s.opts.Logger.CycleSlow(elapsed, s.opts.TickInterval)
	}
	span.SetAttributes(telemetry.AttrTickCount.Int64(int64(s.state.tickCount)))
	return nil
}

// poll waits for input until the next tick boundary. Transient failures are
// reported as no event.
func (s *Scheduler) poll(ctx context.Context, now time.Time) (terminal.Event, error) {
	timeout := s.nextTick.Sub(now)
	if timeout < 0 {
		timeout = 0
	}
	if timeout > s.opts.TickInterval {
		timeout = s.opts.TickInterval
	}

	ev, err := s.in.Poll(ctx, timeout)
	switch {
	case err == nil:
		return ev, nil
	case stderrors.Is(err, backend.ErrInputClosed):
		return nil, errors.BackendUnavailable(err, "input")
	case ctx.Err() != nil:
		// observed at the top of the next cycle
		return nil, nil
	default:
		s.opts.Metrics.InputError()
		if s.inputLimiter.Allow() {
			s.opts.Logger.InputError(errors.TransientInput(err), s.inputSuppressed)
			s.inputSuppressed = 0
		} else {
			s.inputSuppressed++
		}
		return nil, nil
	}
}

func (s *Scheduler) dispatch(ctx context.Context, ev terminal.Event) error {
	if rs, ok := ev.(terminal.ResizeEvent); ok {
		w, h := rs.Width, rs.Height
		if w <= 0 || h <= 0 {
			w, h = s.out.Size()
		}
		s.frame.Resize(w, h)
		return nil
	}

	id, ok := s.state.Focused()
	if !ok {
		return nil
	}
	_, span := s.opts.Tracer.Start(ctx, "engine.handle", trace.WithAttributes(
		telemetry.AttrWindow.String(string(id)),
		telemetry.AttrEvent.String(terminal.Describe(ev)),
	))
	defer span.End()

	sl := s.state.slots[id]
	scratch := sl.machine.Clone()
	wctx := window.NewContext(id, s.state, scratch, s.opts.Clock.Now())

	req, err := sl.Handle(wctx, ev)
	if err != nil {
		span.RecordError(err)
		return s.contain(id, "handle", err)
	}
	sl.machine = scratch
	span.SetAttributes(telemetry.AttrRequest.String(req.String()))

	if target, ok := req.Focus(); ok {
		if err := s.state.setFocus(id, target); err != nil {
			return err
		}
		if target != id {
			s.opts.Logger.FocusChanged(string(id), string(target))
			s.opts.Metrics.FocusChange(string(id), string(target))
		}
	}
	if req.IsQuit() {
		s.state.shouldQuit = true
	}
	return nil
}

func (s *Scheduler) tickAll(ctx context.Context, now time.Time) error {
	_, span := s.opts.Tracer.Start(ctx, "engine.tick")
	defer span.End()

	s.state.tickCount++
	s.opts.Metrics.Tick()
	for _, id := range s.state.order {
		sl := s.state.slots[id]
		scratch := sl.machine.Clone()
		wctx := window.NewContext(id, s.state, scratch, now)
		if err := sl.Tick(wctx); err != nil {
			if fatal := s.contain(id, "tick", err); fatal != nil {
				return fatal
			}
			continue
		}
		sl.machine = scratch
	}
	return nil
}

// contain decides whether a window error ends the run. Rejected transitions
// are fatal only in strict mode; configuration and backend faults always
// are; everything else is logged and discarded with the dispatch.
func (s *Scheduler) contain(id window.ID, op string, err error) error {
	switch {
	case errors.IsCode(err, errors.ErrCodeInvalidTransition):
		s.opts.Metrics.InvalidTransition(string(id))
		s.opts.Logger.TransitionRejected(string(id), err)
		if s.opts.Strict {
			return err
		}
		return nil
	case errors.IsCode(err, errors.ErrCodeConfigurationFault),
		errors.IsCode(err, errors.ErrCodeBackendUnavailable):
		return err
	default:
		s.opts.Metrics.WindowError(string(id), op)
		s.opts.Logger.WindowFailed(string(id), op, err)
		return nil
	}
}

func (s *Scheduler) drawAndPresent(ctx context.Context) error {
	_, span := s.opts.Tracer.Start(ctx, "engine.draw")
	defer span.End()

	s.frame.Clear()
	focused, _ := s.state.Focused()
	regions := s.opts.Layout.Arrange(s.frame.Bounds(), focused)
	for _, id := range s.state.order {
		region := frame.EmptyRegion()
		if r, ok := regions[id]; ok {
			region = s.frame.Region(r)
		}
		sl := s.state.slots[id]
		sl.Draw(sl.machine.Current(), region)
	}

	if err := s.out.Present(s.frame); err != nil {
		return errors.BackendUnavailable(err, "present")
	}
	s.opts.Metrics.Present()
	return nil
}

func (s *Scheduler) shutdown() {
	s.phase = ShuttingDown
	s.state.clearFocus()
	for _, id := range s.state.order {
		if err := s.state.slots[id].Close(); err != nil {
			s.opts.Logger.WindowFailed(string(id), "close", err)
		}
	}
	s.phase = Terminated
}
