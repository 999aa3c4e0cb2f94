package sim

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
)

func newInit(t *testing.T, w, h int) *Backend {
	t.Helper()
	sim := New(w, h)
	if err := sim.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(sim.Fini)
	return sim
}

// nextKey polls until a key event arrives, skipping any
// resize the screen emits on startup.
func nextKey(t *testing.T, sim *Backend) terminal.KeyEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := sim.Poll(context.Background(), 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if k, ok := ev.(terminal.KeyEvent); ok {
			return k
		}
	}
	t.Fatal("no key event arrived")
	return terminal.KeyEvent{}
}

// drain discards anything the screen posted on startup.
func drain(sim *Backend) {
	for {
		ev, _ := sim.Poll(context.Background(), 20*time.Millisecond)
		if ev == nil {
			return
		}
	}
}

func present(t *testing.T, sim *Backend, buf *frame.Buffer) {
	t.Helper()
	if err := sim.Present(buf); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
}

func TestBackend_BasicRendering(t *testing.T) {
	sim := newInit(t, 20, 5)

	buf := frame.NewBuffer(20, 5)
	buf.Region(buf.Bounds()).Text(0, 0, "Hello, World!", backend.DefaultStyle().Foreground(backend.ColorWhite))
	present(t, sim, buf)

	lines := strings.Split(sim.Capture(), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Hello, World!") {
		t.Errorf("Expected first line to start with 'Hello, World!', got %q", lines[0])
	}
	if sim.Presents() != 1 {
		t.Errorf("Presents() = %d, want 1", sim.Presents())
	}
}

func TestBackend_Size(t *testing.T) {
	sim := newInit(t, 80, 24)

	w, h := sim.Size()
	if w != 80 || h != 24 {
		t.Errorf("Expected 80x24, got %dx%d", w, h)
	}
}

func TestBackend_PresentBeforeInit(t *testing.T) {
	sim := New(10, 2)
	if err := sim.Present(frame.NewBuffer(10, 2)); err != backend.ErrNotInitialized {
		t.Errorf("Present before Init = %v, want ErrNotInitialized", err)
	}
	if sim.Presents() != 0 {
		t.Error("failed presents should not be counted")
	}
}

func TestBackend_FindText(t *testing.T) {
	sim := newInit(t, 40, 10)

	buf := frame.NewBuffer(40, 10)
	buf.Region(buf.Bounds()).Text(5, 3, "target", backend.DefaultStyle())
	present(t, sim, buf)

	x, y := sim.FindText("target")
	if x != 5 || y != 3 {
		t.Errorf("Expected to find 'target' at (5, 3), got (%d, %d)", x, y)
	}
	if !sim.ContainsText("target") {
		t.Error("Expected to find 'target' on screen")
	}
	if sim.ContainsText("nothere") {
		t.Error("Should not find 'nothere' on screen")
	}
	if got := sim.CaptureRegion(5, 3, 6, 1); got != "target" {
		t.Errorf("CaptureRegion = %q, want %q", got, "target")
	}
}

func TestBackend_InjectKeys(t *testing.T) {
	sim := newInit(t, 20, 5)

	sim.InjectKeyRune('q')
	sim.InjectKey(terminal.KeyEnter)
	sim.InjectKeyString("ab")

	if k := nextKey(t, sim); !k.IsRune('q') {
		t.Errorf("first key = %v, want q", k)
	}
	if k := nextKey(t, sim); !k.Is(terminal.KeyEnter) {
		t.Errorf("second key = %v, want enter", k)
	}
	if k := nextKey(t, sim); !k.IsRune('a') {
		t.Errorf("third key = %v, want a", k)
	}
	if k := nextKey(t, sim); !k.IsRune('b') {
		t.Errorf("fourth key = %v, want b", k)
	}
}

func TestBackend_PollTimesOut(t *testing.T) {
	sim := newInit(t, 20, 5)

	drain(sim)

	start := time.Now()
	ev, err := sim.Poll(context.Background(), 30*time.Millisecond)
	if err != nil || ev != nil {
		t.Fatalf("Poll = (%v, %v), want (nil, nil)", ev, err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Error("Poll returned before the timeout")
	}
}

func TestBackend_PollHonoursContext(t *testing.T) {
	sim := newInit(t, 20, 5)
	drain(sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Poll(ctx, time.Second); err != context.Canceled {
		t.Errorf("Poll with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestBackend_InjectResize(t *testing.T) {
	sim := newInit(t, 80, 24)

	sim.InjectResize(40, 12)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := sim.Poll(context.Background(), 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if rs, ok := ev.(terminal.ResizeEvent); ok && rs.Width == 40 {
			if rs.Height != 12 {
				t.Errorf("resize height = %d, want 12", rs.Height)
			}
			w, h := sim.Size()
			if w != 40 || h != 12 {
				t.Errorf("Size after resize = %dx%d, want 40x12", w, h)
			}
			return
		}
	}
	t.Fatal("resize event never arrived")
}
