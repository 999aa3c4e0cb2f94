package watch

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Stream is a single-flight slot for a job that produces text
// incrementally, such as a chat completion. The job appends through emit;
// the owning window reads the text so far on every tick.
type Stream struct {
	mu      sync.Mutex
	id      string
	text    strings.Builder
	running bool
	cancel  context.CancelFunc
	done    *Result[string]
}

// Start launches fn unless a stream is already running. The previous text
// and result are discarded.
func (s *Stream) Start(jobs *Jobs, fn func(ctx context.Context, emit func(string)) error) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	id := ulid.Make().String()
	ctx, cancel := context.WithCancel(jobs.ctx)
	s.id = id
	s.text.Reset()
	s.running = true
	s.cancel = cancel
	s.done = nil
	s.mu.Unlock()

	emit := func(delta string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id == id {
			s.text.WriteString(delta)
		}
	}
	jobs.group.Go(func() error {
		defer cancel()
		err := fn(ctx, emit)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id == id {
			s.running = false
			s.done = &Result[string]{ID: id, Value: s.text.String(), Err: err}
		}
		return nil
	})
	return true
}

// Text returns the text produced so far.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Take returns the finished stream once and clears it.
func (s *Stream) Take() (Result[string], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return Result[string]{}, false
	}
	r := *s.done
	s.done = nil
	return r, true
}

// Stop cancels a running stream and returns the text it produced. Later
// output from the cancelled job is dropped and no result is reported.
func (s *Stream) Stop() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.text.String()
	if s.running {
		s.cancel()
	}
	s.id = ""
	s.running = false
	s.done = nil
	s.text.Reset()
	return text
}
