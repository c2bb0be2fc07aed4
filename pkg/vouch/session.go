package vouch

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is how long a session waits after the last edit
// before running a matching pass.
const DefaultDebounce = 300 * time.Millisecond

// Runner executes one matching pass for a query.
type Runner func(ctx context.Context, q MatchQuery) (*MatchResult, error)

// ApplyFunc receives the result of a non-stale matching pass. It runs
// under the session lock and must not call back into the Session.
type ApplyFunc func(q MatchQuery, res *MatchResult, err error)

// Session serializes the matching passes of one editing session. A
// burst of edits within the debounce window collapses to a single pass
// over the final state, at most one pass is in flight at a time, and a
// result that answers anything older than the latest query is dropped
// instead of being applied over newer state. In-flight passes are not
// cancelled; staleness is handled entirely on the result side.
type Session struct {
	run      Runner
	apply    ApplyFunc
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	latest   MatchQuery
	seq      uint64
	inflight bool
	pending  bool
	closed   bool
	idle     chan struct{}
}

// NewSession creates a session running passes through run and applying
// fresh results through apply. A non-positive debounce falls back to
// DefaultDebounce.
func NewSession(run Runner, apply ApplyFunc, debounce time.Duration) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Session{run: run, apply: apply, debounce: debounce}
}

// NewMatchSession creates a session that matches through the client.
func NewMatchSession(c *Client, apply ApplyFunc, debounce time.Duration) *Session {
	return NewSession(c.MatchClaims, apply, debounce)
}

// Update records an edited query and (re)starts the debounce window.
func (s *Session) Update(ctx context.Context, q MatchQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = q
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(ctx) })
}

// Flush runs the latest query immediately, bypassing the debounce
// window. Used on submit, when the final state must be matched now.
func (s *Session) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.fire(ctx)
}

// Close stops the debounce timer. A pass already in flight finishes
// but its result is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Wait blocks until no pass is in flight or queued. Test helper.
func (s *Session) Wait() {
	s.mu.Lock()
	if !s.inflight {
		s.mu.Unlock()
		return
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	ch := s.idle
	s.mu.Unlock()
	<-ch
}

// fire starts a pass for the latest query unless one is already in
// flight, in which case the newest state runs when it completes.
func (s *Session) fire(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.inflight {
		s.pending = true
		return
	}
	s.launch(ctx)
}

// launch starts one pass. Caller holds s.mu.
func (s *Session) launch(ctx context.Context) {
	s.inflight = true
	q := s.latest
	seq := s.seq

	go func() {
		res, err := s.run(ctx, q)

		s.mu.Lock()
		fresh := seq == s.seq && !s.closed
		if fresh {
			// Applied under the lock so a later result can never race
			// in ahead of this one.
			if s.apply != nil {
				s.apply(q, res, err)
			}
		}
		if s.pending && !s.closed {
			s.pending = false
			s.launch(ctx)
			s.mu.Unlock()
			return
		}
		s.inflight = false
		if s.idle != nil {
			close(s.idle)
			s.idle = nil
		}
		s.mu.Unlock()
	}()
}
