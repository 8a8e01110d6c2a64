package edits

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrStale is returned when a snapshot older than the current log is offered.
var ErrStale = eris.New("edits: stale snapshot")

// Hook runs after every accepted change, in registration order.
type Hook func(prev, next Log)

type namedHook struct {
	name string
	fn   Hook
}

// Store owns the current log. All mutations go through Dispatch, Replace or
// Restore, which run the registered hooks (persist, recompute, notify) in
// order.
// Hooks must not call back into the store.
type Store struct {
	mu    sync.Mutex
	log   Log
	hooks []namedHook
}

// NewStore creates a store holding an empty log.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers a post-mutation hook.
func (s *Store) OnChange(name string, fn Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

// Snapshot returns the current log.
func (s *Store) Snapshot() Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// Dispatch runs reducer against the current log. A result whose count did
// not advance is treated as "no change" and runs no hooks.
func (s *Store) Dispatch(reducer func(Log) Log) Log {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.log
	next := reducer(prev)
	if next.Count <= prev.Count {
		return prev
	}
	s.log = next
	s.run(prev, next)
	return next
}

// Replace installs a log produced elsewhere, such as an asynchronous
// operation that started from an older snapshot. The installed log always
// carries a count above the current one so consumers see the change.
func (s *Store) Replace(next Log) error {
	return s.install(next, true)
}

// Restore installs a stored log with its count unchanged.
func (s *Store) Restore(next Log) error {
	return s.install(next, false)
}

func (s *Store) install(next Log, advance bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.log
	if next.Count < prev.Count {
		zap.L().Warn("edits: rejecting stale log",
			zap.Int64("current", prev.Count),
			zap.Int64("offered", next.Count),
		)
		return ErrStale
	}
	if advance {
		next.Count = max(next.Count, prev.Count+1)
	}
	s.log = next
	s.run(prev, next)
	return nil
}

func (s *Store) run(prev, next Log) {
	for _, h := range s.hooks {
		zap.L().Debug("edits: hook", zap.String("hook", h.name), zap.Int64("count", next.Count))
		h.fn(prev, next)
	}
}
