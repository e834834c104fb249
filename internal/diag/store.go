package diag

import (
	"sync"
	"sync/atomic"
)

// version is one committed State. Its changed channel is closed as soon as
// a newer version replaces it, which wakes every waiter at once.
type version struct {
	state   State
	changed chan struct{}
}

// Store publishes the live State. Reads are lock-free and always observe a
// whole committed version; writers are serialized.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[version]
}

// NewStore creates a store holding the given initial state.
func NewStore(initial State) *Store {
	s := &Store{}
	s.cur.Store(&version{state: initial, changed: make(chan struct{})})
	return s
}

// Load returns the current state.
func (s *Store) Load() State {
	return s.cur.Load().state
}

// Watch returns the current state together with a channel that is closed
// when it is superseded.
func (s *Store) Watch() (State, <-chan struct{}) {
	v := s.cur.Load()
	return v.state, v.changed
}

// Update applies fn to a copy of the current state and commits the result
// as one version. It returns the committed state.
func (s *Store) Update(fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	next := &version{state: old.state, changed: make(chan struct{})}
	fn(&next.state)
	s.cur.Store(next)
	close(old.changed)
	return next.state
}
