package usecase

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tchan1002/apache/internal/entity"
)

// ClientSession is the per-popup state shared by the readiness, scout, poll
// and query components. Results computed for a URL the user has since left
// are dropped by comparing the generation captured at request time.
type ClientSession struct {
	ID string

	mu         sync.Mutex
	currentURL string
	generation uint64
	state      *entity.SiteState

	scouting atomic.Bool
}

func NewClientSession() *ClientSession {
	return &ClientSession{ID: uuid.NewString()}
}

// Track makes url the current URL and returns the new generation.
// Any state held for the previous URL is dropped.
func (s *ClientSession) Track(url string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.currentURL = url
	s.state = nil
	return s.generation
}

// Current returns the tracked URL and its generation.
func (s *ClientSession) Current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL, s.generation
}

func (s *ClientSession) IsCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// State returns a copy of the current state, or nil.
func (s *ClientSession) State() *entity.SiteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	st := *s.state
	return &st
}

// Apply stores state if gen is still the current generation.
func (s *ClientSession) Apply(gen uint64, state *entity.SiteState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.state = copyState(state)
	return true
}

// ApplyForURL stores state if its URL is still the tracked one.
func (s *ClientSession) ApplyForURL(state *entity.SiteState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil || s.currentURL != state.URL {
		return false
	}
	s.state = copyState(state)
	return true
}

// Clear drops the state held for url.
func (s *ClientSession) Clear(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil && s.state.URL == url {
		s.state = nil
	}
}

// beginScout claims the single scout slot.
func (s *ClientSession) beginScout() bool {
	return s.scouting.CompareAndSwap(false, true)
}

func (s *ClientSession) endScout() {
	s.scouting.Store(false)
}

// Scouting reports whether a scout is in flight.
func (s *ClientSession) Scouting() bool {
	return s.scouting.Load()
}

func copyState(state *entity.SiteState) *entity.SiteState {
	if state == nil {
		return nil
	}
	st := *state
	return &st
}
