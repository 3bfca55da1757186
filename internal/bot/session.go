package bot

import (
	"sync"

	"collegebot/internal/models"
)

// State tracks what input a chat's next plain-text message is answering.
type State int

const (
	StateNone State = iota
	StateAwaitGroup
	StateAwaitTeacher
	StateAwaitRoom
	StateAwaitSubscribe
)

// Sessions holds per-chat dialog state. Safe for concurrent use.
type Sessions struct {
	mu     sync.Mutex
	states map[models.SubscriberKey]State
}

// NewSessions builds an empty session table.
func NewSessions() *Sessions {
	return &Sessions{states: make(map[models.SubscriberKey]State)}
}

// Get returns the pending state for a chat, StateNone when absent.
func (s *Sessions) Get(key models.SubscriberKey) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

// Set records the pending state for a chat.
func (s *Sessions) Set(key models.SubscriberKey, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateNone {
		delete(s.states, key)
		return
	}
	s.states[key] = state
}

// Clear drops any pending state for a chat.
func (s *Sessions) Clear(key models.SubscriberKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
}
