package whatsapp

import (
	"slices"
	"sync"

	"github.com/mamadbah2/wacloud/pkg/clients/anthropic"
)

const defaultMaxHistory = 20

// SessionManager keeps the assistant conversation of every user.
type SessionManager struct {
	sessions   map[string][]anthropic.Message
	maxHistory int
	mu         sync.RWMutex
}

// NewSessionManager creates a session manager keeping at most maxHistory messages per
// user. Zero or less means the default.
func NewSessionManager(maxHistory int) *SessionManager {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &SessionManager{
		sessions:   make(map[string][]anthropic.Message),
		maxHistory: maxHistory,
	}
}

// GetSession returns a copy of the user's history.
func (sm *SessionManager) GetSession(userID string) []anthropic.Message {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return slices.Clone(sm.sessions[userID])
}

// AppendSession adds messages to the user's history and returns the updated copy. The
// oldest messages are dropped past the limit; the history always starts with a user turn.
func (sm *SessionManager) AppendSession(userID string, msgs ...anthropic.Message) []anthropic.Message {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	history := append(sm.sessions[userID], msgs...)
	for len(history) > sm.maxHistory || (len(history) > 0 && history[0].Role != anthropic.RoleUser) {
		history = history[1:]
	}
	sm.sessions[userID] = history
	return slices.Clone(history)
}

// ClearSession removes a user's session.
func (sm *SessionManager) ClearSession(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}
