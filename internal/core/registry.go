package core

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"homecare-visit-bot/pkg"
)

// Session is the conversation record of one user identity.  Fields are only
// touched while mu is held; the Conversation takes it for the whole handling
// of an event.
type Session struct {
	mu sync.Mutex

	UserID    string
	State     State
	PIN       string
	Artifacts []pkg.ArtifactRef
	Notes     []string
}

// clear drops the accumulators.  Called on every exit from collection mode.
func (s *Session) clear() {
	s.Artifacts = nil
	s.Notes = nil
}

// SessionView is a copy of a session's fields, safe to read without locks.
type SessionView struct {
	State     State
	PIN       string
	Artifacts []pkg.ArtifactRef
	Notes     []string
}

// View returns a consistent snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		State:     s.State,
		PIN:       s.PIN,
		Artifacts: append([]pkg.ArtifactRef(nil), s.Artifacts...),
		Notes:     append([]string(nil), s.Notes...),
	}
}

// Registry maps user identities to their sessions.  Sessions are never
// evicted; memory grows with distinct users, not with traffic.
type Registry struct {
	cache *cache.Cache
}

func NewRegistry() *Registry {
	// No default expiration and no janitor goroutine.
	return &Registry{cache: cache.New(cache.NoExpiration, 0)}
}

// GetOrCreate returns the session for userID, creating it in the
// UNAUTHENTICATED state on first contact.  Concurrent first contacts for the
// same identity all receive the same record.
func (r *Registry) GetOrCreate(userID string) *Session {
	if x, found := r.cache.Get(userID); found {
		return x.(*Session)
	}
	s := &Session{UserID: userID, State: StateUnauthenticated}
	if err := r.cache.Add(userID, s, cache.NoExpiration); err != nil {
		// Lost the race; Add only fails when the key already exists.
		x, _ := r.cache.Get(userID)
		return x.(*Session)
	}
	return s
}

// Len is the number of distinct identities seen.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
