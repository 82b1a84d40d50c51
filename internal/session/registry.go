// internal/session/registry.go
package session

import (
	"sync"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

// Registry tracks which user each connection belongs to and which game each
// connection is watching. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session     // connection id -> session
	subscribers map[string]map[string]struct{} // game id -> connection ids
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]*models.Session),
		subscribers: make(map[string]map[string]struct{}),
	}
}

// Create binds connID to userID. It fails with a conflict if the connection
// already has a session.
func (r *Registry) Create(connID, userID string) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		return models.Session{}, apperr.Conflictf("connection %s already has a session", connID)
	}
	s := &models.Session{ConnectionID: connID, UserID: userID}
	r.sessions[connID] = s
	return *s, nil
}

// Get returns the session of connID, if any.
func (r *Registry) Get(connID string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// Subscribe points connID at gameID, leaving whatever game it watched before.
// An empty gameID unsubscribes.
func (r *Registry) Subscribe(connID, gameID string) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return models.Session{}, apperr.NotFoundf("no session for connection %s", connID)
	}
	r.unsubscribeLocked(s)
	if gameID != "" {
		subs, ok := r.subscribers[gameID]
		if !ok {
			subs = make(map[string]struct{})
			r.subscribers[gameID] = subs
		}
		subs[connID] = struct{}{}
		s.GameID = gameID
	}
	return *s, nil
}

// GameConnections lists the connections watching gameID, in no particular order.
func (r *Registry) GameConnections(gameID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subscribers[gameID]
	conns := make([]string, 0, len(subs))
	for connID := range subs {
		conns = append(conns, connID)
	}
	return conns
}

// UnsubscribeUser drops every subscription userID holds on gameID, across all
// of the user's connections, and returns the affected connection ids.
func (r *Registry) UnsubscribeUser(userID, gameID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for connID := range r.subscribers[gameID] {
		if s := r.sessions[connID]; s != nil && s.UserID == userID {
			dropped = append(dropped, connID)
		}
	}
	for _, connID := range dropped {
		r.unsubscribeLocked(r.sessions[connID])
	}
	return dropped
}

// Remove drops the session of connID. Removing an absent session is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return
	}
	r.unsubscribeLocked(s)
	delete(r.sessions, connID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// unsubscribeLocked removes s from its current game's subscriber set.
// Assumes the write lock is held by the caller.
func (r *Registry) unsubscribeLocked(s *models.Session) {
	if s.GameID == "" {
		return
	}
	if subs, ok := r.subscribers[s.GameID]; ok {
		delete(subs, s.ConnectionID)
		if len(subs) == 0 {
			delete(r.subscribers, s.GameID)
		}
	}
	s.GameID = ""
}
