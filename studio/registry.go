package studio

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one browser's studio: its orchestrator plus lifecycle metadata.
// Everything is ephemeral; eviction drops the scene, take, and feedback.
type Session struct {
	ID             string
	Orchestrator   *Orchestrator
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Registry holds all live studio sessions in memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	build    func(sessionID string) *Orchestrator
}

// NewRegistry creates a registry whose sessions live for ttl past their last
// access. build constructs the per-session orchestrator graph.
func NewRegistry(ttl time.Duration, build func(sessionID string) *Orchestrator) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		build:    build,
	}
}

// Create starts a fresh studio session.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	now := time.Now()
	session := &Session{
		ID:             id,
		Orchestrator:   r.build(id),
		CreatedAt:      now,
		ExpiresAt:      now.Add(r.ttl),
		LastAccessedAt: now,
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()
	return session
}

// Get returns the session by ID, refreshing its expiry. Expired sessions are
// treated as absent.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if session.IsExpired() {
		delete(r.sessions, id)
		session.Orchestrator.Close()
		return nil, false
	}

	now := time.Now()
	session.LastAccessedAt = now
	session.ExpiresAt = now.Add(r.ttl)
	return session, true
}

// Sweep evicts every expired session and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, session := range r.sessions {
		if session.IsExpired() {
			delete(r.sessions, id)
			session.Orchestrator.Close()
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("Evicted %d expired studio sessions", evicted)
	}
	return evicted
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
