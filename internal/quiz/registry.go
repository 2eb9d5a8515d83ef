package quiz

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aalexander1088-svg/korean-learning-bot-sub000/pkg/models"
)

// Registry holds active quiz sessions in memory, keyed by session id. It is
// the only process-wide mutable state shared across users, so all access is
// synchronized here. It also hands out the per-user lock that serializes
// mutation of a user's learning state while a session is in flight.
type Registry struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*registryEntry
	userLocks map[int64]*sync.Mutex
}

type registryEntry struct {
	session      *models.QuizSession
	lastActivity time.Time
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[uuid.UUID]*registryEntry),
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// LockUser returns the mutex serializing writes for a user. Callers lock it
// before mutating the user's session, review records or progress.
func (r *Registry) LockUser(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.userLocks[userID] = lock
	}
	return lock
}

// Register stores a freshly built session, replacing any previous active
// session for the same user. A replaced session is simply dropped:
// abandonment never touches the store.
func (r *Registry) Register(session *models.QuizSession, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		if e.session.UserID == session.UserID {
			delete(r.sessions, id)
		}
	}
	r.sessions[session.ID] = &registryEntry{session: session, lastActivity: now}
}

// Get returns the active session for an id
func (r *Registry) Get(id uuid.UUID) (*models.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return e.session, nil
}

// ActiveForUser returns the user's in-flight session, if any
func (r *Registry) ActiveForUser(userID int64) (*models.QuizSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sessions {
		if e.session.UserID == userID {
			return e.session, true
		}
	}
	return nil, false
}

// Touch records activity on a session and returns the time elapsed since
// the previous activity.
func (r *Registry) Touch(id uuid.UUID, now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return 0
	}
	elapsed := now.Sub(e.lastActivity)
	e.lastActivity = now
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remove drops a session from the registry
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep drops sessions idle longer than maxIdle and returns how many were
// collected. Abandoned sessions leave no trace in the store; only their
// already-flushed answers survive.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastActivity) > maxIdle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of active sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
