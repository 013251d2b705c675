// internal/conversation/session.go
package conversation

import (
	"sync"
	"time"

	"intake-bot/internal/common/metrics"
	"intake-bot/internal/models"
)

// State names the step of the intake form a session is waiting on.
type State string

const (
	StateSelectingTeam      State = "selecting_team"
	StateAwaitingGender     State = "awaiting_gender"
	StateAwaitingReason     State = "awaiting_reason"
	StateAwaitingExperience State = "awaiting_experience"
	StateAwaitingWhatsapp   State = "awaiting_whatsapp"
)

// Session is one applicant's in-progress form. Sessions live in memory only;
// a restart drops drafts but never submitted applications. Field mutation is
// serialized per applicant by the dispatcher, the registry lock only guards
// the map itself.
type Session struct {
	UserID    int64
	ChatID    int64
	Applicant models.Applicant
	State     State

	TeamID     string
	TeamName   string
	Gender     string
	Reason     string
	Experience string
	Whatsapp   string

	StartedAt time.Time
	UpdatedAt time.Time
}

// Touch records form progress for the activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// Registry holds the active sessions keyed by applicant ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
	}
}

// Get returns the active session for an applicant, if any.
func (r *Registry) Get(userID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[userID]
	return session, ok
}

// Put registers a session, replacing any previous one for the same applicant.
func (r *Registry) Put(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.UserID]; !exists {
		metrics.SessionsActive.Inc()
	}
	r.sessions[session.UserID] = session
}

// Delete removes an applicant's session. Removing an absent session is a
// no-op.
func (r *Registry) Delete(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[userID]; exists {
		delete(r.sessions, userID)
		metrics.SessionsActive.Dec()
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
