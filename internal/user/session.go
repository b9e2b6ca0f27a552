package user

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued token stays valid.
const DefaultSessionTTL = 24 * time.Hour

type session struct {
	mobile    string
	expiresAt time.Time
}

// SessionStore issues and validates opaque login tokens. Tokens live in
// memory only; a restart logs everyone out.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
	ttl      time.Duration

	now func() time.Time
}

// NewSessionStore creates a store with the given token lifetime; ttl <= 0
// selects DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a fresh token bound to mobile.
func (s *SessionStore) Create(mobile string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{mobile: mobile, expiresAt: s.now().Add(s.ttl)}
	return token
}

// Resolve returns the mobile bound to token. Expired tokens are removed on
// lookup.
func (s *SessionStore) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", false
	}
	return sess.mobile, true
}

// Revoke invalidates token. Unknown tokens are a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
