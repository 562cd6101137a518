// Package auth issues and tracks gateway sessions.
//
// Credentials are never checked: in disabled and relaxed mode any login
// succeeds, in strict mode every login is refused. Tokens are random
// uuids that expire after a fixed lifetime.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/gateway-sim/internal/metrics"
)

// Mode selects how logins are treated.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeRelaxed  Mode = "relaxed"
	ModeStrict   Mode = "strict"
)

// DefaultTokenExpiry is the session lifetime used when none is configured.
const DefaultTokenExpiry = time.Hour

var (
	ErrInvalidMode        = errors.New("auth: invalid mode")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNoToken            = errors.New("auth: no token provided")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrSessionExpired     = errors.New("auth: session expired")
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDisabled, ModeRelaxed, ModeStrict:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (expected disabled, relaxed or strict)", ErrInvalidMode, s)
}

// Session is an issued token.
type Session struct {
	Token     string
	UserName  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager is the in-memory session table.
type Manager struct {
	mode Mode
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// NewManager creates a Manager. A non-positive ttl falls back to
// DefaultTokenExpiry.
func NewManager(mode Mode, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	return &Manager{
		mode:     mode,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Mode reports the configured login mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Login issues a session for userName. Strict mode refuses every login.
func (m *Manager) Login(userName string) (Session, error) {
	if m.mode == ModeStrict {
		return Session{}, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(userName), nil
}

// Logout removes the session for token, expired or not.
func (m *Manager) Logout(token string) error {
	if token == "" {
		return ErrNoToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	m.deleteLocked(token)
	return nil
}

// Validate checks token and, when it is live, replaces it with a fresh
// session for the same user. The old token stops working.
func (m *Manager) Validate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if m.now().After(s.ExpiresAt) {
		m.deleteLocked(token)
		return Session{}, ErrSessionExpired
	}

	m.deleteLocked(token)
	return m.issueLocked(s.UserName), nil
}

// Len reports the number of stored sessions, including expired ones not
// yet seen by Validate.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) issueLocked(userName string) Session {
	now := m.now()
	s := Session{
		Token:     uuid.NewString(),
		UserName:  userName,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.sessions[s.Token] = s
	metrics.Sessions.Set(float64(len(m.sessions)))
	return s
}

func (m *Manager) deleteLocked(token string) {
	delete(m.sessions, token)
	metrics.Sessions.Set(float64(len(m.sessions)))
}
