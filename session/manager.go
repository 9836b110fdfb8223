// Package session owns upstream login state: one cached cookie session per
// credential fingerprint, refreshed on expiry and evicted on auth failures
// reported by downstream fetches.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wattpad-downloader/model"
)

// Session is an authenticated upstream cookie set. Owned exclusively by the
// manager; callers only read it.
type Session struct {
	Fingerprint string
	Cookies     []*http.Cookie
	ExpiresAt   time.Time
}

func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Authenticator performs the upstream login. Satisfied by wattpad.Client.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) ([]*http.Cookie, error)
}

type Manager struct {
	auth Authenticator
	ttl  time.Duration
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry serializes logins per credential fingerprint: the first caller logs
// in while holding the entry lock, later callers find the cached session.
type entry struct {
	mu      sync.Mutex
	session *Session
}

func NewManager(auth Authenticator, ttl time.Duration, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Manager{
		auth:    auth,
		ttl:     ttl,
		log:     log.With().Str("component", "session").Logger(),
		entries: make(map[string]*entry),
	}
}

// Acquire returns a cached unexpired session for the credentials or performs
// one login. Failed logins are never cached.
func (m *Manager) Acquire(ctx context.Context, creds model.Credentials) (*Session, error) {
	fp := creds.Fingerprint()

	m.mu.Lock()
	e, ok := m.entries[fp]
	if !ok {
		e = &entry{}
		m.entries[fp] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil && !e.session.Expired() {
		return e.session, nil
	}
	e.session = nil

	cookies, err := m.auth.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	e.session = &Session{
		Fingerprint: fp,
		Cookies:     cookies,
		ExpiresAt:   time.Now().Add(m.ttl),
	}
	m.log.Debug().Str("fingerprint", fp[:12]).Time("expires_at", e.session.ExpiresAt).Msg("session established")
	return e.session, nil
}

// Invalidate drops the session for a fingerprint. Called when a downstream
// fetch is rejected with that session, forcing one re-login on next acquire.
func (m *Manager) Invalidate(fingerprint string) {
	m.mu.Lock()
	e, ok := m.entries[fingerprint]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.session = nil
	e.mu.Unlock()
	m.log.Debug().Str("fingerprint", fingerprint[:12]).Msg("session invalidated")
}
