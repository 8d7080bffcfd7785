package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"nomad_match/internal/domain"
)

// Session is one authenticated user's engine state: their preference store,
// the preferences of the last ranking pass, and the last computed ranking
// (full ordered sequence, hidden cities included, so dependent views reuse
// it without re-querying). All mutation goes through the session's mutex or
// the store's own lock; the toggler is the only preference writer.
type Session struct {
	Token   string
	Email   string
	Premium bool

	Prefs   *PreferenceStore
	Toggler *Toggler

	mu        sync.Mutex
	lastPrefs *domain.UserPreferenceSet
	ranking   []domain.ScoredCity
	gen       uint64 // newest search issued
}

// nextGen tags an outbound search with a monotonically increasing sequence
// number so a stale response cannot overwrite a newer ranking.
func (s *Session) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// commitRanking stores a completed ranking pass unless a newer search has
// been issued since. Reports whether the result was accepted.
func (s *Session) commitRanking(gen uint64, prefs domain.UserPreferenceSet, ordered []domain.ScoredCity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	p := prefs
	s.lastPrefs = &p
	s.ranking = ordered
	return true
}

// LastPreferences returns the preferences captured for the current ranking.
func (s *Session) LastPreferences() (domain.UserPreferenceSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPrefs == nil {
		return domain.UserPreferenceSet{}, false
	}
	return *s.lastPrefs, true
}

// Feed recomposes the visible feed from the retained ranking and the
// current hidden set. ok is false when no search has run yet.
func (s *Session) Feed() (Composition, bool) {
	s.mu.Lock()
	ordered := s.ranking
	has := s.lastPrefs != nil
	s.mu.Unlock()
	if !has {
		return Composition{}, false
	}
	return Compose(ordered, s.Prefs.Hidden()), true
}

// ranked returns the retained ranking entry for a city, if any.
func (s *Session) ranked(name string) (domain.ScoredCity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.ranking {
		if c.Name == name {
			return c, true
		}
	}
	return domain.ScoredCity{}, false
}

// SessionManager owns the token-keyed session table. Sessions are created
// on login/register or lazily on the first token-bearing request, and
// dropped when the backend rejects the token.
type SessionManager struct {
	backend domain.Backend
	mirror  domain.PreferenceMirror

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(backend domain.Backend, mirror domain.PreferenceMirror) *SessionManager {
	return &SessionManager{
		backend:  backend,
		mirror:   mirror,
		sessions: make(map[string]*Session),
	}
}

// Init builds a session for a freshly issued token: the remote preference
// snapshot seeds the store (the backend is the source of truth on load).
// When the preference API is unreachable the durable mirror stands in.
func (m *SessionManager) Init(ctx context.Context, token, email string, premium bool) *Session {
	store := NewPreferenceStore()

	entries, err := m.backend.ListPreferences(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("preference load failed, trying mirror")
		if m.mirror != nil {
			if entries, err = m.mirror.List(ctx, email); err != nil {
				log.Warn().Err(err).Str("email", email).Msg("preference mirror read failed")
				entries = nil
			}
		}
	}
	store.Load(entries)

	sess := &Session{
		Token:   token,
		Email:   email,
		Premium: premium,
		Prefs:   store,
		Toggler: NewToggler(store, m.backend, m.mirror, token, email),
	}

	m.mu.Lock()
	m.sessions[token] = sess
	m.mu.Unlock()
	return sess
}

// Resolve returns the session for a bearer token, validating unknown tokens
// against the backend first. An invalid or expired token drops any local
// session and surfaces ErrUnauthorized.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	// Unknown token: ask the backend who this is.
	info, err := m.backend.Me(ctx, token)
	if err != nil {
		m.Drop(token)
		return nil, err
	}
	return m.Init(ctx, token, info.Email, info.IsPremium), nil
}

// Drop clears the local session, e.g. on an expired token.
func (m *SessionManager) Drop(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// SetPremium flips the cached premium flag after a successful upgrade.
func (m *SessionManager) SetPremium(token string) {
	m.mu.Lock()
	if s, ok := m.sessions[token]; ok {
		s.Premium = true
	}
	m.mu.Unlock()
}
