package note

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/scribe/internal/platform/sessionstore"
)

const DefaultSessionTTL = 2 * time.Hour

// Manager owns the live sessions of this process. Sessions missing from
// memory are restored from their last checkpoint.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    checkpoints
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewManager(store sessionstore.Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    checkpoints{store: store, ttl: ttl},
		ttl:      ttl,
		logger:   logger.With().Str("component", "sessions").Logger(),
		now:      time.Now,
	}
}

// Create starts a new session for userID.
func (m *Manager) Create(ctx context.Context, userID string) *Session {
	s := newSession(uuid.New().String(), userID, m.now())
	s.mu.Lock()
	m.checkpoint(ctx, s)
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.logger.Info().Str("session_id", s.id).Str("user_id", userID).Msg("session created")
	return s
}

// Get returns the session if it belongs to userID.
func (m *Manager) Get(ctx context.Context, userID, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		defer m.mu.Unlock()
		if s.userID != userID {
			return nil, ErrSessionNotFound
		}
		// Refreshed under m.mu so a concurrent Sweep sees it.
		s.mu.Lock()
		s.lastSeen = m.now()
		s.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	snap, err := m.store.load(ctx, id)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("load checkpoint failed")
		return nil, ErrSessionNotFound
	}
	if snap == nil || snap.UserID != userID {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	s = sessionFromSnapshot(*snap, m.now())
	m.sessions[id] = s
	m.logger.Info().Str("session_id", id).Msg("session restored from checkpoint")
	return s, nil
}

// End discards a session and its checkpoint.
func (m *Manager) End(ctx context.Context, userID, id string) error {
	s, err := m.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.sessions[id] == s {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionNotFound
	}
	s.ended = true
	if err := m.store.delete(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("delete checkpoint failed")
	}
	m.logger.Info().Str("session_id", id).Msg("session ended")
	return nil
}

// Len reports the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the ttl. Sessions with a
// request in flight are kept. Evicted sessions stay restorable until their
// checkpoint expires.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen) > m.ttl && !s.busy()
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info().Int("evicted", evicted).Msg("idle sessions evicted")
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// checkpoint saves the session state. It must be called with s.mu held.
// Failures are logged only. Ended sessions are never saved.
func (m *Manager) checkpoint(ctx context.Context, s *Session) {
	if s.ended {
		return
	}
	if err := m.store.save(context.WithoutCancel(ctx), s.snapshot()); err != nil {
		m.logger.Warn().Err(err).Str("session_id", s.id).Msg("checkpoint failed")
	}
}

func (s *Session) busy() bool {
	return s.generating ||
		s.selection.State() == SelectionRefining ||
		s.assistant.State() == AssistantProcessing
}
