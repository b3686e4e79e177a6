package session

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"go.uber.org/zap"
)

// Manager owns one session per user. Sessions live in memory only and are evicted once idle.
type Manager struct {
	cfg      config.SessionConfig
	deps     *Deps
	logger   *logger.Logger
	sessions map[string]*Session
	onEvent  func(userID string, e Event)
	mu       sync.Mutex
}

// NewManager creates a session manager.
func NewManager(cfg config.SessionConfig, deps *Deps) *Manager {
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.WithComponent("sessions"),
		sessions: make(map[string]*Session),
	}
}

// OnEvent registers fn for the events of every session created afterwards.
func (m *Manager) OnEvent(fn func(userID string, e Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = fn
}

// Get returns the session of userID, creating it if needed. When the manager is full
// the least recently used session is evicted to make room.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.evictOldest()
	}

	s := New(userID, m.deps)
	if fn := m.onEvent; fn != nil {
		s.OnEvent(func(e Event) { fn(userID, e) })
	}
	m.sessions[userID] = s
	m.logger.Debug("Session created", zap.Int("active", len(m.sessions)))
	return s
}

// Lookup returns the session of userID without creating one.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Remove discards the session of userID.
func (m *Manager) Remove(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle since before now minus the idle timeout and returns how many.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("Idle sessions evicted",
			zap.Int("evicted", evicted),
			zap.Int("active", len(m.sessions)),
		)
	}
	return evicted
}

// evictOldest removes the least recently used session. The caller holds m.mu.
func (m *Manager) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, s := range m.sessions {
		if t := s.idleSince(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
		m.logger.Warn("Session limit reached, evicted least recently used session",
			zap.Int("max_sessions", m.cfg.MaxSessions),
		)
	}
}

// Run sweeps idle sessions every SweepInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
