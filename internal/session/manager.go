package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/internal/observability/metrics"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// ErrTooManySessions is returned when the session cap is reached and
// no idle session can be evicted.
var ErrTooManySessions = errors.New("session: too many active sessions")

// ManagerConfig bounds the in-memory session pool.
type ManagerConfig struct {
	MaxSessions int
	MaxIdle     time.Duration
	Settle      time.Duration
	Timeout     time.Duration
}

type entry struct {
	machine      *Machine
	lastAccessed time.Time
}

// Manager owns every live session. All state is in memory; a session
// disappears on eviction or process restart.
type Manager struct {
	cfg     ManagerConfig
	gw      gateway.Client
	logger  *logging.Logger
	metrics *metrics.AnalysisMetrics

	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewManager(cfg ManagerConfig, gw gateway.Client, logger *logging.Logger, m *metrics.AnalysisMetrics) *Manager {
	if gw == nil {
		panic("session: gateway client is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		cfg:      cfg,
		gw:       gw,
		logger:   logger.Component("session_manager"),
		metrics:  m,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new idle session.
func (m *Manager) Create() (*Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		if !m.evictStalestLocked() {
			return nil, ErrTooManySessions
		}
	}

	id := uuid.New().String()
	machine := NewMachine(id, m.gw, m.cfg.Settle, m.cfg.Timeout, m.logger, m.metrics)
	m.sessions[id] = &entry{machine: machine, lastAccessed: time.Now()}
	m.logger.Info("session created", "session_id", id, "active", len(m.sessions))
	return machine, nil
}

// Get returns a session and refreshes its idle clock.
func (m *Manager) Get(id string) (*Machine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastAccessed = time.Now()
	return e.machine, true
}

// Remove drops a session outright.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return false
	}
	e.machine.Reset()
	delete(m.sessions, id)
	return true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneStale removes sessions idle longer than MaxIdle and returns how
// many were dropped.
func (m *Manager) PruneStale() int {
	if m.cfg.MaxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-m.cfg.MaxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for id, e := range m.sessions {
		if e.lastAccessed.Before(cutoff) {
			e.machine.Reset()
			delete(m.sessions, id)
			pruned++
		}
	}
	if pruned > 0 {
		m.logger.Info("pruned stale sessions", "count", pruned, "active", len(m.sessions))
	}
	return pruned
}

// Run prunes stale sessions on a fixed cadence until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PruneStale()
		}
	}
}

// evictStalestLocked removes the longest-idle session to make room.
// Returns false when the map is empty.
func (m *Manager) evictStalestLocked() bool {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, e := range m.sessions {
		if oldestID == "" || e.lastAccessed.Before(oldestAt) {
			oldestID = id
			oldestAt = e.lastAccessed
		}
	}
	if oldestID == "" {
		return false
	}
	m.sessions[oldestID].machine.Reset()
	delete(m.sessions, oldestID)
	m.logger.Warn("evicted stalest session at capacity", "session_id", oldestID)
	return true
}
