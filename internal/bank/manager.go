// internal/bank/manager.go
package bank

import (
	"sync"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/observability"
)

// Manager hands out one handshake per application and tears them all down
// on shutdown.
type Manager struct {
	gateway   Gateway
	sessions  *SessionStore
	lifecycle Lifecycle
	cfg       Config
	logger    logger.Logger
	obs       *observability.Observability

	mu         sync.Mutex
	handshakes map[string]*Handshake
}

func NewManager(gateway Gateway, sessions *SessionStore, lc Lifecycle, cfg Config, log logger.Logger, obs *observability.Observability) *Manager {
	return &Manager{
		gateway:    gateway,
		sessions:   sessions,
		lifecycle:  lc,
		cfg:        cfg,
		logger:     log,
		obs:        obs,
		handshakes: make(map[string]*Handshake),
	}
}

// Get returns the handshake for an application, creating it on first use.
func (m *Manager) Get(applicationID string) *Handshake {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handshakes[applicationID]; ok {
		return h
	}
	h := NewHandshake(applicationID, m.gateway, m.sessions, m.lifecycle, m.cfg, m.logger, m.obs)
	m.handshakes[applicationID] = h
	return h
}

// Release drops a resolved handshake and stops its polling.
func (m *Manager) Release(applicationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handshakes[applicationID]; ok {
		h.Close()
		delete(m.handshakes, applicationID)
	}
}

// CloseAll cancels every live poll loop. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.handshakes {
		h.Close()
	}
}
