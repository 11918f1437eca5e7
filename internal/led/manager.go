package led

import (
	"sync"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/logging"
)

// Manager drives the status LED from device and operation events.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     logging.Logger
	unsubs     []func()

	mu       sync.Mutex
	attached bool
	busy     bool
	failed   bool
	current  Pattern
}

// NewManager creates a manager. attached is the presence at startup.
func NewManager(controller Controller, eventBus *events.Bus, attached bool, logger logging.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		attached:   attached,
	}
}

// Start applies the initial pattern and subscribes to events.
func (m *Manager) Start() {
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(m.handleDiscovery),
		m.eventBus.Subscribe(m.handleState),
	)
	m.mu.Lock()
	m.apply()
	m.mu.Unlock()
	m.logger.Info("LED manager started")
}

// Stop unsubscribes from events.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.logger.Info("LED manager stopped")
}

// Pattern returns the pattern last applied.
func (m *Manager) Pattern() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) handleDiscovery(e events.DeviceDiscoveryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attached = e.Action == events.ActionAttached
	if !m.attached {
		m.failed = false
	}
	m.apply()
}

func (m *Manager) handleState(e events.OperationStateEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.State {
	case events.StateDone:
		m.busy, m.failed = false, false
	case events.StateFailed:
		m.busy, m.failed = false, true
	case events.StateIdle:
		m.busy = false
	default:
		m.busy = true
	}
	m.apply()
}

// apply must be called with mu held.
func (m *Manager) apply() {
	var pattern Pattern
	switch {
	case m.busy:
		pattern = PatternBlink
	case m.failed:
		pattern = PatternHeartbeat
	case m.attached:
		pattern = PatternSolid
	default:
		pattern = PatternOff
	}
	if pattern == m.current {
		return
	}

	if err := m.controller.Set(StatusLED, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
		return
	}
	m.current = pattern
	m.logger.Debug("Status LED updated", "pattern", pattern)
}

// GetController returns the underlying LED controller.
func (m *Manager) GetController() Controller {
	return m.controller
}
