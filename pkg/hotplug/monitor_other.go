//go:build !linux

package hotplug

import "context"

// Monitor is unavailable outside Linux.
type Monitor struct{}

// NewMonitor always fails with ErrUnsupported.
func NewMonitor() (*Monitor, error) {
	return nil, ErrUnsupported
}

// AddSubsystemFilter is a no-op.
func (m *Monitor) AddSubsystemFilter(string) {}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run returns ErrUnsupported.
func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return ErrUnsupported
}
