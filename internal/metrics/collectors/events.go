// Package collectors feeds metrics from runtime sources.
package collectors

import (
	"context"
	"sync"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/internal/metrics"
)

// EventCollector turns bus events into Prometheus metrics.
type EventCollector struct {
	bus    *events.Bus
	logger logging.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewEventCollector creates a collector for bus.
func NewEventCollector(bus *events.Bus) *EventCollector {
	return &EventCollector{
		bus:    bus,
		logger: logging.GetLogger("metrics"),
	}
}

// Start subscribes to the bus until Stop is called or ctx ends.
func (c *EventCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(func(e events.DeviceDiscoveryEvent) {
			metrics.SetDeviceConnected(e.Action == events.ActionAttached)
		}),
		c.bus.Subscribe(func(e events.ReportWrittenEvent) {
			metrics.AddReportWritten(e.Opcode, e.Bytes)
		}),
		c.bus.Subscribe(func(e events.OperationCompletedEvent) {
			metrics.ObserveOperation(e.Operation, e.ErrorKind, e.Duration, e.Timestamp)
		}),
	)

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	c.logger.Info("Metrics collection started")
	return nil
}

// Stop removes all subscriptions. It is safe to call more than once.
func (c *EventCollector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	return nil
}
