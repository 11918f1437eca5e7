// Package devices tracks whether the controller is plugged in and
// publishes a DeviceDiscoveryEvent on every change.
package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/pkg/hotplug"
)

// DefaultPollInterval is used when kernel hotplug events are unavailable.
const DefaultPollInterval = 2 * time.Second

// Prober reports presence without opening the device.
type Prober interface {
	Probe() bool
}

// Watcher follows attach and detach of one USB vendor/product pair.
type Watcher struct {
	prober       Prober
	vendorID     uint16
	productID    uint16
	bus          *events.Bus
	logger       *slog.Logger
	pollInterval time.Duration
	useHotplug   bool

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the presence polling period.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithHotplug enables or disables netlink uevents. Disabled means polling.
func WithHotplug(enabled bool) Option {
	return func(w *Watcher) { w.useHotplug = enabled }
}

// WithLogger overrides the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a watcher. bus may be nil.
func NewWatcher(prober Prober, vendorID, productID uint16, bus *events.Bus, opts ...Option) *Watcher {
	w := &Watcher{
		prober:       prober,
		vendorID:     vendorID,
		productID:    productID,
		bus:          bus,
		logger:       logging.GetLogger("devices"),
		pollInterval: DefaultPollInterval,
		useHotplug:   true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Connected returns the last known presence.
func (w *Watcher) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Start probes once, publishes the initial state and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return errors.New("device watcher already started")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.connected = w.prober.Probe()
	initial := w.connected
	w.mu.Unlock()

	w.publish(initial, "")
	w.logger.Info("Device watcher started",
		"vendor_id", hexID(w.vendorID),
		"product_id", hexID(w.productID),
		"connected", initial)

	if w.useHotplug {
		mon, err := hotplug.NewMonitor()
		if err == nil {
			mon.AddSubsystemFilter(hotplug.SubsystemUSB)
			go w.runMonitor(ctx, mon)
			return nil
		}
		w.logger.Info("Hotplug monitor unavailable, polling instead", "error", err, "interval", w.pollInterval)
	}

	go w.poll(ctx)
	return nil
}

// Stop ends watching and waits for the background goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("Device watcher stopped")
}

func (w *Watcher) runMonitor(ctx context.Context, mon *hotplug.Monitor) {
	defer close(w.done)
	defer func() { _ = mon.Close() }()

	ch := make(chan hotplug.Event, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- mon.Run(ctx, ch) }()

	for ev := range ch {
		w.handleEvent(ev)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("Hotplug monitor failed, polling instead", "error", err)
		w.pollUntil(ctx)
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.done)
	w.pollUntil(ctx)
}

func (w *Watcher) pollUntil(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.setConnected(w.prober.Probe(), "")
		}
	}
}

// handleEvent applies a uevent for the whole USB device with our ids.
func (w *Watcher) handleEvent(ev hotplug.Event) {
	if !ev.IsUSBDevice() {
		return
	}
	vid, pid, ok := ev.USBProduct()
	if !ok || vid != w.vendorID || pid != w.productID {
		return
	}

	switch ev.Action {
	case hotplug.ActionAdd, hotplug.ActionBind:
		w.setConnected(true, ev.KObj)
	case hotplug.ActionRemove, hotplug.ActionUnbind:
		w.setConnected(false, ev.KObj)
	}
}

func (w *Watcher) setConnected(connected bool, path string) {
	w.mu.Lock()
	changed := w.connected != connected
	w.connected = connected
	w.mu.Unlock()

	if !changed {
		return
	}
	if connected {
		w.logger.Info("Controller attached", "path", path)
	} else {
		w.logger.Info("Controller detached", "path", path)
	}
	w.publish(connected, path)
}

func (w *Watcher) publish(connected bool, path string) {
	if w.bus == nil {
		return
	}
	action := events.ActionDetached
	if connected {
		action = events.ActionAttached
	}
	w.bus.Publish(events.DeviceDiscoveryEvent{
		Action:    action,
		VendorID:  w.vendorID,
		ProductID: w.productID,
		Path:      path,
		Timestamp: time.Now(),
	})
}

func hexID(id uint16) string {
	return fmt.Sprintf("%04x", id)
}
