package devices

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/pkg/hotplug"
)

type fakeProber struct {
	present atomic.Bool
}

func (f *fakeProber) Probe() bool { return f.present.Load() }

func newTestWatcher(prober Prober, bus *events.Bus, opts ...Option) *Watcher {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return NewWatcher(prober, 0x0888, 0x4000, bus, append(base, opts...)...)
}

func usbEvent(action, product string) hotplug.Event {
	return hotplug.Event{
		Action:    action,
		KObj:      "/devices/usb1/1-2",
		Subsystem: hotplug.SubsystemUSB,
		DevType:   hotplug.DevTypeUSBDevice,
		Env:       map[string]string{"PRODUCT": product},
	}
}

func collect(bus *events.Bus) (<-chan events.DeviceDiscoveryEvent, func()) {
	ch := make(chan events.DeviceDiscoveryEvent, 16)
	unsub := bus.Subscribe(func(e events.DeviceDiscoveryEvent) { ch <- e })
	return ch, unsub
}

func expectAction(t *testing.T, ch <-chan events.DeviceDiscoveryEvent, want string) events.DeviceDiscoveryEvent {
	t.Helper()
	select {
	case e := <-ch:
		if e.Action != want {
			t.Fatalf("action = %q, want %q", e.Action, want)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
	return events.DeviceDiscoveryEvent{}
}

func TestWatcher_HandleEvent(t *testing.T) {
	bus := events.New()
	ch, unsub := collect(bus)
	defer unsub()

	w := newTestWatcher(&fakeProber{}, bus)

	w.handleEvent(usbEvent(hotplug.ActionAdd, "888/4000/100"))
	e := expectAction(t, ch, events.ActionAttached)
	if e.VendorID != 0x0888 || e.ProductID != 0x4000 || e.Path != "/devices/usb1/1-2" {
		t.Errorf("unexpected event: %+v", e)
	}
	if !w.Connected() {
		t.Error("expected connected")
	}

	// Repeated add is not a change.
	w.handleEvent(usbEvent(hotplug.ActionAdd, "888/4000/100"))

	w.handleEvent(usbEvent(hotplug.ActionRemove, "888/4000/100"))
	expectAction(t, ch, events.ActionDetached)
	if w.Connected() {
		t.Error("expected disconnected")
	}

	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherDevices(t *testing.T) {
	w := newTestWatcher(&fakeProber{}, nil)

	w.handleEvent(usbEvent(hotplug.ActionAdd, "1d6b/2/510"))
	iface := usbEvent(hotplug.ActionAdd, "888/4000/100")
	iface.DevType = "usb_interface"
	w.handleEvent(iface)
	w.handleEvent(hotplug.Event{Action: hotplug.ActionAdd, Subsystem: hotplug.SubsystemHIDRaw})

	if w.Connected() {
		t.Error("unrelated events must not mark the controller connected")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	bus := events.New()
	ch, unsub := collect(bus)
	defer unsub()

	prober := &fakeProber{}
	w := newTestWatcher(prober, bus, WithHotplug(false), WithPollInterval(10*time.Millisecond))

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	expectAction(t, ch, events.ActionDetached)

	prober.present.Store(true)
	expectAction(t, ch, events.ActionAttached)

	prober.present.Store(false)
	expectAction(t, ch, events.ActionDetached)
}

func TestWatcher_StartTwice(t *testing.T) {
	w := newTestWatcher(&fakeProber{}, nil, WithHotplug(false))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := newTestWatcher(&fakeProber{}, nil)
	w.Stop()
}

func TestHexID(t *testing.T) {
	if got := hexID(0x0888); got != "0888" {
		t.Errorf("hexID = %q", got)
	}
	if got := hexID(0xabcd); got != "abcd" {
		t.Errorf("hexID = %q", got)
	}
}
