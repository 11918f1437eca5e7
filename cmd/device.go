// Package cmd holds the tc420 subcommands that talk to the controller
// directly, without the HTTP service.
package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/internal/packet"
	"github.com/smazurov/tc420/internal/sequencer"
	"github.com/smazurov/tc420/internal/transport"
)

// DeviceSettings selects the controller and how it is paced.
type DeviceSettings struct {
	VendorID  string
	ProductID string
	// Timing is a revision name accepted by sequencer.TimingFor.
	Timing string
	// StartDelayMs and StepDelayMs override the revision when positive.
	StartDelayMs int
	StepDelayMs  int
}

// ParseUSBID parses a hex vendor or product id, with or without 0x.
func ParseUSBID(s string) (uint16, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	id, err := strconv.ParseUint(trimmed, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", s, err)
	}
	return uint16(id), nil
}

// IDs returns the parsed vendor and product ids.
func (s DeviceSettings) IDs() (uint16, uint16, error) {
	vid, err := ParseUSBID(s.VendorID)
	if err != nil {
		return 0, 0, err
	}
	pid, err := ParseUSBID(s.ProductID)
	if err != nil {
		return 0, 0, err
	}
	return vid, pid, nil
}

// ResolveTiming returns the named revision with any configured overrides.
func (s DeviceSettings) ResolveTiming() (sequencer.Timing, error) {
	timing, err := sequencer.TimingFor(s.Timing)
	if err != nil {
		return sequencer.Timing{}, err
	}
	if s.StartDelayMs > 0 {
		timing = timing.With(packet.OpProgramStart, time.Duration(s.StartDelayMs)*time.Millisecond)
	}
	if s.StepDelayMs > 0 {
		timing = timing.With(packet.OpStep, time.Duration(s.StepDelayMs)*time.Millisecond)
	}
	return timing, nil
}

// Device bundles the transport and the sequencer that owns it.
type Device struct {
	Transport *transport.Transport
	Sequencer *sequencer.Sequencer
}

// OpenDevice builds a sequencer over the HID transport. Nothing is opened
// until an operation runs. bus may be nil.
func OpenDevice(s DeviceSettings, bus *events.Bus) (*Device, error) {
	return newDevice(s, transport.NewHID(), bus)
}

func newDevice(s DeviceSettings, opener transport.Opener, bus *events.Bus) (*Device, error) {
	vid, pid, err := s.IDs()
	if err != nil {
		return nil, err
	}
	timing, err := s.ResolveTiming()
	if err != nil {
		return nil, err
	}

	tr := transport.New(opener, vid, pid, logging.GetLogger("device"))
	opts := []sequencer.Option{sequencer.WithTiming(timing)}
	if bus != nil {
		opts = append(opts, sequencer.WithEventBus(bus))
	}
	return &Device{Transport: tr, Sequencer: sequencer.New(tr, opts...)}, nil
}

// DeviceFactory builds the device a subcommand operates on.
type DeviceFactory func() (*Device, error)
