// Package hotplug watches kernel device events over netlink without cgo.
//
// It is used to learn when a USB device is plugged or unplugged without
// polling HID enumeration.
package hotplug

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems relevant to USB HID devices.
const (
	SubsystemUSB    = "usb"
	SubsystemHID    = "hid"
	SubsystemHIDRaw = "hidraw"
)

// DevTypeUSBDevice marks the whole-device uevent, as opposed to its interfaces.
const DevTypeUSBDevice = "usb_device"

// ErrUnsupported is returned by NewMonitor on platforms without netlink.
var ErrUnsupported = errors.New("hotplug monitoring is not supported on this platform")

// Event represents a kernel device event.
type Event struct {
	Action    string            // "add", "remove", "change", etc.
	KObj      string            // Kernel object path: /devices/pci0000:00/...
	Subsystem string            // "usb", "hidraw", ...
	DevType   string            // Device type if available
	DevName   string            // Device name (e.g., "bus/usb/001/004")
	DevPath   string            // Sysfs path without the /sys prefix
	Env       map[string]string // All environment variables from the event
}

// USBProduct returns the vendor and product ids from the PRODUCT variable,
// which the kernel formats as "vid/pid/bcdDevice" in unpadded hex.
func (e Event) USBProduct() (vendorID, productID uint16, ok bool) {
	product, exists := e.Env["PRODUCT"]
	if !exists {
		return 0, 0, false
	}
	parts := strings.Split(product, "/")
	if len(parts) < 2 {
		return 0, 0, false
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(vid), uint16(pid), true
}

// IsUSBDevice reports whether the event describes a whole USB device.
func (e Event) IsUSBDevice() bool {
	return e.Subsystem == SubsystemUSB && e.DevType == DevTypeUSBDevice
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". It returns nil for anything else.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	// Messages relayed by udevd carry a binary header first.
	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipLibudevHeader(data)
	}

	parts := bytes.Split(data, []byte{0})
	header := string(parts[0])
	action, kobj, found := strings.Cut(header, "@")
	if !found || action == "" {
		return nil
	}

	event := &Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		key, value, found := strings.Cut(string(part), "=")
		if !found || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "DEVPATH":
			event.DevPath = value
		}
	}

	return event
}

func skipLibudevHeader(data []byte) []byte {
	for i := 0; i < len(data)-1; i++ {
		if data[i] != 0 {
			continue
		}
		rest := data[i+1:]
		segment := rest
		if j := bytes.IndexByte(rest, 0); j >= 0 {
			segment = rest[:j]
		}
		if idx := bytes.IndexByte(segment, '@'); idx > 0 && idx < 20 {
			return rest
		}
	}
	return data
}
