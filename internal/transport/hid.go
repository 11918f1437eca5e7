package transport

import (
	"fmt"
	"runtime"

	"github.com/karalabe/hid"
)

// hidOpener implements Opener on top of the platform hidapi bindings.
type hidOpener struct{}

// NewHID returns an Opener backed by the system HID stack. On platforms
// without hidapi support no device is ever found.
func NewHID() Opener {
	return hidOpener{}
}

func (hidOpener) Present(vendorID, productID uint16) bool {
	return len(hid.Enumerate(vendorID, productID)) > 0
}

func (hidOpener) Open(vendorID, productID uint16) (Device, error) {
	if !hid.Supported() {
		return nil, fmt.Errorf("%w: HID not supported on this platform", ErrDeviceNotFound)
	}

	infos := hid.Enumerate(vendorID, productID)
	if len(infos) == 0 {
		return nil, ErrDeviceNotFound
	}

	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, infos[0].Path, err)
	}
	return hidDevice{dev: dev, bindingAddsID: runtime.GOOS == "windows"}, nil
}

// hidDevice accepts full frames (report id first). On Windows the bindings
// prepend report id 0 themselves, so the frame's own id byte is dropped and
// the byte count they return already covers it.
type hidDevice struct {
	dev           Device
	bindingAddsID bool
}

func (d hidDevice) Write(frame []byte) (int, error) {
	if d.bindingAddsID && len(frame) > 0 && frame[0] == 0 {
		return d.dev.Write(frame[1:])
	}
	return d.dev.Write(frame)
}

func (d hidDevice) Close() error {
	return d.dev.Close()
}
