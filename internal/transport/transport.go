// Package transport owns the HID connection to the controller. It moves
// reports onto the wire and knows nothing about their meaning.
package transport

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/tc420/internal/packet"
)

// Default USB identifiers of the TC420 / PLED controller.
const (
	DefaultVendorID  uint16 = 0x0888
	DefaultProductID uint16 = 0x4000
)

var (
	ErrDeviceNotFound = errors.New("no matching HID device")
	ErrOpenFailed     = errors.New("failed to open HID device")
	ErrNotConnected   = errors.New("HID device not connected")
	ErrWrite          = errors.New("HID write failed")
)

// Device is an opened HID device accepting output reports.
type Device interface {
	Write(b []byte) (int, error)
	Close() error
}

// Opener locates devices by USB identifiers.
type Opener interface {
	// Open opens the first device matching the identifiers.
	Open(vendorID, productID uint16) (Device, error)
	// Present reports whether a matching device is attached, without opening it.
	Present(vendorID, productID uint16) bool
}

// Transport holds at most one open device handle.
type Transport struct {
	opener    Opener
	vendorID  uint16
	productID uint16
	dev       Device
	logger    *slog.Logger
}

// New creates a transport for the given identifiers. It starts closed.
func New(opener Opener, vendorID, productID uint16, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{
		opener:    opener,
		vendorID:  vendorID,
		productID: productID,
		logger:    logger.With("vendor_id", fmt.Sprintf("%04x", vendorID), "product_id", fmt.Sprintf("%04x", productID)),
	}
}

// VendorID returns the USB vendor id this transport looks for.
func (t *Transport) VendorID() uint16 { return t.vendorID }

// ProductID returns the USB product id this transport looks for.
func (t *Transport) ProductID() uint16 { return t.productID }

// Open connects to the device, closing any handle already held.
func (t *Transport) Open() error {
	if t.dev != nil {
		_ = t.Close()
	}

	dev, err := t.opener.Open(t.vendorID, t.productID)
	if err != nil {
		t.logger.Debug("Device open failed", "error", err)
		if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrOpenFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	t.dev = dev
	t.logger.Debug("Device opened")
	return nil
}

// Write sends one report, prefixed by the report id, 65 bytes in total.
func (t *Transport) Write(r packet.Report) error {
	if t.dev == nil {
		return ErrNotConnected
	}

	frame := r.Frame()
	t.logger.Debug("Writing report",
		"opcode", r.Opcode().String(),
		"bytes", len(frame),
		"data", hex.EncodeToString(frame))

	n, err := t.dev.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if n < len(frame) {
		return fmt.Errorf("%w: %v: wrote %d of %d bytes", ErrWrite, io.ErrShortWrite, n, len(frame))
	}
	return nil
}

// Close releases the handle. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	if t.dev == nil {
		return nil
	}
	err := t.dev.Close()
	t.dev = nil
	t.logger.Debug("Device closed")
	return err
}

// IsOpen reports whether a handle is held.
func (t *Transport) IsOpen() bool {
	return t.dev != nil
}

// Probe reports whether the device is attached. It never keeps a handle.
func (t *Transport) Probe() bool {
	return t.opener.Present(t.vendorID, t.productID)
}
