package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smazurov/tc420/internal/packet"
)

// Stub is an in-memory Opener that records every frame written to it.
// It stands in for the controller on hosts without one attached.
type Stub struct {
	mu sync.Mutex

	attached bool
	openErr  error
	failWhen func(frame []byte) error

	handleOpen bool
	opens      int
	closes     int
	frames     [][]byte
}

// NewStub returns a stub with a device attached.
func NewStub() *Stub {
	return &Stub{attached: true}
}

// SetAttached simulates plugging or unplugging the device.
func (s *Stub) SetAttached(attached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = attached
}

// SetOpenError makes every Open fail with err.
func (s *Stub) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// FailWhen installs a hook consulted before each write. A non-nil result
// fails that write and the frame is not recorded.
func (s *Stub) FailWhen(hook func(frame []byte) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWhen = hook
}

// Open implements Opener.
func (s *Stub) Open(_, _ uint16) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil, ErrDeviceNotFound
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.handleOpen {
		return nil, fmt.Errorf("%w: handle already open", ErrOpenFailed)
	}
	s.handleOpen = true
	s.opens++
	return &stubDevice{stub: s}, nil
}

// Present implements Opener.
func (s *Stub) Present(_, _ uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Frames returns copies of every frame written, in order.
func (s *Stub) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Reports returns the written frames with the report id stripped.
func (s *Stub) Reports() []packet.Report {
	frames := s.Frames()
	out := make([]packet.Report, 0, len(frames))
	for _, f := range frames {
		var r packet.Report
		copy(r[:], f[1:])
		out = append(out, r)
	}
	return out
}

// Opens returns how many handles were handed out.
func (s *Stub) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many handles were released.
func (s *Stub) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// HandleOpen reports whether a handle is currently outstanding.
func (s *Stub) HandleOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleOpen
}

type stubDevice struct {
	stub   *Stub
	closed bool
}

func (d *stubDevice) Write(b []byte) (int, error) {
	s := d.stub
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.closed {
		return 0, errors.New("write on closed handle")
	}
	if s.failWhen != nil {
		if err := s.failWhen(b); err != nil {
			return 0, err
		}
	}
	s.frames = append(s.frames, append([]byte(nil), b...))
	return len(b), nil
}

func (d *stubDevice) Close() error {
	s := d.stub
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	s.handleOpen = false
	s.closes++
	return nil
}
