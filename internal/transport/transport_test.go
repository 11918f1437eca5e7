package transport

import (
	"errors"
	"testing"

	"github.com/smazurov/tc420/internal/packet"
)

// shortDevice writes fewer bytes than asked.
type shortDevice struct{}

func (shortDevice) Write(b []byte) (int, error) { return len(b) - 1, nil }
func (shortDevice) Close() error                { return nil }

type shortOpener struct{}

func (shortOpener) Open(_, _ uint16) (Device, error) { return shortDevice{}, nil }
func (shortOpener) Present(_, _ uint16) bool         { return true }

func TestTransport_WriteBeforeOpen(t *testing.T) {
	tr := New(NewStub(), DefaultVendorID, DefaultProductID, nil)

	if err := tr.Write(packet.BuildProgramEnd()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write() before Open error = %v, want ErrNotConnected", err)
	}
}

func TestTransport_OpenWriteClose(t *testing.T) {
	stub := NewStub()
	tr := New(stub, DefaultVendorID, DefaultProductID, nil)

	if err := tr.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !tr.IsOpen() {
		t.Fatal("IsOpen() = false after Open")
	}

	report := packet.BuildProgramEnd()
	if err := tr.Write(report); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	frames := stub.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if len(frames[0]) != packet.FrameSize {
		t.Errorf("frame length = %d, want %d", len(frames[0]), packet.FrameSize)
	}
	if frames[0][0] != packet.ReportID {
		t.Errorf("frame[0] = 0x%02X, want report id", frames[0][0])
	}
	if got := stub.Reports()[0]; got != report {
		t.Errorf("recorded report differs from written report")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if tr.IsOpen() || stub.HandleOpen() {
		t.Error("handle still open after Close")
	}

	// Second close is a no-op.
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if stub.Closes() != 1 {
		t.Errorf("Closes() = %d, want 1", stub.Closes())
	}
}

func TestTransport_OpenTwiceReopens(t *testing.T) {
	stub := NewStub()
	tr := New(stub, DefaultVendorID, DefaultProductID, nil)

	if err := tr.Open(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Open(); err != nil {
		t.Fatalf("second Open() error: %v", err)
	}

	if stub.Opens() != 2 || stub.Closes() != 1 {
		t.Errorf("opens=%d closes=%d, want 2 and 1", stub.Opens(), stub.Closes())
	}
	_ = tr.Close()
}

func TestTransport_OpenErrors(t *testing.T) {
	t.Run("device missing", func(t *testing.T) {
		stub := NewStub()
		stub.SetAttached(false)
		tr := New(stub, DefaultVendorID, DefaultProductID, nil)

		if err := tr.Open(); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Open() error = %v, want ErrDeviceNotFound", err)
		}
		if tr.IsOpen() {
			t.Error("IsOpen() = true after failed Open")
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		stub := NewStub()
		stub.SetOpenError(errors.New("permission denied"))
		tr := New(stub, DefaultVendorID, DefaultProductID, nil)

		if err := tr.Open(); !errors.Is(err, ErrOpenFailed) {
			t.Errorf("Open() error = %v, want ErrOpenFailed", err)
		}
	})
}

func TestTransport_WriteErrors(t *testing.T) {
	t.Run("device error", func(t *testing.T) {
		stub := NewStub()
		stub.FailWhen(func([]byte) error { return errors.New("broken pipe") })
		tr := New(stub, DefaultVendorID, DefaultProductID, nil)
		if err := tr.Open(); err != nil {
			t.Fatal(err)
		}
		defer tr.Close()

		if err := tr.Write(packet.BuildProgramEnd()); !errors.Is(err, ErrWrite) {
			t.Errorf("Write() error = %v, want ErrWrite", err)
		}
	})

	t.Run("short write", func(t *testing.T) {
		tr := New(shortOpener{}, DefaultVendorID, DefaultProductID, nil)
		if err := tr.Open(); err != nil {
			t.Fatal(err)
		}
		defer tr.Close()

		if err := tr.Write(packet.BuildProgramEnd()); !errors.Is(err, ErrWrite) {
			t.Errorf("Write() error = %v, want ErrWrite", err)
		}
	})
}

func TestTransport_Probe(t *testing.T) {
	stub := NewStub()
	tr := New(stub, DefaultVendorID, DefaultProductID, nil)

	if !tr.Probe() {
		t.Error("Probe() = false with device attached")
	}
	if stub.Opens() != 0 {
		t.Error("Probe() opened a handle")
	}

	stub.SetAttached(false)
	if tr.Probe() {
		t.Error("Probe() = true with device detached")
	}
}

type recordingDevice struct {
	writes [][]byte
	closed bool
}

func (d *recordingDevice) Write(b []byte) (int, error) {
	d.writes = append(d.writes, append([]byte(nil), b...))
	// Bindings that add the report id count it in the result
	return len(b) + 1, nil
}

func (d *recordingDevice) Close() error {
	d.closed = true
	return nil
}

func TestHIDDevice_ReportID(t *testing.T) {
	frame := packet.BuildProgramEnd().Frame()

	t.Run("bindings add report id", func(t *testing.T) {
		rec := &recordingDevice{}
		dev := hidDevice{dev: rec, bindingAddsID: true}
		n, err := dev.Write(frame)
		if err != nil || n != len(frame) {
			t.Fatalf("Write() = %d, %v; want %d, nil", n, err, len(frame))
		}
		if len(rec.writes[0]) != packet.ReportSize || rec.writes[0][0] != 0x55 {
			t.Errorf("binding got % x", rec.writes[0][:4])
		}
	})

	t.Run("frame passed through", func(t *testing.T) {
		rec := &recordingDevice{}
		dev := hidDevice{dev: rec}
		if _, err := dev.Write(frame); err != nil {
			t.Fatal(err)
		}
		if len(rec.writes[0]) != packet.FrameSize || rec.writes[0][0] != 0x00 {
			t.Errorf("binding got % x", rec.writes[0][:4])
		}
		if err := dev.Close(); err != nil || !rec.closed {
			t.Errorf("Close() = %v, closed = %v", err, rec.closed)
		}
	})
}
