package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/packet"
	"github.com/smazurov/tc420/internal/program"
	"github.com/smazurov/tc420/internal/transport"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 45, 0, time.Local)

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
}

func (r *sleepRecorder) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

func newTestSequencer(t *testing.T, opts ...Option) (*Sequencer, *transport.Stub, *sleepRecorder) {
	t.Helper()
	stub := transport.NewStub()
	rec := &sleepRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := transport.New(stub, transport.DefaultVendorID, transport.DefaultProductID, logger)
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithSleep(rec.sleep),
		WithLogger(logger),
	}
	return New(tr, append(base, opts...)...), stub, rec
}

func makeSteps(t *testing.T, n int) []program.LightingStep {
	t.Helper()
	steps := make([]program.LightingStep, n)
	for i := range steps {
		step, err := program.NewStep(fmt.Sprintf("%02d:%02d", i%24, (i*7)%60), uint8(i%101), 10, 20, 30, 40)
		if err != nil {
			t.Fatalf("NewStep(%d): %v", i, err)
		}
		steps[i] = step
	}
	return steps
}

func opcodes(reports []packet.Report) []packet.Opcode {
	out := make([]packet.Opcode, len(reports))
	for i, r := range reports {
		out[i] = r.Opcode()
	}
	return out
}

func assertClosed(t *testing.T, stub *transport.Stub) {
	t.Helper()
	if stub.HandleOpen() {
		t.Error("device handle left open")
	}
	if stub.Opens() != stub.Closes() {
		t.Errorf("opens = %d, closes = %d", stub.Opens(), stub.Closes())
	}
}

func assertKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var seqErr *Error
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if seqErr.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", seqErr.Kind, kind, err)
	}
	return seqErr
}

func TestSyncTime(t *testing.T) {
	seq, stub, rec := newTestSequencer(t)

	if err := seq.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	frames := stub.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(frames[0]) != packet.FrameSize || frames[0][0] != packet.ReportID {
		t.Errorf("frame not prefixed with report id: len=%d first=%#x", len(frames[0]), frames[0][0])
	}

	want, err := packet.BuildTimeSync(fixedNow)
	if err != nil {
		t.Fatalf("BuildTimeSync: %v", err)
	}
	if got := stub.Reports()[0]; got != want {
		t.Errorf("report mismatch\n got: % x\nwant: % x", got[:10], want[:10])
	}

	if got := rec.durations(); len(got) != 1 || got[0] != 100*time.Millisecond {
		t.Errorf("settle delays = %v, want [100ms]", got)
	}
	if seq.State() != StateDone {
		t.Errorf("state = %s, want done", seq.State())
	}
	assertClosed(t, stub)
}

func TestSyncTime_DeviceNotFound(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	stub.SetAttached(false)

	err := seq.SyncTime(context.Background())
	assertKind(t, err, KindDeviceNotFound)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Error("expected errors.Is(err, ErrDeviceNotFound)")
	}
	if !errors.Is(err, transport.ErrDeviceNotFound) {
		t.Error("expected transport cause to be preserved")
	}
	if len(stub.Frames()) != 0 {
		t.Error("no frames should be written")
	}
	if seq.State() != StateFailed {
		t.Errorf("state = %s, want failed", seq.State())
	}
}

func TestSyncTime_OpenFailureIsDeviceNotFound(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	stub.SetOpenError(errors.New("permission denied"))

	err := seq.SyncTime(context.Background())
	assertKind(t, err, KindDeviceNotFound)
	if !errors.Is(err, transport.ErrOpenFailed) {
		t.Errorf("expected open failure cause, got %v", err)
	}
}

func TestSyncTime_WriteFailure(t *testing.T) {
	seq, stub, rec := newTestSequencer(t)
	stub.FailWhen(func([]byte) error { return errors.New("broken pipe") })

	err := seq.SyncTime(context.Background())
	assertKind(t, err, KindTransport)
	if !errors.Is(err, transport.ErrWrite) {
		t.Errorf("expected write cause, got %v", err)
	}
	if len(rec.durations()) != 0 {
		t.Error("no settle delay after a failed write")
	}
	assertClosed(t, stub)
}

func TestSyncTime_CanceledContext(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := seq.SyncTime(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stub.Opens() != 0 {
		t.Error("device must not be opened after cancellation")
	}
}

func TestUploadProgram(t *testing.T) {
	tests := []struct {
		name   string
		timing Timing
		want   []time.Duration
	}{
		{
			name:   "revision a",
			timing: RevisionA(),
			want:   []time.Duration{500 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond},
		},
		{
			name:   "revision b",
			timing: RevisionB(),
			want:   []time.Duration{600 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond, 100 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, stub, rec := newTestSequencer(t, WithTiming(tt.timing))
			steps := makeSteps(t, 3)

			if err := seq.UploadProgram(context.Background(), steps); err != nil {
				t.Fatalf("UploadProgram: %v", err)
			}

			reports := stub.Reports()
			wantOps := []packet.Opcode{packet.OpProgramStart, packet.OpStep, packet.OpStep, packet.OpStep, packet.OpProgramEnd}
			gotOps := opcodes(reports)
			if fmt.Sprint(gotOps) != fmt.Sprint(wantOps) {
				t.Fatalf("opcodes = %v, want %v", gotOps, wantOps)
			}
			if reports[0][3] != 3 {
				t.Errorf("step count = %d, want 3", reports[0][3])
			}
			for i := range steps {
				want, _ := packet.BuildStep(i, steps[i])
				if reports[i+1] != want {
					t.Errorf("step %d report mismatch", i)
				}
			}
			for i, r := range reports {
				if !r.Valid() {
					t.Errorf("report %d has bad checksum", i)
				}
			}

			if got := rec.durations(); fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("delays = %v, want %v", got, tt.want)
			}
			if stub.Opens() != 1 {
				t.Errorf("opens = %d, want 1", stub.Opens())
			}
			assertClosed(t, stub)
			if seq.State() != StateDone {
				t.Errorf("state = %s, want done", seq.State())
			}
		})
	}
}

func TestUploadProgram_PreservesOrder(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	late, _ := program.NewStep("20:00", 0, 0, 0, 0, 0)
	early, _ := program.NewStep("08:00", 100, 100, 100, 100, 100)

	if err := seq.UploadProgram(context.Background(), []program.LightingStep{late, early}); err != nil {
		t.Fatalf("UploadProgram: %v", err)
	}
	reports := stub.Reports()
	if reports[1][4] != 20 || reports[2][4] != 8 {
		t.Errorf("steps reordered: hours %d, %d", reports[1][4], reports[2][4])
	}
}

func TestUploadProgram_InvalidInputTouchesNoDevice(t *testing.T) {
	bad := makeSteps(t, 3)
	bad[1].Hour = 24

	tests := []struct {
		name  string
		steps []program.LightingStep
		step  int
	}{
		{name: "empty", steps: nil, step: NoStep},
		{name: "too many", steps: makeSteps(t, 256), step: NoStep},
		{name: "bad step", steps: bad, step: 1},
		{name: "missing channel", steps: []program.LightingStep{{Hour: 8, Levels: []uint8{1, 2, 3}}}, step: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, stub, _ := newTestSequencer(t)
			err := seq.UploadProgram(context.Background(), tt.steps)
			seqErr := assertKind(t, err, KindInvalidInput)
			if seqErr.Step != tt.step {
				t.Errorf("step = %d, want %d", seqErr.Step, tt.step)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Error("expected errors.Is(err, ErrInvalidInput)")
			}
			if stub.Opens() != 0 || len(stub.Frames()) != 0 {
				t.Errorf("device touched: opens=%d frames=%d", stub.Opens(), len(stub.Frames()))
			}
		})
	}
}

func TestUploadProgram_MaxSteps(t *testing.T) {
	seq, stub, _ := newTestSequencer(t, WithTiming(NoDelay()))
	if err := seq.UploadProgram(context.Background(), makeSteps(t, program.MaxSteps)); err != nil {
		t.Fatalf("UploadProgram: %v", err)
	}
	reports := stub.Reports()
	if len(reports) != program.MaxSteps+2 {
		t.Fatalf("reports = %d, want %d", len(reports), program.MaxSteps+2)
	}
	if reports[0][3] != 255 {
		t.Errorf("count = %d, want 255", reports[0][3])
	}
}

func TestUploadProgram_AbortMidway(t *testing.T) {
	seq, stub, rec := newTestSequencer(t)
	stub.FailWhen(func(frame []byte) error {
		if packet.Opcode(frame[3]) == packet.OpStep && frame[4] == 2 {
			return errors.New("device unplugged")
		}
		return nil
	})

	err := seq.UploadProgram(context.Background(), makeSteps(t, 5))
	seqErr := assertKind(t, err, KindProtocolAborted)
	if seqErr.Step != 2 {
		t.Errorf("step = %d, want 2", seqErr.Step)
	}
	for _, target := range []error{ErrProtocolAborted, ErrTransport, transport.ErrWrite} {
		if !errors.Is(err, target) {
			t.Errorf("expected errors.Is(err, %v)", target)
		}
	}

	gotOps := opcodes(stub.Reports())
	wantOps := []packet.Opcode{packet.OpProgramStart, packet.OpStep, packet.OpStep}
	if fmt.Sprint(gotOps) != fmt.Sprint(wantOps) {
		t.Errorf("opcodes = %v, want %v (no end packet)", gotOps, wantOps)
	}
	if got := len(rec.durations()); got != 3 {
		t.Errorf("delays = %d, want 3", got)
	}
	assertClosed(t, stub)

	status := seq.Status()
	if status.State != StateFailed || status.Step != 2 {
		t.Errorf("status = %+v, want failed at step 2", status)
	}
}

func TestUploadProgram_StartFailure(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	stub.FailWhen(func(frame []byte) error {
		if packet.Opcode(frame[3]) == packet.OpProgramStart {
			return errors.New("stall")
		}
		return nil
	})

	err := seq.UploadProgram(context.Background(), makeSteps(t, 2))
	assertKind(t, err, KindTransport)
	if len(stub.Frames()) != 0 {
		t.Error("nothing should follow a failed start packet")
	}
	assertClosed(t, stub)
}

func TestUploadProgram_EndFailure(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	stub.FailWhen(func(frame []byte) error {
		if packet.Opcode(frame[3]) == packet.OpProgramEnd {
			return errors.New("stall")
		}
		return nil
	})

	err := seq.UploadProgram(context.Background(), makeSteps(t, 2))
	seqErr := assertKind(t, err, KindProtocolAborted)
	if seqErr.Step != NoStep {
		t.Errorf("step = %d, want NoStep", seqErr.Step)
	}
	assertClosed(t, stub)
}

func TestUploadProgram_DeviceNotFound(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)
	stub.SetAttached(false)

	err := seq.UploadProgram(context.Background(), makeSteps(t, 2))
	assertKind(t, err, KindDeviceNotFound)
	if len(stub.Frames()) != 0 {
		t.Error("no frames should be written")
	}
}

func TestBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blockingSleep := func(time.Duration) {
		once.Do(func() { close(entered) })
		<-release
	}

	seq, stub, _ := newTestSequencer(t, WithSleep(blockingSleep))

	steps := makeSteps(t, 2)
	done := make(chan error, 1)
	go func() {
		done <- seq.UploadProgram(context.Background(), steps)
	}()
	<-entered

	err := seq.SyncTime(context.Background())
	assertKind(t, err, KindBusy)
	if !errors.Is(err, ErrBusy) {
		t.Error("expected errors.Is(err, ErrBusy)")
	}
	if err := seq.UploadProgram(context.Background(), makeSteps(t, 1)); !errors.Is(err, ErrBusy) {
		t.Errorf("second upload: expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if stub.Opens() != 1 {
		t.Errorf("opens = %d, want 1", stub.Opens())
	}

	if err := seq.SyncTime(context.Background()); err != nil {
		t.Errorf("sync after release: %v", err)
	}
	assertClosed(t, stub)
}

func TestIsDeviceConnected(t *testing.T) {
	seq, stub, _ := newTestSequencer(t)

	if !seq.IsDeviceConnected() {
		t.Error("expected connected")
	}
	stub.SetAttached(false)
	if seq.IsDeviceConnected() {
		t.Error("expected disconnected")
	}
	if stub.Opens() != 0 {
		t.Error("probe must not open the device")
	}
}

func TestEventsPublished(t *testing.T) {
	bus := events.New()
	completed := make(chan events.OperationCompletedEvent, 1)
	unsub := bus.Subscribe(func(e events.OperationCompletedEvent) { completed <- e })
	defer unsub()

	seq, stub, _ := newTestSequencer(t, WithEventBus(bus))
	stub.FailWhen(func(frame []byte) error {
		if packet.Opcode(frame[3]) == packet.OpStep && frame[4] == 1 {
			return errors.New("gone")
		}
		return nil
	})

	_ = seq.UploadProgram(context.Background(), makeSteps(t, 3))

	select {
	case e := <-completed:
		if e.Success || e.Operation != OpUpload {
			t.Errorf("unexpected event: %+v", e)
		}
		if e.ErrorKind != string(KindProtocolAborted) || e.Step != 1 {
			t.Errorf("event kind/step = %s/%d", e.ErrorKind, e.Step)
		}
		if e.OperationID == "" || e.OperationID != seq.Status().ID {
			t.Errorf("operation id = %q, status id = %q", e.OperationID, seq.Status().ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for completion event")
	}
}

func TestOperationIDsAreUnique(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	if err := seq.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}
	first := seq.Status().ID
	if err := seq.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}
	second := seq.Status().ID

	if first == "" || second == "" || first == second {
		t.Errorf("ids = %q, %q", first, second)
	}
}

func TestStatusStartsIdle(t *testing.T) {
	seq, _, _ := newTestSequencer(t)
	status := seq.Status()
	if status.State != StateIdle || status.Step != NoStep {
		t.Errorf("status = %+v", status)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, events.StateIdle},
		{StateConnecting, events.StateConnecting},
		{StateSending, events.StateSending},
		{StateStarting, events.StateStarting},
		{StateUploading, events.StateUploading},
		{StateFinalizing, events.StateFinalizing},
		{StateDone, events.StateDone},
		{StateFailed, events.StateFailed},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
