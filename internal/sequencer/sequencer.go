// Package sequencer drives the controller through its multi-report
// exchanges. Each operation opens the device, writes a paced sequence of
// reports and closes the device again, on every exit path.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/internal/packet"
	"github.com/smazurov/tc420/internal/program"
	"github.com/smazurov/tc420/internal/transport"
)

// Sequencer serializes device operations over a single transport.
type Sequencer struct {
	transport *transport.Transport
	timing    Timing
	now       func() time.Time
	sleep     func(time.Duration)
	bus       *events.Bus
	logger    *slog.Logger

	// op is held for the whole of an operation; a second caller gets ErrBusy.
	op sync.Mutex
	// opID identifies the running operation; written only while op is held.
	opID string

	mu     sync.RWMutex
	status Status
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTiming sets the pacing policy. RevisionA is the default.
func WithTiming(t Timing) Option {
	return func(s *Sequencer) { s.timing = t }
}

// WithClock sets the time source used for time sync.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// WithSleep replaces the pause used between reports.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Sequencer) { s.sleep = sleep }
}

// WithEventBus publishes state transitions and written reports to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Sequencer) { s.bus = bus }
}

// WithLogger overrides the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// New creates a sequencer owning tr. Nothing else may use tr afterwards.
func New(tr *transport.Transport, opts ...Option) *Sequencer {
	s := &Sequencer{
		transport: tr,
		timing:    RevisionA(),
		now:       time.Now,
		sleep:     time.Sleep,
		logger:    logging.GetLogger("sequencer"),
		status:    Status{State: StateIdle, Step: NoStep},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timing returns the pacing policy in use.
func (s *Sequencer) Timing() Timing {
	return s.timing
}

// Status returns a snapshot of the latest operation.
func (s *Sequencer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// State returns the current state machine position.
func (s *Sequencer) State() State {
	return s.Status().State
}

// IsDeviceConnected reports whether the controller is attached. It does
// not open the device and never fails.
func (s *Sequencer) IsDeviceConnected() bool {
	return s.transport.Probe()
}

// SyncTime sets the controller clock to the host's local time.
func (s *Sequencer) SyncTime(ctx context.Context) error {
	if !s.op.TryLock() {
		return newError(KindBusy, OpSync, NoStep, nil)
	}
	defer s.op.Unlock()

	s.opID = uuid.NewString()
	start := time.Now()
	err := s.syncTime(ctx)
	s.finish(OpSync, start, err)
	return err
}

func (s *Sequencer) syncTime(ctx context.Context) error {
	now := s.now()
	report, err := packet.BuildTimeSync(now)
	if err != nil {
		return newError(KindInvalidInput, OpSync, NoStep, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.setState(OpSync, StateConnecting, NoStep, 0)
	if err := s.transport.Open(); err != nil {
		return newError(KindDeviceNotFound, OpSync, NoStep, err)
	}
	defer s.closeTransport(OpSync)

	s.setState(OpSync, StateSending, NoStep, 0)
	if err := s.write(report); err != nil {
		return newError(KindTransport, OpSync, NoStep, err)
	}
	s.sleep(s.timing.After(packet.OpTimeSync))

	s.logger.Info("Device clock synchronized", "time", now.Format("2006-01-02 15:04:05"))
	return nil
}

// UploadProgram replaces the program stored on the controller with steps,
// in the order given. The whole upload is encoded before the device is
// opened, so invalid input never reaches the wire.
func (s *Sequencer) UploadProgram(ctx context.Context, steps []program.LightingStep) error {
	if !s.op.TryLock() {
		return newError(KindBusy, OpUpload, NoStep, nil)
	}
	defer s.op.Unlock()

	s.opID = uuid.NewString()
	start := time.Now()
	err := s.uploadProgram(ctx, steps)
	s.finish(OpUpload, start, err)
	return err
}

func (s *Sequencer) uploadProgram(ctx context.Context, steps []program.LightingStep) error {
	startReport, stepReports, err := buildUpload(steps)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	total := len(steps)
	s.setState(OpUpload, StateConnecting, NoStep, total)
	if err := s.transport.Open(); err != nil {
		return newError(KindDeviceNotFound, OpUpload, NoStep, err)
	}
	defer s.closeTransport(OpUpload)

	s.setState(OpUpload, StateStarting, NoStep, total)
	if err := s.write(startReport); err != nil {
		return newError(KindTransport, OpUpload, NoStep, err)
	}
	s.sleep(s.timing.After(packet.OpProgramStart))

	for i, report := range stepReports {
		s.setState(OpUpload, StateUploading, i, total)
		if err := s.write(report); err != nil {
			s.logger.Warn("Upload aborted", "step", i, "total", total, "error", err)
			return newError(KindProtocolAborted, OpUpload, i, err)
		}
		s.logger.Debug("Step written", "step", i, "time", steps[i].Clock())
		s.sleep(s.timing.After(packet.OpStep))
	}

	s.setState(OpUpload, StateFinalizing, NoStep, total)
	if err := s.write(packet.BuildProgramEnd()); err != nil {
		return newError(KindProtocolAborted, OpUpload, NoStep, err)
	}
	s.sleep(s.timing.After(packet.OpProgramEnd))

	s.logger.Info("Program uploaded", "steps", total)
	return nil
}

func buildUpload(steps []program.LightingStep) (packet.Report, []packet.Report, error) {
	if len(steps) == 0 || len(steps) > program.MaxSteps {
		return packet.Report{}, nil, newError(KindInvalidInput, OpUpload, NoStep,
			fmt.Errorf("program needs 1 to %d steps, got %d", program.MaxSteps, len(steps)))
	}

	start, err := packet.BuildProgramStart(len(steps))
	if err != nil {
		return packet.Report{}, nil, newError(KindInvalidInput, OpUpload, NoStep, err)
	}

	reports := make([]packet.Report, len(steps))
	for i, step := range steps {
		reports[i], err = packet.BuildStep(i, step)
		if err != nil {
			return packet.Report{}, nil, newError(KindInvalidInput, OpUpload, i, err)
		}
	}
	return start, reports, nil
}

func (s *Sequencer) write(r packet.Report) error {
	if err := s.transport.Write(r); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(events.ReportWrittenEvent{Opcode: r.Opcode().String(), Bytes: packet.FrameSize})
	}
	return nil
}

func (s *Sequencer) closeTransport(operation string) {
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("Failed to close device", "operation", operation, "error", err)
	}
}

func (s *Sequencer) setState(operation string, state State, step, total int) {
	now := time.Now()
	s.mu.Lock()
	s.status = Status{
		ID:        s.opID,
		Operation: operation,
		State:     state,
		Step:      step,
		Total:     total,
		UpdatedAt: now,
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.OperationStateEvent{
			OperationID: s.opID,
			Operation:   operation,
			State:       state.String(),
			Step:        step,
			Total:       total,
			Timestamp:   now,
		})
	}
}

func (s *Sequencer) finish(operation string, start time.Time, err error) {
	duration := time.Since(start)
	completed := events.OperationCompletedEvent{
		OperationID: s.opID,
		Operation:   operation,
		Success:     err == nil,
		Step:        NoStep,
		Duration:    duration,
		Timestamp:   time.Now(),
	}

	s.mu.Lock()
	prev := s.status
	s.status.ID = s.opID
	s.status.Operation = operation
	s.status.UpdatedAt = completed.Timestamp
	if err == nil {
		s.status.State = StateDone
		s.status.Step = NoStep
		s.status.LastError = ""
	} else {
		s.status.State = StateFailed
		s.status.LastError = err.Error()
		if seqErr, ok := err.(*Error); ok {
			completed.ErrorKind = string(seqErr.Kind)
			completed.Step = seqErr.Step
			s.status.Step = seqErr.Step
		}
	}
	state := s.status.State
	s.mu.Unlock()

	if err != nil {
		completed.Error = err.Error()
		s.logger.Error("Device operation failed",
			"operation", operation,
			"operation_id", s.opID,
			"state", prev.State.String(),
			"error", err,
			"duration", duration)
	}

	if s.bus != nil {
		s.bus.Publish(events.OperationStateEvent{
			OperationID: s.opID,
			Operation:   operation,
			State:       state.String(),
			Step:        completed.Step,
			Total:       prev.Total,
			Timestamp:   completed.Timestamp,
		})
		s.bus.Publish(completed)
	}
}
