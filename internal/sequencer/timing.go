package sequencer

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/smazurov/tc420/internal/packet"
)

// Timing maps each opcode to the pause required after writing it, before
// the firmware accepts the next report.
type Timing struct {
	Name   string
	settle map[packet.Opcode]time.Duration
}

// RevisionA is the pacing of the first observed host tool: 0.5 s flash
// erase after program-start and 0.1 s per step.
func RevisionA() Timing {
	return Timing{
		Name: "a",
		settle: map[packet.Opcode]time.Duration{
			packet.OpTimeSync:     100 * time.Millisecond,
			packet.OpProgramStart: 500 * time.Millisecond,
			packet.OpStep:         100 * time.Millisecond,
			packet.OpProgramEnd:   100 * time.Millisecond,
		},
	}
}

// RevisionB is the slower pacing of the second observed host tool.
func RevisionB() Timing {
	return Timing{
		Name: "b",
		settle: map[packet.Opcode]time.Duration{
			packet.OpTimeSync:     100 * time.Millisecond,
			packet.OpProgramStart: 600 * time.Millisecond,
			packet.OpStep:         150 * time.Millisecond,
			packet.OpProgramEnd:   100 * time.Millisecond,
		},
	}
}

// NoDelay returns a timing with every pause set to zero.
func NoDelay() Timing {
	return Timing{Name: "none", settle: map[packet.Opcode]time.Duration{}}
}

// TimingFor resolves a revision name as used in configuration.
func TimingFor(name string) (Timing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a", "rev-a":
		return RevisionA(), nil
	case "b", "rev-b":
		return RevisionB(), nil
	case "none":
		return NoDelay(), nil
	default:
		return Timing{}, fmt.Errorf("unknown timing revision %q (want a or b)", name)
	}
}

// After returns the settle delay following a write of op.
func (t Timing) After(op packet.Opcode) time.Duration {
	return t.settle[op]
}

// With returns a copy of t with the delay for op replaced.
func (t Timing) With(op packet.Opcode, d time.Duration) Timing {
	settle := maps.Clone(t.settle)
	if settle == nil {
		settle = make(map[packet.Opcode]time.Duration)
	}
	settle[op] = d
	return Timing{Name: t.Name, settle: settle}
}

// UploadDuration estimates the pacing time of an upload of n steps.
func (t Timing) UploadDuration(n int) time.Duration {
	return t.After(packet.OpProgramStart) + time.Duration(n)*t.After(packet.OpStep) + t.After(packet.OpProgramEnd)
}
