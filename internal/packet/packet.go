// Package packet builds the fixed-size HID reports understood by the TC420
// timer controller. Everything here is pure: no I/O, no clocks.
package packet

import (
	"fmt"
	"time"

	"github.com/smazurov/tc420/internal/program"
)

// Report is one 64-byte output report payload.
type Report [ReportSize]byte

// Checksum returns the sum of b truncated to its low 8 bits.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// newReport returns a zeroed report carrying the sync marker and opcode.
func newReport(op Opcode) Report {
	var r Report
	r[0] = SyncByte0
	r[1] = SyncByte1
	r[offsetOpcode] = byte(op)
	return r
}

// seal writes the checksum into the last byte.
func (r *Report) seal() {
	r[offsetChecksum] = Checksum(r[:offsetChecksum])
}

// Opcode returns the report type.
func (r Report) Opcode() Opcode {
	return Opcode(r[offsetOpcode])
}

// Valid reports whether the sync marker and checksum are intact.
func (r Report) Valid() bool {
	return r[0] == SyncByte0 && r[1] == SyncByte1 && r[offsetChecksum] == Checksum(r[:offsetChecksum])
}

// Frame returns the bytes written to the device: report id then payload.
func (r Report) Frame() []byte {
	frame := make([]byte, FrameSize)
	frame[0] = ReportID
	copy(frame[1:], r[:])
	return frame
}

// BuildTimeSync encodes a wall-clock instant. Fields are taken as-is from
// the instant's own location.
func BuildTimeSync(now time.Time) (Report, error) {
	year := now.Year()
	if year < yearBase || year-yearBase > 0xFF {
		return Report{}, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidInput, year, yearBase, yearBase+0xFF)
	}

	fields := []struct {
		name     string
		value    int
		min, max int
	}{
		{"hour", now.Hour(), 0, 23},
		{"minute", now.Minute(), 0, 59},
		{"second", now.Second(), 0, 59},
		{"day", now.Day(), 1, 31},
		{"month", int(now.Month()), 1, 12},
	}
	for _, f := range fields {
		if f.value < f.min || f.value > f.max {
			return Report{}, fmt.Errorf("%w: %s %d outside %d-%d", ErrInvalidInput, f.name, f.value, f.min, f.max)
		}
	}

	r := newReport(OpTimeSync)
	r[offsetPayload+0] = byte(now.Hour())
	r[offsetPayload+1] = byte(now.Minute())
	r[offsetPayload+2] = byte(now.Second())
	r[offsetPayload+3] = byte(now.Day())
	r[offsetPayload+4] = byte(now.Month())
	r[offsetPayload+5] = byte(year - yearBase)
	r.seal()
	return r, nil
}

// BuildProgramStart announces an upload of stepCount steps. The firmware
// erases its program flash on receipt.
func BuildProgramStart(stepCount int) (Report, error) {
	if stepCount < 1 || stepCount > 0xFF {
		return Report{}, fmt.Errorf("%w: step count %d outside 1-255", ErrInvalidInput, stepCount)
	}

	r := newReport(OpProgramStart)
	r[offsetPayload] = byte(stepCount)
	r.seal()
	return r, nil
}

// BuildStep encodes one program step at position index.
func BuildStep(index int, step program.LightingStep) (Report, error) {
	if index < 0 || index > 0xFF {
		return Report{}, fmt.Errorf("%w: step index %d outside 0-255", ErrInvalidInput, index)
	}
	if len(step.Levels) != ChannelCount {
		return Report{}, fmt.Errorf("%w: step %d has %d channel levels, want %d",
			ErrInvalidInput, index, len(step.Levels), ChannelCount)
	}
	if step.Hour > 23 || step.Minute > 59 {
		return Report{}, fmt.Errorf("%w: step %d time %02d:%02d out of range",
			ErrInvalidInput, index, step.Hour, step.Minute)
	}

	r := newReport(OpStep)
	r[offsetPayload] = byte(index)
	r[offsetPayload+1] = step.Hour
	r[offsetPayload+2] = step.Minute
	copy(r[offsetPayload+3:offsetPayload+3+ChannelCount], step.Levels)
	r.seal()
	return r, nil
}

// BuildProgramEnd closes an upload. The controller beeps when it lands.
func BuildProgramEnd() Report {
	r := newReport(OpProgramEnd)
	r.seal()
	return r
}
