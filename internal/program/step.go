package program

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ChannelCount is the number of PWM channels on the controller.
	ChannelCount = 5
	// MaxLevel is the highest intensity a channel accepts, in percent.
	MaxLevel = 100
	// MaxSteps is the largest program the one-byte step count can describe.
	MaxSteps = 255
)

// LightingStep pairs a time of day with the intensity of every channel.
type LightingStep struct {
	Hour   uint8
	Minute uint8
	Levels []uint8
}

// NewStep builds a step from a "HH:MM" clock string and channel levels.
func NewStep(clock string, levels ...uint8) (LightingStep, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return LightingStep{}, err
	}
	step := LightingStep{Hour: hour, Minute: minute, Levels: append([]uint8(nil), levels...)}
	if err := step.Validate(); err != nil {
		return LightingStep{}, err
	}
	return step, nil
}

// Clock returns the step time formatted as "HH:MM".
func (s LightingStep) Clock() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// MinuteOfDay returns the step time as minutes after midnight.
func (s LightingStep) MinuteOfDay() int {
	return int(s.Hour)*60 + int(s.Minute)
}

// Validate checks the step against the controller's field ranges.
func (s LightingStep) Validate() error {
	if s.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidStep, s.Hour)
	}
	if s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidStep, s.Minute)
	}
	if len(s.Levels) != ChannelCount {
		return fmt.Errorf("%w: got %d channel levels, want %d", ErrInvalidStep, len(s.Levels), ChannelCount)
	}
	for ch, level := range s.Levels {
		if level > MaxLevel {
			return fmt.Errorf("%w: channel %d level %d above %d", ErrInvalidStep, ch+1, level, MaxLevel)
		}
	}
	return nil
}

// ParseClock parses "H:MM" or "HH:MM" into hour and minute.
func ParseClock(clock string) (uint8, uint8, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidStep, clock)
	}

	hour, err := strconv.ParseUint(h, 10, 8)
	if err != nil || hour > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidStep, clock)
	}
	minute, err := strconv.ParseUint(m, 10, 8)
	if err != nil || minute > 59 || len(m) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidStep, clock)
	}

	return uint8(hour), uint8(minute), nil
}
