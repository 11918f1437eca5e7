// Package program holds the lighting program handed to the controller:
// an ordered list of steps, its validation, and its on-disk forms.
package program

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidStep is returned when a step or program violates controller limits.
var ErrInvalidStep = errors.New("invalid lighting step")

// DefaultName is used for programs loaded from files that carry no name.
const DefaultName = "Default Mode"

// Program is an ordered sequence of lighting steps. The order is the upload
// order; nothing downstream re-sorts it.
type Program struct {
	Name  string
	Steps []LightingStep
}

// Default returns the two-step dark program new projects start from.
func Default() Program {
	return Program{
		Name: DefaultName,
		Steps: []LightingStep{
			{Hour: 8, Minute: 0, Levels: make([]uint8, ChannelCount)},
			{Hour: 20, Minute: 0, Levels: make([]uint8, ChannelCount)},
		},
	}
}

// Validate checks the step count and every step.
func (p Program) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: program has no steps", ErrInvalidStep)
	}
	if len(p.Steps) > MaxSteps {
		return fmt.Errorf("%w: program has %d steps, max %d", ErrInvalidStep, len(p.Steps), MaxSteps)
	}
	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Sorted returns a copy of the program with steps ordered by time of day.
// Steps sharing a time keep their relative order.
func (p Program) Sorted() Program {
	steps := slices.Clone(p.Steps)
	slices.SortStableFunc(steps, func(a, b LightingStep) int {
		return a.MinuteOfDay() - b.MinuteOfDay()
	})
	return Program{Name: p.Name, Steps: steps}
}
