// Package led mirrors controller status on a host board LED: solid while
// the TC420 is attached, blinking during an upload or sync, heartbeat after
// a failed operation, and off when the controller is unplugged.
package led

// Pattern selects how an LED is driven.
type Pattern string

const (
	PatternSolid     Pattern = "solid"
	PatternBlink     Pattern = "blink"
	PatternHeartbeat Pattern = "heartbeat"
	PatternOff       Pattern = "off"
)

// Controller abstracts LED hardware control across different SBC boards.
type Controller interface {
	// Set drives the LED identified by the board-specific ledType.
	Set(ledType string, pattern Pattern) error

	// Available returns the LED types supported by this controller.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []Pattern
}
