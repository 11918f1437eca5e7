package led

import "github.com/smazurov/tc420/internal/logging"

// noop implements Controller for systems without LED support.
type noop struct {
	logger logging.Logger
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

// Set logs the request and does nothing else.
func (n *noop) Set(ledType string, pattern Pattern) error {
	n.logger.Debug("LED control not available (no-op)", "led_type", ledType, "pattern", pattern)
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}

func (n *noop) Patterns() []Pattern {
	return []Pattern{}
}
