package packet

import "errors"

// ErrInvalidInput is returned when a field does not fit its report slot.
// No report is produced in that case.
var ErrInvalidInput = errors.New("invalid packet input")
