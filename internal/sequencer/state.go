package sequencer

import (
	"time"

	"github.com/smazurov/tc420/internal/events"
)

// Operation names.
const (
	OpSync   = "sync"
	OpUpload = "upload"
)

// State is a step of the sync or upload state machine.
//
//	sync:   Idle → Connecting → Sending → Done|Failed
//	upload: Idle → Connecting → Starting → Uploading(i) → Finalizing → Done|Failed
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSending
	StateStarting
	StateUploading
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return events.StateIdle
	case StateConnecting:
		return events.StateConnecting
	case StateSending:
		return events.StateSending
	case StateStarting:
		return events.StateStarting
	case StateUploading:
		return events.StateUploading
	case StateFinalizing:
		return events.StateFinalizing
	case StateDone:
		return events.StateDone
	case StateFailed:
		return events.StateFailed
	default:
		return "unknown"
	}
}

// Status is a snapshot of the most recent operation.
type Status struct {
	// ID identifies the operation; empty before the first one.
	ID        string
	Operation string
	State     State
	// Step is the step being uploaded, or NoStep.
	Step      int
	Total     int
	LastError string
	UpdatedAt time.Time
}
