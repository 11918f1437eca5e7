package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeOperationState
	TypeOperationCompleted
	TypeReportWritten
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Device discovery actions.
const (
	ActionAttached = "attached"
	ActionDetached = "detached"
)

// DeviceDiscoveryEvent is published when the controller is plugged or unplugged.
type DeviceDiscoveryEvent struct {
	Action    string    `json:"action" example:"attached" doc:"attached or detached"`
	VendorID  uint16    `json:"vendor_id" example:"2184" doc:"USB vendor id"`
	ProductID uint16    `json:"product_id" example:"16384" doc:"USB product id"`
	Path      string    `json:"path" example:"/devices/pci0000:00/usb1/1-2" doc:"Kernel object path"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// Operation states carried by OperationStateEvent.
const (
	StateIdle       = "idle"
	StateConnecting = "connecting"
	StateSending    = "sending"
	StateStarting   = "starting"
	StateUploading  = "uploading"
	StateFinalizing = "finalizing"
	StateDone       = "done"
	StateFailed     = "failed"
)

// OperationStateEvent reports a sequencer state transition.
type OperationStateEvent struct {
	OperationID string    `json:"operation_id" doc:"Identifier shared by all events of one operation"`
	Operation   string    `json:"operation" example:"upload" doc:"sync or upload"`
	State       string    `json:"state" example:"uploading" doc:"Sequencer state"`
	Step        int       `json:"step" example:"3" doc:"Step index while uploading, -1 otherwise"`
	Total       int       `json:"total" example:"12" doc:"Number of steps in the upload"`
	Timestamp   time.Time `json:"timestamp"`
}

// Type returns the event type identifier for OperationStateEvent.
func (e OperationStateEvent) Type() uint32 { return TypeOperationState }

// OperationCompletedEvent is published once per operation, on success or failure.
type OperationCompletedEvent struct {
	OperationID string        `json:"operation_id"`
	Operation   string        `json:"operation"`
	Success     bool          `json:"success"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Step        int           `json:"step"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for OperationCompletedEvent.
func (e OperationCompletedEvent) Type() uint32 { return TypeOperationCompleted }

// ReportWrittenEvent is published for every report the device accepted.
type ReportWrittenEvent struct {
	Opcode string `json:"opcode"`
	Bytes  int    `json:"bytes"`
}

// Type returns the event type identifier for ReportWrittenEvent.
func (e ReportWrittenEvent) Type() uint32 { return TypeReportWritten }
