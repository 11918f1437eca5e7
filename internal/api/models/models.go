package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.25.0" doc:"Go version used to build"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceStatusData struct {
	Connected   bool      `json:"connected" example:"true" doc:"Whether the TC420 is attached"`
	VendorID    string    `json:"vendor_id" example:"0888" doc:"USB vendor id in hex"`
	ProductID   string    `json:"product_id" example:"4000" doc:"USB product id in hex"`
	Timing      string    `json:"timing" example:"rev-a" doc:"Settle-delay revision in use"`
	OperationID string    `json:"operation_id,omitempty" doc:"Identifier of the most recent operation"`
	Operation   string    `json:"operation,omitempty" example:"upload" doc:"Most recent operation"`
	State       string    `json:"state" example:"idle" doc:"Sequencer state"`
	Step        *int      `json:"step,omitempty" example:"3" doc:"Step being uploaded, if any"`
	Total       int       `json:"total,omitempty" example:"12" doc:"Number of steps in the running upload"`
	LastError   string    `json:"last_error,omitempty" doc:"Error from the most recent failed operation"`
	UpdatedAt   time.Time `json:"updated_at,omitzero" doc:"When the state last changed"`
}

type DeviceStatusResponse struct {
	Body DeviceStatusData
}

type OperationData struct {
	Operation  string    `json:"operation" example:"sync" doc:"Operation that ran"`
	Status     string    `json:"status" example:"ok" doc:"Operation result"`
	Steps      int       `json:"steps,omitempty" example:"12" doc:"Number of steps uploaded"`
	FinishedAt time.Time `json:"finished_at" doc:"When the operation completed"`
}

type OperationResponse struct {
	Body OperationData
}

// Program models
type StepData struct {
	Time   string `json:"time" example:"08:30" doc:"Time of day as HH:MM"`
	Levels []int  `json:"levels" doc:"Intensity of channels 1-5 in percent"`
}

type ProgramData struct {
	Name  string     `json:"name,omitempty" example:"Reef" doc:"Program name"`
	Steps []StepData `json:"steps" doc:"Lighting steps in upload order"`
}

type ProgramResponse struct {
	Body ProgramData
}

type ProgramRequest struct {
	Sort bool `query:"sort" doc:"Order steps by time of day before storing"`
	Body ProgramData
}

type UploadRequestData struct {
	Steps []StepData `json:"steps" doc:"Lighting steps in upload order"`
	Sort  bool       `json:"sort,omitempty" doc:"Order steps by time of day before uploading"`
}

type UploadRequest struct {
	Body UploadRequestData
}

// Log models
type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp" doc:"When the record was logged"`
	Level      string         `json:"level" example:"INFO" doc:"Log level"`
	Module     string         `json:"module,omitempty" example:"sequencer" doc:"Logger module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Most recent records, oldest first"`
	Count   int            `json:"count" example:"50" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// LED models
type LEDRequest struct {
	Body struct {
		Type    string `json:"type" example:"status" doc:"LED type (board-specific: status, user, etc.)"`
		Pattern string `json:"pattern" example:"solid" enum:"solid,blink,heartbeat,off" doc:"LED pattern"`
	}
}

type LEDCapabilitiesData struct {
	AvailableTypes    []string `json:"available_types" doc:"List of available LED types on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"List of available LED patterns on this board"`
	Current           string   `json:"current,omitempty" example:"solid" doc:"Pattern currently mirrored from controller status"`
}

type LEDCapabilitiesResponse struct {
	Body LEDCapabilitiesData
}
