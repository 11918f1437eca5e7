package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tc420/internal/api/models"
	"github.com/smazurov/tc420/internal/program"
	"github.com/smazurov/tc420/internal/sequencer"
)

// registerDeviceRoutes registers controller status and operation endpoints
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/device",
		Summary:     "Device Status",
		Description: "Report whether the TC420 is attached and what the sequencer is doing",
		Tags:        []string{"device"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceStatusResponse, error) {
		return &models.DeviceStatusResponse{Body: s.deviceStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "sync-device-time",
		Method:      http.MethodPost,
		Path:        "/api/device/sync",
		Summary:     "Sync Time",
		Description: "Set the controller clock to the host's local time",
		Tags:        []string{"device"},
		Errors:      []int{401, 404, 409, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.OperationResponse, error) {
		if err := s.device.SyncTime(ctx); err != nil {
			return nil, s.mapDeviceError(err)
		}
		return &models.OperationResponse{
			Body: models.OperationData{
				Operation:  sequencer.OpSync,
				Status:     "ok",
				FinishedAt: time.Now(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "upload-program",
		Method:      http.MethodPost,
		Path:        "/api/device/program",
		Summary:     "Upload Program",
		Description: "Replace the program on the controller with the given steps. The request blocks until the upload completes.",
		Tags:        []string{"device"},
		Errors:      []int{400, 401, 404, 409, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.UploadRequest) (*models.OperationResponse, error) {
		steps, err := program.ParseEntries(toEntries(input.Body.Steps))
		if err != nil {
			return nil, huma.Error400BadRequest("invalid program", err)
		}
		p := program.Program{Steps: steps}
		if input.Body.Sort {
			p = p.Sorted()
		}
		return s.upload(ctx, p.Steps)
	})
}

func (s *Server) upload(ctx context.Context, steps []program.LightingStep) (*models.OperationResponse, error) {
	if err := s.device.UploadProgram(ctx, steps); err != nil {
		return nil, s.mapDeviceError(err)
	}
	return &models.OperationResponse{
		Body: models.OperationData{
			Operation:  sequencer.OpUpload,
			Status:     "ok",
			Steps:      len(steps),
			FinishedAt: time.Now(),
		},
	}, nil
}

func (s *Server) deviceStatus() models.DeviceStatusData {
	status := s.device.Status()
	data := models.DeviceStatusData{
		Connected:   s.device.IsDeviceConnected(),
		VendorID:    fmt.Sprintf("%04x", s.options.VendorID),
		ProductID:   fmt.Sprintf("%04x", s.options.ProductID),
		Timing:      s.options.TimingName,
		OperationID: status.ID,
		Operation:   status.Operation,
		State:       status.State.String(),
		Total:       status.Total,
		LastError:   status.LastError,
		UpdatedAt:   status.UpdatedAt,
	}
	if status.Step != sequencer.NoStep {
		step := status.Step
		data.Step = &step
	}
	return data
}

// mapDeviceError converts sequencer errors to HTTP errors
func (s *Server) mapDeviceError(err error) error {
	switch sequencer.KindOf(err) {
	case sequencer.KindInvalidInput:
		return huma.Error400BadRequest("invalid program", err)
	case sequencer.KindDeviceNotFound:
		return huma.Error404NotFound("TC420 not found", err)
	case sequencer.KindBusy:
		return huma.Error409Conflict("another device operation is in progress", err)
	case sequencer.KindTransport, sequencer.KindProtocolAborted:
		return huma.Error502BadGateway("device communication failed", err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}

func toEntries(steps []models.StepData) []program.StepEntry {
	entries := make([]program.StepEntry, len(steps))
	for i, step := range steps {
		entries[i] = program.StepEntry{Time: step.Time, Levels: step.Levels}
	}
	return entries
}

func fromEntries(entries []program.StepEntry) []models.StepData {
	steps := make([]models.StepData, len(entries))
	for i, entry := range entries {
		steps[i] = models.StepData{Time: entry.Time, Levels: entry.Levels}
	}
	return steps
}
