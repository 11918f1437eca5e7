package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tc420/internal/api/models"
	"github.com/smazurov/tc420/internal/program"
)

// registerProgramRoutes registers endpoints for the stored program file
func (s *Server) registerProgramRoutes() {
	if s.options.Store == nil {
		s.logger.Debug("Program store not configured, skipping program routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-program",
		Method:      http.MethodGet,
		Path:        "/api/program",
		Summary:     "Get Program",
		Description: "Return the stored lighting program",
		Tags:        []string{"program"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ProgramResponse, error) {
		return &models.ProgramResponse{Body: toProgramData(s.options.Store.Get())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-program",
		Method:      http.MethodPut,
		Path:        "/api/program",
		Summary:     "Replace Program",
		Description: "Validate and store a lighting program without touching the controller",
		Tags:        []string{"program"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ProgramRequest) (*models.ProgramResponse, error) {
		steps, err := program.ParseEntries(toEntries(input.Body.Steps))
		if err != nil {
			return nil, huma.Error400BadRequest("invalid program", err)
		}

		p := program.Program{Name: input.Body.Name, Steps: steps}
		if input.Sort {
			p = p.Sorted()
		}

		if err := s.options.Store.Replace(p); err != nil {
			if errors.Is(err, program.ErrInvalidStep) {
				return nil, huma.Error400BadRequest("invalid program", err)
			}
			return nil, huma.Error500InternalServerError("failed to save program", err)
		}

		s.logger.Info("Program stored", "name", p.Name, "steps", len(p.Steps), "path", s.options.Store.Path())
		return &models.ProgramResponse{Body: toProgramData(s.options.Store.Get())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "upload-stored-program",
		Method:      http.MethodPost,
		Path:        "/api/program/upload",
		Summary:     "Upload Stored Program",
		Description: "Upload the stored program to the controller",
		Tags:        []string{"program", "device"},
		Errors:      []int{400, 401, 404, 409, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.OperationResponse, error) {
		return s.upload(ctx, s.options.Store.Get().Steps)
	})
}

func toProgramData(p program.Program) models.ProgramData {
	return models.ProgramData{Name: p.Name, Steps: fromEntries(program.Entries(p.Steps))}
}
