package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tc420/internal/api/models"
	"github.com/smazurov/tc420/internal/led"
)

// registerLEDRoutes registers LED control endpoints
func (s *Server) registerLEDRoutes() {
	// Only register if LED controller is available
	if s.options.LEDController == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Drive an LED with a pattern. The status LED is overwritten on the next controller status change.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LEDRequest) (*struct{}, error) {
		if err := s.options.LEDController.Set(input.Body.Type, led.Pattern(input.Body.Pattern)); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "Get LED Capabilities",
		Description: "Get the list of available LED types and patterns for this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LEDCapabilitiesResponse, error) {
		patterns := s.options.LEDController.Patterns()
		names := make([]string, len(patterns))
		for i, p := range patterns {
			names[i] = string(p)
		}

		data := models.LEDCapabilitiesData{
			AvailableTypes:    s.options.LEDController.Available(),
			AvailablePatterns: names,
		}
		if s.options.LEDManager != nil {
			data.Current = string(s.options.LEDManager.Pattern())
		}
		return &models.LEDCapabilitiesResponse{Body: data}, nil
	})

	s.logger.Info("LED routes registered")
}
