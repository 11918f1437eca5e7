package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tc420/internal/api/models"
	"github.com/smazurov/tc420/internal/logging"
)

// registerLogRoutes registers the recent log history endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Return the most recent log records kept in memory, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum number of entries"`
		Module string `query:"module" doc:"Only return entries from this module"`
	}) (*models.LogsResponse, error) {
		// Filter before limiting so a module query still fills the page
		all := logging.GetHistory().Recent(0)

		entries := make([]models.LogEntryData, 0, min(input.Limit, len(all)))
		for i := len(all) - 1; i >= 0 && len(entries) < input.Limit; i-- {
			e := all[i]
			if input.Module != "" && e.Module != input.Module {
				continue
			}
			entries = append(entries, models.LogEntryData{
				Timestamp:  e.Timestamp,
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		// Collected newest first
		slices.Reverse(entries)

		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})
}
