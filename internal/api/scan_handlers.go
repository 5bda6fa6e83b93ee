package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/scanlog"
)

func (s *Server) registerScanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listScans",
		Method:      http.MethodGet,
		Path:        "/api/v1/scans",
		Summary:     "List scans",
		Description: "Returns recently scanned products, newest first",
		Tags:        []string{"Scans"},
	}, s.handleListScans)
}

// ListScansInput contains paging and search parameters.
type ListScansInput struct {
	Limit int    `query:"limit" minimum:"0" maximum:"500" doc:"Maximum entries (default 50)"`
	Query string `query:"q" maxLength:"128" doc:"Identifier substring"`
}

// ScansResponse contains scan log entries.
type ScansResponse struct {
	Scans []scanlog.Scan `json:"scans" doc:"Scanned products"`
}

// ScansOutput wraps the scans response for Huma.
type ScansOutput struct {
	Body ScansResponse
}

func (s *Server) handleListScans(ctx context.Context, input *ListScansInput) (*ScansOutput, error) {
	var (
		entries []scanlog.Scan
		err     error
	)
	if input.Query != "" {
		entries, err = s.catalog.SearchScans(ctx, input.Query, input.Limit)
	} else {
		entries, err = s.catalog.RecentScans(ctx, input.Limit)
	}
	if err != nil {
		return nil, err
	}
	return &ScansOutput{Body: ScansResponse{Scans: nonNil(entries)}}, nil
}
