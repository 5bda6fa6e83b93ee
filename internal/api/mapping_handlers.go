package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/mapping"
	"github.com/scanshelf/scanshelf/internal/service"
)

func (s *Server) registerMappingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "importMapping",
		Method:       http.MethodPost,
		Path:         "/api/v1/mapping",
		Summary:      "Import mapping",
		Description:  "Replaces the barcode to product code mapping with a semicolon separated file",
		Tags:         []string{"Mapping"},
		MaxBodyBytes: service.MaxMappingBytes,
	}, s.handleImportMapping)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMapping",
		Method:      http.MethodGet,
		Path:        "/api/v1/mapping",
		Summary:     "Get mapping",
		Description: "Returns the mapping status and, on request, its rows",
		Tags:        []string{"Mapping"},
	}, s.handleGetMapping)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearMapping",
		Method:        http.MethodDelete,
		Path:          "/api/v1/mapping",
		Summary:       "Clear mapping",
		Description:   "Removes the mapping; captures are named by barcode until a new one is imported",
		Tags:          []string{"Mapping"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearMapping)
}

// === DTOs ===

// ImportMappingInput carries the raw mapping file.
type ImportMappingInput struct {
	RawBody []byte
}

// MappingStatusOutput wraps the mapping status for Huma.
type MappingStatusOutput struct {
	Body service.MappingStatus
}

// GetMappingInput contains parameters for reading the mapping.
type GetMappingInput struct {
	Entries bool `query:"entries" doc:"Include every mapping row"`
}

// MappingResponse contains the mapping status and optional rows.
type MappingResponse struct {
	service.MappingStatus
	Rows []mapping.Entry `json:"rows,omitempty" doc:"Mapping rows sorted by barcode"`
}

// MappingOutput wraps the mapping response for Huma.
type MappingOutput struct {
	Body MappingResponse
}

// === Handlers ===

func (s *Server) handleImportMapping(ctx context.Context, input *ImportMappingInput) (*MappingStatusOutput, error) {
	status, err := s.catalog.ImportMapping(ctx, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}
	return &MappingStatusOutput{Body: status}, nil
}

func (s *Server) handleGetMapping(_ context.Context, input *GetMappingInput) (*MappingOutput, error) {
	resp := MappingResponse{MappingStatus: s.catalog.MappingStatus()}
	if input.Entries {
		resp.Rows = s.catalog.MappingEntries()
	}
	return &MappingOutput{Body: resp}, nil
}

func (s *Server) handleClearMapping(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.catalog.ClearMapping(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
