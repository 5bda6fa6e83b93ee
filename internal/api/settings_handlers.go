package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/naming"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getNamingPolicy",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings/policy",
		Summary:     "Get naming policy",
		Description: "Returns how new captures are named",
		Tags:        []string{"Settings"},
	}, s.handleGetPolicy)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNamingPolicy",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/policy",
		Summary:     "Update naming policy",
		Description: "Replaces the naming policy. Existing assets keep their names.",
		Tags:        []string{"Settings"},
	}, s.handleUpdatePolicy)
}

// === DTOs ===

// PolicyResponse contains the naming policy.
type PolicyResponse struct {
	UseSecondaryIdentifier bool   `json:"use_secondary_identifier" doc:"Name captures by the mapped product code"`
	Label                  string `json:"label,omitempty" doc:"Optional name component appended as _<label>"`
	Extension              string `json:"extension" doc:"File extension of new captures"`
}

// PolicyOutput wraps the policy response for Huma.
type PolicyOutput struct {
	Body PolicyResponse
}

// UpdatePolicyRequest is the request body for updating the policy.
type UpdatePolicyRequest struct {
	UseSecondaryIdentifier bool   `json:"use_secondary_identifier" doc:"Name captures by the mapped product code"`
	Label                  string `json:"label,omitempty" maxLength:"32" doc:"Optional label, normalized to [a-z0-9_]"`
	Extension              string `json:"extension,omitempty" maxLength:"9" doc:"File extension, default .jpg"`
}

// UpdatePolicyInput wraps the update policy request for Huma.
type UpdatePolicyInput struct {
	Body UpdatePolicyRequest
}

// === Handlers ===

func (s *Server) handleGetPolicy(_ context.Context, _ *struct{}) (*PolicyOutput, error) {
	return &PolicyOutput{Body: toPolicyResponse(s.catalog.Policy())}, nil
}

func (s *Server) handleUpdatePolicy(ctx context.Context, input *UpdatePolicyInput) (*PolicyOutput, error) {
	p, err := s.catalog.UpdatePolicy(ctx, naming.Policy{
		UseSecondaryIdentifier: input.Body.UseSecondaryIdentifier,
		Label:                  input.Body.Label,
		Extension:              input.Body.Extension,
	})
	if err != nil {
		return nil, err
	}
	return &PolicyOutput{Body: toPolicyResponse(p)}, nil
}

func toPolicyResponse(p naming.Policy) PolicyResponse {
	return PolicyResponse{
		UseSecondaryIdentifier: p.UseSecondaryIdentifier,
		Label:                  p.Label,
		Extension:              p.Extension,
	}
}
