package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Version    string                     `json:"version" doc:"Server version"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	storeHealth := s.checkMediaStore(ctx)
	components["media_store"] = storeHealth
	if storeHealth.Status != "healthy" {
		overall = "unhealthy"
	}

	// Without a mapping, secondary naming falls back to barcodes.
	mappingHealth := s.checkMapping()
	components["mapping"] = mappingHealth
	if mappingHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Version:    s.cfg.Version,
			Components: components,
		},
	}, nil
}

// checkMediaStore verifies both bucket folders can be listed.
func (s *Server) checkMediaStore(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.catalog.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: time.Since(start).String(),
			Message: err.Error(),
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
}

// checkMapping reports whether secondary identifiers can be resolved.
func (s *Server) checkMapping() ComponentHealth {
	status := s.catalog.MappingStatus()
	policy := s.catalog.Policy()

	switch {
	case status.Loaded:
		return ComponentHealth{Status: "healthy", Message: strconv.Itoa(status.Entries) + " mappings loaded"}
	case policy.UseSecondaryIdentifier:
		return ComponentHealth{Status: "degraded", Message: "secondary naming enabled but no mapping imported"}
	default:
		return ComponentHealth{Status: "healthy", Message: "no mapping imported"}
	}
}
