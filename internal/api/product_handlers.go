package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/service"
)

func (s *Server) registerProductRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "lookupProduct",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{primaryId}",
		Summary:     "Look up product",
		Description: "Previews how captures of a scanned barcode would be named",
		Tags:        []string{"Products"},
	}, s.handleLookupProduct)

	huma.Register(s.api, huma.Operation{
		OperationID:   "captureAsset",
		Method:        http.MethodPost,
		Path:          "/api/v1/products/{primaryId}/assets",
		Summary:       "Capture asset",
		Description:   "Stores an image for the product under the next free name",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.cfg.MaxCaptureBytes,
		Middlewares:   huma.Middlewares{s.captureRateLimit},
	}, s.handleCaptureAsset)

	huma.Register(s.api, huma.Operation{
		OperationID: "listProductAssets",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{primaryId}/assets",
		Summary:     "List product assets",
		Description: "Returns the product's assets under the active naming policy",
		Tags:        []string{"Products"},
	}, s.handleListProductAssets)
}

// === DTOs ===

// ProductInput identifies a scanned product.
type ProductInput struct {
	PrimaryID string `path:"primaryId" maxLength:"128" doc:"Scanned barcode"`
}

// ProductLookupOutput wraps the lookup result for Huma.
type ProductLookupOutput struct {
	Body service.ProductLookup
}

// CaptureAssetInput carries the raw image.
type CaptureAssetInput struct {
	PrimaryID   string `path:"primaryId" maxLength:"128" doc:"Scanned barcode"`
	ContentType string `header:"Content-Type" doc:"Image content type, informational only"`
	RawBody     []byte
}

// CaptureOutput wraps the capture result for Huma.
type CaptureOutput struct {
	Location string `header:"Location"`
	Body     service.CaptureResult
}

// ProductAssetsOutput wraps the product assets for Huma.
type ProductAssetsOutput struct {
	Body service.ProductAssets
}

// === Handlers ===

func (s *Server) handleLookupProduct(_ context.Context, input *ProductInput) (*ProductLookupOutput, error) {
	lookup, err := s.catalog.LookupProduct(input.PrimaryID)
	if err != nil {
		return nil, err
	}
	return &ProductLookupOutput{Body: lookup}, nil
}

func (s *Server) handleCaptureAsset(ctx context.Context, input *CaptureAssetInput) (*CaptureOutput, error) {
	s.logger.Debug("capture request",
		"primary_id", input.PrimaryID,
		"content_type", input.ContentType,
		"body_size", len(input.RawBody),
	)

	result, err := s.catalog.Capture(ctx, input.PrimaryID, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}
	return &CaptureOutput{
		Location: assetPath(string(result.Resolution.Bucket), result.Asset.Name),
		Body:     *result,
	}, nil
}

func (s *Server) handleListProductAssets(ctx context.Context, input *ProductInput) (*ProductAssetsOutput, error) {
	assets, err := s.catalog.ListAssets(ctx, input.PrimaryID)
	if err != nil {
		return nil, err
	}
	return &ProductAssetsOutput{Body: *assets}, nil
}
