package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/service"
)

func (s *Server) registerAssetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAsset",
		Method:      http.MethodGet,
		Path:        "/api/v1/assets/{bucket}/{name}",
		Summary:     "Download asset",
		Description: "Streams the stored image bytes",
		Tags:        []string{"Assets"},
	}, s.handleGetAsset)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAsset",
		Method:      http.MethodDelete,
		Path:        "/api/v1/assets/{bucket}/{name}",
		Summary:     "Delete asset",
		Description: "Deletes one asset and renumbers the product's remaining assets",
		Tags:        []string{"Assets"},
	}, s.handleDeleteAsset)
}

// === DTOs ===

// AssetInput identifies one stored asset.
type AssetInput struct {
	Bucket string `path:"bucket" enum:"primary,secondary" doc:"Classification bucket"`
	Name   string `path:"name" maxLength:"255" doc:"Asset file name"`
}

// DeleteAssetOutput wraps the delete result for Huma.
type DeleteAssetOutput struct {
	Body service.DeleteResult
}

// === Handlers ===

func (s *Server) handleGetAsset(ctx context.Context, input *AssetInput) (*huma.StreamResponse, error) {
	obj, r, err := s.catalog.OpenAsset(ctx, naming.Bucket(input.Bucket), input.Name)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer r.Close()
			contentType := obj.MimeType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			hctx.SetHeader("Content-Type", contentType)
			hctx.SetHeader("Content-Length", strconv.FormatInt(obj.Size, 10))
			hctx.SetHeader("Cache-Control", CacheNoStore)
			hctx.SetHeader("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
			if _, err := io.Copy(hctx.BodyWriter(), r); err != nil {
				s.logger.Warn("asset stream interrupted", "name", obj.Name, "error", err)
			}
		},
	}, nil
}

func (s *Server) handleDeleteAsset(ctx context.Context, input *AssetInput) (*DeleteAssetOutput, error) {
	result, err := s.catalog.DeleteAsset(ctx, naming.Bucket(input.Bucket), input.Name)
	if err != nil {
		return nil, err
	}
	return &DeleteAssetOutput{Body: *result}, nil
}

// assetPath is the download URL of an asset.
func assetPath(bucket, name string) string {
	return "/api/v1/assets/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}
