package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scanshelf/scanshelf/internal/history"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/service"
)

func (s *Server) registerHistoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "List history",
		Description: "Returns the product index of every bucket, rebuilt from the store",
		Tags:        []string{"History"},
	}, s.handleListHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBucketHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history/{bucket}",
		Summary:     "List bucket history",
		Description: "Returns the product index of one bucket, newest first",
		Tags:        []string{"History"},
	}, s.handleListBucketHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteProduct",
		Method:      http.MethodDelete,
		Path:        "/api/v1/history/{bucket}/{baseName}",
		Summary:     "Delete product",
		Description: "Deletes every asset of one product",
		Tags:        []string{"History"},
	}, s.handleDeleteProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "renumberProduct",
		Method:      http.MethodPost,
		Path:        "/api/v1/history/{bucket}/{baseName}/renumber",
		Summary:     "Renumber product",
		Description: "Closes gaps in a product's sequence numbers",
		Tags:        []string{"History"},
	}, s.handleRenumberProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearHistory",
		Method:      http.MethodDelete,
		Path:        "/api/v1/history",
		Summary:     "Clear history",
		Description: "Deletes every asset in every bucket and clears the scan log",
		Tags:        []string{"History"},
	}, s.handleClearHistory)
}

// === DTOs ===

// ListHistoryInput contains the search query.
type ListHistoryInput struct {
	Query string `query:"q" maxLength:"128" doc:"Case-insensitive base name filter"`
}

// ListBucketHistoryInput contains the bucket and search query.
type ListBucketHistoryInput struct {
	Bucket string `path:"bucket" enum:"primary,secondary" doc:"Classification bucket"`
	Query  string `query:"q" maxLength:"128" doc:"Case-insensitive base name filter"`
}

// HistoryResponse contains product groups per bucket.
type HistoryResponse struct {
	Buckets map[naming.Bucket][]history.ProductGroup `json:"buckets" doc:"Product groups keyed by bucket"`
}

// HistoryOutput wraps the history response for Huma.
type HistoryOutput struct {
	Body HistoryResponse
}

// BucketHistoryResponse contains the product groups of one bucket.
type BucketHistoryResponse struct {
	Bucket naming.Bucket          `json:"bucket" doc:"Classification bucket"`
	Groups []history.ProductGroup `json:"groups" doc:"Product groups, newest first"`
}

// BucketHistoryOutput wraps the bucket history response for Huma.
type BucketHistoryOutput struct {
	Body BucketHistoryResponse
}

// ProductGroupInput identifies one product group.
type ProductGroupInput struct {
	Bucket   string `path:"bucket" enum:"primary,secondary" doc:"Classification bucket"`
	BaseName string `path:"baseName" maxLength:"255" doc:"Product base name"`
}

// BulkDeleteOutput wraps a bulk deletion result for Huma.
type BulkDeleteOutput struct {
	Body service.BulkDeleteResult
}

// RenumberOutput wraps a renumbering result for Huma.
type RenumberOutput struct {
	Body naming.RenumberResult
}

// === Handlers ===

func (s *Server) handleListHistory(ctx context.Context, input *ListHistoryInput) (*HistoryOutput, error) {
	all, err := s.catalog.HistoryAll(ctx, input.Query)
	if err != nil {
		return nil, err
	}
	for bucket, groups := range all {
		all[bucket] = nonNil(groups)
	}
	return &HistoryOutput{Body: HistoryResponse{Buckets: all}}, nil
}

func (s *Server) handleListBucketHistory(ctx context.Context, input *ListBucketHistoryInput) (*BucketHistoryOutput, error) {
	bucket := naming.Bucket(input.Bucket)
	groups, err := s.catalog.History(ctx, bucket, input.Query)
	if err != nil {
		return nil, err
	}
	return &BucketHistoryOutput{Body: BucketHistoryResponse{Bucket: bucket, Groups: nonNil(groups)}}, nil
}

func (s *Server) handleDeleteProduct(ctx context.Context, input *ProductGroupInput) (*BulkDeleteOutput, error) {
	result, err := s.catalog.DeleteProduct(ctx, naming.Bucket(input.Bucket), input.BaseName)
	if err != nil {
		return nil, err
	}
	return &BulkDeleteOutput{Body: *result}, nil
}

func (s *Server) handleRenumberProduct(ctx context.Context, input *ProductGroupInput) (*RenumberOutput, error) {
	result, err := s.catalog.Renumber(ctx, naming.Bucket(input.Bucket), input.BaseName)
	if err != nil {
		return nil, err
	}
	result.Renamed = nonNil(result.Renamed)
	return &RenumberOutput{Body: result}, nil
}

func (s *Server) handleClearHistory(ctx context.Context, _ *struct{}) (*BulkDeleteOutput, error) {
	result, err := s.catalog.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	return &BulkDeleteOutput{Body: *result}, nil
}

// nonNil makes empty lists encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
