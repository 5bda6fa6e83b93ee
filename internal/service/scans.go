package service

import (
	"context"

	"github.com/scanshelf/scanshelf/internal/scanlog"
)

// RecentScans returns the most recently scanned products, newest first.
func (s *CatalogService) RecentScans(ctx context.Context, limit int) ([]scanlog.Scan, error) {
	if s.scans == nil {
		return []scanlog.Scan{}, nil
	}
	return s.scans.Recent(ctx, limit)
}

// SearchScans returns scanned products whose primary or secondary identifier
// contains query, newest first.
func (s *CatalogService) SearchScans(ctx context.Context, query string, limit int) ([]scanlog.Scan, error) {
	if s.scans == nil {
		return []scanlog.Scan{}, nil
	}
	return s.scans.Search(ctx, query, limit)
}
