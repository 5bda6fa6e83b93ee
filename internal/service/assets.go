package service

import (
	"context"
	"io"
	"strings"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
	"github.com/scanshelf/scanshelf/internal/history"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
)

// ProductAssets is a scanned product with its current assets.
type ProductAssets struct {
	Resolution naming.Resolution    `json:"resolution"`
	Group      history.ProductGroup `json:"group"`
	// NextName is the name the next capture would get.
	NextName string `json:"next_name"`
}

// DeleteResult reports a single asset deletion.
type DeleteResult struct {
	Deleted  objectstore.Object    `json:"deleted"`
	Renumber naming.RenumberResult `json:"renumber"`
}

// BulkDeleteResult reports a deletion of many assets.
type BulkDeleteResult struct {
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// ListAssets resolves primaryID with the active policy and lists the assets
// stored under the resulting name.
func (s *CatalogService) ListAssets(ctx context.Context, primaryID string) (*ProductAssets, error) {
	res, err := s.Resolve(primaryID)
	if err != nil {
		return nil, err
	}
	group, err := s.indexer.Group(ctx, res.Bucket, res.BaseName)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(group.Assets))
	for i, a := range group.Assets {
		names[i] = a.Name
	}
	return &ProductAssets{
		Resolution: res,
		Group:      group,
		NextName:   naming.NextName(res.BaseName, s.Policy().Extension, names),
	}, nil
}

// OpenAsset opens an asset for reading. The caller closes the reader.
func (s *CatalogService) OpenAsset(ctx context.Context, bucket naming.Bucket, name string) (objectstore.Object, io.ReadCloser, error) {
	obj, err := s.findAsset(ctx, bucket, name)
	if err != nil {
		return objectstore.Object{}, nil, err
	}
	r, err := s.store.OpenRead(ctx, obj.Handle)
	if err != nil {
		return objectstore.Object{}, nil, err
	}
	return obj, r, nil
}

// DeleteAsset deletes one asset. When the product still has more than one asset
// afterwards, its sequence is renumbered to close the gap.
func (s *CatalogService) DeleteAsset(ctx context.Context, bucket naming.Bucket, name string) (*DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.findAsset(ctx, bucket, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, obj.Handle); err != nil {
		return nil, err
	}
	s.logger.Info("asset deleted", "name", obj.Name, "bucket", bucket)

	result := &DeleteResult{Deleted: obj}
	base, group, err := s.groupOf(ctx, bucket, obj.Name)
	if err != nil {
		s.logger.Warn("skipping renumber, listing failed", "name", obj.Name, "error", err)
		return result, nil
	}
	if len(group.Assets) > 1 {
		rn, err := s.renumberer.Renumber(ctx, bucket, base)
		if err != nil {
			s.logger.Warn("renumber after delete failed", "base", base, "error", err)
		}
		result.Renumber = rn
	}
	return result, nil
}

// groupOf finds the product a deleted asset belonged to and its remaining
// assets. "AB-12.jpg" is either the bare asset of AB-12 or number 12 of AB; it
// is read as AB-12 when that product still has assets.
func (s *CatalogService) groupOf(ctx context.Context, bucket naming.Bucket, name string) (string, history.ProductGroup, error) {
	parsed := naming.ParseName(name)
	if parsed.Kind != naming.KindBare {
		stem := strings.TrimSuffix(name, parsed.Ext)
		group, err := s.indexer.Group(ctx, bucket, stem)
		if err != nil {
			return "", history.ProductGroup{}, err
		}
		if len(group.Assets) > 0 {
			return stem, group, nil
		}
	}
	group, err := s.indexer.Group(ctx, bucket, parsed.Base)
	return parsed.Base, group, err
}

// DeleteProduct deletes every asset of one product. Assets that cannot be
// deleted are reported and left in place.
func (s *CatalogService) DeleteProduct(ctx context.Context, bucket naming.Bucket, base string) (*BulkDeleteResult, error) {
	if !bucket.Valid() {
		return nil, domainerrors.Validationf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.indexer.Group(ctx, bucket, base)
	if err != nil {
		return nil, err
	}
	if len(group.Assets) == 0 {
		return nil, domainerrors.NotFoundf("no assets for %s", base)
	}

	result := s.deleteObjects(ctx, group.Assets)
	s.logger.Info("product deleted", "base", base, "bucket", bucket, "deleted", result.Deleted, "failed", len(result.Failed))
	return result, nil
}

// DeleteAll deletes every asset in every bucket and clears the scan log.
func (s *CatalogService) DeleteAll(ctx context.Context) (*BulkDeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := &BulkDeleteResult{}
	for _, bucket := range naming.Buckets {
		objects, err := s.store.Query(ctx, bucket.Folder(), "")
		if err != nil {
			return nil, err
		}
		r := s.deleteObjects(ctx, objects)
		total.Deleted += r.Deleted
		total.Failed = append(total.Failed, r.Failed...)
	}

	if s.scans != nil {
		if err := s.scans.DeleteAll(ctx); err != nil {
			s.logger.Warn("failed to clear scan log", "error", err)
		}
	}

	s.logger.Info("history cleared", "deleted", total.Deleted, "failed", len(total.Failed))
	return total, nil
}

func (s *CatalogService) deleteObjects(ctx context.Context, objects []objectstore.Object) *BulkDeleteResult {
	result := &BulkDeleteResult{}
	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.Handle); err != nil && !domainerrors.Is(err, objectstore.ErrNotFound) {
			s.logger.Warn("failed to delete asset", "name", obj.Name, "folder", obj.Folder, "error", err)
			result.Failed = append(result.Failed, obj.Name)
			continue
		}
		result.Deleted++
	}
	return result
}

// Renumber closes the gaps in a product's sequence.
func (s *CatalogService) Renumber(ctx context.Context, bucket naming.Bucket, base string) (naming.RenumberResult, error) {
	if !bucket.Valid() {
		return naming.RenumberResult{}, domainerrors.Validationf("unknown bucket %q", bucket)
	}
	if base == "" {
		return naming.RenumberResult{}, domainerrors.Validation("base name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renumberer.Renumber(ctx, bucket, base)
}

// History returns the product groups of one bucket whose base name contains
// query. An empty query returns every group.
func (s *CatalogService) History(ctx context.Context, bucket naming.Bucket, query string) ([]history.ProductGroup, error) {
	if !bucket.Valid() {
		return nil, domainerrors.Validationf("unknown bucket %q", bucket)
	}
	groups, err := s.indexer.Index(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return history.Search(groups, query), nil
}

// HistoryAll returns History for every bucket.
func (s *CatalogService) HistoryAll(ctx context.Context, query string) (map[naming.Bucket][]history.ProductGroup, error) {
	all, err := s.indexer.IndexAll(ctx)
	if err != nil {
		return nil, err
	}
	for bucket, groups := range all {
		all[bucket] = history.Search(groups, query)
	}
	return all, nil
}

// findAsset looks an asset up by exact name.
func (s *CatalogService) findAsset(ctx context.Context, bucket naming.Bucket, name string) (objectstore.Object, error) {
	if !bucket.Valid() {
		return objectstore.Object{}, domainerrors.Validationf("unknown bucket %q", bucket)
	}
	if name == "" {
		return objectstore.Object{}, domainerrors.Validation("asset name is required")
	}
	objects, err := s.store.Query(ctx, bucket.Folder(), objectstore.EscapeGlob(name))
	if err != nil {
		return objectstore.Object{}, err
	}
	for _, obj := range objects {
		if obj.Name == name {
			return obj, nil
		}
	}
	return objectstore.Object{}, domainerrors.NotFoundf("asset %s not found in %s", name, bucket)
}

// Ping checks that every bucket folder can be listed.
func (s *CatalogService) Ping(ctx context.Context) error {
	for _, bucket := range naming.Buckets {
		if _, err := s.store.Query(ctx, bucket.Folder(), "."); err != nil {
			return err
		}
	}
	return nil
}
