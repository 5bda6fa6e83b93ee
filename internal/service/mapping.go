package service

import (
	"bytes"
	"context"
	"io"
	"time"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
	"github.com/scanshelf/scanshelf/internal/mapping"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/settings"
)

// MaxMappingBytes caps an imported mapping file.
const MaxMappingBytes int64 = 16 << 20

// MappingStatus describes the active mapping table.
type MappingStatus struct {
	Loaded  bool `json:"loaded"`
	Entries int  `json:"entries"`
	Skipped int  `json:"skipped"`
	// ImportedAt is nil when no mapping is loaded.
	ImportedAt *time.Time `json:"imported_at,omitempty"`
}

// ProductLookup is what the catalog knows about a scanned identifier without
// touching the store.
type ProductLookup struct {
	PrimaryID  string            `json:"primary_id"`
	Secondary  string            `json:"secondary_id,omitempty"`
	Mapped     bool              `json:"mapped"`
	Resolution naming.Resolution `json:"resolution"`
}

// ImportMapping parses r and replaces the active mapping with it. A file without
// a single usable row is rejected and the previous mapping stays active.
func (s *CatalogService) ImportMapping(ctx context.Context, r io.Reader) (MappingStatus, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxMappingBytes+1))
	if err != nil {
		return MappingStatus{}, domainerrors.Wrap(err, domainerrors.CodeValidation, "failed to read mapping file")
	}
	if int64(len(raw)) > MaxMappingBytes {
		return MappingStatus{}, domainerrors.Validationf("mapping file exceeds %d bytes", MaxMappingBytes)
	}

	table, err := mapping.ParseReader(ctx, bytes.NewReader(raw))
	if err != nil {
		return MappingStatus{}, err
	}
	if table.IsEmpty() {
		return MappingStatus{}, domainerrors.Validation("no valid product mappings found").
			WithDetails(map[string]int{"skipped": table.Skipped()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta := settings.MappingMeta{
		ImportedAt: s.now().UTC(),
		Entries:    table.Count(),
		Skipped:    table.Skipped(),
	}
	if err := s.settings.SaveMapping(ctx, string(raw), meta); err != nil {
		return MappingStatus{}, err
	}
	s.table.Store(table)
	s.meta.Store(&meta)

	s.logger.Info("mapping imported", "entries", meta.Entries, "skipped", meta.Skipped)
	return s.MappingStatus(), nil
}

// ClearMapping removes the active mapping. Captures fall back to the primary
// identifier until a new one is imported.
func (s *CatalogService) ClearMapping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.ClearMapping(ctx); err != nil {
		return err
	}
	s.table.Store(mapping.Empty())
	s.meta.Store(&settings.MappingMeta{})
	s.logger.Info("mapping cleared")
	return nil
}

// MappingStatus reports the active mapping.
func (s *CatalogService) MappingStatus() MappingStatus {
	table := s.Table()
	if table.IsEmpty() {
		return MappingStatus{}
	}
	meta := s.meta.Load()
	status := MappingStatus{
		Loaded:  true,
		Entries: table.Count(),
		Skipped: table.Skipped(),
	}
	if !meta.ImportedAt.IsZero() {
		ts := meta.ImportedAt
		status.ImportedAt = &ts
	}
	return status
}

// MappingEntries returns the active mapping rows sorted by primary identifier.
func (s *CatalogService) MappingEntries() []mapping.Entry {
	return s.Table().Entries()
}

// LookupProduct reports the mapping and naming decision for primaryID.
func (s *CatalogService) LookupProduct(primaryID string) (ProductLookup, error) {
	res, err := s.Resolve(primaryID)
	if err != nil {
		return ProductLookup{}, err
	}
	secondary, ok := s.Table().Lookup(primaryID)
	return ProductLookup{
		PrimaryID:  primaryID,
		Secondary:  secondary,
		Mapped:     ok,
		Resolution: res,
	}, nil
}

// UpdatePolicy validates, saves and activates a naming policy.
func (s *CatalogService) UpdatePolicy(ctx context.Context, p naming.Policy) (naming.Policy, error) {
	p = p.Normalized()
	if err := s.validator.Validate(p); err != nil {
		return naming.Policy{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.SavePolicy(ctx, p); err != nil {
		return naming.Policy{}, err
	}
	s.policy.Store(&p)
	s.logger.Info("naming policy updated",
		"use_secondary_identifier", p.UseSecondaryIdentifier,
		"label", p.Label,
		"extension", p.Extension,
	)
	return p, nil
}
