// Package service orchestrates the naming engine, the media store and the
// persisted settings behind one catalog API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scanshelf/scanshelf/internal/history"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/mapping"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
	"github.com/scanshelf/scanshelf/internal/scanlog"
	"github.com/scanshelf/scanshelf/internal/settings"
	"github.com/scanshelf/scanshelf/internal/validation"
)

// DefaultMaxCaptureBytes caps a capture body when Options leaves it unset.
const DefaultMaxCaptureBytes int64 = 32 << 20

// SettingsStore persists the naming policy and the imported mapping.
type SettingsStore interface {
	LoadPolicy(ctx context.Context, def naming.Policy) (naming.Policy, error)
	SavePolicy(ctx context.Context, p naming.Policy) error
	LoadMapping(ctx context.Context) (string, settings.MappingMeta, bool, error)
	SaveMapping(ctx context.Context, text string, meta settings.MappingMeta) error
	ClearMapping(ctx context.Context) error
}

// ScanLog records scanned products.
type ScanLog interface {
	Record(ctx context.Context, e scanlog.Scan, captured int) error
	Recent(ctx context.Context, limit int) ([]scanlog.Scan, error)
	Search(ctx context.Context, query string, limit int) ([]scanlog.Scan, error)
	DeleteAll(ctx context.Context) error
}

// Options configures a CatalogService.
type Options struct {
	// DefaultPolicy applies until a policy is saved.
	DefaultPolicy naming.Policy
	Allocator     naming.AllocatorConfig
	// MaxCaptureBytes caps one capture body (default: DefaultMaxCaptureBytes).
	MaxCaptureBytes int64
}

// CatalogService owns every mutation of the media catalog.
//
// Captures, deletions and renumbering are serialized by one mutex, so a
// renumbering pass never interleaves with an allocation for the same product.
// Reads go straight to the store.
type CatalogService struct {
	store      objectstore.Store
	allocator  *naming.Allocator
	renumberer *naming.Renumberer
	indexer    *history.Indexer
	settings   SettingsStore
	scans      ScanLog
	validator  *validation.Validator
	logger     *slog.Logger

	maxCaptureBytes int64
	now             func() time.Time

	mu     sync.Mutex
	table  atomic.Pointer[mapping.Table]
	meta   atomic.Pointer[settings.MappingMeta]
	policy atomic.Pointer[naming.Policy]
	defPol naming.Policy
}

// NewCatalogService creates the service and restores the saved policy and
// mapping. A nil scan log disables scan history.
func NewCatalogService(
	ctx context.Context,
	store objectstore.Store,
	settingsStore SettingsStore,
	scans ScanLog,
	opts Options,
	log *slog.Logger,
) (*CatalogService, error) {
	log = logger.OrDiscard(log)
	if opts.MaxCaptureBytes <= 0 {
		opts.MaxCaptureBytes = DefaultMaxCaptureBytes
	}

	s := &CatalogService{
		store:           store,
		allocator:       naming.NewAllocator(store, opts.Allocator, log.With("component", "allocator")),
		renumberer:      naming.NewRenumberer(store, log.With("component", "renumberer")),
		indexer:         history.NewIndexer(store, log.With("component", "indexer")),
		settings:        settingsStore,
		scans:           scans,
		validator:       validation.New(),
		logger:          log,
		maxCaptureBytes: opts.MaxCaptureBytes,
		now:             time.Now,
		defPol:          opts.DefaultPolicy.Normalized(),
	}
	s.table.Store(mapping.Empty())
	s.meta.Store(&settings.MappingMeta{})

	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// restore loads the saved policy and re-parses the saved mapping.
func (s *CatalogService) restore(ctx context.Context) error {
	policy, err := s.settings.LoadPolicy(ctx, s.defPol)
	if err != nil {
		return fmt.Errorf("restore policy: %w", err)
	}
	s.policy.Store(&policy)

	text, meta, ok, err := s.settings.LoadMapping(ctx)
	if err != nil {
		return fmt.Errorf("restore mapping: %w", err)
	}
	if !ok {
		return nil
	}

	table := mapping.Parse(text)
	if table.IsEmpty() {
		s.logger.Warn("stored mapping has no usable entries, ignoring it")
		return nil
	}
	s.table.Store(table)
	s.meta.Store(&meta)
	s.logger.Info("mapping restored", "entries", table.Count(), "imported_at", meta.ImportedAt)
	return nil
}

// Policy returns the active naming policy.
func (s *CatalogService) Policy() naming.Policy {
	return *s.policy.Load()
}

// Table returns the active mapping table. It is never nil.
func (s *CatalogService) Table() *mapping.Table {
	return s.table.Load()
}

// Resolve resolves a scanned identifier with the active policy and mapping.
func (s *CatalogService) Resolve(primaryID string) (naming.Resolution, error) {
	if err := s.checkIdentifier(primaryID); err != nil {
		return naming.Resolution{}, err
	}
	return naming.Resolve(primaryID, s.Policy(), s.Table()), nil
}

func (s *CatalogService) checkIdentifier(primaryID string) error {
	return s.validator.Var("primary_id", primaryID, "required,identifier,max=128")
}
