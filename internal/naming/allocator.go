package naming

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/objectstore"
)

// Allocator defaults.
const (
	DefaultMaxRetries   = 10
	DefaultRetryBackoff = 5 * time.Millisecond
)

// AllocatorConfig tunes collision handling.
type AllocatorConfig struct {
	// MaxRetries is how many sequence names are tried before the timestamp fallback.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// AllocationRequest names what to allocate.
type AllocationRequest struct {
	Base     string
	Ext      string
	MimeType string
	Bucket   Bucket
}

// Allocation is a reserved, still empty object.
type Allocation struct {
	Object objectstore.Object
	// Attempts is the number of Insert calls made.
	Attempts int
	// Fallback is set when the timestamp name was used.
	Fallback bool
}

// Allocator reserves the next free name for a product against the live store.
type Allocator struct {
	store  objectstore.Store
	cfg    AllocatorConfig
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// NewAllocator creates an allocator. Zero config values take the defaults.
func NewAllocator(store objectstore.Store, cfg AllocatorConfig, log *slog.Logger) *Allocator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Allocator{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepCtx,
		logger: logger.OrDiscard(log),
	}
}

// Allocate reserves a name for a new asset of req.Base.
//
// Each attempt re-reads the product's names from the store and inserts the
// candidate NextName picks. A collision (objectstore.ErrExists) moves on to the
// next sequence number; after MaxRetries collisions the timestamp name is used.
// Any other store error aborts and nothing is left behind.
func (a *Allocator) Allocate(ctx context.Context, req AllocationRequest) (Allocation, error) {
	folder := req.Bucket.Folder()
	pattern := objectstore.EscapeGlob(req.Base) + "*"

	var collided []string
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		existing, err := a.store.Query(ctx, folder, pattern)
		if err != nil {
			return Allocation{}, storeFailure(ctx, "list existing media", err)
		}

		names := make([]string, 0, len(existing)+len(collided))
		for _, obj := range existing {
			names = append(names, obj.Name)
		}
		names = append(names, collided...)

		candidate := NextName(req.Base, req.Ext, names)
		obj, err := a.store.Insert(ctx, candidate, req.MimeType, folder)
		if err == nil {
			return Allocation{Object: obj, Attempts: attempt}, nil
		}
		if !domainerrors.Is(err, objectstore.ErrExists) {
			return Allocation{}, storeFailure(ctx, "reserve "+candidate, err)
		}

		a.logger.Debug("name collision", "name", candidate, "folder", folder, "attempt", attempt)
		collided = append(collided, candidate)
		if err := a.sleep(ctx, a.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
			return Allocation{}, err
		}
	}

	// Two fallback names only collide if the clock returns the same instant twice.
	t := a.now()
	for i := 0; i < 3; i++ {
		name := FallbackName(req.Base, req.Ext, t.Add(time.Duration(i)))
		obj, err := a.store.Insert(ctx, name, req.MimeType, folder)
		if err == nil {
			a.logger.Warn("sequence allocation exhausted, used timestamp name",
				"base", req.Base, "name", name, "retries", a.cfg.MaxRetries)
			return Allocation{Object: obj, Attempts: a.cfg.MaxRetries + i + 1, Fallback: true}, nil
		}
		if !domainerrors.Is(err, objectstore.ErrExists) {
			return Allocation{}, storeFailure(ctx, "reserve "+name, err)
		}
	}
	return Allocation{}, domainerrors.Conflictf("could not allocate a name for %s", req.Base)
}

// storeFailure keeps context and domain errors intact and reports anything else
// as the store being unavailable.
func storeFailure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domainerrors.Wrap(err, domainerrors.CodeUnavailable, op)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
