package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
	"github.com/scanshelf/scanshelf/internal/service"
)

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[objectstore.Store](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	scanLogHandle := do.MustInvoke[*ScanLogHandle](i)

	return service.NewCatalogService(context.Background(), store, settingsHandle.Store, scanLogHandle.Log, service.Options{
		DefaultPolicy: naming.Policy{Extension: cfg.Naming.Extension},
		Allocator: naming.AllocatorConfig{
			MaxRetries:   cfg.Naming.MaxRetries,
			RetryBackoff: cfg.Naming.RetryBackoff,
		},
		MaxCaptureBytes: cfg.Capture.MaxBytes,
	}, log.Logger)
}
