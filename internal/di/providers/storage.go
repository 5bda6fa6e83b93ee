package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/objectstore"
)

// ProvideObjectStore provides the media object store selected by configuration.
func ProvideObjectStore(i do.Injector) (objectstore.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.MediaBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory media store, captures are lost on restart")
		return objectstore.NewMemory(), nil
	default:
		store, err := objectstore.NewLocalFS(cfg.Storage.MediaPath, log.Component("objectstore"))
		if err != nil {
			return nil, fmt.Errorf("media storage: %w", err)
		}
		log.Info("Media storage initialized", "root", cfg.Storage.MediaPath)
		return store, nil
	}
}
