// Package providers contains dependency injection providers for the scanshelf server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/logger"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting ScanShelf server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"media_backend", cfg.Storage.MediaBackend,
		"media_path", cfg.Storage.MediaPath,
	)

	return log, nil
}
