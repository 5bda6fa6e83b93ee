// Package di provides dependency injection configuration for the scanshelf server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/di/providers"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/objectstore"
	"github.com/scanshelf/scanshelf/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideObjectStore)
	do.Provide(injector, providers.ProvideSettingsStore)
	do.Provide(injector, providers.ProvideScanLog)

	// Business services
	do.Provide(injector, providers.ProvideCatalogService)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services, which starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[objectstore.Store](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SettingsHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ScanLogHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CatalogService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
