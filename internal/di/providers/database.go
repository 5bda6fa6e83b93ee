package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/scanlog"
	"github.com/scanshelf/scanshelf/internal/settings"
)

// SettingsHandle wraps the settings store with shutdown capability.
type SettingsHandle struct {
	*settings.Store
}

// Shutdown implements do.Shutdownable.
func (h *SettingsHandle) Shutdown() error {
	return h.Close()
}

// ProvideSettingsStore provides the Badger-backed settings store.
func ProvideSettingsStore(i do.Injector) (*SettingsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Storage.DataPath, "settings")
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	st, err := settings.Open(dbPath, log.Component("settings"))
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	return &SettingsHandle{Store: st}, nil
}

// ScanLogHandle wraps the scan log with shutdown capability.
type ScanLogHandle struct {
	*scanlog.Log
}

// Shutdown implements do.Shutdownable.
func (h *ScanLogHandle) Shutdown() error {
	return h.Close()
}

// ProvideScanLog provides the SQLite-backed scan log.
func ProvideScanLog(i do.Injector) (*ScanLogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.Storage.DataPath, "scans.db")
	l, err := scanlog.Open(dbPath, log.Component("scanlog"))
	if err != nil {
		return nil, fmt.Errorf("open scan log: %w", err)
	}
	log.Info("Scan log opened", "path", dbPath)
	return &ScanLogHandle{Log: l}, nil
}
