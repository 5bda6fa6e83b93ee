package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/api"
	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/service"
)

// Version is reported by the health endpoint and the OpenAPI document.
var Version = "dev"

// APIServerHandle wraps api.Server with Shutdownable.
type APIServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdownable.
func (h *APIServerHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideAPIServer provides the HTTP handler tree.
func ProvideAPIServer(i do.Injector) (*APIServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalog := do.MustInvoke[*service.CatalogService](i)

	handler := api.NewServer(catalog, api.Config{
		Version:          Version,
		CaptureRateLimit: cfg.Capture.RateLimit,
		CaptureBurst:     cfg.Capture.Burst,
		MaxCaptureBytes:  cfg.Capture.MaxBytes,
	}, log.Logger)

	return &APIServerHandle{Server: handler}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*APIServerHandle](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
