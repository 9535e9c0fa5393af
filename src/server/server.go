package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fxhedge/src/dashboard"
	"fxhedge/src/handler"
	"fxhedge/src/metrics"
	"fxhedge/src/publisher"
	"fxhedge/src/repository"
	"fxhedge/src/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"
)

// Deps are the collaborators the API exposes. Writer, Publisher and Pool are
// optional: a read-only monitor runs without them.
type Deps struct {
	Session   *dashboard.Session
	Writer    handler.Writer
	Pool      handler.PoolLoader
	Snapshots *repository.SnapshotRepository
	Publisher *publisher.PricePublisher
	Auth      *security.TriggerAuth
	Metrics   *metrics.Metrics
}

func NewRouter(d Deps) http.Handler {
	// Router with middleware
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	if d.Publisher != nil && d.Auth != nil {
		update := handler.OracleUpdateHandler(d.Publisher, d.Auth)
		r.Get("/oracle/update", update)
		r.Post("/oracle/update", update)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/position", handler.PositionViewHandler(d.Session))
		r.Get("/rates", handler.RatesHandler(d.Session))
		r.Post("/account", handler.SwitchAccountHandler(d.Session))
		r.Get("/ws", handler.ViewStreamHandler(d.Session, d.Metrics))

		if d.Snapshots != nil {
			r.Get("/snapshots", handler.SearchSnapshotsHandler(d.Snapshots, d.Session))
		}
		if d.Pool != nil {
			r.Get("/pool", handler.PoolHandler(d.Pool))
		}
		if d.Writer != nil {
			r.Get("/approval", handler.ApprovalStatusHandler(d.Writer))
			r.Post("/actions/{action}", handler.ActionHandler(d.Writer, d.Session))
			r.Post("/actions/{action}/reset", handler.ResetHandler(d.Writer))
		}
	})
	return r
}

// StartServer serves h on port until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, h http.Handler, shutdownTimeout time.Duration) error {
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
