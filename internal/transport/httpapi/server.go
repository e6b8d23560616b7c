package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paymonitor/internal/bootstrap/config"
	"paymonitor/internal/bootstrap/logging"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// Gatherer backs /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
	// IngestSecret, when set, requires signed bodies on the event routes.
	IngestSecret string
}

type Handler struct {
	service  *payment.Service
	upgrader websocket.Upgrader
}

// NewRouter mounts the v1 API, health and metrics routes.
func NewRouter(service *payment.Service, options Options) http.Handler {
	h := &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if options.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(verifySignature(options.IngestSecret))
			r.Post("/events", h.ingestEvent)
			r.Post("/events/batch", h.ingestBatch)
		})

		r.Get("/records", h.listRecords)
		r.Delete("/records", h.deleteRecords)
		r.Get("/records/live", h.liveRecords)
		r.Get("/records/{id}", h.getRecord)
		r.Put("/records/{id}", h.updateRecord)
		r.Delete("/records/{id}", h.deleteRecord)

		r.Get("/summary", h.summary)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	state := "disabled"
	if hub := h.service.Hub(); hub != nil {
		state = string(hub.State())
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"live_view": state,
	})
}

// Serve runs the API on cfg.Addr until ctx is cancelled, then drains
// in-flight requests for at most cfg.ShutdownTimeout.
func Serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	logCtx := logging.WithComponent(ctx, "transport.httpapi")
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return logCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "http server listening", slog.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "listen and serve")
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(logCtx), timeout)
	defer cancel()

	logging.Info(logCtx, "http server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	return nil
}
