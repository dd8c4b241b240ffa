package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"allergystats/internal/platform/metrics"
	"allergystats/internal/platform/middleware"
	dErrors "allergystats/pkg/domain-errors"
	"allergystats/pkg/platform/httputil"
	"allergystats/pkg/platform/middleware/requesttime"
)

// APIPrefix is where versioned API handlers are mounted.
const APIPrefix = "/api/v1"

// Registrar mounts a module's endpoints.
type Registrar interface {
	Register(r chi.Router)
}

// Dependencies are the pieces NewRouter assembles.
type Dependencies struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	API            []Registrar
	// Checks back /ready; each must succeed for the instance to be ready.
	Checks map[string]func(context.Context) error
}

// NewRouter wires the middleware stack, operational endpoints and every
// API module under APIPrefix.
func NewRouter(d Dependencies) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(d.Metrics))
	if len(d.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(d.AllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for name, check := range d.Checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route(APIPrefix, func(api chi.Router) {
		for _, module := range d.API {
			module.Register(api)
		}
	})
	return r
}
