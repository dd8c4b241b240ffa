package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"allergystats/internal/stats"
	"allergystats/pkg/platform/httputil"
	"allergystats/pkg/requestcontext"
)

// Service defines the report operations the handler exposes.
type Service interface {
	PopulationStats(ctx context.Context) (*stats.PopulationStats, error)
	AllergyStats(ctx context.Context, mode string) (*stats.AllergyStats, error)
}

// Handler wires report endpoints to the report service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a report handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/population/stats", h.HandlePopulationStats)
	r.Get("/allergies/stats", h.HandleAllergyStats)
}

// HandlePopulationStats handles GET /population/stats.
func (h *Handler) HandlePopulationStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	result, err := h.service.PopulationStats(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "population stats served",
		"request_id", requestcontext.RequestID(ctx),
		"cities", len(result.Cities),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleAllergyStats handles GET /allergies/stats?mode=legacy|scoped.
func (h *Handler) HandleAllergyStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	mode := r.URL.Query().Get("mode")

	result, err := h.service.AllergyStats(ctx, mode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "allergy stats served",
		"request_id", requestcontext.RequestID(ctx),
		"mode", mode,
		"cities", len(result.Cities),
		"allergies", len(result.Stats.Developed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
