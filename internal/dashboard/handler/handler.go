package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/dashboard/models"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/platform/paging"
	"civreg/pkg/requestcontext"
)

type Service interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Refresh(ctx context.Context) (*models.Stats, error)
	RecentActivities(ctx context.Context, limit int) (*models.RecentActivities, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard/stats", h.HandleStats)
	r.Get("/dashboard/activities", h.HandleRecentActivities)
}

// HandleStats serves GET /api/dashboard/stats. refresh=true bypasses the
// cached snapshot.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refresh, err := httputil.QueryBool(r, "refresh")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	load := h.service.Stats
	if refresh {
		load = h.service.Refresh
	}
	stats, err := load(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard stats unavailable",
			"error", err,
			"refresh", refresh,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleRecentActivities serves GET /api/dashboard/activities?limit=.
func (h *Handler) HandleRecentActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := httputil.QueryInt(r, "limit", paging.DefaultLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	activities, err := h.service.RecentActivities(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "recent activities unavailable",
			"error", err,
			"limit", limit,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, activities)
}
