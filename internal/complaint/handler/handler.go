package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/complaint/models"
	"civreg/internal/platform/middleware"
	"civreg/internal/policy"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the complaint lifecycle as the HTTP layer sees it.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, complaintID id.ComplaintID, req *models.UpdateStatusRequest) (*models.Complaint, error)
	Assign(ctx context.Context, complaintID id.ComplaintID, req *models.AssignRequest) (*models.Complaint, error)
	Merge(ctx context.Context, req *models.MergeRequest) (*models.Complaint, error)
	Get(ctx context.Context, complaintID id.ComplaintID) (*models.Complaint, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Complaint, int, error)
	Stats(ctx context.Context, r *models.DateRange) (models.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts /complaints. Reads are open to every authenticated role.
func (h *Handler) Register(r chi.Router) {
	edit := middleware.RequireRole(h.logger, policy.Editors...)

	r.Route("/complaints", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.With(edit).Post("/", h.HandleCreate)
		r.Get("/stats", h.HandleStats)
		r.With(edit).Post("/merge", h.HandleMerge)
		r.Get("/{id}", h.HandleGet)
		r.With(edit).Put("/{id}/status", h.HandleUpdateStatus)
		r.With(edit).Put("/{id}/assign", h.HandleAssign)
	})
}

// HandleList handles GET /api/complaints.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.QueryPage(r)
	if err != nil {
		h.fail(ctx, w, "invalid complaint query", err)
		return
	}
	includeMerged, err := httputil.QueryBool(r, "includeMerged")
	if err != nil {
		h.fail(ctx, w, "invalid complaint query", err)
		return
	}
	q := r.URL.Query()
	filter := models.Filter{
		Category:      models.Category(q.Get("category")),
		Status:        models.Status(q.Get("status")),
		Priority:      models.Priority(q.Get("priority")),
		IncludeMerged: includeMerged,
		Page:          page,
	}
	items, total, err := h.service.List(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list complaints", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(items, total, page, identity))
}

func identity(c *models.Complaint) *models.Complaint { return c }

// HandleCreate handles POST /api/complaints.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to create complaint", err)
		return
	}
	h.logger.InfoContext(ctx, "complaint created",
		"request_id", requestID,
		"complaint_code", c.Code,
		"category", c.Category,
	)
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleStats handles GET /api/complaints/stats?from=&to=.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rng, err := dateRange(r)
	if err != nil {
		h.fail(ctx, w, "invalid stats range", err)
		return
	}
	stats, err := h.service.Stats(ctx, rng)
	if err != nil {
		h.fail(ctx, w, "failed to compute complaint stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// dateRange returns nil when neither bound is given.
func dateRange(r *http.Request) (*models.DateRange, error) {
	from, to, err := httputil.QueryDateRange(r)
	if err != nil || (from == nil && to == nil) {
		return nil, err
	}
	rng := &models.DateRange{}
	if from != nil {
		rng.From = *from
	}
	if to != nil {
		rng.To = *to
	}
	return rng, nil
}

// HandleGet handles GET /api/complaints/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	complaintID, ok := h.complaintID(ctx, w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(ctx, complaintID)
	if err != nil {
		h.fail(ctx, w, "failed to get complaint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleUpdateStatus handles PUT /api/complaints/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	complaintID, ok := h.complaintID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.UpdateStatus(ctx, complaintID, req)
	if err != nil {
		h.fail(ctx, w, "failed to update complaint status", err)
		return
	}
	h.logger.InfoContext(ctx, "complaint status changed",
		"request_id", requestID,
		"complaint_code", c.Code,
		"status", c.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleAssign handles PUT /api/complaints/{id}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	complaintID, ok := h.complaintID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AssignRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Assign(ctx, complaintID, req)
	if err != nil {
		h.fail(ctx, w, "failed to assign complaint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleMerge handles POST /api/complaints/merge and returns the main
// complaint after the merge.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Merge(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to merge complaints", err)
		return
	}
	h.logger.InfoContext(ctx, "complaints merged",
		"request_id", requestID,
		"complaint_code", c.Code,
		"merged", len(req.SourceIDs()),
	)
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) complaintID(ctx context.Context, w http.ResponseWriter, r *http.Request) (id.ComplaintID, bool) {
	complaintID, err := id.ParseComplaintID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid complaint id", err)
		return id.ComplaintID{}, false
	}
	return complaintID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if de, ok := dErrors.As(err); !ok || dErrors.ToHTTPStatus(de.Code) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
