package handler

import (
	"net/http"

	"civreg/internal/population/models"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// HandleListResidences handles GET /api/temporary-residence.
func (h *Handler) HandleListResidences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.QueryPage(r)
	if err != nil {
		h.fail(ctx, w, "invalid residence query", err)
		return
	}
	q := r.URL.Query()
	filter := models.ResidenceFilter{
		Type:   models.ResidenceType(q.Get("type")),
		Status: models.DeclarationStatus(q.Get("status")),
		Page:   page,
	}
	items, total, err := h.residency.ListResidences(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list declarations", err)
		return
	}
	resp := httputil.NewListResponse(items, total, page, toResidence(requestcontext.Now(ctx)))
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleExpiringResidences handles GET /api/temporary-residence/expiring.
func (h *Handler) HandleExpiringResidences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := httputil.QueryInt(r, "days", models.ExpiringSoonDays)
	if err != nil {
		h.fail(ctx, w, "invalid expiring query", err)
		return
	}
	items, err := h.residency.ExpiringResidences(ctx, days)
	if err != nil {
		h.fail(ctx, w, "failed to list expiring declarations", err)
		return
	}
	toResp := toResidence(requestcontext.Now(ctx))
	out := make([]ResidenceResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResp(item))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleDeclareResidence handles POST /api/temporary-residence.
func (h *Handler) HandleDeclareResidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.DeclareResidenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	residence, err := h.residency.DeclareTemporaryResidence(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to declare residence", err)
		return
	}
	h.logger.InfoContext(ctx, "residence declared",
		"request_id", requestID,
		"residence_id", residence.ID,
		"type", residence.Type,
	)
	httputil.WriteJSON(w, http.StatusCreated, toResidence(requestcontext.Now(ctx))(residence))
}

// HandleGetResidence handles GET /api/temporary-residence/{id}.
func (h *Handler) HandleGetResidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, ok := h.residenceID(ctx, w, r)
	if !ok {
		return
	}
	residence, err := h.residency.GetResidence(ctx, residenceID)
	if err != nil {
		h.fail(ctx, w, "failed to get declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResidence(requestcontext.Now(ctx))(residence))
}

// HandleExtendResidence handles POST /api/temporary-residence/{id}/extend.
func (h *Handler) HandleExtendResidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, ok := h.residenceID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ExtendResidenceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	residence, err := h.residency.Extend(ctx, residenceID, req)
	if err != nil {
		h.fail(ctx, w, "failed to extend declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResidence(requestcontext.Now(ctx))(residence))
}

// HandleCancelResidence handles POST /api/temporary-residence/{id}/cancel.
func (h *Handler) HandleCancelResidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residenceID, ok := h.residenceID(ctx, w, r)
	if !ok {
		return
	}
	residence, err := h.residency.Cancel(ctx, residenceID)
	if err != nil {
		h.fail(ctx, w, "failed to cancel declaration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResidence(requestcontext.Now(ctx))(residence))
}
