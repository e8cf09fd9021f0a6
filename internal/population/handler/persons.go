package handler

import (
	"net/http"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// HandleListPersons handles GET /api/population.
func (h *Handler) HandleListPersons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := personFilter(r)
	if err != nil {
		h.fail(ctx, w, "invalid population query", err)
		return
	}
	items, total, err := h.residency.ListPersons(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list population", err)
		return
	}
	resp := httputil.NewListResponse(items, total, filter.Page, toPerson(requestcontext.Now(ctx)))
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func personFilter(r *http.Request) (models.PersonFilter, error) {
	page, err := httputil.QueryPage(r)
	if err != nil {
		return models.PersonFilter{}, err
	}
	includeInactive, err := httputil.QueryBool(r, "includeInactive")
	if err != nil {
		return models.PersonFilter{}, err
	}
	q := r.URL.Query()
	filter := models.PersonFilter{
		Search:          q.Get("search"),
		ResidenceStatus: models.ResidenceStatus(q.Get("residenceStatus")),
		Gender:          models.Gender(q.Get("gender")),
		AgeCategory:     models.AgeCategory(q.Get("ageCategory")),
		IncludeInactive: includeInactive,
		Page:            page,
	}
	if raw := q.Get("householdId"); raw != "" {
		householdID, err := id.ParseHouseholdID(raw)
		if err != nil {
			return models.PersonFilter{}, err
		}
		filter.HouseholdID = &householdID
	}
	return filter, nil
}

// HandleRegisterPerson handles POST /api/population.
func (h *Handler) HandleRegisterPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.RegisterPersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	person, err := h.residency.RegisterPerson(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to register person", err)
		return
	}
	h.logger.InfoContext(ctx, "person registered",
		"request_id", requestID,
		"person_id", person.ID,
		"newborn", person.IsNewborn,
	)
	httputil.WriteJSON(w, http.StatusCreated, toPerson(requestcontext.Now(ctx))(person))
}

// HandleGetPerson handles GET /api/population/{id}.
func (h *Handler) HandleGetPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, ok := h.personID(ctx, w, r, "id")
	if !ok {
		return
	}
	person, err := h.residency.GetPerson(ctx, personID)
	if err != nil {
		h.fail(ctx, w, "failed to get person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPerson(requestcontext.Now(ctx))(person))
}

// HandleUpdatePerson handles PUT /api/population/{id}.
func (h *Handler) HandleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, ok := h.personID(ctx, w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdatePersonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	person, err := h.residency.UpdatePerson(ctx, personID, req)
	if err != nil {
		h.fail(ctx, w, "failed to update person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPerson(requestcontext.Now(ctx))(person))
}

// HandleMarkDeceased handles POST /api/population/{id}/death.
func (h *Handler) HandleMarkDeceased(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	personID, ok := h.personID(ctx, w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.MarkDeceasedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	person, err := h.residency.MarkDeceased(ctx, personID, req)
	if err != nil {
		h.fail(ctx, w, "failed to record death", err)
		return
	}
	h.logger.InfoContext(ctx, "death recorded",
		"request_id", requestID,
		"person_id", personID,
	)
	httputil.WriteJSON(w, http.StatusOK, toPerson(requestcontext.Now(ctx))(person))
}

// HandleMarkMovedOut handles POST /api/population/{id}/moveout.
func (h *Handler) HandleMarkMovedOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	personID, ok := h.personID(ctx, w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.MarkMovedOutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	person, err := h.residency.MarkMovedOut(ctx, personID, req)
	if err != nil {
		h.fail(ctx, w, "failed to record move out", err)
		return
	}
	h.logger.InfoContext(ctx, "move out recorded",
		"request_id", requestID,
		"person_id", personID,
	)
	httputil.WriteJSON(w, http.StatusOK, toPerson(requestcontext.Now(ctx))(person))
}
