package handler

import (
	"net/http"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

type changeHeadRequest struct {
	NewHeadID id.PersonID `json:"newHeadId"`
}

func (r *changeHeadRequest) Validate() error {
	if r.NewHeadID.IsNil() {
		return dErrors.Validation("newHeadId", "new head is required")
	}
	return nil
}

type updateAddressRequest struct {
	Address models.Address `json:"address"`
}

func (r *updateAddressRequest) Normalize() {
	r.Address = r.Address.Normalize()
}

// HandleListHouseholds handles GET /api/households.
func (h *Handler) HandleListHouseholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.QueryPage(r)
	if err != nil {
		h.fail(ctx, w, "invalid household query", err)
		return
	}
	q := r.URL.Query()
	filter := models.HouseholdFilter{
		Search: q.Get("search"),
		Status: models.HouseholdStatus(q.Get("status")),
		Page:   page,
	}
	items, total, err := h.ledger.ListHouseholds(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "failed to list households", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(items, total, page, toHousehold))
}

// HandleCreateHousehold handles POST /api/households.
func (h *Handler) HandleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.CreateHouseholdRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	household, err := h.ledger.CreateHousehold(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to create household", err)
		return
	}
	h.logger.InfoContext(ctx, "household created",
		"request_id", requestID,
		"household_code", household.Code,
		"members", len(household.Members),
	)
	httputil.WriteJSON(w, http.StatusCreated, toHousehold(household))
}

// HandleGetHousehold handles GET /api/households/{id}, including member
// records.
func (h *Handler) HandleGetHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	household, err := h.ledger.GetHousehold(ctx, householdID)
	if err != nil {
		h.fail(ctx, w, "failed to get household", err)
		return
	}
	members, err := h.ledger.Members(ctx, householdID)
	if err != nil {
		h.fail(ctx, w, "failed to load household members", err)
		return
	}
	resp := toHousehold(household)
	toResp := toPerson(requestcontext.Now(ctx))
	for _, p := range members {
		resp.MemberDetails = append(resp.MemberDetails, toResp(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdateAddress handles PUT /api/households/{id}/address.
func (h *Handler) HandleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateAddressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	household, err := h.ledger.UpdateAddress(ctx, householdID, req.Address)
	if err != nil {
		h.fail(ctx, w, "failed to update household address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHousehold(household))
}

// HandleSplitHousehold handles POST /api/households/{id}/split. The response
// is the new household.
func (h *Handler) HandleSplitHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SplitHouseholdRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	household, err := h.ledger.SplitHousehold(ctx, householdID, req)
	if err != nil {
		h.fail(ctx, w, "failed to split household", err)
		return
	}
	h.logger.InfoContext(ctx, "household split",
		"request_id", requestID,
		"source_id", householdID,
		"household_code", household.Code,
	)
	httputil.WriteJSON(w, http.StatusCreated, toHousehold(household))
}

// HandleChangeHead handles PUT /api/households/{id}/head.
func (h *Handler) HandleChangeHead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[changeHeadRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	household, err := h.ledger.ChangeHead(ctx, householdID, req.NewHeadID)
	if err != nil {
		h.fail(ctx, w, "failed to change household head", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHousehold(household))
}

// HandleAddMember handles POST /api/households/{id}/members.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AddMemberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	household, err := h.ledger.AddMember(ctx, householdID, req)
	if err != nil {
		h.fail(ctx, w, "failed to add household member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHousehold(household))
}

// HandleRemoveMember handles DELETE /api/households/{id}/members/{personId}.
// An optional reason is read from the query string.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	personID, ok := h.personID(ctx, w, r, "personId")
	if !ok {
		return
	}
	household, err := h.ledger.RemoveMember(ctx, householdID, personID, r.URL.Query().Get("reason"))
	if err != nil {
		h.fail(ctx, w, "failed to remove household member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHousehold(household))
}

// HandleDeactivateHousehold handles DELETE /api/households/{id}.
func (h *Handler) HandleDeactivateHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, ok := h.householdID(ctx, w, r)
	if !ok {
		return
	}
	household, err := h.ledger.Deactivate(ctx, householdID)
	if err != nil {
		h.fail(ctx, w, "failed to deactivate household", err)
		return
	}
	h.logger.InfoContext(ctx, "household deactivated",
		"request_id", requestcontext.RequestID(ctx),
		"household_code", household.Code,
	)
	httputil.WriteJSON(w, http.StatusOK, toHousehold(household))
}
