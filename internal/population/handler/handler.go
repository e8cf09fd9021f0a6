package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/platform/middleware"
	"civreg/internal/policy"
	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Ledger,Residency

// Ledger is the membership ledger as the HTTP layer sees it.
type Ledger interface {
	CreateHousehold(ctx context.Context, req *models.CreateHouseholdRequest) (*models.Household, error)
	SplitHousehold(ctx context.Context, sourceID id.HouseholdID, req *models.SplitHouseholdRequest) (*models.Household, error)
	ChangeHead(ctx context.Context, householdID id.HouseholdID, newHeadID id.PersonID) (*models.Household, error)
	UpdateAddress(ctx context.Context, householdID id.HouseholdID, address models.Address) (*models.Household, error)
	AddMember(ctx context.Context, householdID id.HouseholdID, req *models.AddMemberRequest) (*models.Household, error)
	RemoveMember(ctx context.Context, householdID id.HouseholdID, personID id.PersonID, reason string) (*models.Household, error)
	Deactivate(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
	GetHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
	Members(ctx context.Context, householdID id.HouseholdID) ([]*models.Person, error)
	ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, int, error)
}

// Residency covers person records and temporary residence declarations.
type Residency interface {
	RegisterPerson(ctx context.Context, req *models.RegisterPersonRequest) (*models.Person, error)
	UpdatePerson(ctx context.Context, personID id.PersonID, req *models.UpdatePersonRequest) (*models.Person, error)
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	ListPersons(ctx context.Context, filter models.PersonFilter) ([]*models.Person, int, error)
	MarkDeceased(ctx context.Context, personID id.PersonID, req *models.MarkDeceasedRequest) (*models.Person, error)
	MarkMovedOut(ctx context.Context, personID id.PersonID, req *models.MarkMovedOutRequest) (*models.Person, error)
	DeclareTemporaryResidence(ctx context.Context, req *models.DeclareResidenceRequest) (*models.TemporaryResidence, error)
	Extend(ctx context.Context, residenceID id.ResidenceID, req *models.ExtendResidenceRequest) (*models.TemporaryResidence, error)
	Cancel(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error)
	GetResidence(ctx context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error)
	ListResidences(ctx context.Context, filter models.ResidenceFilter) ([]*models.TemporaryResidence, int, error)
	ExpiringResidences(ctx context.Context, days int) ([]*models.TemporaryResidence, error)
}

// Handler serves households, population and temporary residence endpoints.
type Handler struct {
	ledger    Ledger
	residency Residency
	logger    *slog.Logger
}

func New(ledger Ledger, residency Residency, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:    ledger,
		residency: residency,
		logger:    logger,
	}
}

// Register mounts the routes. Reads are open to every authenticated role;
// writes need an editor role and deactivation a stricter one.
func (h *Handler) Register(r chi.Router) {
	edit := middleware.RequireRole(h.logger, policy.Editors...)
	deactivate := middleware.RequireRole(h.logger, policy.Deactivators...)

	r.Route("/households", func(r chi.Router) {
		r.Get("/", h.HandleListHouseholds)
		r.With(edit).Post("/", h.HandleCreateHousehold)
		r.Get("/{id}", h.HandleGetHousehold)
		r.With(edit).Put("/{id}/address", h.HandleUpdateAddress)
		r.With(edit).Post("/{id}/split", h.HandleSplitHousehold)
		r.With(edit).Put("/{id}/head", h.HandleChangeHead)
		r.With(edit).Post("/{id}/members", h.HandleAddMember)
		r.With(edit).Delete("/{id}/members/{personId}", h.HandleRemoveMember)
		r.With(deactivate).Delete("/{id}", h.HandleDeactivateHousehold)
	})

	r.Route("/population", func(r chi.Router) {
		r.Get("/", h.HandleListPersons)
		r.With(edit).Post("/", h.HandleRegisterPerson)
		r.Get("/{id}", h.HandleGetPerson)
		r.With(edit).Put("/{id}", h.HandleUpdatePerson)
		r.With(edit).Post("/{id}/death", h.HandleMarkDeceased)
		r.With(edit).Post("/{id}/moveout", h.HandleMarkMovedOut)
	})

	r.Route("/temporary-residence", func(r chi.Router) {
		r.Get("/", h.HandleListResidences)
		r.With(edit).Post("/", h.HandleDeclareResidence)
		r.Get("/expiring", h.HandleExpiringResidences)
		r.Get("/{id}", h.HandleGetResidence)
		r.With(edit).Post("/{id}/extend", h.HandleExtendResidence)
		r.With(edit).Post("/{id}/cancel", h.HandleCancelResidence)
	})
}

// fail logs at a level matching the outcome and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.ToHTTPStatus(codeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func codeOf(err error) dErrors.Code {
	if de, ok := dErrors.As(err); ok {
		return de.Code
	}
	return dErrors.CodeInternal
}

func (h *Handler) householdID(ctx context.Context, w http.ResponseWriter, r *http.Request) (id.HouseholdID, bool) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid household id", err)
		return id.HouseholdID{}, false
	}
	return householdID, true
}

func (h *Handler) personID(ctx context.Context, w http.ResponseWriter, r *http.Request, param string) (id.PersonID, bool) {
	personID, err := id.ParsePersonID(chi.URLParam(r, param))
	if err != nil {
		h.fail(ctx, w, "invalid person id", err)
		return id.PersonID{}, false
	}
	return personID, true
}

func (h *Handler) residenceID(ctx context.Context, w http.ResponseWriter, r *http.Request) (id.ResidenceID, bool) {
	residenceID, err := id.ParseResidenceID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid residence id", err)
		return id.ResidenceID{}, false
	}
	return residenceID, true
}
