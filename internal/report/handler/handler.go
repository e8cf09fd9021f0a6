package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	cmodels "civreg/internal/complaint/models"
	popmodels "civreg/internal/population/models"
	"civreg/internal/report/service"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Service interface {
	Population(ctx context.Context, category popmodels.AgeCategory) (*service.PopulationReport, error)
	Households(ctx context.Context) (*service.HouseholdReport, error)
	Complaints(ctx context.Context, r *cmodels.DateRange) (*service.ComplaintReport, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/population", h.HandlePopulation)
		r.Get("/households", h.HandleHouseholds)
		r.Get("/complaints", h.HandleComplaints)
	})
}

// HandlePopulation handles GET /api/reports/population?ageCategory=&format=.
func (h *Handler) HandlePopulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := reportFormat(r)
	if err != nil {
		h.fail(ctx, w, "invalid report format", err)
		return
	}
	category := popmodels.AgeCategory(r.URL.Query().Get("ageCategory"))
	if category != "" && !category.IsValid() {
		h.fail(ctx, w, "invalid age category", dErrors.Validation("ageCategory", "unknown age category"))
		return
	}

	rep, err := h.service.Population(ctx, category)
	if err != nil {
		h.fail(ctx, w, "failed to build population report", err)
		return
	}
	if format == formatJSON {
		httputil.WriteJSON(w, http.StatusOK, rep)
		return
	}
	attach(w, "danh-sach-nhan-khau.xlsx")
	if err := service.WritePopulationXLSX(w, rep); err != nil {
		h.logger.ErrorContext(ctx, "failed to write population workbook",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// HandleHouseholds handles GET /api/reports/households?format=.
func (h *Handler) HandleHouseholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := reportFormat(r)
	if err != nil {
		h.fail(ctx, w, "invalid report format", err)
		return
	}
	rep, err := h.service.Households(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to build household report", err)
		return
	}
	if format == formatJSON {
		httputil.WriteJSON(w, http.StatusOK, rep)
		return
	}
	attach(w, "danh-sach-ho-khau.xlsx")
	if err := service.WriteHouseholdsXLSX(w, rep); err != nil {
		h.logger.ErrorContext(ctx, "failed to write household workbook",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// HandleComplaints handles GET /api/reports/complaints?from=&to=&format=.
func (h *Handler) HandleComplaints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := reportFormat(r)
	if err != nil {
		h.fail(ctx, w, "invalid report format", err)
		return
	}
	from, to, err := httputil.QueryDateRange(r)
	if err != nil {
		h.fail(ctx, w, "invalid report range", err)
		return
	}
	var rng *cmodels.DateRange
	if from != nil || to != nil {
		rng = &cmodels.DateRange{}
		if from != nil {
			rng.From = *from
		}
		if to != nil {
			rng.To = *to
		}
	}

	rep, err := h.service.Complaints(ctx, rng)
	if err != nil {
		h.fail(ctx, w, "failed to build complaint report", err)
		return
	}
	if format == formatJSON {
		httputil.WriteJSON(w, http.StatusOK, rep)
		return
	}
	attach(w, "kien-nghi.xlsx")
	if err := service.WriteComplaintsXLSX(w, rep); err != nil {
		h.logger.ErrorContext(ctx, "failed to write complaint workbook",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func reportFormat(r *http.Request) (string, error) {
	switch f := r.URL.Query().Get("format"); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatXLSX:
		return formatXLSX, nil
	default:
		return "", dErrors.Validation("format", "must be json or xlsx")
	}
}

func attach(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
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
