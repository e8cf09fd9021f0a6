package service

import (
	"context"
	"time"

	cmodels "civreg/internal/complaint/models"
	popmodels "civreg/internal/population/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/paging"
	"civreg/pkg/requestcontext"
)

type PersonLister interface {
	ListPersons(ctx context.Context, filter popmodels.PersonFilter) ([]*popmodels.Person, int, error)
}

type PersonFinder interface {
	FindByIDs(ctx context.Context, ids []id.PersonID) ([]*popmodels.Person, error)
}

type HouseholdSource interface {
	FindByIDs(ctx context.Context, ids []id.HouseholdID) ([]*popmodels.Household, error)
	List(ctx context.Context, filter popmodels.HouseholdFilter) ([]*popmodels.Household, int, error)
}

type ComplaintExporter interface {
	Export(ctx context.Context, r *cmodels.DateRange) ([]*cmodels.Complaint, error)
}

// Service builds the population, household and complaint reports.
type Service struct {
	persons    PersonLister
	heads      PersonFinder
	households HouseholdSource
	complaints ComplaintExporter
}

func New(persons PersonLister, heads PersonFinder, households HouseholdSource, complaints ComplaintExporter) *Service {
	return &Service{persons: persons, heads: heads, households: households, complaints: complaints}
}

type PopulationRow struct {
	FullName      string           `json:"fullName"`
	DateOfBirth   time.Time        `json:"dateOfBirth"`
	Age           int              `json:"age"`
	Gender        popmodels.Gender `json:"gender"`
	IDNumber      string           `json:"idNumber,omitempty"`
	HouseholdCode string           `json:"householdCode,omitempty"`
	HouseNumber   string           `json:"houseNumber,omitempty"`
}

type PopulationReport struct {
	AgeCategory popmodels.AgeCategory `json:"ageCategory,omitempty"`
	Total       int                   `json:"total"`
	Rows        []PopulationRow       `json:"population"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// Population lists the active population, optionally one age category.
func (s *Service) Population(ctx context.Context, category popmodels.AgeCategory) (*PopulationReport, error) {
	now := requestcontext.Now(ctx)
	persons, err := s.allPersons(ctx, popmodels.PersonFilter{AgeCategory: category})
	if err != nil {
		return nil, err
	}
	households, err := s.householdsOf(ctx, persons)
	if err != nil {
		return nil, err
	}

	rep := &PopulationReport{
		AgeCategory: category,
		Total:       len(persons),
		Rows:        make([]PopulationRow, 0, len(persons)),
		GeneratedAt: now,
	}
	for _, p := range persons {
		row := PopulationRow{
			FullName:    p.FullName,
			DateOfBirth: p.DateOfBirth,
			Age:         p.Age(now),
			Gender:      p.Gender,
		}
		if p.IDNumber != nil {
			row.IDNumber = *p.IDNumber
		}
		if p.HouseholdID != nil {
			if h, ok := households[*p.HouseholdID]; ok {
				row.HouseholdCode = h.Code
				row.HouseNumber = h.Address.HouseNumber
			}
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// allPersons pages through ListPersons until the total is reached.
func (s *Service) allPersons(ctx context.Context, filter popmodels.PersonFilter) ([]*popmodels.Person, error) {
	var out []*popmodels.Person
	filter.Page = paging.Page{Limit: paging.MaxLimit}
	for {
		items, total, err := s.persons.ListPersons(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) == 0 || len(out) >= total {
			return out, nil
		}
		filter.Offset += len(items)
	}
}

func (s *Service) householdsOf(ctx context.Context, persons []*popmodels.Person) (map[id.HouseholdID]*popmodels.Household, error) {
	seen := make(map[id.HouseholdID]bool)
	var ids []id.HouseholdID
	for _, p := range persons {
		if p.HouseholdID != nil && !seen[*p.HouseholdID] {
			seen[*p.HouseholdID] = true
			ids = append(ids, *p.HouseholdID)
		}
	}
	out := make(map[id.HouseholdID]*popmodels.Household, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	households, err := s.households.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load households")
	}
	for _, h := range households {
		out[h.ID] = h
	}
	return out, nil
}

type HouseholdRow struct {
	Code        string            `json:"householdCode"`
	HeadName    string            `json:"householdHead,omitempty"`
	Address     popmodels.Address `json:"address"`
	MemberCount int               `json:"memberCount"`
}

type HouseholdReport struct {
	Total       int            `json:"total"`
	Rows        []HouseholdRow `json:"households"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Households lists every active household with its head and member count,
// in code order.
func (s *Service) Households(ctx context.Context) (*HouseholdReport, error) {
	households, err := s.activeHouseholds(ctx)
	if err != nil {
		return nil, err
	}
	heads, err := s.headNames(ctx, households)
	if err != nil {
		return nil, err
	}

	rep := &HouseholdReport{
		Total:       len(households),
		Rows:        make([]HouseholdRow, 0, len(households)),
		GeneratedAt: requestcontext.Now(ctx),
	}
	for _, h := range households {
		rep.Rows = append(rep.Rows, HouseholdRow{
			Code:        h.Code,
			HeadName:    heads[h.HeadID],
			Address:     h.Address,
			MemberCount: len(h.Members),
		})
	}
	return rep, nil
}

func (s *Service) activeHouseholds(ctx context.Context) ([]*popmodels.Household, error) {
	var out []*popmodels.Household
	filter := popmodels.HouseholdFilter{
		Status: popmodels.HouseholdStatusActive,
		Page:   paging.Page{Limit: paging.MaxLimit},
	}
	for {
		items, total, err := s.households.List(ctx, filter)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list households")
		}
		out = append(out, items...)
		if len(items) == 0 || len(out) >= total {
			return out, nil
		}
		filter.Offset += len(items)
	}
}

func (s *Service) headNames(ctx context.Context, households []*popmodels.Household) (map[id.PersonID]string, error) {
	names := make(map[id.PersonID]string, len(households))
	if len(households) == 0 {
		return names, nil
	}
	ids := make([]id.PersonID, 0, len(households))
	for _, h := range households {
		ids = append(ids, h.HeadID)
	}
	persons, err := s.heads.FindByIDs(ctx, id.DedupePersonIDs(ids))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household heads")
	}
	for _, p := range persons {
		names[p.ID] = p.FullName
	}
	return names, nil
}

type ComplaintRow struct {
	Code       string           `json:"code"`
	Title      string           `json:"title"`
	Category   cmodels.Category `json:"category"`
	Status     cmodels.Status   `json:"status"`
	Priority   cmodels.Priority `json:"priority"`
	Submitters int              `json:"submitters"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type ComplaintReport struct {
	From    *time.Time     `json:"from,omitempty"`
	To      *time.Time     `json:"to,omitempty"`
	Summary cmodels.Stats  `json:"summary"`
	Rows    []ComplaintRow `json:"complaints"`
}

// Complaints lists unmerged complaints created within r with a summary
// computed the same way as complaint stats.
func (s *Service) Complaints(ctx context.Context, r *cmodels.DateRange) (*ComplaintReport, error) {
	items, err := s.complaints.Export(ctx, r)
	if err != nil {
		return nil, err
	}
	counts := cmodels.NewCounts()
	rep := &ComplaintReport{Rows: make([]ComplaintRow, 0, len(items))}
	if r != nil {
		if !r.From.IsZero() {
			rep.From = &r.From
		}
		if !r.To.IsZero() {
			rep.To = &r.To
		}
	}
	for _, c := range items {
		counts.Total++
		counts.ByStatus[c.Status]++
		counts.ByCategory[c.Category]++
		rep.Rows = append(rep.Rows, ComplaintRow{
			Code:       c.Code,
			Title:      c.Title,
			Category:   c.Category,
			Status:     c.Status,
			Priority:   c.Priority,
			Submitters: len(c.Submitters),
			CreatedAt:  c.CreatedAt,
		})
	}
	rep.Summary = cmodels.StatsFrom(counts)
	return rep, nil
}
