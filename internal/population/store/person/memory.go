package person

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	pstrings "civreg/pkg/platform/strings"
)

// ConstraintIDNumber names the unique key on national id numbers.
const ConstraintIDNumber = "persons_id_number_key"

type InMemory struct {
	mu        sync.RWMutex
	persons   map[id.PersonID]*models.Person
	idNumbers map[string]id.PersonID
}

func NewInMemory() *InMemory {
	return &InMemory{
		persons:   make(map[id.PersonID]*models.Person),
		idNumbers: make(map[string]id.PersonID),
	}
}

func clone(p *models.Person) *models.Person {
	c := *p
	return &c
}

func (s *InMemory) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IDNumber != nil {
		if _, taken := s.idNumbers[*p.IDNumber]; taken {
			return sentinel.Conflict(ConstraintIDNumber)
		}
		s.idNumbers[*p.IDNumber] = p.ID
	}
	s.persons[p.ID] = clone(p)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

// FindByIDs returns the persons that exist among ids, in input order.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.PersonID) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(ids))
	for _, personID := range ids {
		if p, ok := s.persons[personID]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.persons[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.IDNumber != nil {
		if owner, taken := s.idNumbers[*p.IDNumber]; taken && owner != p.ID {
			return sentinel.Conflict(ConstraintIDNumber)
		}
	}
	if stored.IDNumber != nil {
		delete(s.idNumbers, *stored.IDNumber)
	}
	if p.IDNumber != nil {
		s.idNumbers[*p.IDNumber] = p.ID
	}
	s.persons[p.ID] = clone(p)
	return nil
}

// AssignHousehold points every listed person at householdID, or clears the
// reference when householdID is nil. Unknown ids are skipped.
func (s *InMemory) AssignHousehold(_ context.Context, ids []id.PersonID, householdID *id.HouseholdID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, personID := range ids {
		p, ok := s.persons[personID]
		if !ok {
			continue
		}
		if householdID == nil {
			p.HouseholdID = nil
		} else {
			h := *householdID
			p.HouseholdID = &h
		}
		p.UpdatedAt = now
	}
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.PersonFilter, now time.Time) ([]*models.Person, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Person, 0, len(s.persons))
	for _, p := range s.persons {
		if matches(p, filter, now) {
			matched = append(matched, p)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Person) int {
		if c := strings.Compare(a.FullName, b.FullName); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	start, end := filter.Page.Normalize().Window(len(matched))
	out := make([]*models.Person, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, clone(p))
	}
	return out, len(matched), nil
}

func matches(p *models.Person, f models.PersonFilter, now time.Time) bool {
	if !f.IncludeInactive && !p.IsActive() {
		return false
	}
	if f.ResidenceStatus != "" && p.ResidenceStatus != f.ResidenceStatus {
		return false
	}
	if f.Gender != "" && p.Gender != f.Gender {
		return false
	}
	if f.AgeCategory != "" && p.AgeCategory(now) != f.AgeCategory {
		return false
	}
	if f.HouseholdID != nil && (p.HouseholdID == nil || *p.HouseholdID != *f.HouseholdID) {
		return false
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		byName := pstrings.ContainsFold(p.FullName, search)
		byIDNumber := p.IDNumber != nil && strings.Contains(strings.ToLower(*p.IDNumber), strings.ToLower(search))
		if !byName && !byIDNumber {
			return false
		}
	}
	return true
}

// Breakdown aggregates the active population.
func (s *InMemory) Breakdown(_ context.Context, now time.Time) (models.PopulationBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.PopulationBreakdown{
		ByGender:      make(map[models.Gender]int),
		ByAgeCategory: make(map[models.AgeCategory]int),
	}
	for _, c := range models.AgeCategories {
		out.ByAgeCategory[c] = 0
	}
	for _, p := range s.persons {
		if !p.IsActive() {
			continue
		}
		out.Total++
		switch p.ResidenceStatus {
		case models.ResidenceTemporary:
			out.Temporary++
		case models.ResidenceTemporarilyAbsent:
			out.TemporarilyAbsent++
		}
		out.ByGender[p.Gender]++
		out.ByAgeCategory[p.AgeCategory(now)]++
	}
	return out, nil
}

// RecentlyRegistered returns up to limit persons in any life status, newest
// record first.
func (s *InMemory) RecentlyRegistered(_ context.Context, limit int) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Person, 0, len(s.persons))
	for _, p := range s.persons {
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b *models.Person) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	out := make([]*models.Person, 0, min(limit, len(all)))
	for _, p := range all[:min(limit, len(all))] {
		out = append(out, clone(p))
	}
	return out, nil
}
