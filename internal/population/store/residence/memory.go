package residence

import (
	"context"
	"slices"
	"sync"
	"time"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// ConstraintOpenPerson names the partial unique index allowing one open
// declaration per person.
const ConstraintOpenPerson = "temporary_residences_open_person_key"

type InMemory struct {
	mu         sync.RWMutex
	residences map[id.ResidenceID]*models.TemporaryResidence
}

func NewInMemory() *InMemory {
	return &InMemory{residences: make(map[id.ResidenceID]*models.TemporaryResidence)}
}

func clone(r *models.TemporaryResidence) *models.TemporaryResidence {
	c := *r
	c.Extensions = slices.Clone(r.Extensions)
	if c.Extensions == nil {
		c.Extensions = []models.Extension{}
	}
	return &c
}

func (s *InMemory) openFor(personID id.PersonID, except id.ResidenceID) bool {
	for _, r := range s.residences {
		if r.PersonID == personID && r.ID != except && r.IsOpen() {
			return true
		}
	}
	return false
}

func (s *InMemory) Create(_ context.Context, r *models.TemporaryResidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.IsOpen() && s.openFor(r.PersonID, r.ID) {
		return sentinel.Conflict(ConstraintOpenPerson)
	}
	s.residences[r.ID] = clone(r)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, residenceID id.ResidenceID) (*models.TemporaryResidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.residences[residenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

// FindOpenByPerson returns the person's active or extended declaration.
func (s *InMemory) FindOpenByPerson(_ context.Context, personID id.PersonID) (*models.TemporaryResidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.residences {
		if r.PersonID == personID && r.IsOpen() {
			return clone(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update writes status, end date and timestamps. Extensions only grow
// through AppendExtension.
func (s *InMemory) Update(_ context.Context, r *models.TemporaryResidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.residences[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Status = r.Status
	stored.EndDate = r.EndDate
	stored.UpdatedAt = r.UpdatedAt
	return nil
}

func (s *InMemory) AppendExtension(_ context.Context, residenceID id.ResidenceID, ext models.Extension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.residences[residenceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Extensions = append(stored.Extensions, ext)
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.ResidenceFilter, now time.Time) ([]*models.TemporaryResidence, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.TemporaryResidence, 0, len(s.residences))
	for _, r := range s.residences {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Status != "" && r.EffectiveStatus(now) != filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sortByEndDate(matched)

	start, end := filter.Page.Normalize().Window(len(matched))
	out := make([]*models.TemporaryResidence, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, clone(r))
	}
	return out, len(matched), nil
}

// Expiring returns active declarations whose end date falls in (from, until].
func (s *InMemory) Expiring(_ context.Context, from, until time.Time) ([]*models.TemporaryResidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.TemporaryResidence{}
	for _, r := range s.residences {
		if r.Status != models.DeclarationActive || !r.EndDate.After(from) || r.EndDate.After(until) {
			continue
		}
		out = append(out, clone(r))
	}
	sortByEndDate(out)
	return out, nil
}

func sortByEndDate(items []*models.TemporaryResidence) {
	slices.SortFunc(items, func(a, b *models.TemporaryResidence) int {
		if c := a.EndDate.Compare(b.EndDate); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
