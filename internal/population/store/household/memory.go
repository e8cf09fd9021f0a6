package household

import (
	"context"
	"slices"
	"strings"
	"sync"

	"civreg/internal/population/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// ConstraintCode names the unique key on household codes.
const ConstraintCode = "households_code_key"

// InMemory stores households in process memory. Reads return copies so
// callers cannot mutate stored state without going through Update.
type InMemory struct {
	mu         sync.RWMutex
	households map[id.HouseholdID]*models.Household
	codes      map[string]id.HouseholdID
}

func NewInMemory() *InMemory {
	return &InMemory{
		households: make(map[id.HouseholdID]*models.Household),
		codes:      make(map[string]id.HouseholdID),
	}
}

func clone(h *models.Household) *models.Household {
	c := *h
	c.Members = slices.Clone(h.Members)
	c.History = slices.Clone(h.History)
	return &c
}

// Create inserts h with any history entries it already carries.
func (s *InMemory) Create(_ context.Context, h *models.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[h.Code]; taken {
		return sentinel.Conflict(ConstraintCode)
	}
	s.households[h.ID] = clone(h)
	s.codes[h.Code] = h.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, householdID id.HouseholdID) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.households[householdID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(h), nil
}

// Update replaces head, members, address and status. History is left alone;
// it only grows through AppendHistory.
func (s *InMemory) Update(_ context.Context, h *models.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.households[h.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.HeadID = h.HeadID
	stored.Members = slices.Clone(h.Members)
	stored.Address = h.Address
	stored.Status = h.Status
	stored.UpdatedAt = h.UpdatedAt
	return nil
}

func (s *InMemory) AppendHistory(_ context.Context, householdID id.HouseholdID, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.households[householdID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.History = append(stored.History, entry)
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.HouseholdFilter) ([]*models.Household, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := filter.Status
	if status == "" {
		status = models.HouseholdStatusActive
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]*models.Household, 0, len(s.households))
	for _, h := range s.households {
		if h.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(h.Code), search) &&
			!strings.Contains(strings.ToLower(h.Address.HouseNumber), search) {
			continue
		}
		matched = append(matched, h)
	}
	slices.SortFunc(matched, func(a, b *models.Household) int {
		return strings.Compare(a.Code, b.Code)
	})

	start, end := filter.Page.Normalize().Window(len(matched))
	out := make([]*models.Household, 0, end-start)
	for _, h := range matched[start:end] {
		out = append(out, clone(h))
	}
	return out, len(matched), nil
}

func (s *InMemory) Count(_ context.Context, status models.HouseholdStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, h := range s.households {
		if h.Status == status {
			n++
		}
	}
	return n, nil
}

// FindByIDs returns the households that exist among ids, in no particular order.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.HouseholdID) ([]*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Household, 0, len(ids))
	for _, householdID := range ids {
		if h, ok := s.households[householdID]; ok {
			out = append(out, clone(h))
		}
	}
	return out, nil
}

// RecentlyUpdated returns up to limit households of any status, most recently
// updated first.
func (s *InMemory) RecentlyUpdated(_ context.Context, limit int) ([]*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Household, 0, len(s.households))
	for _, h := range s.households {
		all = append(all, h)
	}
	slices.SortFunc(all, func(a, b *models.Household) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	out := make([]*models.Household, 0, min(limit, len(all)))
	for _, h := range all[:min(limit, len(all))] {
		out = append(out, clone(h))
	}
	return out, nil
}
