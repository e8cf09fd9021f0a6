package complaint

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"civreg/internal/complaint/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// ConstraintCode names the unique key on complaint codes.
const ConstraintCode = "complaints_code_key"

// InMemory stores complaints in process memory. Reads return copies.
type InMemory struct {
	mu         sync.RWMutex
	complaints map[id.ComplaintID]*models.Complaint
	codes      map[string]id.ComplaintID
}

func NewInMemory() *InMemory {
	return &InMemory{
		complaints: make(map[id.ComplaintID]*models.Complaint),
		codes:      make(map[string]id.ComplaintID),
	}
}

func clone(c *models.Complaint) *models.Complaint {
	out := *c
	out.Submitters = slices.Clone(c.Submitters)
	out.StatusHistory = slices.Clone(c.StatusHistory)
	out.MergedFrom = slices.Clone(c.MergedFrom)
	if out.MergedFrom == nil {
		out.MergedFrom = []id.ComplaintID{}
	}
	return &out
}

// Create inserts c with the history entries it already carries.
func (s *InMemory) Create(_ context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[c.Code]; taken {
		return sentinel.Conflict(ConstraintCode)
	}
	s.complaints[c.ID] = clone(c)
	s.codes[c.Code] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, complaintID id.ComplaintID) (*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complaints[complaintID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

// FindByIDs returns the complaints that exist among ids, in no particular order.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.ComplaintID) ([]*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Complaint, 0, len(ids))
	for _, complaintID := range ids {
		if c, ok := s.complaints[complaintID]; ok {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

// Update writes the mutable fields. Status history only grows through
// AppendStatus and the merged flag only through MarkMerged.
func (s *InMemory) Update(_ context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.complaints[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Submitters = slices.Clone(c.Submitters)
	stored.Title = c.Title
	stored.Description = c.Description
	stored.Status = c.Status
	stored.Priority = c.Priority
	stored.Resolution = c.Resolution
	stored.ResolvedAt = c.ResolvedAt
	stored.ResolvedBy = c.ResolvedBy
	stored.AssignedTo = c.AssignedTo
	stored.MergedFrom = slices.Clone(c.MergedFrom)
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

func (s *InMemory) AppendStatus(_ context.Context, complaintID id.ComplaintID, entry models.StatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.complaints[complaintID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.StatusHistory = append(stored.StatusHistory, entry)
	return nil
}

// MarkMerged flags every not-yet-merged complaint in ids as merged into
// into and returns how many rows changed.
func (s *InMemory) MarkMerged(_ context.Context, ids []id.ComplaintID, into id.ComplaintID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, complaintID := range ids {
		c, ok := s.complaints[complaintID]
		if !ok || c.IsMerged {
			continue
		}
		target := into
		c.IsMerged = true
		c.MergedInto = &target
		c.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Complaint, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.Complaint, 0, len(s.complaints))
	for _, c := range s.complaints {
		if !filter.IncludeMerged && c.IsMerged {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && c.Priority != filter.Priority {
			continue
		}
		matched = append(matched, c)
	}
	sortNewestFirst(matched)

	start, end := filter.Page.Normalize().Window(len(matched))
	out := make([]*models.Complaint, 0, end-start)
	for _, c := range matched[start:end] {
		out = append(out, clone(c))
	}
	return out, len(matched), nil
}

// ListCreated returns every unmerged complaint created within r, newest first.
func (s *InMemory) ListCreated(_ context.Context, r *models.DateRange) ([]*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Complaint{}
	for _, c := range s.complaints {
		if c.IsMerged || !r.Contains(c.CreatedAt) {
			continue
		}
		out = append(out, clone(c))
	}
	sortNewestFirst(out)
	return out, nil
}

// Aggregate counts unmerged complaints created within r.
func (s *InMemory) Aggregate(_ context.Context, r *models.DateRange) (models.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := models.NewCounts()
	for _, c := range s.complaints {
		if c.IsMerged || !r.Contains(c.CreatedAt) {
			continue
		}
		counts.Total++
		counts.ByStatus[c.Status]++
		counts.ByCategory[c.Category]++
	}
	return counts, nil
}

func sortNewestFirst(items []*models.Complaint) {
	slices.SortFunc(items, func(a, b *models.Complaint) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Code, a.Code)
	})
}
