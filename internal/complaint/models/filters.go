package models

import (
	"math"
	"time"

	"civreg/pkg/platform/paging"
)

// Filter narrows List. Merged complaints are left out unless IncludeMerged
// is set.
type Filter struct {
	Category      Category
	Status        Status
	Priority      Priority
	IncludeMerged bool
	paging.Page
}

// DateRange bounds complaints by creation time. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Counts is the raw aggregation a store returns for Stats.
type Counts struct {
	Total      int
	ByStatus   map[Status]int
	ByCategory map[Category]int
}

func NewCounts() Counts {
	return Counts{ByStatus: map[Status]int{}, ByCategory: map[Category]int{}}
}

type Stats struct {
	Total          int              `json:"total"`
	ByStatus       map[Status]int   `json:"byStatus"`
	ByCategory     map[Category]int `json:"byCategory"`
	ResolutionRate float64          `json:"resolutionRate"`
}

// StatsFrom fills every status and category key and derives the resolution
// rate as a percentage rounded to two decimals, 0 when there is nothing to
// count.
func StatsFrom(c Counts) Stats {
	stats := Stats{
		Total:      c.Total,
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByCategory: make(map[Category]int, len(Categories)),
	}
	for _, s := range Statuses {
		stats.ByStatus[s] = c.ByStatus[s]
	}
	for _, cat := range Categories {
		stats.ByCategory[cat] = c.ByCategory[cat]
	}
	if c.Total > 0 {
		rate := float64(c.ByStatus[StatusResolved]) / float64(c.Total) * 100
		stats.ResolutionRate = math.Round(rate*100) / 100
	}
	return stats
}
