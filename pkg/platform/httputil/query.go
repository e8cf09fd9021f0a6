package httputil

import (
	"net/http"
	"strconv"
	"time"

	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/paging"
)

// ListResponse is the envelope for paged collections.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse maps items through fn and wraps them with the paging window.
func NewListResponse[S, T any](items []S, total int, page paging.Page, fn func(S) T) ListResponse[T] {
	page = page.Normalize()
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return ListResponse[T]{Items: out, Total: total, Limit: page.Limit, Offset: page.Offset}
}

// QueryInt parses an optional integer query parameter. Missing means def.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Validation(name, name+" must be an integer")
	}
	return n, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.Validation(name, name+" must be true or false")
	}
	return b, nil
}

// QueryPage reads limit and offset.
func QueryPage(r *http.Request) (paging.Page, error) {
	limit, err := QueryInt(r, "limit", 0)
	if err != nil {
		return paging.Page{}, err
	}
	offset, err := QueryInt(r, "offset", 0)
	if err != nil {
		return paging.Page{}, err
	}
	return paging.Page{Limit: limit, Offset: offset}, nil
}

// QueryDate parses an optional YYYY-MM-DD or RFC 3339 query parameter.
// A bare date is read as midnight UTC.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.Validation(name, name+" must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

// QueryDateRange reads from and to. A bare to date covers that whole day.
// Both are nil when absent.
func QueryDateRange(r *http.Request) (from, to *time.Time, err error) {
	if from, err = QueryDate(r, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = QueryDate(r, "to"); err != nil {
		return nil, nil, err
	}
	if to != nil && len(r.URL.Query().Get("to")) == len(time.DateOnly) {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	return from, to, nil
}
