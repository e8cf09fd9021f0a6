// Package paging holds the limit/offset window shared by list operations.
package paging

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a limit/offset window. Zero Limit means DefaultLimit.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the window into range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Window returns the [start, end) slice bounds of this page over n items.
func (p Page) Window(n int) (int, int) {
	start := min(p.Offset, n)
	end := min(start+p.Limit, n)
	return start, end
}
