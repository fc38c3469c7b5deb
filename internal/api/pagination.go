package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 1000
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page     int
	PageSize int
}

// ParsePagination extracts page and page_size from the request.
// Defaults: page=1, page_size=50. page_size above 1000 is clamped.
// Non-numeric or non-positive values are rejected, as is a page whose
// offset does not fit in an int.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	p := PaginationParams{
		Page:     defaultPage,
		PageSize: defaultPageSize,
	}
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer, got %q", v)
		}
		p.Page = n
	}

	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page_size must be a positive integer, got %q", v)
		}
		p.PageSize = min(n, maxPageSize)
	}

	if p.Page-1 > math.MaxInt/p.PageSize {
		return p, fmt.Errorf("page %d is out of range", p.Page)
	}

	return p, nil
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages calculates the total number of pages for a given total count.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PageSize <= 0 {
		return 0
	}
	pages := int(total) / p.PageSize
	if int(total)%p.PageSize > 0 {
		pages++
	}
	return pages
}
