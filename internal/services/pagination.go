package services

import (
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// ParsePagination reads page/perPage query params with clamped defaults.
func ParsePagination(r *http.Request) (page, perPage int) {
	page = defaultPage
	perPage = defaultPerPage

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("perPage")); err == nil && v > 0 {
		perPage = v
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// PaginationMeta builds the pagination block of list responses.
func PaginationMeta(total int64, page, perPage int) map[string]any {
	totalPages := (total + int64(perPage) - 1) / int64(perPage)
	return map[string]any{
		"total":       total,
		"page":        page,
		"perPage":     perPage,
		"totalPages":  totalPages,
		"hasNextPage": int64(page) < totalPages,
		"hasPrevPage": page > 1,
	}
}
