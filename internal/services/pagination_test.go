package services

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		page, perPage := ParsePagination(httptest.NewRequest("GET", "/tickets", nil))
		assert.Equal(t, 1, page)
		assert.Equal(t, 20, perPage)
	})

	t.Run("explicit values", func(t *testing.T) {
		page, perPage := ParsePagination(httptest.NewRequest("GET", "/tickets?page=3&perPage=50", nil))
		assert.Equal(t, 3, page)
		assert.Equal(t, 50, perPage)
	})

	t.Run("clamps per page", func(t *testing.T) {
		_, perPage := ParsePagination(httptest.NewRequest("GET", "/tickets?perPage=5000", nil))
		assert.Equal(t, 100, perPage)
	})

	t.Run("ignores garbage", func(t *testing.T) {
		page, perPage := ParsePagination(httptest.NewRequest("GET", "/tickets?page=-1&perPage=abc", nil))
		assert.Equal(t, 1, page)
		assert.Equal(t, 20, perPage)
	})
}

func TestPaginationMeta(t *testing.T) {
	meta := PaginationMeta(45, 2, 20)
	assert.Equal(t, int64(45), meta["total"])
	assert.Equal(t, int64(3), meta["totalPages"])
	assert.Equal(t, true, meta["hasNextPage"])
	assert.Equal(t, true, meta["hasPrevPage"])

	last := PaginationMeta(45, 3, 20)
	assert.Equal(t, false, last["hasNextPage"])

	empty := PaginationMeta(0, 1, 20)
	assert.Equal(t, int64(0), empty["totalPages"])
	assert.Equal(t, false, empty["hasNextPage"])
	assert.Equal(t, false, empty["hasPrevPage"])
}
