package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", 1, 20, 0, false},
		{"explicit", "page=3&limit=10", 3, 10, 20, false},
		{"limit capped", "limit=500", 1, 100, 0, false},
		{"zero page", "page=0", 0, 0, 0, true},
		{"negative limit", "limit=-1", 0, 0, 0, true},
		{"garbage page", "page=abc", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/?"+tt.query, nil)
			page, limit, offset, err := parsePagination(r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 20))
	assert.Equal(t, 1, totalPages(1, 20))
	assert.Equal(t, 1, totalPages(20, 20))
	assert.Equal(t, 2, totalPages(21, 20))
	assert.Equal(t, 0, totalPages(5, 0))
}

func TestParseArticleFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/?status=Published&category=Tech&search=transit&sort_by=views&order=asc&author=7", nil)
	filter, err := parseArticleFilter(r)
	require.NoError(t, err)
	assert.Equal(t, "published", filter.Status)
	assert.Equal(t, "Tech", filter.Category)
	assert.Equal(t, "transit", filter.Search)
	assert.Equal(t, "views", filter.SortBy)
	assert.False(t, filter.SortDesc)
	assert.Equal(t, 7, filter.AuthorID)

	_, err = parseArticleFilter(httptest.NewRequest("GET", "/?order=sideways", nil))
	assert.Error(t, err)
	_, err = parseArticleFilter(httptest.NewRequest("GET", "/?author=zero", nil))
	assert.Error(t, err)
}
