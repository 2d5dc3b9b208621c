package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=0", 1, 20, 0},
		{"?page=-2", 1, 20, 0},
		{"?page=abc", 1, 20, 0},
		{"?per_page=100", 1, 100, 0},
		{"?per_page=101", 1, 20, 0},
		{"?per_page=0", 1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest("GET", "/notifications"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}
