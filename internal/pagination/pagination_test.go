package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		page      int
		size      int
		wantPages int
		wantPage  int
		wantPrev  bool
		wantNext  bool
	}{
		{"first of many", 45, 1, 10, 5, 1, false, true},
		{"middle", 45, 3, 10, 5, 3, true, true},
		{"last", 45, 5, 10, 5, 5, true, false},
		{"past the end clamps", 45, 9, 10, 5, 5, true, false},
		{"empty", 0, 1, 10, 0, 1, false, false},
		{"exact multiple", 20, 2, 10, 2, 2, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Calculate(tt.total, tt.page, tt.size)
			assert.Equal(t, tt.total, m.TotalCount)
			assert.Equal(t, tt.wantPages, m.TotalPages)
			assert.Equal(t, tt.wantPage, m.CurrentPage)
			assert.Equal(t, tt.wantPrev, m.HasPrevious)
			assert.Equal(t, tt.wantNext, m.HasNext)
		})
	}
}

func TestCalculateOffset(t *testing.T) {
	assert.Equal(t, 0, CalculateOffset(1, 50))
	assert.Equal(t, 100, CalculateOffset(3, 50))
	assert.Equal(t, 0, CalculateOffset(0, 50))
	assert.Equal(t, 10, CalculateOffset(2, 0))
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		query    string
		wantPage int
		wantSize int
	}{
		{"", 1, 50},
		{"?page=3&pageSize=20", 3, 20},
		{"?page=-2&pageSize=0", 1, 50},
		{"?pageSize=1000", 1, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var page, size int
			app.Get("/", func(c *fiber.Ctx) error {
				page, size = GetPaginationParams(c, 1, 50)
				return c.SendStatus(fiber.StatusNoContent)
			})

			_, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}
