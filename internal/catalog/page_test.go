package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"moonread/internal/models"
)

func TestPaginate(t *testing.T) {
	makeBooks := func(n int) []models.Book {
		books := make([]models.Book, n)
		for i := range books {
			books[i] = models.Book{Title: fmt.Sprintf("Book %d", i), Link: fmt.Sprintf("u%d", i)}
		}
		return books
	}

	testCases := []struct {
		name      string
		size      int
		limit     int
		items     int
		truncated bool
	}{
		{"empty", 0, 5, 0, false},
		{"below cap", 3, 5, 3, false},
		{"at cap", 5, 5, 5, false},
		{"above cap", 8, 5, 5, true},
		{"no cap", 8, 0, 8, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			books := makeBooks(tc.size)
			page := Paginate(books, tc.limit)

			assert.Len(t, page.Items, tc.items)
			assert.Equal(t, tc.size, page.TotalMatched)
			assert.Equal(t, tc.truncated, page.Truncated)
			assert.Equal(t, tc.size-tc.items, page.Hidden())
			if tc.items > 0 {
				assert.Equal(t, books[:tc.items], page.Items)
			}
		})
	}
}

func TestPaginate_DoesNotAliasTail(t *testing.T) {
	books := []models.Book{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	page := Paginate(books, 2)

	page.Items = append(page.Items, models.Book{Title: "x"})
	assert.Equal(t, "c", books[2].Title)
}
