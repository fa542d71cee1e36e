package catalog

import (
	"slices"

	"moonread/internal/models"
)

// Result caps per query kind
const (
	SearchLimit = 20
	BrowseLimit = 30
)

// Page is a capped query result. Items is always a prefix of the full match list.
type Page struct {
	Items        []models.Book `json:"items"`
	TotalMatched int           `json:"total_matched"`
	Truncated    bool          `json:"truncated"`
}

// Hidden returns how many matches were cut off by the cap
func (p Page) Hidden() int {
	return p.TotalMatched - len(p.Items)
}

// Paginate keeps the first limit items. A limit <= 0 disables the cap.
func Paginate(items []models.Book, limit int) Page {
	page := Page{TotalMatched: len(items)}
	if limit > 0 && len(items) > limit {
		page.Items = slices.Clip(items[:limit])
		page.Truncated = true
		return page
	}
	page.Items = items
	return page
}
