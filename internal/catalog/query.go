package catalog

import (
	"fmt"
	"strings"

	"moonread/internal/models"
)

// Search returns books whose title contains keyword, case-insensitively,
// capped at SearchLimit. A blank keyword is rejected with ErrInvalidArgument.
func (c *Catalog) Search(keyword string) (Page, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return Page{}, fmt.Errorf("%w: search keyword is required", ErrInvalidArgument)
	}

	var matched []models.Book
	for i, title := range c.lower {
		if strings.Contains(title, keyword) {
			matched = append(matched, c.books[i])
		}
	}
	return paginate(matched, SearchLimit)
}

// Browse returns the books of the bucket named by token ("A".."Z", any case, or "#"),
// capped at BrowseLimit
func (c *Catalog) Browse(token string) (Page, error) {
	bucket, err := ParseBucket(token)
	if err != nil {
		return Page{}, err
	}
	return c.BrowseBucket(bucket)
}

// BrowseBucket is Browse for an already parsed bucket
func (c *Catalog) BrowseBucket(bucket Bucket) (Page, error) {
	if !bucket.Valid() {
		return Page{}, fmt.Errorf("%w: unknown bucket %q", ErrInvalidArgument, bucket.String())
	}

	var matched []models.Book
	for i, b := range c.buckets {
		if b == bucket {
			matched = append(matched, c.books[i])
		}
	}
	return paginate(matched, BrowseLimit)
}

// Random picks one book uniformly at random
func (c *Catalog) Random() (models.Book, error) {
	if len(c.books) == 0 {
		return models.Book{}, ErrEmptyCatalog
	}
	return c.books[c.intn(len(c.books))], nil
}

// Stats counts books per bucket. Every book lands in exactly one bucket.
func (c *Catalog) Stats() (Histogram, error) {
	var h Histogram
	if !c.ready || len(c.books) == 0 {
		return h, ErrNotLoaded
	}
	for _, b := range c.buckets {
		h.add(b)
	}
	return h, nil
}

func paginate(matched []models.Book, limit int) (Page, error) {
	if len(matched) == 0 {
		return Page{}, ErrNoMatch
	}
	return Paginate(matched, limit), nil
}
