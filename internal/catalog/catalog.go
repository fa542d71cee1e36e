package catalog

import (
	"context"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"moonread/internal/models"
	"moonread/internal/storage"
)

// Catalog is the read-only book list for one process lifetime.
// All methods are safe for concurrent use: nothing is mutated after construction.
type Catalog struct {
	books   []models.Book
	lower   []string
	buckets []Bucket
	ready   bool
	intn    func(n int) int
}

// New builds a ready catalog from books, preserving their order
func New(books []models.Book) *Catalog {
	c := &Catalog{
		books:   make([]models.Book, len(books)),
		lower:   make([]string, len(books)),
		buckets: make([]Bucket, len(books)),
		ready:   true,
		intn:    rand.IntN,
	}
	copy(c.books, books)
	for i, b := range c.books {
		c.lower[i] = strings.ToLower(b.Title)
		c.buckets[i] = BucketOf(b.Title)
	}
	return c
}

// Empty returns the catalog used when the source could not be loaded
func Empty() *Catalog {
	return &Catalog{intn: rand.IntN}
}

// Load reads src once and builds a catalog from it.
// Rows with a blank title are skipped. On failure the returned catalog is
// empty and not ready, and the error is a *LoadError.
func Load(ctx context.Context, src storage.Source, logger *zap.Logger) (*Catalog, error) {
	rows, err := src.LoadBooks(ctx)
	if err != nil {
		logger.Error("Failed to load catalog", zap.Error(err))
		return Empty(), &LoadError{Err: err}
	}

	books := make([]models.Book, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		row.Title = strings.TrimSpace(row.Title)
		row.Link = strings.TrimSpace(row.Link)
		if row.Title == "" {
			logger.Warn("Skipping catalog row with empty title",
				zap.Int("row", i+1),
				zap.String("link", row.Link),
			)
			skipped++
			continue
		}
		books = append(books, row)
	}

	logger.Info("Catalog loaded",
		zap.Int("books", len(books)),
		zap.Int("skipped", skipped),
	)
	return New(books), nil
}

// Ready reports whether the catalog was loaded successfully
func (c *Catalog) Ready() bool {
	return c.ready
}

// Len returns the number of books
func (c *Catalog) Len() int {
	return len(c.books)
}

// Books returns a copy of every book in catalog order
func (c *Catalog) Books() []models.Book {
	out := make([]models.Book, len(c.books))
	copy(out, c.books)
	return out
}

// Group is the ordered list of books sharing a bucket
type Group struct {
	Bucket Bucket
	Books  []models.Book
}

// Groups splits the catalog into non-empty buckets, in display order.
// Books keep their catalog order inside each group.
func (c *Catalog) Groups() []Group {
	var byBucket [bucketCount][]models.Book
	for i, b := range c.books {
		idx := c.buckets[i].index()
		byBucket[idx] = append(byBucket[idx], b)
	}

	var groups []Group
	for _, bucket := range AllBuckets() {
		if books := byBucket[bucket.index()]; len(books) > 0 {
			groups = append(groups, Group{Bucket: bucket, Books: books})
		}
	}
	return groups
}
