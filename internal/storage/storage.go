package storage

import (
	"context"

	"moonread/internal/models"
)

// Source is a tabular catalog source with title and link columns
type Source interface {
	// LoadBooks returns every row of the source in source order
	LoadBooks(ctx context.Context) ([]models.Book, error)

	// Close releases the underlying file or connection
	Close() error
}
