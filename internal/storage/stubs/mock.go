package stubs

import (
	"context"
	"sync"

	"moonread/internal/models"
)

// MockSource is an in-memory catalog source for tests and local runs
type MockSource struct {
	mu     sync.RWMutex
	books  []models.Book
	err    error
	loads  int
	closed bool
}

// NewMockSource creates a source serving books in the given order
func NewMockSource(books ...models.Book) *MockSource {
	return &MockSource{books: books}
}

// NewFailingSource creates a source whose LoadBooks always returns err
func NewFailingSource(err error) *MockSource {
	return &MockSource{err: err}
}

// Initialize seeds a small demo catalog when the source is empty
func (m *MockSource) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.books) > 0 {
		return nil
	}
	m.books = []models.Book{
		{Title: "A Tale of Two Cities", Link: "https://example.com/books/tale-of-two-cities"},
		{Title: "Anna Karenina", Link: "https://example.com/books/anna-karenina"},
		{Title: "Brave New World", Link: "https://example.com/books/brave-new-world"},
		{Title: "Dune", Link: "https://example.com/books/dune"},
		{Title: "Tempest Rising", Link: "https://example.com/books/tempest-rising"},
		{Title: "The Villainess Reverses the Hourglass", Link: "https://example.com/books/villainess-hourglass"},
		{Title: "1984", Link: "https://example.com/books/1984"},
		{Title: "7 Days", Link: "https://example.com/books/7-days"},
	}
	return nil
}

// Add appends a book
func (m *MockSource) Add(title, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.books = append(m.books, models.Book{Title: title, Link: link})
}

// LoadBooks returns a copy of the stored books
func (m *MockSource) LoadBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	books := make([]models.Book, len(m.books))
	copy(books, m.books)
	return books, nil
}

// Loads returns how many times LoadBooks was called
func (m *MockSource) Loads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}

// Closed reports whether Close was called
func (m *MockSource) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close marks the source closed
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
