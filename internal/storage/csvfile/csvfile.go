package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"moonread/internal/models"
)

const (
	titleColumn = "title"
	linkColumn  = "link"
)

// ErrMissingColumn is returned when the header lacks title or link
var ErrMissingColumn = errors.New("missing required column")

// Source reads the catalog from a UTF-8 CSV file with a header row
type Source struct {
	path string
}

// New creates a CSV source for path. The file is opened on every LoadBooks call.
func New(path string) *Source {
	return &Source{path: path}
}

// LoadBooks reads every data row of the file in order
func (s *Source) LoadBooks(ctx context.Context) ([]models.Book, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Parse(ctx, file)
}

// Close is a no-op; the file is closed after each load
func (s *Source) Close() error {
	return nil
}

// Parse reads CSV rows keyed by the title and link header columns.
// Other columns are ignored and column order is free.
func Parse(ctx context.Context, r io.Reader) ([]models.Book, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("failed to read CSV header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	titleIdx, linkIdx := -1, -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case titleColumn:
			titleIdx = i
		case linkColumn:
			linkIdx = i
		}
	}
	if titleIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, titleColumn)
	}
	if linkIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, linkColumn)
	}

	var books []models.Book
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if titleIdx >= len(record) || linkIdx >= len(record) {
			return nil, fmt.Errorf("CSV row at line %d has %d columns, want at least %d",
				line, len(record), max(titleIdx, linkIdx)+1)
		}

		books = append(books, models.Book{
			Title: record[titleIdx],
			Link:  record[linkIdx],
		})
	}

	return books, nil
}
