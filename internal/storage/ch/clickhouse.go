package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"time"

	"moonread/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// DefaultTable holds the catalog rows, see migrations/
const DefaultTable = "books"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type ClickHouseDB struct {
	conn  clickhouse.Conn
	table string
}

// NewClickHouseDB creates a new ClickHouse database connection.
// Connections are opened lazily: an unreachable server surfaces from
// Ping, LoadBooks or ImportBooks, not from the constructor.
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool, table string) (*ClickHouseDB, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", table)
	}

	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, table: table}, nil
}

// Ping checks that the server is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	if err := db.conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return nil
}

// LoadBooks returns the catalog in insertion order
func (db *ClickHouseDB) LoadBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := db.conn.Query(ctx, fmt.Sprintf(`SELECT title, link FROM %s ORDER BY position`, db.table))
	if err != nil {
		return nil, fmt.Errorf("failed to load books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.Title, &book.Link); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// ImportBooks appends books after the current last position, keeping their order
func (db *ClickHouseDB) ImportBooks(ctx context.Context, books []models.Book) error {
	if len(books) == 0 {
		return nil
	}

	var next uint64
	row := db.conn.QueryRow(ctx, fmt.Sprintf(`SELECT count() FROM %s`, db.table))
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("failed to count books: %w", err)
	}

	batch, err := db.conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s (position, title, link)`, db.table))
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	for i, book := range books {
		if err := batch.Append(next+uint64(i), book.Title, book.Link); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append book %q: %w", book.Title, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to import books: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
