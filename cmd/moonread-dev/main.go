package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"moonread/internal/app"
	"moonread/internal/storage/ch"
	"moonread/internal/storage/csvfile"
)

const (
	devPassword = "devpassword"
	devTable    = "books"
)

func main() {
	ctx := context.Background()

	// .env may carry TELEGRAM_BOT_TOKEN and CATALOG_PATH
	_ = godotenv.Load()

	log.Println("Starting ClickHouse testcontainer...")

	// Start ClickHouse container
	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(devPassword),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}

	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	if err := migrate(host, port.Port()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	csvPath := os.Getenv("CATALOG_PATH")
	if csvPath == "" {
		csvPath = "titles_and_links_alphabetical.csv"
	}
	if err := seed(ctx, host, port.Int(), csvPath); err != nil {
		log.Printf("⚠️  Catalog not imported: %v", err)
		log.Println("   The bot will start with an empty catalog.")
	}

	// Set environment variables for the application
	os.Setenv("CATALOG_SOURCE", "clickhouse")
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", devPassword)
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("CLICKHOUSE_TABLE", devTable)
	os.Setenv("WEBHOOK_MODE", "false")

	// Readable logs for local runs
	if os.Getenv("LOG_FORMAT") == "" {
		os.Setenv("LOG_FORMAT", "console")
	}

	// Set PORT for HTTP server if not already set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
		log.Println("   The bot will fail to start without a valid token.")
	}

	log.Println("Starting application with ClickHouse backend...")
	fmt.Println()

	// Create and initialize application
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run application in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Run()
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Application error: %v", err)
		}
	}
}

// migrate applies the goose migrations to the container
func migrate(host, port string) error {
	dsn := fmt.Sprintf("clickhouse://default:%s@%s:%s/default?dial_timeout=10s", devPassword, host, port)
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("clickhouse"); err != nil {
		return err
	}
	return goose.Up(db, "./migrations")
}

// seed copies the CSV catalog into the container
func seed(ctx context.Context, host string, port int, csvPath string) error {
	books, err := csvfile.New(csvPath).LoadBooks(ctx)
	if err != nil {
		return err
	}

	db, err := ch.NewClickHouseDB(host, port, "default", "default", devPassword, false, devTable)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ImportBooks(ctx, books); err != nil {
		return err
	}
	log.Printf("Imported %d books from %s", len(books), csvPath)
	return nil
}
