package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"moonread/internal/bot"
	"moonread/internal/catalog"
	"moonread/internal/config"
	"moonread/internal/publisher"
	"moonread/internal/ratelimit"
	"moonread/internal/storage"
	"moonread/internal/storage/ch"
	"moonread/internal/storage/csvfile"
	"moonread/internal/storage/stubs"
	"moonread/internal/telegraph"
)

// App represents the application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	source  storage.Source
	catalog *catalog.Catalog
	pages   *publisher.Index // nil when page publishing is disabled
	builder *publisher.Builder
	bot     *bot.Bot
	server  *http.Server

	// ctx bounds background work (the page build); cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	logger.Info("Starting catalog bot", zap.String("catalog", cfg.CatalogName))

	// Initialize catalog source and load the catalog once
	if err := app.initCatalog(); err != nil {
		cancel()
		return nil, err
	}

	// Initialize page publisher (optional)
	app.initPublisher()

	// Initialize bot
	if err := app.initBot(); err != nil {
		cancel()
		return nil, err
	}

	// Initialize HTTP server
	app.initHTTPServer()

	return app, nil
}

// newLogger builds the process logger: JSON for production, console for local runs
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (want json or console)", format)
	}
	cfg.Level = lvl

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// newSource opens the catalog source selected by the configuration
func newSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Source, error) {
	switch cfg.CatalogSource {
	case config.SourceMock:
		logger.Info("Using mock catalog source")
		src := stubs.NewMockSource()
		if err := src.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize mock source: %w", err)
		}
		return src, nil
	case config.SourceClickHouse:
		logger.Info("Connecting to ClickHouse",
			zap.String("host", cfg.ClickHouseHost),
			zap.Int("port", cfg.ClickHousePort),
			zap.String("database", cfg.ClickHouseDatabase),
			zap.String("user", cfg.ClickHouseUser),
			zap.String("table", cfg.ClickHouseTable),
			zap.Bool("tls", cfg.ClickHouseUseTLS),
		)
		db, err := ch.NewClickHouseDB(
			cfg.ClickHouseHost,
			cfg.ClickHousePort,
			cfg.ClickHouseDatabase,
			cfg.ClickHouseUser,
			cfg.ClickHousePassword,
			cfg.ClickHouseUseTLS,
			cfg.ClickHouseTable,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}

		// A server that is down is a load failure, reported by LoadBooks
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			logger.Warn("ClickHouse is not reachable", zap.Error(err))
		}
		return db, nil
	case config.SourceCSV:
		logger.Info("Using CSV catalog source", zap.String("path", cfg.CatalogPath))
		return csvfile.New(cfg.CatalogPath), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.CatalogSource)
	}
}

// initCatalog opens the source and loads the catalog.
// A load failure leaves the bot running with an empty catalog.
func (a *App) initCatalog() error {
	src, err := newSource(a.ctx, a.config, a.logger)
	if err != nil {
		return err
	}
	a.source = src
	a.catalog = loadCatalog(a.ctx, src, a.logger)
	return nil
}

func loadCatalog(ctx context.Context, src storage.Source, logger *zap.Logger) *catalog.Catalog {
	c, err := catalog.Load(ctx, src, logger)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			logger.Warn("Continuing with an empty catalog", zap.Error(loadErr.Err))
		}
		return c
	}
	logger.Info("Catalog loaded", zap.Int("books", c.Len()))
	return c
}

// initPublisher prepares the Telegraph page build when it is enabled.
// Any failure here disables /catalog instead of aborting startup.
func (a *App) initPublisher() {
	if !a.config.TelegraphEnabled {
		a.logger.Info("Telegraph page publishing disabled")
		return
	}

	client := telegraph.NewClient(telegraph.Config{
		BaseURL:     a.config.TelegraphBaseURL,
		AccessToken: a.config.TelegraphAccessToken,
		AuthorName:  a.config.TelegraphAuthorName,
		AuthorURL:   a.config.TelegraphAuthorURL,
		Attempts:    a.config.PublishRetries,
	}, a.logger)

	if !client.HasToken() {
		// Zero timeout means no extra bound, as for page publishing
		ctx := a.ctx
		if a.config.PublishTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.config.PublishTimeout)
			defer cancel()
		}
		if _, err := client.CreateAccount(ctx, a.config.TelegraphShortName, a.config.TelegraphAuthorName, a.config.TelegraphAuthorURL); err != nil {
			a.logger.Error("Failed to create Telegraph account, catalog pages disabled",
				zap.Bool("rejected", telegraph.IsAPIError(err)),
				zap.Error(err),
			)
			return
		}
	}

	a.pages = publisher.NewIndex()
	a.builder = publisher.NewBuilder(
		a.catalog,
		client,
		ratelimit.New("telegraph", a.config.PublishDelay),
		a.pages,
		publisher.Options{
			TitlePrefix: a.config.CatalogName,
			Timeout:     a.config.PublishTimeout,
		},
		a.logger.Named("publisher"),
	)
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Options{
		Catalog:        a.catalog,
		Pages:          a.pages,
		CatalogName:    a.config.CatalogName,
		AllowedUserIDs: a.config.AllowedUserIDs,
	}, a.logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// routes builds the HTTP handler for health checks, webhook and the JSON API
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "%s bot is running (mode: %s, books: %d)", a.config.CatalogName, mode, a.catalog.Len())
	})

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleWebhookUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	if a.bot != nil {
		bot.NewHTTPServer(a.bot, a.config.WebhookMode).RegisterRoutes(mux)
	}
	return mux
}

// initHTTPServer initializes the HTTP server for health checks, webhook and API
func (a *App) initHTTPServer() {
	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      a.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Publish letter pages in the background; the bot answers meanwhile
	if a.builder != nil {
		a.builder.Start(a.ctx)
	}

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		// Webhook mode: configure webhook and wait for HTTP requests
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("webhook_url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		// Polling mode: actively poll Telegram servers
		go func() {
			a.logger.Info("Starting bot in POLLING mode...")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Stop the page build and the update loop
	a.cancel()
	a.bot.Stop()

	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Close catalog source
	if err := a.source.Close(); err != nil {
		a.logger.Error("Error closing catalog source", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
