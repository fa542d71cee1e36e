package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Catalog source kinds
const (
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
	SourceMock       = "mock"
)

// Config holds the application configuration
type Config struct {
	TelegramToken  string
	AllowedUserIDs []int64 // empty means everyone may use the bot

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	LogLevel  string
	LogFormat string

	// Catalog configuration
	CatalogName   string
	CatalogSource string
	CatalogPath   string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool
	ClickHouseTable    string

	// Telegraph page publishing
	TelegraphEnabled     bool
	TelegraphAccessToken string
	TelegraphShortName   string
	TelegraphAuthorName  string
	TelegraphAuthorURL   string
	TelegraphBaseURL     string
	PublishDelay         time.Duration
	PublishTimeout       time.Duration
	PublishRetries       uint
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CATALOG_NAME", "Moon Read Catalog")
	v.SetDefault("CATALOG_SOURCE", SourceCSV)
	v.SetDefault("CATALOG_PATH", "titles_and_links_alphabetical.csv")
	v.SetDefault("CLICKHOUSE_PORT", "9000") // Default ClickHouse native port
	v.SetDefault("CLICKHOUSE_DATABASE", "default")
	v.SetDefault("CLICKHOUSE_USER", "default")
	v.SetDefault("CLICKHOUSE_TABLE", "books")
	v.SetDefault("TELEGRAPH_SHORT_NAME", "moonread")
	v.SetDefault("TELEGRAPH_BASE_URL", "https://api.telegra.ph")
	v.SetDefault("PUBLISH_DELAY", "10s")
	v.SetDefault("PUBLISH_TIMEOUT", "30s")
	v.SetDefault("PUBLISH_RETRIES", "3")
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN"))
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Allowed User IDs (optional)
	if allowedIDsStr := strings.TrimSpace(v.GetString("ALLOWED_USER_IDS")); allowedIDsStr != "" {
		for _, idStr := range strings.Split(allowedIDsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
			}
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}
	}

	// Bot mode configuration
	config.WebhookMode = v.GetBool("WEBHOOK_MODE")
	if config.WebhookMode {
		config.WebhookURL = strings.TrimRight(v.GetString("WEBHOOK_URL"), "/")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}
	config.Port = v.GetString("PORT")
	config.LogLevel = v.GetString("LOG_LEVEL")
	config.LogFormat = v.GetString("LOG_FORMAT")

	config.CatalogName = v.GetString("CATALOG_NAME")
	config.CatalogSource = strings.ToLower(v.GetString("CATALOG_SOURCE"))
	config.CatalogPath = v.GetString("CATALOG_PATH")

	switch config.CatalogSource {
	case SourceCSV:
		if config.CatalogPath == "" {
			return nil, fmt.Errorf("CATALOG_PATH is required when CATALOG_SOURCE is csv")
		}
	case SourceMock:
	case SourceClickHouse:
		config.ClickHouseHost = v.GetString("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when CATALOG_SOURCE is clickhouse")
		}

		port, err := strconv.Atoi(v.GetString("CLICKHOUSE_PORT"))
		if err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		config.ClickHousePort = port

		config.ClickHouseDatabase = v.GetString("CLICKHOUSE_DATABASE")
		config.ClickHouseUser = v.GetString("CLICKHOUSE_USER")
		config.ClickHousePassword = v.GetString("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty
		config.ClickHouseUseTLS = v.GetBool("CLICKHOUSE_USE_TLS")
		config.ClickHouseTable = v.GetString("CLICKHOUSE_TABLE")
	default:
		return nil, fmt.Errorf("invalid CATALOG_SOURCE %q (want csv, clickhouse or mock)", config.CatalogSource)
	}

	// Telegraph configuration
	config.TelegraphEnabled = v.GetBool("TELEGRAPH_ENABLED")
	config.TelegraphAccessToken = v.GetString("TELEGRAPH_ACCESS_TOKEN")
	config.TelegraphShortName = v.GetString("TELEGRAPH_SHORT_NAME")
	config.TelegraphAuthorName = v.GetString("TELEGRAPH_AUTHOR_NAME")
	if config.TelegraphAuthorName == "" {
		config.TelegraphAuthorName = config.CatalogName
	}
	config.TelegraphAuthorURL = v.GetString("TELEGRAPH_AUTHOR_URL")
	config.TelegraphBaseURL = v.GetString("TELEGRAPH_BASE_URL")

	delay, err := parseDuration(v, "PUBLISH_DELAY")
	if err != nil {
		return nil, err
	}
	config.PublishDelay = delay

	timeout, err := parseDuration(v, "PUBLISH_TIMEOUT")
	if err != nil {
		return nil, err
	}
	config.PublishTimeout = timeout

	retries, err := strconv.ParseUint(v.GetString("PUBLISH_RETRIES"), 10, 32)
	if err != nil || retries == 0 {
		return nil, fmt.Errorf("invalid PUBLISH_RETRIES: must be a positive integer")
	}
	config.PublishRetries = uint(retries)

	return config, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
