package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the pipeline daemon.
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedules (cron expressions with seconds field)
	IngestSchedule  string
	QualitySchedule string
	ContentSchedule string

	// Mongo signal/insight store
	MongoURI      string
	MongoDatabase string

	// Azure Blob archive for raw scrape batches (optional)
	StorageAccount   string
	StorageContainer string

	// NATS event bus (optional)
	NATSURL string

	// Alert channels
	AlertWebhookURL string
	AlertEmail      string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Reddit API credentials
	RedditClientID     string
	RedditClientSecret string

	// Scraper configuration
	Subreddits      []string
	TrendKeywords   []string
	CompetitorURLs  []string
	MinPostScore    int
	MaxResults      int
	ScrapeWindow    time.Duration
	RequestTimeout  time.Duration
	TrendBatchDelay time.Duration

	// Relevance filtering of ingested signals
	EnableRelevanceFilter bool
	RelevanceKeywords     []string

	// Content pipeline
	PipelineEnabled bool
	MinInsightScore float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		IngestSchedule:  getEnv("INGEST_SCHEDULE", "0 0 6 * * *"),
		QualitySchedule: getEnv("QUALITY_SCHEDULE", "0 0 * * * *"),
		ContentSchedule: getEnv("CONTENT_SCHEDULE", "0 30 7 * * *"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "startinsight"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "signals"),

		NATSURL: getEnv("NATS_URL", ""),

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		AlertEmail:      getEnv("ALERT_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),

		Subreddits: getSliceEnv("SUBREDDITS", []string{
			"startups",
			"Entrepreneur",
			"SaaS",
			"smallbusiness",
			"sidehustle",
		}),
		TrendKeywords: getSliceEnv("TREND_KEYWORDS", []string{
			"ai agents",
			"no-code tools",
			"creator economy",
		}),
		CompetitorURLs:  getSliceEnv("COMPETITOR_URLS", nil),
		MinPostScore:    getIntEnv("MIN_POST_SCORE", 10),
		MaxResults:      getIntEnv("MAX_RESULTS", 50),
		ScrapeWindow:    getDurationEnv("SCRAPE_WINDOW", 24*time.Hour),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		TrendBatchDelay: getDurationEnv("TREND_BATCH_DELAY", 5*time.Second),

		EnableRelevanceFilter: getBoolEnv("ENABLE_RELEVANCE_FILTER", true),
		RelevanceKeywords: getSliceEnv("RELEVANCE_KEYWORDS", []string{
			"startup", "saas", "business", "product", "idea", "market",
			"customer", "revenue", "launch", "tool", "problem",
		}),

		PipelineEnabled: getBoolEnv("PIPELINE_ENABLED", true),
		MinInsightScore: getFloatEnv("MIN_INSIGHT_SCORE", 7.0),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
		}
	}

	if c.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive")
	}

	if c.MinInsightScore < 0 || c.MinInsightScore > 10 {
		return fmt.Errorf("MIN_INSIGHT_SCORE must be between 0 and 10")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
