package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string `validate:"required,numeric"`
	Debug bool

	// Schedule configuration (cron expressions with seconds)
	ScrapeSchedule string `validate:"required"`
	EnrichSchedule string `validate:"required"`
	TimeZone       string `validate:"required"`

	// Scrape job defaults
	ScrapeLimit    int           `validate:"gte=1,lte=100"`
	ScrapeLookback time.Duration `validate:"gt=0"`

	// Provider credentials
	MarketAuxAPIToken  string
	MarketAuxCountries []string
	MarketAuxLanguage  string
	FinnhubAPIKey      string
	RSSFeeds           []string      `validate:"dive,url"`
	ProviderTimeout    time.Duration `validate:"gt=0"`

	// AI backend
	AIAPIKey    string
	AIBaseURL   string `validate:"omitempty,url"`
	AIModel     string
	AITimeout   time.Duration `validate:"gt=0"`
	AIBatchSize int           `validate:"gte=1,lte=50"`

	// Enrichment job
	EnrichMode            string `validate:"oneof=local ai auto"`
	EnrichPageSize        int    `validate:"gte=1,lte=500"`
	LocalSentimentEnabled bool

	// Storage configuration
	StorageBackend   string `validate:"oneof=memory file azure s3"`
	StorageDir       string
	StorageAccount   string
	StorageContainer string
	S3Endpoint       string `validate:"omitempty,url"`
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string

	// Cross-run dedup cache
	RedisURL string
	SeenTTL  time.Duration `validate:"gt=0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		ScrapeSchedule: getEnv("SCRAPE_SCHEDULE", "0 */30 * * * *"),
		EnrichSchedule: getEnv("ENRICH_SCHEDULE", "0 5,35 * * * *"),
		TimeZone:       getEnv("TIMEZONE", "Asia/Seoul"),

		ScrapeLimit:    getIntEnv("SCRAPE_LIMIT", 3),
		ScrapeLookback: getDurationEnv("SCRAPE_LOOKBACK", 24*time.Hour),

		MarketAuxAPIToken:  getEnv("MARKETAUX_API_TOKEN", ""),
		MarketAuxCountries: getSliceEnv("MARKETAUX_COUNTRIES", []string{"us"}),
		MarketAuxLanguage:  getEnv("MARKETAUX_LANGUAGE", "en"),
		FinnhubAPIKey:      getEnv("FINNHUB_API_KEY", ""),
		RSSFeeds:           getSliceEnv("RSS_FEEDS", nil),
		ProviderTimeout:    getDurationEnv("PROVIDER_TIMEOUT", 30*time.Second),

		AIAPIKey:    getEnv("AI_API_KEY", ""),
		AIBaseURL:   getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:     getEnv("AI_MODEL", "gpt-4o-mini"),
		AITimeout:   getDurationEnv("AI_TIMEOUT", 30*time.Second),
		AIBatchSize: getIntEnv("AI_BATCH_SIZE", 5),

		EnrichMode:            strings.ToLower(getEnv("ENRICH_MODE", "auto")),
		EnrichPageSize:        getIntEnv("ENRICH_PAGE_SIZE", 20),
		LocalSentimentEnabled: getBoolEnv("LOCAL_SENTIMENT_ENABLED", true),

		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
		StorageDir:       getEnv("STORAGE_DIR", "data"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "news"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3Region:         getEnv("S3_REGION", "auto"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getEnv("S3_SECRET_KEY", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),

		RedisURL: getEnv("REDIS_URL", ""),
		SeenTTL:  getDurationEnv("SEEN_TTL", 72*time.Hour),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid location: %w", c.TimeZone, err)
	}

	switch c.StorageBackend {
	case "file":
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required when STORAGE_BACKEND is file")
		}
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is azure")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
	}

	if c.EnrichMode == "ai" && c.AIAPIKey == "" {
		return fmt.Errorf("AI_API_KEY is required when ENRICH_MODE is ai")
	}

	return nil
}

// AIEnabled reports whether an AI backend is configured
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

// Location returns the scheduler location. validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
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
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
