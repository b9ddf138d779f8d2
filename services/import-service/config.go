package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
)

// Config holds all environment variables for the import-service.
type Config struct {
	Port string
	Env  string
	AWS  awspkg.Settings

	ImportBucket        string
	ImportPrefix        string
	UploadURLExpiresSec int

	CatalogItemsQueueURL string
	UploadEventsQueueURL string
	QueueWaitSeconds     int
	ImportTimeoutSec     int
	VisibilityTimeoutSec int

	BasicAuthUsername  string
	BasicAuthPassword  string
	RateLimitPerMinute int
	AllowedOrigins     string

	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
}

// LoadConfig reads the environment and validates it. With
// AWS_USE_SECRETS=true the basic auth password is read from Secrets Manager,
// keeping the env value if the lookup fails.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8085"),
		Env:                  getEnv("ENV", "development"),
		AWS:                  awspkg.SettingsFromEnv(),
		ImportBucket:         os.Getenv("IMPORT_BUCKET"),
		ImportPrefix:         getEnv("IMPORT_PREFIX", "uploaded/"),
		CatalogItemsQueueURL: os.Getenv("CATALOG_ITEMS_QUEUE_URL"),
		UploadEventsQueueURL: os.Getenv("UPLOAD_EVENTS_QUEUE_URL"),
		BasicAuthUsername:    os.Getenv("BASIC_AUTH_USERNAME"),
		BasicAuthPassword:    os.Getenv("BASIC_AUTH_PASSWORD"),
		AllowedOrigins:       getEnv("ALLOWED_ORIGINS", "*"),
		CloudWatchEnabled:    os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup:   getEnv("CLOUDWATCH_LOG_GROUP", "/catalog-import/import-service"),
		CloudWatchNamespace:  getEnv("CLOUDWATCH_NAMESPACE", "CatalogImport"),
	}

	var err error
	if cfg.UploadURLExpiresSec, err = getEnvInt("UPLOAD_URL_EXPIRES_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.QueueWaitSeconds, err = getEnvInt("QUEUE_WAIT_SECONDS", 20); err != nil {
		return nil, err
	}
	if cfg.ImportTimeoutSec, err = getEnvInt("IMPORT_TIMEOUT_SECONDS", 600); err != nil {
		return nil, err
	}
	if cfg.VisibilityTimeoutSec, err = getEnvInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 900); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWS); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			sm.Override(ctx, "import/BASIC_AUTH_PASSWORD", &cfg.BasicAuthPassword)
		}
	}

	if cfg.ImportBucket == "" {
		return nil, fmt.Errorf("IMPORT_BUCKET is required")
	}
	if cfg.CatalogItemsQueueURL == "" {
		return nil, fmt.Errorf("CATALOG_ITEMS_QUEUE_URL is required")
	}
	if cfg.UploadEventsQueueURL == "" {
		return nil, fmt.Errorf("UPLOAD_EVENTS_QUEUE_URL is required")
	}
	if !strings.HasSuffix(cfg.ImportPrefix, "/") {
		cfg.ImportPrefix += "/"
	}
	if cfg.UploadURLExpiresSec <= 0 || cfg.UploadURLExpiresSec > 7*24*3600 {
		return nil, fmt.Errorf("UPLOAD_URL_EXPIRES_SECONDS must be between 1 and 604800")
	}
	if cfg.QueueWaitSeconds < 0 || cfg.QueueWaitSeconds > 20 {
		return nil, fmt.Errorf("QUEUE_WAIT_SECONDS must be between 0 and 20")
	}
	if cfg.ImportTimeoutSec <= 0 {
		return nil, fmt.Errorf("IMPORT_TIMEOUT_SECONDS must be positive")
	}
	// a message must stay hidden for as long as its file may take to import
	if cfg.VisibilityTimeoutSec < cfg.ImportTimeoutSec || cfg.VisibilityTimeoutSec > 12*3600 {
		return nil, fmt.Errorf("QUEUE_VISIBILITY_TIMEOUT_SECONDS (%d) must be between IMPORT_TIMEOUT_SECONDS (%d) and 43200",
			cfg.VisibilityTimeoutSec, cfg.ImportTimeoutSec)
	}
	if cfg.BasicAuthUsername != "" && cfg.BasicAuthPassword == "" {
		return nil, fmt.Errorf("BASIC_AUTH_PASSWORD is required when BASIC_AUTH_USERNAME is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
