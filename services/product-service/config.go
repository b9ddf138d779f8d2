package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
)

// Config holds all environment variables for the product-service.
type Config struct {
	Port string
	Env  string
	AWS  awspkg.Settings

	ProductsTable string
	StocksTable   string

	CatalogItemsQueueURL  string
	CreateProductTopicArn string

	DeliveryTimeoutSec   int
	VisibilityTimeoutSec int
	QueueWaitSeconds     int
	ConsumerWorkers      int

	RedisURL           string
	AllowedOrigins     string
	BasicAuthUsername  string
	BasicAuthPassword  string
	RateLimitPerMinute int

	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
}

// LoadConfig reads the environment and validates it. With
// AWS_USE_SECRETS=true the Redis URL and basic auth password are read from
// Secrets Manager, keeping the env value if a lookup fails.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "8082"),
		Env:                   getEnv("ENV", "development"),
		AWS:                   awspkg.SettingsFromEnv(),
		ProductsTable:         getEnv("DDB_TABLE_PRODUCTS", "products"),
		StocksTable:           getEnv("DDB_TABLE_STOCKS", "stocks"),
		CatalogItemsQueueURL:  os.Getenv("CATALOG_ITEMS_QUEUE_URL"),
		CreateProductTopicArn: os.Getenv("CREATE_PRODUCT_TOPIC_ARN"),
		RedisURL:              os.Getenv("REDIS_URL"),
		AllowedOrigins:        getEnv("ALLOWED_ORIGINS", "*"),
		BasicAuthUsername:     os.Getenv("BASIC_AUTH_USERNAME"),
		BasicAuthPassword:     os.Getenv("BASIC_AUTH_PASSWORD"),
		CloudWatchEnabled:     os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup:    getEnv("CLOUDWATCH_LOG_GROUP", "/catalog-import/product-service"),
		CloudWatchNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "CatalogImport"),
	}

	var err error
	if cfg.DeliveryTimeoutSec, err = getEnvInt("DELIVERY_TIMEOUT_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.VisibilityTimeoutSec, err = getEnvInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.QueueWaitSeconds, err = getEnvInt("QUEUE_WAIT_SECONDS", 20); err != nil {
		return nil, err
	}
	if cfg.ConsumerWorkers, err = getEnvInt("CONSUMER_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWS); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			sm.Override(ctx, "product/REDIS_URL", &cfg.RedisURL)
			sm.Override(ctx, "product/BASIC_AUTH_PASSWORD", &cfg.BasicAuthPassword)
		}
	}

	if cfg.CatalogItemsQueueURL == "" {
		return nil, fmt.Errorf("CATALOG_ITEMS_QUEUE_URL is required")
	}
	if cfg.CreateProductTopicArn == "" {
		return nil, fmt.Errorf("CREATE_PRODUCT_TOPIC_ARN is required")
	}
	if cfg.DeliveryTimeoutSec <= 0 {
		return nil, fmt.Errorf("DELIVERY_TIMEOUT_SECONDS must be positive")
	}
	// a delivery still running when its messages reappear gets processed twice
	if cfg.VisibilityTimeoutSec < cfg.DeliveryTimeoutSec {
		return nil, fmt.Errorf("QUEUE_VISIBILITY_TIMEOUT_SECONDS (%d) must be at least DELIVERY_TIMEOUT_SECONDS (%d)",
			cfg.VisibilityTimeoutSec, cfg.DeliveryTimeoutSec)
	}
	if cfg.QueueWaitSeconds < 0 || cfg.QueueWaitSeconds > 20 {
		return nil, fmt.Errorf("QUEUE_WAIT_SECONDS must be between 0 and 20")
	}
	if cfg.ConsumerWorkers < 1 {
		return nil, fmt.Errorf("CONSUMER_WORKERS must be at least 1")
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
