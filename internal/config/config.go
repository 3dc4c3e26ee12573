/**
 * @description
 * Configuration management for the ledger service. Values come from the
 * environment, with an optional .env file in the given directory.
 *
 * @dependencies
 * - github.com/spf13/viper
 */
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ledger service.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	ShopifyWebhookSecret            string `mapstructure:"SHOPIFY_WEBHOOK_SECRET"`
	InternalAPIKey                  string `mapstructure:"INTERNAL_API_KEY"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	LedgerEventsExchange            string `mapstructure:"LEDGER_EVENTS_EXCHANGE"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	ProductCacheTTLSeconds          int    `mapstructure:"PRODUCT_CACHE_TTL_SECONDS"`
	ShopifyStoreURL                 string `mapstructure:"SHOPIFY_STORE_URL"`
	ShopifyAccessToken              string `mapstructure:"SHOPIFY_ACCESS_TOKEN"`
	ShopifyAPIVersion               string `mapstructure:"SHOPIFY_API_VERSION"`
	WebhookMaxBodyBytes             int64  `mapstructure:"WEBHOOK_MAX_BODY_BYTES"`
	WebhookProcessingTimeoutSeconds int    `mapstructure:"WEBHOOK_PROCESSING_TIMEOUT_SECONDS"`
	ProcessedOrderRetentionHours    int    `mapstructure:"PROCESSED_ORDER_RETENTION_HOURS"`
	PruneJobSchedule                string `mapstructure:"PRUNE_JOB_SCHEDULE"`
	CORSAllowedOrigins              string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// Shopify order payloads with many line items run to a few hundred KiB.
const defaultWebhookMaxBodyBytes = 5 << 20

// LoadConfig reads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LEDGER_EVENTS_EXCHANGE", "svntex.ledger")
	viper.SetDefault("PRODUCT_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("SHOPIFY_API_VERSION", "2023-10")
	viper.SetDefault("WEBHOOK_MAX_BODY_BYTES", defaultWebhookMaxBodyBytes)
	viper.SetDefault("WEBHOOK_PROCESSING_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PROCESSED_ORDER_RETENTION_HOURS", 720)
	viper.SetDefault("PRUNE_JOB_SCHEDULE", "0 3 * * *")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SHOPIFY_WEBHOOK_SECRET", "SHOPIFY_WEBHOOK_SECRET", "WEBHOOK_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_EVENTS_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("PRODUCT_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("SHOPIFY_STORE_URL")
	_ = viper.BindEnv("SHOPIFY_ACCESS_TOKEN")
	_ = viper.BindEnv("SHOPIFY_API_VERSION")
	_ = viper.BindEnv("WEBHOOK_MAX_BODY_BYTES")
	_ = viper.BindEnv("WEBHOOK_PROCESSING_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PROCESSED_ORDER_RETENTION_HOURS")
	_ = viper.BindEnv("PRUNE_JOB_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.ShopifyWebhookSecret = strings.TrimSpace(config.ShopifyWebhookSecret)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.WebhookMaxBodyBytes <= 0 {
		config.WebhookMaxBodyBytes = defaultWebhookMaxBodyBytes
	}
	if config.WebhookProcessingTimeoutSeconds <= 0 {
		config.WebhookProcessingTimeoutSeconds = 10
	}
	return config, nil
}

// WebhookTimeout bounds one webhook's persistence work.
func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookProcessingTimeoutSeconds) * time.Second
}

// ProductCacheTTL returns zero when caching is disabled.
func (c Config) ProductCacheTTL() time.Duration {
	if c.ProductCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ProductCacheTTLSeconds) * time.Second
}

// ProcessedOrderRetention returns how long processed-order records are kept.
func (c Config) ProcessedOrderRetention() time.Duration {
	return time.Duration(c.ProcessedOrderRetentionHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
