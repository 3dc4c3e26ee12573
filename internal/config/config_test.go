package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesWebhookSecretAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SHOPIFY_WEBHOOK_SECRET")
	setEnvWithCleanup(t, "WEBHOOK_SECRET", " alias-secret ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ShopifyWebhookSecret != "alias-secret" {
		t.Fatalf("expected secret from alias env var, got %q", cfg.ShopifyWebhookSecret)
	}
}

func TestLoadConfig_WebhookSecretTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SHOPIFY_WEBHOOK_SECRET", "primary-secret")
	setEnvWithCleanup(t, "WEBHOOK_SECRET", "alias-secret")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ShopifyWebhookSecret != "primary-secret" {
		t.Fatalf("expected SHOPIFY_WEBHOOK_SECRET to win, got %q", cfg.ShopifyWebhookSecret)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{
		"PORT",
		"SERVER_PORT",
		"LEDGER_EVENTS_EXCHANGE",
		"PRODUCT_CACHE_TTL_SECONDS",
		"SHOPIFY_API_VERSION",
		"WEBHOOK_MAX_BODY_BYTES",
		"WEBHOOK_PROCESSING_TIMEOUT_SECONDS",
		"PROCESSED_ORDER_RETENTION_HOURS",
		"PRUNE_JOB_SCHEDULE",
		"CORS_ALLOWED_ORIGINS",
	} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.LedgerEventsExchange != "svntex.ledger" {
		t.Fatalf("unexpected default exchange %q", cfg.LedgerEventsExchange)
	}
	if cfg.ShopifyAPIVersion != "2023-10" {
		t.Fatalf("unexpected default api version %q", cfg.ShopifyAPIVersion)
	}
	if cfg.WebhookMaxBodyBytes != 5<<20 {
		t.Fatalf("unexpected default max body %d", cfg.WebhookMaxBodyBytes)
	}
	if cfg.WebhookTimeout() != 10*time.Second {
		t.Fatalf("unexpected webhook timeout %s", cfg.WebhookTimeout())
	}
	if cfg.ProcessedOrderRetention() != 720*time.Hour {
		t.Fatalf("unexpected retention %s", cfg.ProcessedOrderRetention())
	}
	if cfg.ProductCacheTTL() != time.Minute {
		t.Fatalf("unexpected cache ttl %s", cfg.ProductCacheTTL())
	}
	if cfg.PruneJobSchedule != "0 3 * * *" {
		t.Fatalf("unexpected prune schedule %q", cfg.PruneJobSchedule)
	}
}

func TestLoadConfig_ZeroCacheTTLDisablesCache(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PRODUCT_CACHE_TTL_SECONDS", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ProductCacheTTL() != 0 {
		t.Fatalf("expected cache to be disabled, got ttl %s", cfg.ProductCacheTTL())
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: "https://svntex.in, https://admin.svntex.in,,"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://svntex.in" || got[1] != "https://admin.svntex.in" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
