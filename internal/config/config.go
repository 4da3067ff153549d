package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/risk"
	"github.com/web3guy0/signalrouter/types"
)

// Config holds app-level wiring configuration
type Config struct {
	Debug bool

	// Upstream market-data / signal stream
	FeedWSURL string

	// Execution gateway
	ExecBaseURL    string
	ExecAPIKey     string
	ExecPassphrase string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Observability
	MetricsAddr string

	// Persistence (sqlite path or postgres:// URL, empty disables)
	DatabasePath string
}

// Load reads app configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Debug:          getEnvBool("DEBUG", false),
		FeedWSURL:      getEnv("FEED_WS_URL", "wss://stream.predictrouter.local/ws"),
		ExecBaseURL:    getEnv("EXEC_BASE_URL", "https://clob.polymarket.com"),
		ExecAPIKey:     os.Getenv("EXEC_API_KEY"),
		ExecPassphrase: os.Getenv("EXEC_PASSPHRASE"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9100"),
		DatabasePath:   getEnv("DATABASE_PATH", "data/router.db"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// RouterFromEnv builds the router config: env values merged over the
// hard defaults
func RouterFromEnv() risk.Config {
	cfg := risk.DefaultConfig()

	cfg.Enabled = getEnvBool("ROUTER_ENABLED", cfg.Enabled)
	cfg.DryRun = getEnvBool("DRY_RUN", cfg.DryRun)
	cfg.AllowedSignalTypes = getEnvList("ALLOWED_SIGNAL_TYPES", cfg.AllowedSignalTypes)
	cfg.MinStrength = getEnvFloat("MIN_STRENGTH", cfg.MinStrength)
	cfg.EnabledPlatforms = getEnvList("ENABLED_PLATFORMS", cfg.EnabledPlatforms)
	cfg.ExcludedMarkets = getEnvList("EXCLUDED_MARKETS", cfg.ExcludedMarkets)
	cfg.BaseSize = getEnvDecimal("BASE_POSITION_SIZE", cfg.BaseSize)
	cfg.MaxSize = getEnvDecimal("MAX_POSITION_SIZE", cfg.MaxSize)
	cfg.ScaleWithStrength = getEnvBool("SCALE_WITH_STRENGTH", cfg.ScaleWithStrength)
	cfg.MaxDailyLoss = getEnvDecimal("MAX_DAILY_LOSS", cfg.MaxDailyLoss)
	cfg.MaxConcurrentPositions = getEnvInt("MAX_CONCURRENT_POSITIONS", cfg.MaxConcurrentPositions)
	cfg.Cooldown = getEnvDuration("MARKET_COOLDOWN", cfg.Cooldown)
	cfg.OrderMode = types.OrderMode(getEnv("ORDER_MODE", string(cfg.OrderMode)))
	cfg.MaxSlippage = getEnvDecimal("MAX_SLIPPAGE", cfg.MaxSlippage)
	cfg.UseFeatureFilters = getEnvBool("USE_FEATURE_FILTERS", cfg.UseFeatureFilters)
	cfg.QueueCapacity = getEnvInt("QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.AuditCapacity = getEnvInt("AUDIT_CAPACITY", cfg.AuditCapacity)

	return cfg
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
