package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradealerter/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Poll loop
	PollInterval   time.Duration
	AlertsEnabled  bool
	Replay         bool // clear the seen-order set and re-alert upstream history
	AlertQueueSize int

	// Brokerages to poll ("webull", "binance")
	Brokers []string

	// Webull API
	WebullBaseURL     string
	WebullAccessToken string
	WebullDeviceID    string
	WebullAccountID   string

	// Binance API
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceSymbols   []string
	IsTestnet        bool

	// Retry policy applied at adapter boundaries
	RetryMaxAttempts int
	RetryDelay       time.Duration
	RetryExponential bool

	// Persistence
	DataDir       string
	PortfolioPath string // position table (CSV)
	OrdersPath    string // seen-order set (JSON)
	JournalDBPath string // fill journal (SQLite)

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Poll loop
	intervalSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 5)
	if intervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(intervalSeconds) * time.Second

	cfg.AlertsEnabled = getEnvAsBool("ALERTS_ENABLED", true)
	cfg.Replay = getEnvAsBool("REPLAY", false)

	cfg.AlertQueueSize = getEnvAsInt("ALERT_QUEUE_SIZE", 10)
	if cfg.AlertQueueSize <= 0 {
		errs = append(errs, "ALERT_QUEUE_SIZE must be positive")
	}

	// Brokerages
	cfg.Brokers = splitList(getEnv("BROKERS", "webull"))
	if len(cfg.Brokers) == 0 {
		errs = append(errs, "BROKERS must name at least one brokerage")
	}
	for _, b := range cfg.Brokers {
		switch b {
		case "webull", "binance":
		default:
			errs = append(errs, fmt.Sprintf("unknown brokerage %q in BROKERS", b))
		}
	}

	// Webull API (validated only when enabled)
	cfg.WebullBaseURL = getEnv("WEBULL_BASE_URL", "https://ustrade.webullfinance.com")
	cfg.WebullAccessToken = getEnv("WEBULL_ACCESS_TOKEN", "")
	cfg.WebullDeviceID = getEnv("WEBULL_DEVICE_ID", "")
	cfg.WebullAccountID = getEnv("WEBULL_ACCOUNT_ID", "")
	if contains(cfg.Brokers, "webull") {
		if cfg.WebullAccessToken == "" {
			errs = append(errs, "WEBULL_ACCESS_TOKEN must be set when webull is enabled")
		}
		if cfg.WebullAccountID == "" {
			errs = append(errs, "WEBULL_ACCOUNT_ID must be set when webull is enabled")
		}
	}

	// Binance API (validated only when enabled)
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceSymbols = splitList(getEnv("BINANCE_SYMBOLS", ""))
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if contains(cfg.Brokers, "binance") {
		if cfg.BinanceAPIKey == "" || cfg.BinanceSecretKey == "" {
			errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set when binance is enabled")
		}
		if len(cfg.BinanceSymbols) == 0 {
			errs = append(errs, "BINANCE_SYMBOLS must name at least one symbol when binance is enabled")
		}
	}

	// Retry policy
	cfg.RetryMaxAttempts, err = getEnvAsIntRequired("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RETRY_MAX_ATTEMPTS: %v", err))
	} else if cfg.RetryMaxAttempts <= 0 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be positive")
	}
	retryDelaySeconds := getEnvAsInt("RETRY_DELAY_SECONDS", 2)
	if retryDelaySeconds <= 0 {
		errs = append(errs, "RETRY_DELAY_SECONDS must be positive")
	}
	cfg.RetryDelay = time.Duration(retryDelaySeconds) * time.Second
	cfg.RetryExponential = getEnvAsBool("RETRY_BACKOFF", true)

	// Persistence
	cfg.DataDir = getEnv("DATA_DIR", "./data")
	if cfg.DataDir == "" {
		errs = append(errs, "DATA_DIR must be set")
	}
	cfg.PortfolioPath = getEnv("PORTFOLIO_PATH", filepath.Join(cfg.DataDir, "portfolio.csv"))
	cfg.OrdersPath = getEnv("ORDERS_PATH", filepath.Join(cfg.DataDir, "orders.json"))
	cfg.JournalDBPath = getEnv("JOURNAL_DB_PATH", filepath.Join(cfg.DataDir, "fill_journal.db"))

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// splitList parses a comma-separated env value into trimmed, non-empty items.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
