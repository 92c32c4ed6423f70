package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"terminal-core/internal/terminal"
)

// Config holds environment-driven settings for the terminal service.
type Config struct {
	Port string

	// Logging
	LogLevel    string
	LogFormat   string
	ServiceName string

	// Localization
	Language string // "en" or "zh"

	// Storage
	DBPath      string
	SymbolsFile string

	// Market data
	UseMockFeed      bool
	BinanceTestnet   bool
	FeedSymbols      []string
	MockFeedInterval time.Duration
	PriceMaxAge      time.Duration // cached prices older than this are evicted

	// Position refresh
	PositionServiceURL string // empty reads the local positions table
	ReconcileInterval  time.Duration

	// Panel defaults
	DefaultLeverage                   float64
	MaxLeverage                       float64
	DefaultDCAPercentage              float64
	DefaultRebuyPercentage            float64
	DefaultStopLossPercentage         float64
	DefaultTrailingTriggerPercentage  float64
	DefaultTrailingDistancePercentage float64
	DefaultTakeProfitPercentage       float64
	DefaultReducePercentage           float64
	DefaultReduceAvailablePercentage  float64

	// API
	APIRateLimit float64
	APIRateBurst int
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/terminal.db")
	}

	reconcile, err := getEnvDuration("RECONCILE_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	priceMaxAge, err := getEnvDuration("PRICE_MAX_AGE", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
		ServiceName:       getEnv("SERVICE_NAME", "terminal-core"),
		Language:          getEnv("LANGUAGE", "en"),
		DBPath:            dbPath,
		SymbolsFile:       getEnv("SYMBOLS_FILE", "./configs/symbols.yaml"),
		UseMockFeed:       getEnv("USE_MOCK_FEED", "true") == "true",
		BinanceTestnet:    getEnv("BINANCE_TESTNET", "false") == "true",
		FeedSymbols:       splitAndTrim(getEnv("FEED_SYMBOLS", "BTCUSDT,ETHUSDT")),
		MockFeedInterval:  time.Duration(getEnvInt("MOCK_FEED_INTERVAL_MS", 1000)) * time.Millisecond,
		ReconcileInterval: reconcile,
		PriceMaxAge:       priceMaxAge,

		PositionServiceURL: getEnv("POSITION_SERVICE_URL", ""),

		DefaultLeverage:                   getEnvFloat("DEFAULT_LEVERAGE", 1),
		MaxLeverage:                       getEnvFloat("MAX_LEVERAGE", 125),
		DefaultDCAPercentage:              getEnvFloat("DEFAULT_DCA_PERCENTAGE", 5),
		DefaultRebuyPercentage:            getEnvFloat("DEFAULT_REBUY_PERCENTAGE", 100),
		DefaultStopLossPercentage:         getEnvFloat("DEFAULT_STOP_LOSS_PERCENTAGE", 5),
		DefaultTrailingTriggerPercentage:  getEnvFloat("DEFAULT_TRAILING_TRIGGER_PERCENTAGE", 2),
		DefaultTrailingDistancePercentage: getEnvFloat("DEFAULT_TRAILING_DISTANCE_PERCENTAGE", 1),
		DefaultTakeProfitPercentage:       getEnvFloat("DEFAULT_TAKE_PROFIT_PERCENTAGE", 10),
		DefaultReducePercentage:           getEnvFloat("DEFAULT_REDUCE_PERCENTAGE", 5),
		DefaultReduceAvailablePercentage:  getEnvFloat("DEFAULT_REDUCE_AVAILABLE_PERCENTAGE", 50),

		APIRateLimit: getEnvFloat("API_RATE_LIMIT", 20),
		APIRateBurst: getEnvInt("API_RATE_BURST", 50),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the panels cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.DefaultLeverage < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_LEVERAGE must be >= 1, got %v", c.DefaultLeverage))
	}
	if c.MaxLeverage < 1 {
		errs = append(errs, fmt.Errorf("MAX_LEVERAGE must be >= 1, got %v", c.MaxLeverage))
	}
	if c.DefaultLeverage > c.MaxLeverage {
		errs = append(errs, fmt.Errorf("DEFAULT_LEVERAGE %v exceeds MAX_LEVERAGE %v", c.DefaultLeverage, c.MaxLeverage))
	}
	for name, v := range map[string]float64{
		"DEFAULT_DCA_PERCENTAGE":               c.DefaultDCAPercentage,
		"DEFAULT_REBUY_PERCENTAGE":             c.DefaultRebuyPercentage,
		"DEFAULT_STOP_LOSS_PERCENTAGE":         c.DefaultStopLossPercentage,
		"DEFAULT_TRAILING_TRIGGER_PERCENTAGE":  c.DefaultTrailingTriggerPercentage,
		"DEFAULT_TRAILING_DISTANCE_PERCENTAGE": c.DefaultTrailingDistancePercentage,
		"DEFAULT_TAKE_PROFIT_PERCENTAGE":       c.DefaultTakeProfitPercentage,
		"DEFAULT_REDUCE_PERCENTAGE":            c.DefaultReducePercentage,
		"DEFAULT_REDUCE_AVAILABLE_PERCENTAGE":  c.DefaultReduceAvailablePercentage,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", name, v))
		}
	}
	if c.MockFeedInterval <= 0 {
		errs = append(errs, errors.New("MOCK_FEED_INTERVAL_MS must be positive"))
	}
	if c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// Defaults converts the panel settings for terminal sessions.
func (c *Config) Defaults() terminal.Defaults {
	return terminal.Defaults{
		Leverage:                   c.DefaultLeverage,
		MaxLeverage:                c.MaxLeverage,
		DCAPercentage:              c.DefaultDCAPercentage,
		RebuyPercentage:            c.DefaultRebuyPercentage,
		StopLossPercentage:         c.DefaultStopLossPercentage,
		TrailingTriggerPercentage:  c.DefaultTrailingTriggerPercentage,
		TrailingDistancePercentage: c.DefaultTrailingDistancePercentage,
		TakeProfitPercentage:       c.DefaultTakeProfitPercentage,
		ReducePercentage:           c.DefaultReducePercentage,
		ReduceAvailablePercentage:  c.DefaultReduceAvailablePercentage,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToUpper(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
