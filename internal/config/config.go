package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the exchange.
type Config struct {
	Port     int
	LogLevel string

	// Tick cycle.
	TickPeriod            time.Duration
	ActivityTimeout       time.Duration
	InstrumentDeadline    time.Duration
	ZeroActivityOnTimeout bool

	// Price process. Prices are in spurs.
	PriceFloor    int64
	PriceCeiling  int64
	NoiseSeed     int64 // 0 seeds from the clock
	ActivityCap   int64
	ActivityDecay float64

	// Trading.
	StartingBalance    int64
	OrderTTL           time.Duration
	ExpirationInterval time.Duration
	MessageCooldown    time.Duration

	// Storage and catalog. Empty means in-memory / built-in.
	DataDir     string
	CatalogPath string
	HistoryMax  int

	// Egress.
	WebhookTimeout time.Duration
	EventBuffer    int
	KafkaBrokers   []string
	KafkaTopic     string

	// HTTP.
	CORSOrigins     []string
	AdminToken      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file from the working directory and then
// the environment. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom loads envFile if it exists (variables already set in the
// environment win), then reads configuration from environment variables,
// applies defaults, and validates values. It returns an error for any
// invalid value.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var (
		cfg Config
		err error
	)

	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	cfg.LogLevel = getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"TICK_PERIOD", &cfg.TickPeriod, 3 * time.Minute},
		{"ACTIVITY_TIMEOUT", &cfg.ActivityTimeout, 2 * time.Second},
		{"INSTRUMENT_DEADLINE", &cfg.InstrumentDeadline, 5 * time.Second},
		{"ORDER_TTL", &cfg.OrderTTL, 24 * time.Hour},
		{"EXPIRATION_INTERVAL", &cfg.ExpirationInterval, 1 * time.Second},
		{"MESSAGE_COOLDOWN", &cfg.MessageCooldown, 30 * time.Second},
		{"WEBHOOK_TIMEOUT", &cfg.WebhookTimeout, 5 * time.Second},
		{"READ_TIMEOUT", &cfg.ReadTimeout, 5 * time.Second},
		{"WRITE_TIMEOUT", &cfg.WriteTimeout, 10 * time.Second},
		{"IDLE_TIMEOUT", &cfg.IdleTimeout, 60 * time.Second},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout, 10 * time.Second},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if cfg.ZeroActivityOnTimeout, err = getBool("ZERO_ACTIVITY_ON_TIMEOUT", false); err != nil {
		return nil, fmt.Errorf("invalid ZERO_ACTIVITY_ON_TIMEOUT: %w", err)
	}

	ints := []struct {
		key string
		dst *int64
		def int64
	}{
		{"STARTING_BALANCE", &cfg.StartingBalance, 640},
		{"PRICE_FLOOR", &cfg.PriceFloor, 1},
		{"PRICE_CEILING", &cfg.PriceCeiling, 6_400_000},
		{"NOISE_SEED", &cfg.NoiseSeed, 0},
		{"ACTIVITY_CAP", &cfg.ActivityCap, 100},
	}
	for _, i := range ints {
		if *i.dst, err = getInt64(i.key, i.def); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", i.key, err)
		}
	}

	if cfg.HistoryMax, err = getInt("HISTORY_MAX", 480); err != nil {
		return nil, fmt.Errorf("invalid HISTORY_MAX: %w", err)
	}
	if cfg.EventBuffer, err = getInt("EVENT_BUFFER", 1024); err != nil {
		return nil, fmt.Errorf("invalid EVENT_BUFFER: %w", err)
	}
	if cfg.ActivityDecay, err = getFloat("ACTIVITY_DECAY", 0.5); err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_DECAY: %w", err)
	}

	cfg.DataDir = getStr("DATA_DIR", "")
	cfg.CatalogPath = getStr("CATALOG_PATH", "")
	cfg.KafkaBrokers = getList("KAFKA_BROKERS", nil)
	cfg.KafkaTopic = getStr("KAFKA_TOPIC", "cogexchange.events")
	cfg.CORSOrigins = getList("CORS_ORIGINS", []string{"*"})
	cfg.AdminToken = getStr("ADMIN_TOKEN", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	positive := []struct {
		key string
		val time.Duration
	}{
		{"TICK_PERIOD", c.TickPeriod},
		{"ACTIVITY_TIMEOUT", c.ActivityTimeout},
		{"INSTRUMENT_DEADLINE", c.InstrumentDeadline},
		{"ORDER_TTL", c.OrderTTL},
		{"EXPIRATION_INTERVAL", c.ExpirationInterval},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("invalid %s: must be > 0, got %v", p.key, p.val)
		}
	}

	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid PORT: %d out of range", c.Port)
	case c.MessageCooldown < 0:
		return fmt.Errorf("invalid MESSAGE_COOLDOWN: must be >= 0, got %v", c.MessageCooldown)
	case c.StartingBalance < 0:
		return fmt.Errorf("invalid STARTING_BALANCE: must be >= 0, got %d", c.StartingBalance)
	case c.PriceFloor < 1:
		return fmt.Errorf("invalid PRICE_FLOOR: must be >= 1, got %d", c.PriceFloor)
	case c.PriceCeiling <= c.PriceFloor:
		return fmt.Errorf("invalid PRICE_CEILING: must be > PRICE_FLOOR (%d), got %d", c.PriceFloor, c.PriceCeiling)
	case c.ActivityCap < 1:
		return fmt.Errorf("invalid ACTIVITY_CAP: must be >= 1, got %d", c.ActivityCap)
	case c.ActivityDecay < 0 || c.ActivityDecay > 1:
		return fmt.Errorf("invalid ACTIVITY_DECAY: must be within [0, 1], got %v", c.ActivityDecay)
	case c.HistoryMax < 1:
		return fmt.Errorf("invalid HISTORY_MAX: must be >= 1, got %d", c.HistoryMax)
	case c.EventBuffer < 1:
		return fmt.Errorf("invalid EVENT_BUFFER: must be >= 1, got %d", c.EventBuffer)
	}
	return nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(strings.ReplaceAll(v, "_", ""), 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated value, dropping empty items.
func getList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
