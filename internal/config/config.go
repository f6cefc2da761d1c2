package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"MarketFeed/internal/cache"
	"MarketFeed/internal/model"
)

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// cronParser accepts 6-field specs with seconds and @-descriptors, matching the scheduler.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all application configuration.
type Config struct {
	Sources struct {
		CryptoBaseURL string        `yaml:"crypto_base_url"`
		QuoteBaseURL  string        `yaml:"quote_base_url"`
		Proxy         string        `yaml:"proxy"`
		Mock          bool          `yaml:"mock"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"sources"`
	Schedule struct {
		RefreshCron string        `yaml:"refresh_cron"`
		ChunkSize   int           `yaml:"chunk_size"`
		ChunkDelay  time.Duration `yaml:"chunk_delay"`
		RunOnStart  bool          `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Cache struct {
		ShortInterval   string        `yaml:"short_interval"`
		ShortRetention  int           `yaml:"short_retention"`
		ShortThreshold  time.Duration `yaml:"short_threshold"`
		MediumThreshold time.Duration `yaml:"medium_threshold"`
		LongThreshold   time.Duration `yaml:"long_threshold"`
		SparklineLength int           `yaml:"sparkline_length"`
	} `yaml:"cache"`
	Snapshot struct {
		Backend         string `yaml:"backend"`
		FilePath        string `yaml:"file_path"`
		SQLitePath      string `yaml:"sqlite_path"`
		RedisAddr       string `yaml:"redis_addr"`
		RedisPassword   string `yaml:"redis_password"`
		RedisDB         int    `yaml:"redis_db"`
		RedisKey        string `yaml:"redis_key"`
		RetainStaleRows bool   `yaml:"retain_stale_rows"`
	} `yaml:"snapshot"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	// Universe optionally replaces the built-in registry, keyed by asset type.
	Universe map[string][]string `yaml:"universe"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is fine; existing process env wins over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CRYPTO_BASE_URL"); v != "" {
		c.Sources.CryptoBaseURL = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		c.Sources.QuoteBaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Sources.Proxy = v
	}
	if v := os.Getenv("MOCK_SOURCES"); v != "" {
		c.Sources.Mock = parseBool(v)
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		c.Schedule.RefreshCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = parseBool(v)
	}
	if v := os.Getenv("SNAPSHOT_BACKEND"); v != "" {
		c.Snapshot.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Snapshot.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Snapshot.RedisAddr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

func (c *Config) applyDefaults() {
	if c.Sources.Timeout == 0 {
		c.Sources.Timeout = 15 * time.Second
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "@every 5m"
	}
	if c.Schedule.ChunkSize == 0 {
		c.Schedule.ChunkSize = 10
	}
	if c.Schedule.ChunkDelay == 0 {
		c.Schedule.ChunkDelay = 2 * time.Second
	}
	if c.Cache.ShortInterval == "" {
		c.Cache.ShortInterval = string(model.Interval5m)
	}
	if c.Cache.ShortRetention == 0 {
		c.Cache.ShortRetention = 90
	}
	if c.Cache.ShortThreshold == 0 {
		c.Cache.ShortThreshold = 5 * time.Minute
	}
	if c.Cache.MediumThreshold == 0 {
		c.Cache.MediumThreshold = 15 * time.Minute
	}
	if c.Cache.LongThreshold == 0 {
		c.Cache.LongThreshold = time.Hour
	}
	if c.Cache.SparklineLength == 0 {
		c.Cache.SparklineLength = 30
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = BackendFile
	}
	if c.Snapshot.FilePath == "" {
		c.Snapshot.FilePath = "data/snapshot.json"
	}
	if c.Snapshot.SQLitePath == "" {
		c.Snapshot.SQLitePath = "data/market_feed.db"
	}
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Schedule.ChunkSize <= 0 {
		return fmt.Errorf("schedule.chunk_size must be positive")
	}
	if c.Schedule.ChunkDelay < 0 {
		return fmt.Errorf("schedule.chunk_delay must not be negative")
	}
	if _, err := cronParser.Parse(c.Schedule.RefreshCron); err != nil {
		return fmt.Errorf("schedule.refresh_cron %q: %w", c.Schedule.RefreshCron, err)
	}
	if iv, err := model.ParseInterval(c.Cache.ShortInterval); err != nil {
		return fmt.Errorf("cache.short_interval: %w", err)
	} else if iv != model.Interval5m {
		// 1h and 1d are fetched whole and keep their own thresholds.
		return fmt.Errorf("cache.short_interval must be %s, got %s", model.Interval5m, iv)
	}
	if c.Cache.ShortRetention <= 0 {
		return fmt.Errorf("cache.short_retention must be positive")
	}
	if c.Cache.ShortThreshold <= 0 || c.Cache.MediumThreshold <= 0 || c.Cache.LongThreshold <= 0 {
		return fmt.Errorf("cache thresholds must be positive")
	}
	if c.Cache.SparklineLength < 0 {
		return fmt.Errorf("cache.sparkline_length must not be negative")
	}

	switch c.Snapshot.Backend {
	case BackendFile:
		if c.Snapshot.FilePath == "" {
			return fmt.Errorf("snapshot.file_path is required for the file backend")
		}
	case BackendSQLite:
		if c.Snapshot.SQLitePath == "" {
			return fmt.Errorf("snapshot.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Snapshot.RedisAddr == "" {
			return fmt.Errorf("snapshot.redis_addr is required for the redis backend")
		}
	case BackendNone:
	default:
		return fmt.Errorf("snapshot.backend %q is not one of file, sqlite, redis, none", c.Snapshot.Backend)
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	for k := range c.Universe {
		if !knownAssetType(k) {
			return fmt.Errorf("universe: unknown asset type %q", k)
		}
	}
	return nil
}

// TelegramEnabled reports whether alerts and commands are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// CachePolicy builds the history cache policy from the cache section.
// Validate guarantees the short interval is 5m, so the three thresholds map
// to distinct intervals.
func (c *Config) CachePolicy() cache.Policy {
	short := model.Interval(c.Cache.ShortInterval)
	p := cache.Policy{
		ShortInterval:  short,
		ShortRetention: c.Cache.ShortRetention,
		Thresholds: map[model.Interval]time.Duration{
			model.Interval1h: c.Cache.MediumThreshold,
			model.Interval1d: c.Cache.LongThreshold,
		},
	}
	p.Thresholds[short] = c.Cache.ShortThreshold
	return p
}

// UniverseGroups returns the configured symbol lists, or nil to use the built-in registry.
func (c *Config) UniverseGroups() map[model.AssetType][]string {
	if len(c.Universe) == 0 {
		return nil
	}
	out := make(map[model.AssetType][]string, len(c.Universe))
	for k, syms := range c.Universe {
		out[model.AssetType(strings.ToLower(k))] = syms
	}
	return out
}

func knownAssetType(s string) bool {
	for _, t := range model.AssetTypes {
		if string(t) == strings.ToLower(s) {
			return true
		}
	}
	return false
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
