package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/codyseavey/mtg-value-bot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Scryfall ScryfallConfig `mapstructure:"scryfall"`
	JustTCG  JustTCGConfig  `mapstructure:"justtcg"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the HTTP API.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at the SQLite file holding history, cache and watchlist.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
}

// ScryfallConfig covers the primary provider.
type ScryfallConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxPrintPages     int           `mapstructure:"max_print_pages"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// JustTCGConfig covers the secondary provider.
type JustTCGConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	DailyLimit int           `mapstructure:"daily_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ResolverConfig tunes resolution and indicator derivation.
type ResolverConfig struct {
	AdapterTimeout          time.Duration `mapstructure:"adapter_timeout"`
	RSIPeriod               int           `mapstructure:"rsi_period"`
	MinRSIObservations      int           `mapstructure:"min_rsi_observations"`
	MinForecastObservations int           `mapstructure:"min_forecast_observations"`
	ForecastHorizon         int           `mapstructure:"forecast_horizon"`
}

// CacheConfig sizes the in-memory front of the Local Cache.
type CacheConfig struct {
	MemoryEntries int `mapstructure:"memory_entries"`
}

// TrackerConfig drives scheduled re-checks of tracked cards.
type TrackerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	DefaultCards []string      `mapstructure:"default_cards"`
}

// TelegramConfig describes where tracker notifications go.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MTGVALUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mtgvalue")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.path", "./mtg_cards.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("scryfall.base_url", "https://api.scryfall.com")
	v.SetDefault("scryfall.timeout", "10s")
	v.SetDefault("scryfall.requests_per_second", 10.0)
	v.SetDefault("scryfall.max_print_pages", 3)
	v.SetDefault("scryfall.user_agent", "mtgvalue/1.0")

	v.SetDefault("justtcg.enabled", true)
	v.SetDefault("justtcg.base_url", "https://api.justtcg.com/v1")
	v.SetDefault("justtcg.daily_limit", 100)
	v.SetDefault("justtcg.timeout", "10s")

	v.SetDefault("resolver.adapter_timeout", "20s")
	v.SetDefault("resolver.rsi_period", 14)
	v.SetDefault("resolver.min_rsi_observations", 15)
	v.SetDefault("resolver.min_forecast_observations", 5)
	v.SetDefault("resolver.forecast_horizon", 6)

	v.SetDefault("cache.memory_entries", 512)

	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.interval", "24h")
	v.SetDefault("tracker.default_cards", []string{"Black Knight", "Force of Will", "Ancestral Recall"})

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Scryfall.BaseURL == "" {
		return fmt.Errorf("scryfall.base_url must be set")
	}
	if c.Scryfall.RequestsPerSecond <= 0 {
		return fmt.Errorf("scryfall.requests_per_second must be greater than zero")
	}
	if c.Resolver.AdapterTimeout <= 0 {
		return fmt.Errorf("resolver.adapter_timeout must be greater than zero")
	}
	if c.Resolver.RSIPeriod < 1 {
		return fmt.Errorf("resolver.rsi_period must be at least 1")
	}
	// RSI needs period+1 points; the caller guard may only be stricter.
	if c.Resolver.MinRSIObservations < c.Resolver.RSIPeriod+1 {
		return fmt.Errorf("resolver.min_rsi_observations must be at least rsi_period+1 (%d)", c.Resolver.RSIPeriod+1)
	}
	if c.Resolver.MinForecastObservations < 2 {
		return fmt.Errorf("resolver.min_forecast_observations must be at least 2")
	}
	if c.Resolver.ForecastHorizon < 1 {
		return fmt.Errorf("resolver.forecast_horizon must be at least 1")
	}
	if c.Cache.MemoryEntries < 1 {
		return fmt.Errorf("cache.memory_entries must be at least 1")
	}
	if c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be greater than zero")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token must be set when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id must be set when telegram is enabled")
		}
	}
	return nil
}
