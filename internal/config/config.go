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

	"fareradar/internal/logging"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Provider modes.
const (
	ProviderMock = "mock"
	ProviderLive = "live"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Store        StoreConfig        `mapstructure:"store"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Provider     ProviderConfig     `mapstructure:"provider"`
	Cache        CacheConfig        `mapstructure:"cache"`
	PriceHistory PriceHistoryConfig `mapstructure:"pricehistory"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Sweeper      SweeperConfig      `mapstructure:"sweeper"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ProviderConfig describes the upstream flight search API.
type ProviderConfig struct {
	Mode         string        `mapstructure:"mode"`
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Currency     string        `mapstructure:"currency"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	Backoff      time.Duration `mapstructure:"backoff"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// CacheConfig sets lifetimes of cached search state.
type CacheConfig struct {
	SearchTTL  time.Duration `mapstructure:"search_ttl"`
	FlightTTL  time.Duration `mapstructure:"flight_ttl"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// PriceHistoryConfig tunes price recording.
type PriceHistoryConfig struct {
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
	WindowDays    int           `mapstructure:"window_days"`
}

// RateLimitConfig holds the named fixed-window policies.
type RateLimitConfig struct {
	Enabled  bool                  `mapstructure:"enabled"`
	Policies map[string]PolicySpec `mapstructure:"policies"`
}

// PolicySpec is one fixed-window policy.
type PolicySpec struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// NATSConfig routes partner-click events. An empty URL keeps events in the log only.
type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	Subject string        `mapstructure:"subject"`
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SweeperConfig governs background TTL reclamation.
type SweeperConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("FARERADAR")
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
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fareradar")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.request_timeout", "25s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.key_prefix", "")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("provider.mode", ProviderMock)
	v.SetDefault("provider.currency", "BRL")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.retries", 2)
	v.SetDefault("provider.backoff", "500ms")
	v.SetDefault("provider.user_agent", "fareradar/1.0")

	v.SetDefault("cache.search_ttl", "5m")
	v.SetDefault("cache.flight_ttl", "30m")
	v.SetDefault("cache.session_ttl", "30m")

	v.SetDefault("pricehistory.record_timeout", "5s")
	v.SetDefault("pricehistory.window_days", 30)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.policies.public.limit", 60)
	v.SetDefault("ratelimit.policies.public.window", "60s")
	v.SetDefault("ratelimit.policies.search.limit", 20)
	v.SetDefault("ratelimit.policies.search.window", "60s")
	v.SetDefault("ratelimit.policies.track.limit", 120)
	v.SetDefault("ratelimit.policies.track.window", "60s")

	v.SetDefault("nats.subject", "fareradar.partner_clicks")
	v.SetDefault("nats.name", "fareradar")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", "15m")
	v.SetDefault("sweeper.align_to_interval", false)
	v.SetDefault("sweeper.advisory_lock_key", int64(0x66617265))
	v.SetDefault("sweeper.startup_delay", "30s")

	v.SetDefault("export.max_data_points", 100000)
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
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Store.Backend)
	}

	switch c.Provider.Mode {
	case ProviderMock:
	case ProviderLive:
		if c.Provider.BaseURL == "" || c.Provider.TokenURL == "" {
			return fmt.Errorf("provider.base_url and provider.token_url are required in live mode")
		}
		if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" {
			return fmt.Errorf("provider.client_id and provider.client_secret are required in live mode")
		}
	default:
		return fmt.Errorf("provider.mode must be %q or %q, got %q", ProviderMock, ProviderLive, c.Provider.Mode)
	}
	if c.Provider.Retries < 0 {
		return fmt.Errorf("provider.retries cannot be negative")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Cache.SearchTTL <= 0 || c.Cache.FlightTTL <= 0 || c.Cache.SessionTTL <= 0 {
		return fmt.Errorf("cache ttls must be greater than zero")
	}
	if c.PriceHistory.RecordTimeout <= 0 {
		return fmt.Errorf("pricehistory.record_timeout must be greater than zero")
	}

	for name, policy := range c.RateLimit.Policies {
		if policy.Limit <= 0 {
			return fmt.Errorf("ratelimit.policies.%s.limit must be greater than zero", name)
		}
		if policy.Window <= 0 {
			return fmt.Errorf("ratelimit.policies.%s.window must be greater than zero", name)
		}
	}

	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
