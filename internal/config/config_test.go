package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.App.Name != "fareradar" || cfg.App.Environment != "test" {
		t.Fatalf("unexpected app config: %+v", cfg.App)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Provider.Mode != ProviderMock {
		t.Fatalf("unexpected backends: store=%s provider=%s", cfg.Store.Backend, cfg.Provider.Mode)
	}
	if cfg.Cache.SearchTTL != 5*time.Minute {
		t.Fatalf("search ttl default should be 5m, got %s", cfg.Cache.SearchTTL)
	}

	want := map[string]PolicySpec{
		"public": {Limit: 60, Window: time.Minute},
		"search": {Limit: 20, Window: time.Minute},
		"track":  {Limit: 120, Window: time.Minute},
	}
	for name, spec := range want {
		if got := cfg.RateLimit.Policies[name]; got != spec {
			t.Fatalf("policy %s: want %+v got %+v", name, spec, got)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FARERADAR_HTTP_ADDR", ":9999")

	cfg, err := Load(writeConfig(t, `
cache:
  search_ttl: 90s
ratelimit:
  policies:
    search:
      limit: 5
      window: 10s
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("env should override http.addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.Cache.SearchTTL != 90*time.Second {
		t.Fatalf("file should override search ttl, got %s", cfg.Cache.SearchTTL)
	}
	if got := cfg.RateLimit.Policies["search"]; got.Limit != 5 || got.Window != 10*time.Second {
		t.Fatalf("unexpected search policy %+v", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTP:         HTTPConfig{Addr: ":8080"},
			Store:        StoreConfig{Backend: BackendMemory},
			Provider:     ProviderConfig{Mode: ProviderMock},
			Cache:        CacheConfig{SearchTTL: time.Minute, FlightTTL: time.Minute, SessionTTL: time.Minute},
			PriceHistory: PriceHistoryConfig{RecordTimeout: time.Second},
			Export:       ExportConfig{MaxDataPoints: 10},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, false},
		{"live without credentials", func(c *Config) {
			c.Provider.Mode = ProviderLive
			c.Provider.BaseURL = "https://api.example.com"
			c.Provider.TokenURL = "https://api.example.com/token"
		}, false},
		{"zero policy limit", func(c *Config) {
			c.RateLimit.Policies = map[string]PolicySpec{"public": {Limit: 0, Window: time.Minute}}
		}, false},
		{"sweeper without interval", func(c *Config) { c.Sweeper.Enabled = true }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
