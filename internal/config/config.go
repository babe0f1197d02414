package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bookcal/internal/model"
)

var (
	ErrEmptyPath = errors.New("config path is empty")
	ErrNilConfig = errors.New("config is nil")
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "Asia/Bangkok"
	defaultWeekStart = "sunday"
	defaultRefresh   = "*/5 * * * *"
	defaultLogLevel  = "info"
	defaultCacheDir  = "/var/lib/bookcal/ics-cache"
	defaultRedisTTL  = 30
)

// ICSConfig describes an ICS subscription that is presented as one account.
type ICSConfig struct {
	// ID doubles as the account ID of every booking read from the feed.
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Color string `yaml:"color" json:"color"`
}

// MySQLConfig points at the relational booking store.
type MySQLConfig struct {
	// DSN in go-sql-driver format, e.g. "user:pass@tcp(host:3306)/meeting".
	DSN string `yaml:"dsn" json:"dsn"`
}

// RedisConfig enables the shared response cache when Addr is set.
type RedisConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	Password   string `yaml:"password" json:"-"`
	DB         int    `yaml:"db" json:"db"`
	Prefix     string `yaml:"prefix" json:"prefix"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// TTL is the cache entry lifetime.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone bookings are displayed in. Booking times are
	// wall-clock values of this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the month grid: "sunday" (default)
	// or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule of the booking refetch.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores ICS bodies and their ETag/Last-Modified metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	MySQL MySQLConfig `yaml:"mysql" json:"mysql"`
	Redis RedisConfig `yaml:"redis" json:"redis"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Accounts are served when no MySQL store is configured, and used to
	// label ICS accounts.
	Accounts []model.Account `yaml:"accounts" json:"accounts"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "sunday", "monday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "bookcal"
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = defaultRedisTTL
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = c.ICS[i].Name
		}
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = c.ICS[i].URL
		}
	}
	if c.Accounts == nil {
		c.Accounts = []model.Account{}
	}
}

// Location resolves Timezone, falling back to time.Local when unknown.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// ApplyEnv overrides file values with BOOKCAL_* environment variables.
// Secrets such as the DSN are usually provided this way.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("BOOKCAL_LISTEN", &c.Listen)
	set("BOOKCAL_TIMEZONE", &c.Timezone)
	set("BOOKCAL_DB_DSN", &c.MySQL.DSN)
	set("BOOKCAL_REDIS_ADDR", &c.Redis.Addr)
	set("BOOKCAL_REDIS_PASSWORD", &c.Redis.Password)
	set("BOOKCAL_LOG_LEVEL", &c.LogLevel)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".bookcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
