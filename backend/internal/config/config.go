// Package config loads the server configuration from a per-environment YAML
// file, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string   `yaml:"-"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Pricing  Pricing  `yaml:"pricing"`
	Wallet   Wallet   `yaml:"wallet"`
	Market   Market   `yaml:"market"`
	Logging  Logging  `yaml:"logging"`
}

type Server struct {
	Address         string        `yaml:"address" validate:"nonzero"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	Driver         string        `yaml:"driver" validate:"regexp=^(postgres|memory)$"`
	DSN            string        `yaml:"dsn"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // total retry budget
	Migrate        bool          `yaml:"migrate"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	Issuer     string        `yaml:"issuer"`
	AdminEmail string        `yaml:"admin_email" validate:"nonzero"`

	// The admin account is created at startup when AdminPassword is set.
	// Public signup never accepts AdminEmail.
	AdminUsername string `yaml:"admin_username" validate:"nonzero"`
	AdminPassword string `yaml:"admin_password"`
}

type Pricing struct {
	Source            string        `yaml:"source" validate:"regexp=^(livecoinwatch|simulated)$"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	MinInterval       time.Duration `yaml:"min_interval"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	Concurrency       int           `yaml:"concurrency" validate:"min=1"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
}

type Wallet struct {
	QuoteBalance float64  `yaml:"quote_balance"`
	Tokens       []string `yaml:"tokens"`
}

type Market struct {
	DefaultSymbols []string `yaml:"default_symbols"`
}

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a configuration usable without any file: in-memory store,
// simulated prices.
func Default() *Config {
	return &Config{
		Env: "dev",
		Server: Server{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Driver:         "memory",
			ConnectTimeout: 30 * time.Second,
			Migrate:        true,
		},
		Auth: Auth{
			TokenTTL:      24 * time.Hour,
			Issuer:        "papercex",
			AdminEmail:    "admin@gmail.com",
			AdminUsername: "admin",
		},
		Pricing: Pricing{
			Source:            "simulated",
			CacheTTL:          5 * time.Minute,
			MinInterval:       9 * time.Second,
			RateLimitCooldown: 60 * time.Second,
			HTTPTimeout:       10 * time.Second,
			Concurrency:       8,
			RefreshInterval:   2 * time.Minute,
		},
		Wallet: Wallet{
			QuoteBalance: 10000,
			Tokens:       []string{"BTC", "ETH", "SOL", "BNB"},
		},
		Market: Market{
			DefaultSymbols: []string{"BTC", "ETH", "SOL", "BNB"},
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// GetEnv returns GO_ENV, defaulting to dev.
func GetEnv() string {
	if e := os.Getenv("GO_ENV"); e != "" {
		return e
	}
	return "dev"
}

// Path returns the config file for env under dir.
func Path(dir, env string) string {
	return filepath.Join(dir, env, "conf.yaml")
}

// Load reads .env (if present), then the YAML file at path (if present) on
// top of Default, then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	cfg.Env = GetEnv()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(content, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Server.Address, "HTTP_ADDRESS")
	override(&c.Database.Driver, "DATABASE_DRIVER")
	override(&c.Database.DSN, "DATABASE_URL")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	override(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	override(&c.Pricing.Source, "PRICE_SOURCE")
	override(&c.Pricing.APIKey, "LIVECOINWATCH_API_KEY")
	override(&c.Logging.Level, "LOG_LEVEL")
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return errors.New("validate config: database.dsn is required for the postgres driver")
	}
	if c.Pricing.Source == "livecoinwatch" && c.Pricing.APIKey == "" {
		return errors.New("validate config: pricing.api_key is required for livecoinwatch")
	}
	if c.Auth.JWTSecret == "" && c.Env == "prod" {
		return errors.New("validate config: auth.jwt_secret is required in prod")
	}
	for name, d := range map[string]time.Duration{
		"pricing.cache_ttl":        c.Pricing.CacheTTL,
		"pricing.min_interval":     c.Pricing.MinInterval,
		"pricing.refresh_interval": c.Pricing.RefreshInterval,
		"auth.token_ttl":           c.Auth.TokenTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("validate config: %s must be positive", name)
		}
	}
	c.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(c.Auth.AdminEmail))
	return nil
}
