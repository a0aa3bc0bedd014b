// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	SuccessURL    string        `yaml:"success_url"`
	CancelURL     string        `yaml:"cancel_url"`
	Timeout       time.Duration `yaml:"timeout"`
	// SignatureTolerance bounds the age of a webhook signature timestamp.
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	// Sandbox swaps the HTTP gateway for the in-memory one.
	Sandbox bool `yaml:"sandbox"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// PaymentDefaults seed the configuration before an admin writes the first version.
type PaymentDefaults struct {
	MaxInstallments             int     `yaml:"max_installments"`
	PixDiscountPercent          float64 `yaml:"pix_discount_percent"`
	InstallmentsWithoutInterest int     `yaml:"installments_without_interest"`
	PixExpirationMinutes        int     `yaml:"pix_expiration_minutes"`
}

type PaymentConfig struct {
	Currency string          `yaml:"currency"`
	Defaults PaymentDefaults `yaml:"defaults"`
}

type CheckoutConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // per student per window; 0 disables
	RateWindow time.Duration `yaml:"rate_window"`
}

type SchedulerConfig struct {
	PixExpiryInterval    time.Duration `yaml:"pix_expiry_interval"`
	PixReconcileInterval time.Duration `yaml:"pix_reconcile_interval"`
	PixReconcileStale    time.Duration `yaml:"pix_reconcile_stale"`
	ReminderInterval     time.Duration `yaml:"reminder_interval"`
	ReminderWithinDays   int           `yaml:"reminder_within_days"`
	GaugeInterval        time.Duration `yaml:"gauge_interval"`
}

type WorkerConfig struct {
	Notifications int `yaml:"notifications"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Workers   WorkerConfig    `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads a YAML file, expands ${ENV} references and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(b))))
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes and validates a config document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Gateway.WebhookSecret == "" {
		return nil, errors.New("gateway.webhook_secret is required")
	}
	if !cfg.Gateway.Sandbox && (cfg.Gateway.BaseURL == "" || cfg.Gateway.APIKey == "") {
		return nil, errors.New("gateway.base_url and gateway.api_key are required unless gateway.sandbox is set")
	}
	d := cfg.Payment.Defaults
	if d.PixDiscountPercent < 0 || d.PixDiscountPercent >= 100 {
		return nil, errors.New("payment.defaults.pix_discount_percent must be in [0,100)")
	}
	if d.InstallmentsWithoutInterest > d.MaxInstallments {
		return nil, errors.New("payment.defaults.installments_without_interest exceeds max_installments")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.SignatureTolerance <= 0 {
		cfg.Gateway.SignatureTolerance = 5 * time.Minute
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "elearning"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "BRL"
	}
	if cfg.Payment.Defaults.MaxInstallments <= 0 {
		cfg.Payment.Defaults.MaxInstallments = 12
	}
	if cfg.Payment.Defaults.PixExpirationMinutes <= 0 {
		cfg.Payment.Defaults.PixExpirationMinutes = 30
	}
	if cfg.Checkout.RateWindow <= 0 {
		cfg.Checkout.RateWindow = time.Minute
	}
	if cfg.Scheduler.PixExpiryInterval <= 0 {
		cfg.Scheduler.PixExpiryInterval = time.Minute
	}
	if cfg.Scheduler.PixReconcileInterval <= 0 {
		cfg.Scheduler.PixReconcileInterval = 2 * time.Minute
	}
	if cfg.Scheduler.PixReconcileStale <= 0 {
		cfg.Scheduler.PixReconcileStale = 5 * time.Minute
	}
	if cfg.Scheduler.ReminderInterval <= 0 {
		cfg.Scheduler.ReminderInterval = 6 * time.Hour
	}
	if cfg.Scheduler.ReminderWithinDays <= 0 {
		cfg.Scheduler.ReminderWithinDays = 3
	}
	if cfg.Scheduler.GaugeInterval <= 0 {
		cfg.Scheduler.GaugeInterval = time.Minute
	}
	if cfg.Workers.Notifications <= 0 {
		cfg.Workers.Notifications = 4
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
