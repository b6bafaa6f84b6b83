package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackupConfig holds encrypted-backup settings for S3-compatible storage.
// Backups are disabled unless Bucket and Passphrase are both set.
type BackupConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Passphrase string `yaml:"passphrase"`
	// Cron is a cron expression for scheduled backups, e.g. "0 3 * * *".
	Cron string `yaml:"cron"`
}

// PushConfig holds VAPID keys for web push reminders. Push is disabled
// when either key is empty.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	// LeadMinutes is how many minutes before a task's start time the
	// reminder fires.
	LeadMinutes int `yaml:"lead_minutes"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`

	// Timezone is the IANA zone used for all calendar-day arithmetic
	// (day bucketing, holiday lookup, grid ranges). Timestamps are
	// stored in UTC; this zone only decides which calendar day a
	// timestamp belongs to.
	Timezone string `yaml:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// SessionTTLDays is the lifetime of a login session.
	SessionTTLDays int `yaml:"session_ttl_days"`

	// TrustProxyHeaders enables X-Forwarded-For for client IP detection.
	// Only set this when the service sits behind a reverse proxy that
	// strips the header from incoming requests; otherwise clients can
	// forge it.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	// DetachOnEdit controls the default for editing a single instance of
	// a recurring task: when true the edited instance is removed from its
	// recurrence group. A request-level detach flag overrides this.
	DetachOnEdit bool `yaml:"detach_on_edit"`

	Backup BackupConfig `yaml:"backup"`
	Push   PushConfig   `yaml:"push"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		DBPath:         "iljeong.db",
		Timezone:       "Asia/Seoul",
		LogLevel:       "info",
		SessionTTLDays: 30,
		DetachOnEdit:   false,
		Backup: BackupConfig{
			Region: "auto",
			Cron:   "0 3 * * *",
		},
		Push: PushConfig{
			LeadMinutes: 30,
		},
	}
}

// Load reads the config file at path, creating it with defaults on first
// run. A .env file in the working directory and process environment
// variables override file values.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only exists in dev setups.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path with 0600 permissions, since it may
// contain storage credentials and the backup passphrase.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Listen, "ILJEONG_LISTEN")
	setStr(&cfg.DBPath, "ILJEONG_DB_PATH")
	setStr(&cfg.Timezone, "ILJEONG_TIMEZONE")
	setStr(&cfg.LogLevel, "ILJEONG_LOG_LEVEL")
	setStr(&cfg.Backup.Endpoint, "ILJEONG_BACKUP_ENDPOINT")
	setStr(&cfg.Backup.Bucket, "ILJEONG_BACKUP_BUCKET")
	setStr(&cfg.Backup.Region, "ILJEONG_BACKUP_REGION")
	setStr(&cfg.Backup.AccessKey, "ILJEONG_BACKUP_ACCESS_KEY")
	setStr(&cfg.Backup.SecretKey, "ILJEONG_BACKUP_SECRET_KEY")
	setStr(&cfg.Backup.Passphrase, "ILJEONG_BACKUP_PASSPHRASE")
	setStr(&cfg.Backup.Cron, "ILJEONG_BACKUP_CRON")
	setStr(&cfg.Push.VAPIDPublicKey, "ILJEONG_VAPID_PUBLIC_KEY")
	setStr(&cfg.Push.VAPIDPrivateKey, "ILJEONG_VAPID_PRIVATE_KEY")

	if v := os.Getenv("ILJEONG_TRUST_PROXY_HEADERS"); v != "" {
		cfg.TrustProxyHeaders = v == "1" || v == "true"
	}
	if v := os.Getenv("ILJEONG_SESSION_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLDays = n
		}
	}
	if v := os.Getenv("ILJEONG_PUSH_LEAD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Push.LeadMinutes = n
		}
	}
}
