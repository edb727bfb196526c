// Package config loads and validates mailproxy configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. MAILPROXY_BACKUP_DRIVER.
const EnvPrefix = "MAILPROXY"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Listmonk ListmonkConfig `mapstructure:"listmonk"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// ListmonkConfig points at the subscriber backend.
type ListmonkConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	SynthesizeName bool   `mapstructure:"synthesize_name"`
}

// BackupConfig selects the backup store.
type BackupConfig struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	Table          string `mapstructure:"table"`
	RedisURL       string `mapstructure:"redis_url"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	Prefix         string `mapstructure:"prefix"`
	HashKey        string `mapstructure:"hash_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// NotifyConfig selects the notification channel.
type NotifyConfig struct {
	Driver         string `mapstructure:"driver"`
	WebhookURL     string `mapstructure:"webhook_url"`
	Username       string `mapstructure:"username"`
	ProjectID      string `mapstructure:"project_id"`
	Topic          string `mapstructure:"topic"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// legacyEnv maps keys to the bare variable names older deployments export.
var legacyEnv = map[string]string{
	"server.port":        "PORT",
	"listmonk.username":  "lmuser",
	"listmonk.password":  "lmpass",
	"notify.webhook_url": "discordWebHookURL",
}

// Load builds a Config from an optional file plus the environment. Prefixed
// variables win over the legacy names.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Every key gets a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("listmonk.base_url", "http://127.0.0.1:9000")
	v.SetDefault("listmonk.username", "")
	v.SetDefault("listmonk.password", "")
	v.SetDefault("listmonk.timeout_seconds", 10)
	v.SetDefault("listmonk.synthesize_name", true)
	v.SetDefault("backup.driver", "memory")
	v.SetDefault("backup.dsn", "")
	v.SetDefault("backup.table", "subscribers")
	v.SetDefault("backup.redis_url", "")
	v.SetDefault("backup.gcs_bucket", "")
	v.SetDefault("backup.prefix", "mailproxy")
	v.SetDefault("backup.hash_key", "")
	v.SetDefault("backup.timeout_seconds", 5)
	v.SetDefault("notify.driver", "webhook")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.username", "MailProxy")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("notify.timeout_seconds", 5)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Listmonk.BaseURL) == "" {
		return fmt.Errorf("listmonk.base_url must be set")
	}
	if c.Listmonk.TimeoutSeconds <= 0 {
		return fmt.Errorf("listmonk.timeout_seconds must be > 0")
	}
	if c.Backup.TimeoutSeconds <= 0 {
		return fmt.Errorf("backup.timeout_seconds must be > 0")
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify.timeout_seconds must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Backup.Driver)) {
	case "", "none", "memory":
	case "postgres":
		if c.Backup.DSN == "" {
			return fmt.Errorf("backup.dsn must be set when backup.driver is postgres")
		}
	case "redis":
		if c.Backup.RedisURL == "" {
			return fmt.Errorf("backup.redis_url must be set when backup.driver is redis")
		}
	case "gcs":
		if c.Backup.GCSBucket == "" {
			return fmt.Errorf("backup.gcs_bucket must be set when backup.driver is gcs")
		}
	default:
		return fmt.Errorf("backup.driver %q is not supported", c.Backup.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Notify.Driver)) {
	case "", "none", "log", "webhook":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify.driver is pubsub")
		}
	default:
		return fmt.Errorf("notify.driver %q is not supported", c.Notify.Driver)
	}
	return nil
}

// ListmonkTimeout returns the per-call forward timeout.
func (c Config) ListmonkTimeout() time.Duration {
	return time.Duration(c.Listmonk.TimeoutSeconds) * time.Second
}

// BackupTimeout returns the per-call backup timeout.
func (c Config) BackupTimeout() time.Duration {
	return time.Duration(c.Backup.TimeoutSeconds) * time.Second
}

// NotifyTimeout returns the per-call notification timeout.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
