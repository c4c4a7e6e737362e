package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the tracker reads.
const EnvPrefix = "TT"

// Config keeps runtime settings for the tracker.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	TelegramToken   string
	ReportInterval  time.Duration
	ReportTime      string
	NotifyQueueSize int
	Admin           AdminConfig
	Debug           bool
}

// AdminConfig describes the SystemAdministrator seeded on first start.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

// BotEnabled reports whether a Telegram token was configured.
func (c Config) BotEnabled() bool { return c.TelegramToken != "" }

// SeedAdmin reports whether the administrator account should be ensured.
func (c Config) SeedAdmin() bool { return c.Admin.Password != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "task_tracker.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("telegram_token", "")
	v.SetDefault("report_interval_hours", "0")
	v.SetDefault("report_time", "")
	v.SetDefault("notify_queue_size", 256)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_email", "admin@example.com")
	v.SetDefault("admin_password", "")
	v.SetDefault("debug", false)
}

// Load reads configuration from TT_* environment variables, overlaid on an
// optional YAML file. The file is path, or TT_CONFIG when path is empty.
// Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG"))
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	interval, err := parseInterval(strings.TrimSpace(v.GetString("report_interval_hours")))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		HTTPAddr:        strings.TrimSpace(v.GetString("http_addr")),
		TelegramToken:   strings.TrimSpace(v.GetString("telegram_token")),
		ReportInterval:  interval,
		ReportTime:      strings.TrimSpace(v.GetString("report_time")),
		NotifyQueueSize: v.GetInt("notify_queue_size"),
		Admin: AdminConfig{
			Username: strings.TrimSpace(v.GetString("admin_username")),
			Email:    strings.TrimSpace(v.GetString("admin_email")),
			Password: v.GetString("admin_password"),
		},
		Debug: v.GetBool("debug"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "task_tracker.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("notify_queue_size must be positive, got %d", c.NotifyQueueSize)
	}
	if c.ReportTime != "" {
		if _, err := time.Parse("15:04", c.ReportTime); err != nil {
			return fmt.Errorf("report_time %q: expected HH:MM", c.ReportTime)
		}
	}
	if c.SeedAdmin() && (c.Admin.Username == "" || c.Admin.Email == "") {
		return fmt.Errorf("admin_username and admin_email are required when admin_password is set")
	}
	return nil
}

// parseInterval reads a whole or fractional number of hours. Zero disables
// the periodic digest.
func parseInterval(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("report_interval_hours %q: %w", raw, err)
	}
	if hours < 0 {
		return 0, fmt.Errorf("report_interval_hours must not be negative, got %s", raw)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}
