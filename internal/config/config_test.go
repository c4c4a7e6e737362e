package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG", "DATABASE_URL", "HTTP_ADDR", "TELEGRAM_TOKEN", "REPORT_INTERVAL_HOURS",
		"REPORT_TIME", "NOTIFY_QUEUE_SIZE", "ADMIN_USERNAME", "ADMIN_EMAIL", "ADMIN_PASSWORD", "DEBUG",
	} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "task_tracker.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.NotifyQueueSize != 256 {
		t.Errorf("NotifyQueueSize = %d", cfg.NotifyQueueSize)
	}
	if cfg.ReportInterval != 0 || cfg.BotEnabled() || cfg.SeedAdmin() || cfg.Debug {
		t.Errorf("optional features enabled by default: %+v", cfg)
	}
	if cfg.Admin.Username != "admin" || cfg.Admin.Email != "admin@example.com" {
		t.Errorf("Admin = %+v", cfg.Admin)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TT_DATABASE_URL", "/tmp/tt.db")
	t.Setenv("TT_TELEGRAM_TOKEN", " token ")
	t.Setenv("TT_REPORT_INTERVAL_HOURS", "1.5")
	t.Setenv("TT_NOTIFY_QUEUE_SIZE", "16")
	t.Setenv("TT_ADMIN_PASSWORD", "secret")
	t.Setenv("TT_DEBUG", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "/tmp/tt.db" || cfg.TelegramToken != "token" || cfg.NotifyQueueSize != 16 || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ReportInterval != 90*time.Minute {
		t.Errorf("ReportInterval = %v, want 1h30m", cfg.ReportInterval)
	}
	if !cfg.BotEnabled() || !cfg.SeedAdmin() {
		t.Errorf("expected bot and admin seeding enabled")
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	content := "database_url: file.db\nhttp_addr: \":9000\"\nreport_time: \"07:45\"\nnotify_queue_size: 32\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TT_HTTP_ADDR", ":9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "file.db" || cfg.ReportTime != "07:45" || cfg.NotifyQueueSize != 32 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Errorf("HTTPAddr = %q, want env override", cfg.HTTPAddr)
	}

	t.Setenv("TT_CONFIG", path)
	viaEnv, err := Load("")
	if err != nil {
		t.Fatalf("Load via TT_CONFIG: %v", err)
	}
	if viaEnv.DatabaseURL != "file.db" {
		t.Errorf("TT_CONFIG not honoured: %+v", viaEnv)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"negative interval", "TT_REPORT_INTERVAL_HOURS", "-2"},
		{"garbage interval", "TT_REPORT_INTERVAL_HOURS", "often"},
		{"zero queue", "TT_NOTIFY_QUEUE_SIZE", "0"},
		{"bad report time", "TT_REPORT_TIME", "7pm"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(""); err == nil {
				t.Errorf("Load accepted %s=%q", tc.key, tc.val)
			}
		})
	}

	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted a missing config file")
	}
}

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"":    0,
		"0":   0,
		"2":   2 * time.Hour,
		"0.5": 30 * time.Minute,
	}
	for raw, want := range cases {
		got, err := parseInterval(raw)
		if err != nil || got != want {
			t.Errorf("parseInterval(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
}
