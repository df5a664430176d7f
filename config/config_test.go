package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ATTENDANCE_API_BASE", "https://api.example.com")
	t.Setenv("DB_DSN", "")
	t.Setenv("AUTH_TABLE", "")
	t.Setenv("USER_TABLE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBDsn == "" {
		t.Errorf("expected default DSN, got empty")
	}
	if cfg.AuthTable != "auth_state" || cfg.UserTable != "user_records" {
		t.Errorf("unexpected table defaults: %q, %q", cfg.AuthTable, cfg.UserTable)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected default HTTP addr: %q", cfg.HTTPAddr)
	}
	if cfg.ReconnectMinBackoff != time.Second || cfg.ReconnectMaxBackoff != time.Minute {
		t.Errorf("unexpected backoff defaults: %v, %v", cfg.ReconnectMinBackoff, cfg.ReconnectMaxBackoff)
	}
}

func TestLoadRequiresAttendanceBase(t *testing.T) {
	if err := os.Unsetenv("ATTENDANCE_API_BASE"); err != nil {
		t.Fatalf("failed to unset ATTENDANCE_API_BASE: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Errorf("expected error when ATTENDANCE_API_BASE is missing")
	}
}

func TestLoadParsesBackoff(t *testing.T) {
	t.Setenv("ATTENDANCE_API_BASE", "https://api.example.com")
	t.Setenv("RECONNECT_MIN_BACKOFF", "5s")
	t.Setenv("RECONNECT_MAX_BACKOFF", "2m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ReconnectMinBackoff != 5*time.Second || cfg.ReconnectMaxBackoff != 2*time.Minute {
		t.Errorf("unexpected backoff values: %v, %v", cfg.ReconnectMinBackoff, cfg.ReconnectMaxBackoff)
	}

	t.Setenv("RECONNECT_MIN_BACKOFF", "soon")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for malformed duration")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("ATTENDANCE_API_BASE", "https://api.example.com")
	t.Setenv("TWITCH_CHANNEL", "chan")
	t.Setenv("TWITCH_BOT_USERNAME", "bot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:token")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}
	if err := os.Unsetenv("TWITCH_CHANNEL"); err != nil {
		t.Fatalf("failed to unset TWITCH_CHANNEL: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when missing twitch envs")
	}
}
