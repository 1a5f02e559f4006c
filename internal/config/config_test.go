package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := load(noEnvFile(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DatabasePath != "merchtrax.db" {
		t.Errorf("DatabasePath = %q, want merchtrax.db", cfg.DatabasePath)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
	if cfg.AlarmStrategy != AlarmStrategyBurst || cfg.AlarmBurstCount != 10 {
		t.Errorf("alarm strategy = %s x%d, want burst x10", cfg.AlarmStrategy, cfg.AlarmBurstCount)
	}
	if cfg.AlarmBurstSpacing != 500*time.Millisecond || cfg.AlarmMinLead != time.Second {
		t.Errorf("alarm timing = %v/%v, want 500ms/1s", cfg.AlarmBurstSpacing, cfg.AlarmMinLead)
	}
	if cfg.TimerTickInterval != time.Second {
		t.Errorf("TimerTickInterval = %v, want 1s", cfg.TimerTickInterval)
	}
	if cfg.TimerPersistPaused {
		t.Error("TimerPersistPaused should default to false")
	}
	if cfg.LoginRate != 0.2 || cfg.LoginBurst != 5 {
		t.Errorf("login limit = %v/%d, want 0.2/5", cfg.LoginRate, cfg.LoginBurst)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("ALARM_STRATEGY", "Single")
	t.Setenv("ALARM_BURST_SPACING", "250ms")
	t.Setenv("TIMER_TICK_INTERVAL", "500ms")
	t.Setenv("TIMER_PERSIST_PAUSED", "true")

	cfg, err := load(noEnvFile(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.CookieSecure {
		t.Errorf("unexpected server settings %+v", cfg)
	}
	if cfg.AlarmStrategy != AlarmStrategySingle || cfg.AlarmBurstSpacing != 250*time.Millisecond {
		t.Errorf("unexpected alarm settings %s %v", cfg.AlarmStrategy, cfg.AlarmBurstSpacing)
	}
	if cfg.TimerTickInterval != 500*time.Millisecond || !cfg.TimerPersistPaused {
		t.Errorf("unexpected timer settings %v %v", cfg.TimerTickInterval, cfg.TimerPersistPaused)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=" + testSecret + "\nDATABASE_PATH=/tmp/visits.db\nALARM_BURST_COUNT=3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "/tmp/visits.db" || cfg.AlarmBurstCount != 3 {
		t.Errorf("env file not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 32"},
		{"bcrypt too low", map[string]string{"JWT_SECRET": testSecret, "BCRYPT_COST": "3"}, "BCRYPT_COST"},
		{"bcrypt too high", map[string]string{"JWT_SECRET": testSecret, "BCRYPT_COST": "15"}, "BCRYPT_COST"},
		{"unknown strategy", map[string]string{"JWT_SECRET": testSecret, "ALARM_STRATEGY": "chime"}, "ALARM_STRATEGY"},
		{"empty burst", map[string]string{"JWT_SECRET": testSecret, "ALARM_BURST_COUNT": "0"}, "ALARM_BURST_COUNT"},
		{"zero tick", map[string]string{"JWT_SECRET": testSecret, "TIMER_TICK_INTERVAL": "0s"}, "TIMER_TICK_INTERVAL"},
		{"no login burst", map[string]string{"JWT_SECRET": testSecret, "LOGIN_BURST": "0"}, "LOGIN_BURST"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := load(noEnvFile(t))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
