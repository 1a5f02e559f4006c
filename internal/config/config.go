// Package config loads and validates MerchTrax settings from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AlarmStrategyBurst  = "burst"
	AlarmStrategySingle = "single"
)

// Config holds application configuration.
type Config struct {
	Port         string `mapstructure:"PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	// JWTSecret signs auth cookies; at least 32 characters for HS256.
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	BcryptCost   int    `mapstructure:"BCRYPT_COST"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	// LoginRate is the sustained login attempts per second allowed from one
	// client address, with bursts of up to LoginBurst.
	LoginRate  float64 `mapstructure:"LOGIN_RATE"`
	LoginBurst int     `mapstructure:"LOGIN_BURST"`

	// AlarmStrategy is "burst" (AlarmBurstCount alerts, AlarmBurstSpacing
	// apart) or "single" (one alert at the deadline).
	AlarmStrategy     string        `mapstructure:"ALARM_STRATEGY"`
	AlarmBurstCount   int           `mapstructure:"ALARM_BURST_COUNT"`
	AlarmBurstSpacing time.Duration `mapstructure:"ALARM_BURST_SPACING"`
	AlarmMinLead      time.Duration `mapstructure:"ALARM_MIN_LEAD"`

	TimerTickInterval time.Duration `mapstructure:"TIMER_TICK_INTERVAL"`
	// TimerPersistPaused keeps a paused countdown's remaining time across a
	// restart. When false, pausing clears the durable record.
	TimerPersistPaused bool `mapstructure:"TIMER_PERSIST_PAUSED"`
}

// Load reads .env if present, then the environment, which wins.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "merchtrax.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("LOGIN_RATE", 0.2)
	v.SetDefault("LOGIN_BURST", 5)
	v.SetDefault("ALARM_STRATEGY", AlarmStrategyBurst)
	v.SetDefault("ALARM_BURST_COUNT", 10)
	v.SetDefault("ALARM_BURST_SPACING", 500*time.Millisecond)
	v.SetDefault("ALARM_MIN_LEAD", time.Second)
	v.SetDefault("TIMER_TICK_INTERVAL", time.Second)
	v.SetDefault("TIMER_PERSIST_PAUSED", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.AlarmStrategy = strings.ToLower(strings.TrimSpace(cfg.AlarmStrategy))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: PORT must be set")
	case c.JWTSecret == "":
		return errors.New("config: JWT_SECRET is required")
	case len(c.JWTSecret) < 32:
		return errors.New("config: JWT_SECRET must be at least 32 characters for HMAC-SHA256")
	case c.BcryptCost < 4 || c.BcryptCost > 14:
		return fmt.Errorf("config: BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost)
	case c.LoginRate <= 0 || c.LoginBurst < 1:
		return errors.New("config: LOGIN_RATE must be positive and LOGIN_BURST at least 1")
	case c.AlarmStrategy != AlarmStrategyBurst && c.AlarmStrategy != AlarmStrategySingle:
		return fmt.Errorf("config: ALARM_STRATEGY must be %q or %q, got %q", AlarmStrategyBurst, AlarmStrategySingle, c.AlarmStrategy)
	case c.AlarmBurstCount < 1:
		return errors.New("config: ALARM_BURST_COUNT must be at least 1")
	case c.AlarmBurstSpacing < 0 || c.AlarmMinLead < 0:
		return errors.New("config: alarm durations must not be negative")
	case c.TimerTickInterval <= 0:
		return errors.New("config: TIMER_TICK_INTERVAL must be positive")
	}
	return nil
}
