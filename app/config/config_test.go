package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Limits.FreeDaily != 3 {
		t.Errorf("free_daily = %d, want 3", cfg.Limits.FreeDaily)
	}
	if cfg.Mint.Spacing != time.Second {
		t.Errorf("mint.spacing = %v, want 1s", cfg.Mint.Spacing)
	}
	if cfg.Generation.MaxAttempts != 40 || cfg.Generation.InitialDelay != 2*time.Second || cfg.Generation.MaxDelay != 8*time.Second {
		t.Errorf("poll defaults = %+v", cfg.Generation)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"spacing below 1s":  func(c *Config) { c.Mint.Spacing = 500 * time.Millisecond },
		"no port":           func(c *Config) { c.Server.Port = "" },
		"no jwt secret":     func(c *Config) { c.JWT.Secret = "" },
		"zero attempts":     func(c *Config) { c.Generation.MaxAttempts = 0 },
		"max below initial": func(c *Config) { c.Generation.MaxDelay = time.Second },
		"negative cap":      func(c *Config) { c.Limits.FreeDaily = -1 },
		"unknown store":     func(c *Config) { c.Limits.Store = "redis" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig(t)
			mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("TRACK_FORGE_LIMITS_FREE_DAILY", "5")

	viper.SetEnvPrefix("TRACK_FORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if got := viper.GetInt("limits.free_daily"); got != 5 {
		t.Fatalf("free_daily = %d, want 5", got)
	}
}
