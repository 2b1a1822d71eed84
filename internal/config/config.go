// Package config loads pins settings from a YAML file, PINS_* environment
// variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/git-pkgs/pins/internal/logger"
)

// Config holds pins settings.
type Config struct {
	Package    string        `mapstructure:"package"`
	DevSource  string        `mapstructure:"dev_source"`
	CacheDir   string        `mapstructure:"cache_dir"`
	PyPIURL    string        `mapstructure:"pypi_url"`
	Mirror     string        `mapstructure:"mirror"`
	UserAgent  string        `mapstructure:"user_agent"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log_level"`

	// BreakerThreshold is the number of consecutive failures that stops
	// requests to a host for BreakerCooldown.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Package:    "tahoe-lafs",
		CacheDir:   defaultCacheDir(),
		PyPIURL:    "https://pypi.org",
		UserAgent:  "pins/1.0",
		MaxRetries: 5,
		Timeout:    30 * time.Second,
		LogLevel:   "info",

		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pins")
	}
	return filepath.Join(os.TempDir(), "pins")
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("package", d.Package)
	v.SetDefault("dev_source", d.DevSource)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("pypi_url", d.PyPIURL)
	v.SetDefault("mirror", d.Mirror)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("breaker_threshold", d.BreakerThreshold)
	v.SetDefault("breaker_cooldown", d.BreakerCooldown)

	v.SetEnvPrefix("PINS")
	v.AutomaticEnv()
	return v
}

// Load reads path into v and returns the validated result. With an empty
// path, $XDG_CONFIG_HOME/pins/config.yaml is used if it exists.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "pins"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Package == "" {
		return errors.New("package is required")
	}
	if c.CacheDir == "" {
		return errors.New("cache_dir is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("breaker_threshold must be at least 1, got %d", c.BreakerThreshold)
	}
	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker_cooldown must be positive, got %s", c.BreakerCooldown)
	}
	for key, raw := range map[string]string{"pypi_url": c.PyPIURL, "mirror": c.Mirror} {
		if raw == "" && key == "mirror" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid URL %q", key, raw)
		}
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
