// Package config loads the batch tool configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors the photoalign.yaml layout.
type Config struct {
	Mode        string  `mapstructure:"mode"`        // greedy | strict
	Refinement  bool    `mapstructure:"refinement"`  // second matching pass on pre-warped image
	Perspective bool    `mapstructure:"perspective"` // allow the projective model
	SimpleMatch bool    `mapstructure:"simple_match"`
	AspectRatio string  `mapstructure:"aspect_ratio"` // "W:H", empty keeps master aspect
	Border      string  `mapstructure:"border"`       // mirror+feather | opaque-black
	Feather     int     `mapstructure:"feather"`      // blur kernel, 0 = default
	Workers     int     `mapstructure:"workers"`
	Ensemble    bool    `mapstructure:"ensemble"`
	Report      string  `mapstructure:"report"` // sqlite report path, empty disables
	Logging     Logging `mapstructure:"logging"`
}

// Logging holds logger settings.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode:        "strict",
		Refinement:  true,
		Perspective: true,
		Border:      "mirror+feather",
		Workers:     1,
		Ensemble:    true,
		Logging:     Logging{Level: "info", Format: "text"},
	}
}

// Load reads the configuration file at path (optional) layered over
// defaults and PHOTOALIGN_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("mode", def.Mode)
	v.SetDefault("refinement", def.Refinement)
	v.SetDefault("perspective", def.Perspective)
	v.SetDefault("simple_match", def.SimpleMatch)
	v.SetDefault("aspect_ratio", def.AspectRatio)
	v.SetDefault("border", def.Border)
	v.SetDefault("feather", def.Feather)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("ensemble", def.Ensemble)
	v.SetDefault("report", def.Report)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetEnvPrefix("PHOTOALIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ParseAspect parses the "W:H" aspect ratio string. An empty string means
// keep the master canvas aspect and returns (0, 0).
func (c *Config) ParseAspect() (w, h int, err error) {
	if c.AspectRatio == "" {
		return 0, 0, nil
	}
	parts := strings.Split(c.AspectRatio, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("aspect ratio %q: want W:H", c.AspectRatio)
	}
	w, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", c.AspectRatio, err)
	}
	h, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", c.AspectRatio, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("aspect ratio %q: dimensions must be positive", c.AspectRatio)
	}
	return w, h, nil
}
