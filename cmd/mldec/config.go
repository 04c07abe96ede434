package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the mldec configuration file (~/.config/mldec/config.yaml).
type Config struct {
	// Output
	Format string `yaml:"format"` // "xml" or "json"

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "console" or "json"
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mldec", "config.yaml")
}

// loadConfig reads the config file. Returns a zero Config if the file
// doesn't exist.
func loadConfig() Config {
	var cfg Config
	path := configPath()
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(raw, &cfg)
	return cfg
}

// applyConfig fills command variables from the config file when the
// corresponding CLI flag was not explicitly set.
func applyConfig(c *cli.Command, cfg Config, format, logLevel, logFormat *string) {
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		*logFormat = cfg.LogFormat
	}
}
