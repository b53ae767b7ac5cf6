// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Grading GradingConfig `toml:"grading"`
	Display DisplayConfig `toml:"display"`
	Catalog CatalogConfig `toml:"catalog"`
}

// GradingConfig maps grading-related settings.
type GradingConfig struct {
	MaxGrade        *float64 `toml:"max-grade"`
	PrimaryMaxGrade *float64 `toml:"primary-max-grade"`
	Decimals        *int     `toml:"decimals"`
}

// DisplayConfig maps display settings.
type DisplayConfig struct {
	DarkMode *bool `toml:"dark-mode"`
}

// CatalogConfig points at an alternative catalog file.
type CatalogConfig struct {
	Path *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values that can never be used.
func (c FileConfig) Validate() error {
	if v := c.Grading.MaxGrade; v != nil && *v <= 0 {
		return fmt.Errorf("grading.max-grade must be positive, got %v", *v)
	}
	if v := c.Grading.PrimaryMaxGrade; v != nil && *v <= 0 {
		return fmt.Errorf("grading.primary-max-grade must be positive, got %v", *v)
	}
	if v := c.Grading.Decimals; v != nil && (*v < 0 || *v > 4) {
		return fmt.Errorf("grading.decimals must be between 0 and 4, got %d", *v)
	}
	return nil
}
