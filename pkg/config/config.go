// Package config provides configuration loading and management for parcpak.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/voxelai/parcpak/internal/models"
	"github.com/voxelai/parcpak/pkg/catalog"
	"github.com/voxelai/parcpak/pkg/fetch"
	"github.com/voxelai/parcpak/pkg/table"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Fetch parameters
	Fetch struct {
		// CacheRoot is the directory atlas files are cached in
		CacheRoot string `yaml:"cacheRoot"`

		// BaseURL is the root of the atlas repository
		BaseURL string `yaml:"baseURL"`

		// TimeoutSeconds bounds each HTTP transfer; 0 means no timeout
		TimeoutSeconds int `yaml:"timeoutSeconds"`

		// Overwrite forces atlas files to be downloaded again
		Overwrite bool `yaml:"overwrite"`
	} `yaml:"fetch"`

	// Reduction parameters
	Reduce struct {
		// Metric is the per-region statistic
		Metric string `yaml:"metric"`

		// Resolution selects the 1mm or 2mm atlases
		Resolution int `yaml:"resolution"`
	} `yaml:"reduce"`

	// Output parameters
	Output struct {
		// Path is the table destination; empty writes to stdout
		Path string `yaml:"path"`

		// Format is csv or arrow
		Format string `yaml:"format"`

		// PreviewDir receives QC slice previews when set
		PreviewDir string `yaml:"previewDir"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level"`

		// Mode is "development" (console) or "production" (JSON)
		Mode string `yaml:"mode"`

		// File sends logs to a rotating file instead of stderr
		File string `yaml:"file"`

		// MaxSizeMB is the size at which the log file is rotated
		MaxSizeMB int `yaml:"maxSizeMB"`

		// MaxAgeDays is how long rotated log files are kept
		MaxAgeDays int `yaml:"maxAgeDays"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Cache under the home directory, resolved when the fetcher is built
	cfg.Fetch.CacheRoot = filepath.Join("~", fetch.DefaultCacheDir)
	cfg.Fetch.BaseURL = catalog.DefaultBaseURL
	cfg.Fetch.TimeoutSeconds = 0
	cfg.Fetch.Overwrite = false

	cfg.Reduce.Metric = string(models.StatMean)
	cfg.Reduce.Resolution = int(models.Res2mm)

	cfg.Output.Format = table.FormatCSV

	cfg.Logging.Level = "info"
	cfg.Logging.Mode = "development"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxAgeDays = 28

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the metric, resolution and output format
func (c *Config) Validate() error {
	if _, err := models.ParseStatKind(c.Reduce.Metric); err != nil {
		return err
	}
	if err := models.Resolution(c.Reduce.Resolution).Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case table.FormatCSV, table.FormatArrow:
	default:
		return fmt.Errorf("%w: output format %q", models.ErrInvalidArgument, c.Output.Format)
	}
	return nil
}

// FetchConfig returns the fetcher configuration with "~" expanded
func (c *Config) FetchConfig() (fetch.Config, error) {
	root, err := ExpandHome(c.Fetch.CacheRoot)
	if err != nil {
		return fetch.Config{}, err
	}
	return fetch.Config{CacheRoot: root, BaseURL: c.Fetch.BaseURL}, nil
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
