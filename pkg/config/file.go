package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".sentinellens.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".sentinellens.yml"
)

// FileConfig represents values loaded from a .sentinellens.yaml file.
type FileConfig struct {
	WorkspaceURL  string   `yaml:"workspace_url"`
	WorkspaceID   string   `yaml:"workspace_id"`
	Region        string   `yaml:"region"`
	ExcludeTables []string `yaml:"exclude_tables"`
	Format        string   `yaml:"format"`
	Timeout       string   `yaml:"timeout"`
	Lookback      string   `yaml:"lookback"`
	Snapshot      string   `yaml:"snapshot"`
	StorePath     string   `yaml:"store_path"`
	RateLimit     *int     `yaml:"rate_limit"`
	Concurrency   *int     `yaml:"concurrency"`
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeTables = normalizeList(fc.ExcludeTables)
	fc.WorkspaceURL = strings.TrimSpace(fc.WorkspaceURL)
	fc.WorkspaceID = strings.TrimSpace(fc.WorkspaceID)
	fc.Region = strings.TrimSpace(fc.Region)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.Lookback = strings.TrimSpace(fc.Lookback)
	fc.Snapshot = strings.TrimSpace(fc.Snapshot)
	fc.StorePath = strings.TrimSpace(fc.StorePath)
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
