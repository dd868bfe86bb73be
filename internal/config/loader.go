package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the current
// and home directories.
const DefaultConfigFile = ".ghcrawler"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Every field is optional; zero values
// leave the corresponding default untouched.
type File struct {
	Proxies           []string          `yaml:"proxies,omitempty"`
	MaxConcurrency    int               `yaml:"max_concurrency,omitempty"`
	MaxRetries        *int              `yaml:"max_retries,omitempty"`
	Timeout           time.Duration     `yaml:"timeout,omitempty"`
	BackoffBase       time.Duration     `yaml:"backoff_base,omitempty"`
	BackoffCap        time.Duration     `yaml:"backoff_cap,omitempty"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	MaxBodySize       int64             `yaml:"max_body_size,omitempty"`
	UserAgent         string            `yaml:"user_agent,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	DBDir             string            `yaml:"db_dir,omitempty"`
}

// LoadConfigFile reads a YAML configuration file.
// It returns ErrConfigNotFound if the file does not exist.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// The search order is:
//  1. configPath, if given (and nothing else)
//  2. .ghcrawler in the current directory
//  3. .ghcrawler in the home directory
//  4. config.yaml in the XDG config directory
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply copies the values set in the file onto cfg.
// Headers are merged; a user_agent entry overrides the User-Agent header.
func (f *File) Apply(cfg *Config) {
	if len(f.Proxies) > 0 {
		cfg.Proxies = append([]string(nil), f.Proxies...)
	}
	if f.MaxConcurrency != 0 {
		cfg.MaxConcurrency = f.MaxConcurrency
	}
	if f.MaxRetries != nil {
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.BackoffBase != 0 {
		cfg.BackoffBase = f.BackoffBase
	}
	if f.BackoffCap != 0 {
		cfg.BackoffCap = f.BackoffCap
	}
	if f.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = f.RequestsPerSecond
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if f.DBDir != "" {
		cfg.DBDir = f.DBDir
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.UserAgent != "" {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, 1)
		}
		cfg.Headers["User-Agent"] = f.UserAgent
	}
}
