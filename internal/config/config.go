// Package config loads layered amanvis configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigName is the per-corpus configuration file.
	ProjectConfigName = ".amanvis.yaml"

	// DataDirName is the default index directory inside the corpus root.
	DataDirName = ".amanvis"
)

// Config is the complete amanvis configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PathsConfig selects candidate images.
type PathsConfig struct {
	// Extensions accepted, case-insensitive.
	Extensions []string `yaml:"extensions" json:"extensions"`

	// ExcludePrefixes rejects file names with these prefixes (thumbnails).
	ExcludePrefixes []string `yaml:"exclude_prefixes" json:"exclude_prefixes"`

	// SkipDirs are directory names never entered.
	SkipDirs []string `yaml:"skip_dirs" json:"skip_dirs"`

	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`
}

// IndexConfig selects the index layout.
type IndexConfig struct {
	// Backend is "sqlite" or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// Builder is a catalog name, see `amanvis builders`.
	Builder string `yaml:"builder" json:"builder"`

	Recursive bool `yaml:"recursive" json:"recursive"`

	// Append augments the existing index instead of replacing it.
	Append bool `yaml:"append" json:"append"`

	// Compression for compact payloads: none, lz4, zstd.
	Compression string `yaml:"compression" json:"compression"`

	// Dir holds the index. Empty means <root>/.amanvis.
	Dir string `yaml:"dir" json:"dir"`
}

// PerformanceConfig tunes throughput.
type PerformanceConfig struct {
	// Workers acquiring and building in parallel; 1 is sequential.
	Workers int `yaml:"workers" json:"workers"`

	// CacheSize is the number of records kept by the duplicate-image cache.
	// Zero disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// IOLimitBytesPerSec throttles image reads. Zero is unlimited.
	IOLimitBytesPerSec int `yaml:"io_limit_bytes_per_sec" json:"io_limit_bytes_per_sec"`

	// WatchDebounce coalesces filesystem events in watch mode.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Extensions:      []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"},
			ExcludePrefixes: []string{"tn_"},
			SkipDirs:        []string{".git", DataDirName},
		},
		Index: IndexConfig{
			Backend:     "sqlite",
			Builder:     "default",
			Recursive:   true,
			Compression: "none",
		},
		Performance: PerformanceConfig{
			Workers:       runtime.NumCPU(),
			CacheSize:     512,
			WatchDebounce: "500ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file:
// $XDG_CONFIG_HOME/amanvis/config.yaml or ~/.config/amanvis/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanvis", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanvis", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanvis", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project configuration file under dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigName)
}

// Load resolves configuration for the corpus at dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/amanvis/config.yaml)
//  3. Project config (.amanvis.yaml in dir)
//  4. Environment variables (AMANVIS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays .amanvis.yaml, or .amanvis.yml as a fallback.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".amanvis.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.overlayYAML(path)
		}
	}
	return nil
}

// overlayYAML decodes path over c. Keys absent from the file keep their
// current value, so an explicit false or 0 in the file wins.
func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	next := *c
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	*c = next
	return nil
}

// applyEnvOverrides applies AMANVIS_* environment variables.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANVIS_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("AMANVIS_BUILDER"); v != "" {
		c.Index.Builder = v
	}
	if v := os.Getenv("AMANVIS_COMPRESSION"); v != "" {
		c.Index.Compression = v
	}
	if v := os.Getenv("AMANVIS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Performance.Workers = n
		}
	}
	if v := os.Getenv("AMANVIS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// DataDir returns the index directory for a corpus root.
func (c *Config) DataDir(root string) string {
	if c.Index.Dir == "" {
		return filepath.Join(root, DataDirName)
	}
	if filepath.IsAbs(c.Index.Dir) {
		return c.Index.Dir
	}
	return filepath.Join(root, c.Index.Dir)
}

// Debounce returns the parsed watch debounce.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.Performance.WatchDebounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Paths.Extensions) == 0 {
		return fmt.Errorf("paths.extensions must not be empty")
	}

	switch strings.ToLower(c.Index.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %s", c.Index.Backend)
	}

	switch strings.ToLower(c.Index.Compression) {
	case "", "none", "lz4", "zstd":
	default:
		return fmt.Errorf("index.compression must be 'none', 'lz4' or 'zstd', got %s", c.Index.Compression)
	}

	if c.Index.Builder == "" {
		return fmt.Errorf("index.builder must not be empty")
	}

	if c.Performance.Workers < 0 {
		return fmt.Errorf("performance.workers must be non-negative, got %d", c.Performance.Workers)
	}
	if c.Performance.CacheSize < 0 {
		return fmt.Errorf("performance.cache_size must be non-negative, got %d", c.Performance.CacheSize)
	}
	if c.Performance.IOLimitBytesPerSec < 0 {
		return fmt.Errorf("performance.io_limit_bytes_per_sec must be non-negative, got %d", c.Performance.IOLimitBytesPerSec)
	}
	if c.Performance.WatchDebounce != "" {
		if _, err := time.ParseDuration(c.Performance.WatchDebounce); err != nil {
			return fmt.Errorf("performance.watch_debounce: %w", err)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
