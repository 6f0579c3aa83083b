package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for depaudit.
type Config struct {
	// Which files are scanned
	Scan ScanConfig `koanf:"scan" toml:"scan"`

	// Directory and file exclusions
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Reconciliation behaviour
	Audit AuditConfig `koanf:"audit" toml:"audit"`

	// Extraction cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// ScanConfig controls file discovery.
type ScanConfig struct {
	Extensions  []string `koanf:"extensions" toml:"extensions"`
	MaxFileSize int64    `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = no limit
	Workers     int      `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
}

// ExcludeConfig defines directory and file exclusions.
type ExcludeConfig struct {
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// AuditConfig controls how imports are reconciled against the manifest.
type AuditConfig struct {
	InstalledVersions bool     `koanf:"installed_versions" toml:"installed_versions"`
	SkipBuiltins      bool     `koanf:"skip_builtins" toml:"skip_builtins"`
	Ignore            []string `koanf:"ignore" toml:"ignore"`
	ResolveExtensions []string `koanf:"resolve_extensions" toml:"resolve_extensions"`
	FailOnIssues      bool     `koanf:"fail_on_issues" toml:"fail_on_issues"`
}

// CacheConfig controls caching of per-file extraction results.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				"node_modules",
				"dist",
				"build",
				"coverage",
				"test",
				"tests",
				"__tests__",
				".depaudit",
			},
			Patterns: []string{
				"*.min.js",
			},
			Gitignore: true,
		},
		Audit: AuditConfig{
			ResolveExtensions: []string{".js", ".ts", ".jsx", ".tsx"},
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".depaudit/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{
	"depaudit.toml",
	"depaudit.yaml",
	"depaudit.yml",
	"depaudit.json",
	".depaudit.toml",
	".depaudit.yaml",
	".depaudit.yml",
	".depaudit.json",
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads the given file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDir searches dir and dir/.depaudit for a config file.
func WithSearchDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = []string{dir, filepath.Join(dir, ".depaudit")}
	}
}

// LoadConfig finds, loads and validates a configuration. An explicit path
// that cannot be loaded is an error; a missing search result yields defaults.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dirs: []string{".", ".depaudit"}}
	for _, opt := range opts {
		opt(o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", o.path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", o.path, err)
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range o.dirs {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config %s: %w", path, err)
			}
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid config %s: %w", path, err)
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// LoadOrDefault loads the config file found under dir, or returns defaults
// when there is none. A file that exists but cannot be loaded is an error.
func LoadOrDefault(dir string) (*Config, error) {
	result, err := LoadConfig(WithSearchDir(dir))
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

var validFormats = map[string]bool{
	"text": true, "json": true, "markdown": true, "md": true, "toon": true, "yaml": true, "yml": true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Scan.Extensions) == 0 {
		errs = append(errs, errors.New("scan.extensions must not be empty"))
	}
	for _, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("scan.extensions: %q must start with a dot", ext))
		}
	}
	for _, ext := range c.Audit.ResolveExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("audit.resolve_extensions: %q must start with a dot", ext))
		}
	}
	if c.Scan.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("scan.max_file_size must be >= 0 (got %d)", c.Scan.MaxFileSize))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers must be >= 0 (got %d)", c.Scan.Workers))
	}
	for _, p := range c.Exclude.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude.patterns: %q: %w", p, err))
		}
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required when cache is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be >= 0 (got %d)", c.Cache.TTL))
	}
	if c.Output.Format != "" && !validFormats[strings.ToLower(c.Output.Format)] {
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}

	return errors.Join(errs...)
}

// IsExcludedDir reports whether a directory base name matches an excluded
// directory name, ignoring case.
func (c *Config) IsExcludedDir(name string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.EqualFold(dir, name) {
			return true
		}
	}
	return false
}

// HasExtension reports whether path has one of the scanned extensions, ignoring case.
func (c *Config) HasExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, allowed := range c.Scan.Extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// ShouldExclude checks if a file path should be skipped by pattern or
// directory exclusion. path is relative to the scan root.
func (c *Config) ShouldExclude(path string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, dir := range parts[:len(parts)-1] {
		if c.IsExcludedDir(dir) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
