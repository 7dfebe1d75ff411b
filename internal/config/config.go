// Package config loads sasspipe project settings from .sasspipe.yaml, SASSPIPE_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

// Config is the top-level configuration struct for sasspipe.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Paths         PathsConfig         `mapstructure:"paths"`
	Sass          SassConfig          `mapstructure:"sass"`
	Modules       ModulesConfig       `mapstructure:"modules"`
	Compiler      CompilerConfig      `mapstructure:"compiler"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Build         BuildConfig         `mapstructure:"build"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PathsConfig locates the project.
type PathsConfig struct {
	Root   string `mapstructure:"root"`
	Output string `mapstructure:"output"`
}

// SassConfig holds import resolution and compile settings.
type SassConfig struct {
	IncludePaths   []string `mapstructure:"include_paths"`
	Glob           bool     `mapstructure:"glob"`
	Extensions     []string `mapstructure:"extensions"`
	ModuleRules    bool     `mapstructure:"module_rules"`
	Optimize       bool     `mapstructure:"optimize"`
	SourceMapEmbed bool     `mapstructure:"source_map_embed"`
	Debug          bool     `mapstructure:"debug"`
}

// ModulesConfig holds CSS modules settings.
type ModulesConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Ignore     []string `mapstructure:"ignore"`
	ScopedName string   `mapstructure:"scoped_name"`
}

// CompilerConfig selects and tunes the sass binary.
type CompilerConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
	Args    []string      `mapstructure:"args"`
}

// CacheConfig holds compile cache settings.
type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Entries      int    `mapstructure:"entries"`
	MaxEntrySize string `mapstructure:"max_entry_size"`
	Directory    string `mapstructure:"directory"`
}

// BuildConfig holds project build knobs.
type BuildConfig struct {
	Workers     int `mapstructure:"workers"`
	Concurrency int `mapstructure:"concurrency"`
}

// ObservabilityConfig holds logging, tracing and metrics settings.
type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	LogLevel     string  `mapstructure:"log_level"`
	LogJSON      bool    `mapstructure:"log_json"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidExtension indicates an extension other than .scss or .sass.
	ErrInvalidExtension = errors.New("sass.extensions entries must be .scss or .sass")
	// ErrInvalidIgnorePattern indicates a modules.ignore glob that does not compile.
	ErrInvalidIgnorePattern = errors.New("modules.ignore contains an invalid pattern")
	// ErrInvalidTimeout indicates a negative compiler timeout.
	ErrInvalidTimeout = errors.New("compiler.timeout must be non-negative")
	// ErrInvalidCacheEntries indicates a negative cache capacity.
	ErrInvalidCacheEntries = errors.New("cache.entries must be non-negative")
	// ErrInvalidCacheEntrySize indicates an unparsable byte size.
	ErrInvalidCacheEntrySize = errors.New("cache.max_entry_size must be a byte size such as 4MiB")
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("build.workers must be non-negative")
	// ErrInvalidConcurrency indicates a negative resolver concurrency.
	ErrInvalidConcurrency = errors.New("build.concurrency must be non-negative")
	// ErrInvalidSampleRatio indicates a sample ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be between 0 and 1")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("observability.log_level must be debug, info, warn or error")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	sassErr := c.validateSass()
	if sassErr != nil {
		return sassErr
	}

	runtimeErr := c.validateRuntime()
	if runtimeErr != nil {
		return runtimeErr
	}

	return c.validateObservability()
}

func (c *Config) validateSass() error {
	for _, ext := range c.Sass.Extensions {
		if ext != resolve.ExtSCSS && ext != resolve.ExtSASS {
			return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}

	for _, pattern := range c.Modules.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", ErrInvalidIgnorePattern, pattern)
		}
	}

	return nil
}

func (c *Config) validateRuntime() error {
	if c.Compiler.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.Cache.Entries < 0 {
		return ErrInvalidCacheEntries
	}

	_, sizeErr := c.MaxEntryBytes()
	if sizeErr != nil {
		return sizeErr
	}

	if c.Build.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Build.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	return nil
}

func (c *Config) validateObservability() error {
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	_, levelErr := observability.ParseLevel(c.Observability.LogLevel)
	if levelErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogLevel, levelErr)
	}

	return nil
}

// MaxEntryBytes parses Cache.MaxEntrySize. Empty or "0" means unlimited.
func (c *Config) MaxEntryBytes() (int, error) {
	if c.Cache.MaxEntrySize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.Cache.MaxEntrySize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCacheEntrySize, err)
	}

	return int(size), nil
}

// RootPath returns Paths.Root as an absolute path; empty means the working directory.
func (c *Config) RootPath() (string, error) {
	root := c.Paths.Root
	if root == "" {
		root = DefaultPathsRoot
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}

	return abs, nil
}

// CompilerOptions derives the pipeline options rooted at root.
func (c *Config) CompilerOptions(root string) compiler.Options {
	return compiler.Options{
		RootPath:       root,
		IncludePaths:   c.Sass.IncludePaths,
		Glob:           c.Sass.Glob,
		Extensions:     c.Sass.Extensions,
		Optimize:       c.Sass.Optimize,
		SourceMapEmbed: c.Sass.SourceMapEmbed,
		SourceComments: c.Sass.Debug,
		Modules: compiler.ModuleOptions{
			Enabled:    c.Modules.Enabled,
			Ignore:     c.Modules.Ignore,
			ScopedName: c.Modules.ScopedName,
		},
	}
}

// ResolveContext derives the resolver context rooted at root. Its search roots match
// the include paths handed to the compiler for the same options.
func (c *Config) ResolveContext(root string) resolve.Context {
	return resolve.Context{
		RootPath:   root,
		AltPaths:   c.Sass.IncludePaths,
		Glob:       c.Sass.Glob,
		Extensions: c.Sass.Extensions,
	}
}

// ObservabilityConfig converts the observability section. The log level must
// already have passed Validate.
func (c *Config) ObservabilityConfig(version string, mode observability.AppMode) observability.Config {
	ob := c.Observability
	level, _ := observability.ParseLevel(ob.LogLevel)

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = ob.Environment
	cfg.Mode = mode
	cfg.OTLPEndpoint = ob.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(ob.OTLPHeaders)
	cfg.OTLPInsecure = ob.OTLPInsecure
	cfg.MetricsAddr = ob.MetricsAddr
	cfg.SampleRatio = ob.SampleRatio
	cfg.LogLevel = level
	cfg.LogJSON = ob.LogJSON
	cfg.TraceVerbose = ob.TraceVerbose

	if ob.ServiceName != "" {
		cfg.ServiceName = ob.ServiceName
	}

	return cfg
}
