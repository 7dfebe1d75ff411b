package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".sasspipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultPathsRoot, cfg.Paths.Root)
	assert.Equal(t, config.DefaultPathsOutput, cfg.Paths.Output)
	assert.Empty(t, cfg.Sass.IncludePaths)
	assert.Equal(t, config.DefaultSassGlob, cfg.Sass.Glob)
	assert.Equal(t, config.DefaultSassSourceMapEmbed, cfg.Sass.SourceMapEmbed)
	assert.Equal(t, config.DefaultModulesScopedName, cfg.Modules.ScopedName)
	assert.Equal(t, config.DefaultCompilerBinary, cfg.Compiler.Binary)
	assert.Equal(t, config.DefaultCompilerTimeout, cfg.Compiler.Timeout)
	assert.Equal(t, config.DefaultCacheEnabled, cfg.Cache.Enabled)
	assert.Equal(t, config.DefaultCacheEntries, cfg.Cache.Entries)
	assert.Equal(t, config.DefaultBuildConcurrency, cfg.Build.Concurrency)
	assert.Equal(t, config.DefaultObservabilityLogLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	content := `paths:
  root: /srv/site
  output: public/css
sass:
  include_paths:
    - node_modules
    - vendor/styles
  glob: false
  extensions: [".sass", ".scss"]
  module_rules: true
  optimize: true
  debug: true
modules:
  enabled: true
  ignore:
    - "**/global/**"
  scoped_name: "[name]__[local]"
compiler:
  binary: /opt/dart-sass/sass
  timeout: 10s
  args: ["--quiet-deps"]
cache:
  enabled: false
  entries: 64
  max_entry_size: 512KiB
  directory: /tmp/sasspipe-cache
build:
  workers: 4
  concurrency: 2
observability:
  log_level: debug
  log_json: true
  metrics_addr: ":9464"
  sample_ratio: 0.25
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "/srv/site", cfg.Paths.Root)
	assert.Equal(t, "public/css", cfg.Paths.Output)
	assert.Equal(t, []string{"node_modules", "vendor/styles"}, cfg.Sass.IncludePaths)
	assert.False(t, cfg.Sass.Glob)
	assert.Equal(t, []string{".sass", ".scss"}, cfg.Sass.Extensions)
	assert.True(t, cfg.Sass.ModuleRules)
	assert.True(t, cfg.Sass.Optimize)
	assert.True(t, cfg.Sass.Debug)
	assert.True(t, cfg.Modules.Enabled)
	assert.Equal(t, []string{"**/global/**"}, cfg.Modules.Ignore)
	assert.Equal(t, "[name]__[local]", cfg.Modules.ScopedName)
	assert.Equal(t, "/opt/dart-sass/sass", cfg.Compiler.Binary)
	assert.Equal(t, 10*time.Second, cfg.Compiler.Timeout)
	assert.Equal(t, []string{"--quiet-deps"}, cfg.Compiler.Args)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 64, cfg.Cache.Entries)
	assert.Equal(t, "/tmp/sasspipe-cache", cfg.Cache.Directory)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, 2, cfg.Build.Concurrency)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.LogJSON)
	assert.Equal(t, ":9464", cfg.Observability.MetricsAddr)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 0.0001)

	size, err := cfg.MaxEntryBytes()
	require.NoError(t, err)
	assert.Equal(t, 512*1024, size)
}

func TestLoadConfig_InvalidValue_ReturnsValidationError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "build:\n  workers: -2\n"))
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "sass: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("SASSPIPE_BUILD_WORKERS", "6")
	t.Setenv("SASSPIPE_COMPILER_BINARY", "/usr/local/bin/sass")

	cfg, err := config.LoadConfig(writeConfig(t, "build:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Build.Workers)
	assert.Equal(t, "/usr/local/bin/sass", cfg.Compiler.Binary)
}
