package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".sasspipe"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for sasspipe settings.
const envPrefix = "SASSPIPE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("paths.root", DefaultPathsRoot)
	viperCfg.SetDefault("paths.output", DefaultPathsOutput)

	viperCfg.SetDefault("sass.include_paths", []string{})
	viperCfg.SetDefault("sass.glob", DefaultSassGlob)
	viperCfg.SetDefault("sass.extensions", []string{})
	viperCfg.SetDefault("sass.module_rules", DefaultSassModuleRules)
	viperCfg.SetDefault("sass.optimize", DefaultSassOptimize)
	viperCfg.SetDefault("sass.source_map_embed", DefaultSassSourceMapEmbed)
	viperCfg.SetDefault("sass.debug", DefaultSassDebug)

	viperCfg.SetDefault("modules.enabled", DefaultModulesEnabled)
	viperCfg.SetDefault("modules.ignore", []string{})
	viperCfg.SetDefault("modules.scoped_name", DefaultModulesScopedName)

	viperCfg.SetDefault("compiler.binary", DefaultCompilerBinary)
	viperCfg.SetDefault("compiler.timeout", DefaultCompilerTimeout)
	viperCfg.SetDefault("compiler.args", []string{})

	viperCfg.SetDefault("cache.enabled", DefaultCacheEnabled)
	viperCfg.SetDefault("cache.entries", DefaultCacheEntries)
	viperCfg.SetDefault("cache.max_entry_size", DefaultCacheMaxEntrySize)
	viperCfg.SetDefault("cache.directory", DefaultCacheDirectory)

	viperCfg.SetDefault("build.workers", DefaultBuildWorkers)
	viperCfg.SetDefault("build.concurrency", DefaultBuildConcurrency)

	viperCfg.SetDefault("observability.service_name", DefaultObservabilityServiceName)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", DefaultObservabilityOTLPInsecure)
	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.sample_ratio", DefaultObservabilitySampleRatio)
	viperCfg.SetDefault("observability.log_level", DefaultObservabilityLogLevel)
	viperCfg.SetDefault("observability.log_json", DefaultObservabilityLogJSON)
	viperCfg.SetDefault("observability.trace_verbose", DefaultObservabilityTraceVerbose)
}
