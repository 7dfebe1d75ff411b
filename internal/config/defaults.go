package config

import "time"

// Path defaults.
const (
	DefaultPathsRoot   = "."
	DefaultPathsOutput = "dist"
)

// Sass defaults.
const (
	DefaultSassGlob           = true
	DefaultSassModuleRules    = false
	DefaultSassOptimize       = false
	DefaultSassSourceMapEmbed = true
	DefaultSassDebug          = false
)

// CSS modules defaults.
const (
	DefaultModulesEnabled    = false
	DefaultModulesScopedName = "_[local]_[hash:base64:5]"
)

// Compiler defaults.
const (
	DefaultCompilerBinary  = "sass"
	DefaultCompilerTimeout = 30 * time.Second
)

// Cache defaults.
const (
	DefaultCacheEnabled      = true
	DefaultCacheEntries      = 512
	DefaultCacheMaxEntrySize = "4MiB"
	DefaultCacheDirectory    = ""
)

// Build defaults. Zero workers means one per CPU.
const (
	DefaultBuildWorkers     = 0
	DefaultBuildConcurrency = 8
)

// Observability defaults.
const (
	DefaultObservabilityServiceName  = "sasspipe"
	DefaultObservabilityLogLevel     = "info"
	DefaultObservabilityLogJSON      = false
	DefaultObservabilitySampleRatio  = 0.0
	DefaultObservabilityOTLPInsecure = false
	DefaultObservabilityTraceVerbose = false
)
