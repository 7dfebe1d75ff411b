// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for all sasspipe application modes (CLI, MCP).
package observability

import (
	"errors"
	"fmt"
	"log/slog"
)

// AppMode identifies how sasspipe was launched. It decides where logs go and is
// attached to every operation measurement.
type AppMode string

const (
	// ModeCLI covers the deps, compile and build commands. Logs go to stderr as text.
	ModeCLI AppMode = "cli"
	// ModeMCP is the stdio MCP server. Stdout carries the protocol, so logs are JSON on stderr.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "sasspipe"
	defaultShutdownTimeoutSec = 5
)

var (
	// ErrUnknownMode indicates a Config.Mode other than ModeCLI or ModeMCP.
	ErrUnknownMode = errors.New("unknown sasspipe mode")
	// ErrSampleRatio indicates a trace sample ratio outside [0, 1].
	ErrSampleRatio = errors.New("trace sample ratio must be within [0, 1]")
)

// Config is the telemetry setup of one sasspipe process. It is filled from the
// observability section of .sasspipe.yaml and the global CLI flags.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is the gRPC collector receiving resolve, compile and build spans.
	// Empty keeps tracing local.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// MetricsAddr serves /metrics, /healthz and /readyz while a build or the MCP
	// server runs. Empty disables the endpoint.
	MetricsAddr string

	// SampleRatio samples root spans; zero samples every build.
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool

	// TraceVerbose keeps the per-file resolve spans that are otherwise dropped
	// before export to keep large builds readable.
	TraceVerbose bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration used when .sasspipe.yaml has no
// observability section.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// Validate reports settings Init cannot honor.
func (c Config) Validate() error {
	switch c.Mode {
	case "", ModeCLI, ModeMCP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}

	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrSampleRatio, c.SampleRatio)
	}

	return nil
}
