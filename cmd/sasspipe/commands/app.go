// Package commands implements CLI command handlers for sasspipe.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/sasspipe/internal/config"
	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/cache"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
	"github.com/Sumatoshi-tech/sasspipe/pkg/sassimport"
	"github.com/Sumatoshi-tech/sasspipe/pkg/version"
)

// serviceFactory builds the compiler service for a loaded configuration.
type serviceFactory func(cfg *config.Config, logger *slog.Logger) compiler.Service

// App holds global flags and the dependencies shared by every command.
type App struct {
	configPath string
	verbose    bool
	quiet      bool

	newService serviceFactory
}

// NewApp creates an App that compiles with the dart-sass binary.
func NewApp() *App {
	return newAppWithService(dartSassService)
}

func newAppWithService(factory serviceFactory) *App {
	return &App{newService: factory}
}

func dartSassService(cfg *config.Config, logger *slog.Logger) compiler.Service {
	return compiler.NewDartSass(cfg.Compiler.Binary, cfg.Compiler.Timeout, cfg.Compiler.Args, logger)
}

// BindFlags registers the global flags.
func (a *App) BindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: .sasspipe.yaml in the working directory)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress output")
}

// env is the wired runtime of one command invocation.
type env struct {
	cfg       *config.Config
	root      string
	providers observability.Providers
	ops       *observability.OperationMetrics
	resolver  *resolve.Resolver
	pipeline  *compiler.Pipeline
}

func (a *App) setup(mode observability.AppMode) (*env, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}

	root, err := cfg.RootPath()
	if err != nil {
		return nil, err
	}

	cfg.Sass.IncludePaths = absolutize(root, cfg.Sass.IncludePaths)

	obsCfg := cfg.ObservabilityConfig(version.Version, mode)

	switch {
	case a.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case a.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	if mode == observability.ModeMCP {
		obsCfg.LogJSON = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, root: root, providers: providers}

	wireErr := e.wire(a.newService, mode)
	if wireErr != nil {
		e.close()

		return nil, wireErr
	}

	return e, nil
}

func (e *env) wire(factory serviceFactory, mode observability.AppMode) error {
	logger := e.providers.Logger

	ops, err := observability.NewOperationMetrics(e.providers.Meter, mode)
	if err != nil {
		return err
	}

	e.ops = ops

	pm, err := observability.NewPipelineMetrics(e.providers.Meter, ops)
	if err != nil {
		return err
	}

	ropts := []resolve.Option{
		resolve.WithLogger(observability.Component(logger, "resolve")),
		resolve.WithTracer(e.providers.Tracer),
	}

	if e.cfg.Build.Concurrency > 0 {
		ropts = append(ropts, resolve.WithConcurrency(e.cfg.Build.Concurrency))
	}

	if e.cfg.Sass.ModuleRules {
		ropts = append(ropts, resolve.WithScanner(sassimport.NewScanner(sassimport.WithModuleRules())))
	}

	e.resolver = resolve.NewOS(ropts...)

	popts := []compiler.PipelineOption{
		compiler.WithLogger(observability.Component(logger, "compiler")),
		compiler.WithTracer(e.providers.Tracer),
		compiler.WithMetrics(pm),
	}

	if e.cfg.Cache.Enabled {
		c, cacheErr := e.newCache()
		if cacheErr != nil {
			return cacheErr
		}

		popts = append(popts, compiler.WithCache(c))
	}

	service := factory(e.cfg, observability.Component(logger, "dartsass"))

	e.pipeline, err = compiler.NewPipeline(service, e.resolver, e.cfg.CompilerOptions(e.root), popts...)
	if err != nil {
		return err
	}

	return nil
}

func (e *env) newCache() (*cache.Cache, error) {
	maxEntry, err := e.cfg.MaxEntryBytes()
	if err != nil {
		return nil, err
	}

	copts := []cache.Option{
		cache.WithLogger(observability.Component(e.providers.Logger, "cache")),
		cache.WithMaxEntrySize(maxEntry),
	}

	if dir := e.cfg.Cache.Directory; dir != "" {
		copts = append(copts, cache.WithDisk(e.resolver.Filesystem(), absolutize(e.root, []string{dir})[0]))
	}

	c, err := cache.New(e.cfg.Cache.Entries, copts...)
	if err != nil {
		return nil, fmt.Errorf("create compile cache: %w", err)
	}

	return c, nil
}

// startDiagnostics serves health and metrics when observability.metrics_addr is set.
// The returned stop function is always safe to call.
func (e *env) startDiagnostics() (func(), error) {
	addr := e.cfg.Observability.MetricsAddr
	if addr == "" {
		return func() {}, nil
	}

	srv, err := observability.NewDiagnosticsServer(addr, e.providers.MetricsHandler, e.sassReady)
	if err != nil {
		return nil, err
	}

	e.providers.Logger.Info("diagnostics server listening", "addr", srv.Addr())

	return func() {
		closeErr := srv.Close(context.Background())
		if closeErr != nil {
			e.providers.Logger.Warn("diagnostics shutdown failed", "error", closeErr)
		}
	}, nil
}

func (e *env) sassReady(_ context.Context) error {
	_, err := exec.LookPath(e.cfg.Compiler.Binary)
	if err != nil {
		return fmt.Errorf("sass binary %q: %w", e.cfg.Compiler.Binary, err)
	}

	return nil
}

func (e *env) close() {
	shutdownErr := e.providers.Shutdown(context.Background())
	if shutdownErr != nil {
		e.providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// absPath resolves a command-line path against the working directory.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	return abs, nil
}

func absolutize(root string, paths []string) []string {
	out := make([]string, 0, len(paths))

	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}

		out = append(out, filepath.Clean(p))
	}

	return out
}
