package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/sasspipe/pkg/cache"
	"github.com/Sumatoshi-tech/sasspipe/pkg/cssmodules"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

const (
	spanCompile  = "compiler.Compile"
	attrPath     = "sass.path"
	attrCached   = "sass.cached"
	outputSuffix = "\n\n"
)

// ErrBadIgnorePattern is returned for module ignore globs that cannot be compiled.
var ErrBadIgnorePattern = errors.New("bad modules ignore pattern")

// ModuleOptions configures CSS modules post-processing.
type ModuleOptions struct {
	Enabled bool
	// Ignore lists globs of stylesheets that are left unscoped.
	Ignore []string
	// ScopedName is the class naming pattern; empty selects the default.
	ScopedName string
}

// Options are the compile settings shared by every file of a project.
type Options struct {
	RootPath string
	// IncludePaths are extra import roots, relative entries taken from RootPath.
	IncludePaths []string
	Glob         bool
	Extensions   []string
	Optimize     bool
	// SourceMapEmbed keeps an inline source map in unoptimized output.
	SourceMapEmbed bool
	SourceComments bool
	Modules        ModuleOptions
}

// Source is one stylesheet to compile.
type Source struct {
	Path string
	Data string
}

// Output is the result of compiling a Source.
type Output struct {
	CSS string
	// Map is the source map with sources relative to the project root.
	Map []byte
	// Exports is the CommonJS class mapping, set only for CSS modules.
	Exports      string
	Dependencies []string
	Cached       bool
}

// Metrics receives per-compile measurements.
type Metrics interface {
	RecordResolution(ctx context.Context, dependencies, unresolved int)
	RecordCache(ctx context.Context, hit bool)
	RecordCompile(ctx context.Context, duration time.Duration, err error)
	RecordOutput(ctx context.Context, cssBytes, mapBytes int)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCache enables the compile cache.
func WithCache(c *cache.Cache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer used for compile spans.
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline sequences dependency resolution, compilation, source map cleanup and
// CSS modules post-processing for one project. It is safe for concurrent use.
type Pipeline struct {
	service  Service
	resolver *resolve.Resolver
	opts     Options
	cache    *cache.Cache
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  Metrics
}

// NewPipeline creates a Pipeline.
func NewPipeline(service Service, resolver *resolve.Resolver, opts Options, popts ...PipelineOption) (*Pipeline, error) {
	for _, pattern := range opts.Modules.Ignore {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("%w: %q", ErrBadIgnorePattern, pattern)
		}
	}

	p := &Pipeline{
		service:  service,
		resolver: resolver,
		opts:     opts,
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(""),
	}

	for _, opt := range popts {
		opt(p)
	}

	return p, nil
}

// Options returns the pipeline settings.
func (p *Pipeline) Options() Options {
	return p.opts
}

// ResolveContext is the resolver configuration matching the compiler's load paths.
func (p *Pipeline) ResolveContext() resolve.Context {
	return resolve.Context{
		RootPath:   p.opts.RootPath,
		AltPaths:   p.opts.IncludePaths,
		Glob:       p.opts.Glob,
		Extensions: p.opts.Extensions,
	}
}

// IncludePaths returns the compiler load paths for a stylesheet at path:
// the root, the stylesheet's directory, then the configured include paths.
func (p *Pipeline) IncludePaths(path string) []string {
	roots := p.ResolveContext().SearchRoots(filepath.Dir(path))
	if len(roots) < 2 || p.opts.RootPath == "" {
		return roots
	}

	// The resolver searches the importer's directory first, the compiler its root.
	root := filepath.Clean(p.opts.RootPath)
	out := []string{root}

	for _, dir := range roots {
		if dir != root {
			out = append(out, dir)
		}
	}

	return out
}

// IsModule reports whether CSS modules post-processing applies to path.
func (p *Pipeline) IsModule(path string) bool {
	if !p.opts.Modules.Enabled {
		return false
	}

	names := []string{filepath.ToSlash(path)}
	if p.opts.RootPath != "" {
		if rel, err := filepath.Rel(p.opts.RootPath, path); err == nil {
			names = append(names, filepath.ToSlash(rel))
		}
	}

	for _, pattern := range p.opts.Modules.Ignore {
		for _, name := range names {
			if doublestar.MatchUnvalidated(filepath.ToSlash(pattern), name) {
				return false
			}
		}
	}

	return true
}

// Dependencies returns the files src imports, transitively.
func (p *Pipeline) Dependencies(ctx context.Context, src Source) ([]string, error) {
	deps, err := p.resolver.Resolve(ctx, src.Data, src.Path, p.ResolveContext())
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", src.Path, err)
	}

	return deps, nil
}

// Compile produces CSS for src. Whitespace-only sources compile to empty output
// without invoking the compiler.
func (p *Pipeline) Compile(ctx context.Context, src Source) (Output, error) {
	if strings.TrimSpace(src.Data) == "" {
		return Output{}, nil
	}

	ctx, span := p.tracer.Start(ctx, spanCompile, trace.WithAttributes(attribute.String(attrPath, src.Path)))
	defer span.End()

	start := time.Now()

	out, err := p.compile(ctx, src)

	if p.metrics != nil {
		p.metrics.RecordCompile(ctx, time.Since(start), err)
	}

	span.SetAttributes(attribute.Bool(attrCached, out.Cached))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Output{}, err
	}

	return out, nil
}

func (p *Pipeline) compile(ctx context.Context, src Source) (Output, error) {
	res, err := p.resolver.ResolveDetailed(ctx, src.Data, src.Path, p.ResolveContext())
	if err != nil {
		return Output{}, fmt.Errorf("dependencies of %s: %w", src.Path, err)
	}

	if p.metrics != nil {
		p.metrics.RecordResolution(ctx, len(res.Files), len(res.Unresolved))
	}

	key := p.cacheKey(src, res.Files)
	if key != "" {
		entry, hit := p.cache.Get(key)
		if p.metrics != nil {
			p.metrics.RecordCache(ctx, hit)
		}

		if hit {
			return Output{
				CSS:          entry.CSS,
				Map:          entry.Map,
				Exports:      entry.Exports,
				Dependencies: entry.Dependencies,
				Cached:       true,
			}, nil
		}
	}

	resp, err := p.service.Compile(ctx, p.request(src))
	if err != nil {
		return Output{}, FormatError(src.Path, err)
	}

	for _, warning := range resp.Warnings {
		p.logger.WarnContext(ctx, "sass warning", "path", src.Path, "message", warning)
	}

	out := Output{Dependencies: res.Files}

	if len(resp.SourceMap) > 0 {
		srcMap, parseErr := ParseSourceMap(resp.SourceMap)
		if parseErr != nil {
			return Output{}, fmt.Errorf("compile %s: %w", src.Path, parseErr)
		}

		srcMap.Relativize(p.opts.RootPath, src.Path)

		out.Map, err = srcMap.Marshal()
		if err != nil {
			return Output{}, fmt.Errorf("compile %s: %w", src.Path, err)
		}
	}

	css := strings.TrimRight(resp.CSS, "\n")
	if p.opts.SourceMapEmbed && !p.opts.Optimize && out.Map != nil {
		css += "\n" + EmbedComment(out.Map)
	}

	css += outputSuffix

	if p.IsModule(src.Path) {
		scoped, modErr := cssmodules.Transform(css, src.Path, cssmodules.Options{
			ScopedName: p.opts.Modules.ScopedName,
			Root:       p.opts.RootPath,
		})
		if modErr != nil {
			return Output{}, fmt.Errorf("css modules %s: %w", src.Path, modErr)
		}

		css = scoped.CSS
		out.Exports = scoped.Exports()
	}

	out.CSS = css

	if p.metrics != nil {
		p.metrics.RecordOutput(ctx, len(out.CSS), len(out.Map))
	}

	if key != "" {
		putErr := p.cache.Put(key, cache.Entry{
			CSS:          out.CSS,
			Map:          out.Map,
			Exports:      out.Exports,
			Dependencies: out.Dependencies,
		})
		if putErr != nil {
			p.logger.WarnContext(ctx, "compile cache write failed", "path", src.Path, "error", putErr)
		}
	}

	return out, nil
}

func (p *Pipeline) request(src Source) Request {
	req := Request{
		Path:           src.Path,
		Source:         src.Data,
		Syntax:         SyntaxSCSS,
		Style:          StyleExpanded,
		IncludePaths:   p.IncludePaths(src.Path),
		SourceMap:      true,
		SourceComments: p.opts.SourceComments && !p.opts.Optimize,
	}

	if strings.EqualFold(filepath.Ext(src.Path), resolve.ExtSASS) {
		req.Syntax = SyntaxIndented
	}

	if p.opts.Optimize {
		req.Style = StyleCompressed
	}

	return req
}

// cacheKey digests the source, the options and the content of every dependency.
// It returns "" when caching is off or a dependency cannot be read.
func (p *Pipeline) cacheKey(src Source, deps []string) string {
	if p.cache == nil {
		return ""
	}

	fingerprint, err := json.Marshal(p.opts)
	if err != nil {
		return ""
	}

	parts := [][]byte{[]byte(src.Path), []byte(src.Data), fingerprint}

	for _, dep := range deps {
		data, readErr := util.ReadFile(p.resolver.Filesystem(), dep)
		if readErr != nil {
			p.logger.Debug("compile cache bypassed", "path", src.Path, "dependency", dep, "error", readErr)

			return ""
		}

		parts = append(parts, []byte(dep), data)
	}

	return cache.Key(parts...)
}
