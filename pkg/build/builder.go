// Package build compiles every entry stylesheet of a project directory, tracking
// which entries import which files so that changes rebuild only what they affect.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/depgraph"
	"github.com/Sumatoshi-tech/sasspipe/pkg/globfs"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

const (
	entryPattern = "**/*.{scss,sass}"

	extCSS     = ".css"
	extMap     = ".map"
	extExports = ".js"

	dirPerm  = 0o755
	filePerm = 0o644

	spanBuild = "build.Build"
	spanScan  = "build.Scan"
)

// DefaultExclude keeps vendored packages out of discovery.
var DefaultExclude = []string{"node_modules/**"}

var (
	// ErrBadExclude is returned for exclude globs that cannot be compiled.
	ErrBadExclude = errors.New("bad exclude pattern")
	// ErrNoSourceDir is returned when Options.SourceDir is empty.
	ErrNoSourceDir = errors.New("source directory is required")
)

// Status is the outcome of one entry.
type Status string

const (
	// StatusWritten means at least one output file was created or replaced.
	StatusWritten Status = "written"
	// StatusUnchanged means every output already matched.
	StatusUnchanged Status = "unchanged"
	// StatusStale means check mode found outputs that differ from a fresh build.
	StatusStale Status = "stale"
)

// Options configure a Builder.
type Options struct {
	SourceDir string
	OutDir    string
	// Exclude lists globs, relative to SourceDir, of stylesheets that are not entries.
	Exclude []string
	// Workers bounds concurrent scans and compiles. Zero means GOMAXPROCS.
	Workers int
	// Check compares outputs with what is on disk instead of writing them.
	Check bool
}

// FileResult reports one entry.
type FileResult struct {
	Entry        string
	Output       string
	Status       Status
	CSSBytes     int
	MapBytes     int
	Dependencies int
	Cached       bool
	Duration     time.Duration
	Drift        *Drift
}

// Report is the outcome of a build.
type Report struct {
	Files    []FileResult
	Duration time.Duration
}

// Stale returns the results check mode flagged.
func (r Report) Stale() []FileResult {
	var stale []FileResult

	for _, f := range r.Files {
		if f.Status == StatusStale {
			stale = append(stale, f)
		}
	}

	return stale
}

// Written counts entries whose outputs were written.
func (r Report) Written() int {
	n := 0

	for _, f := range r.Files {
		if f.Status == StatusWritten {
			n++
		}
	}

	return n
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracer sets the tracer used for build spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Builder) {
		if t != nil {
			b.tracer = t
		}
	}
}

// Builder drives a project build. Scan and Build may be called repeatedly; the
// dependency graph is kept between calls.
type Builder struct {
	pipeline *compiler.Pipeline
	fsys     billy.Filesystem
	opts     Options
	graph    *depgraph.Graph
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a Builder reading and writing through fsys.
func New(pipeline *compiler.Pipeline, fsys billy.Filesystem, opts Options, bopts ...Option) (*Builder, error) {
	if opts.SourceDir == "" {
		return nil, ErrNoSourceDir
	}

	opts.SourceDir = filepath.Clean(opts.SourceDir)

	if opts.OutDir == "" {
		opts.OutDir = opts.SourceDir
	}

	opts.OutDir = filepath.Clean(opts.OutDir)

	if opts.Exclude == nil {
		opts.Exclude = DefaultExclude
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadExclude, pattern)
		}
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	b := &Builder{
		pipeline: pipeline,
		fsys:     fsys,
		opts:     opts,
		graph:    depgraph.New(),
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(""),
	}

	for _, opt := range bopts {
		opt(b)
	}

	return b, nil
}

// Graph returns the dependency graph filled by Scan.
func (b *Builder) Graph() *depgraph.Graph {
	return b.graph
}

// Discover lists entry stylesheets under SourceDir: non-partial .scss and .sass
// files outside OutDir and the exclude globs. The result is sorted.
func (b *Builder) Discover() ([]string, error) {
	files, err := globfs.Glob(b.fsys, b.opts.SourceDir, entryPattern)
	if err != nil {
		return nil, fmt.Errorf("discover entries: %w", err)
	}

	entries := make([]string, 0, len(files))

	for _, file := range files {
		if resolve.IsPartial(file) || b.excluded(file) {
			continue
		}

		entries = append(entries, file)
	}

	return entries, nil
}

func (b *Builder) excluded(file string) bool {
	if b.opts.OutDir != b.opts.SourceDir && within(b.opts.OutDir, file) {
		return true
	}

	rel, err := filepath.Rel(b.opts.SourceDir, file)
	if err != nil {
		return false
	}

	rel = filepath.ToSlash(rel)

	for _, pattern := range b.opts.Exclude {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}

	return false
}

func within(dir, file string) bool {
	rel, err := filepath.Rel(dir, file)

	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Scan resolves the dependencies of every entry concurrently and records them in
// the graph. Entries recorded earlier but missing from entries are forgotten.
func (b *Builder) Scan(ctx context.Context, entries []string) error {
	ctx, span := b.tracer.Start(ctx, spanScan, trace.WithAttributes(attribute.Int("entries", len(entries))))
	defer span.End()

	keep := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		keep[entry] = struct{}{}
	}

	for _, known := range b.graph.Entries() {
		if _, ok := keep[known]; !ok {
			b.graph.Remove(known)
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.opts.Workers)

	for _, entry := range entries {
		group.Go(func() error {
			data, err := util.ReadFile(b.fsys, entry)
			if err != nil {
				return fmt.Errorf("scan %s: %w", entry, err)
			}

			deps, err := b.pipeline.Dependencies(gctx, compiler.Source{Path: entry, Data: string(data)})
			if err != nil {
				return fmt.Errorf("scan %s: %w", entry, err)
			}

			b.graph.Set(entry, deps)

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

// Affected returns the scanned entries that are, or transitively import, any of the
// changed files.
func (b *Builder) Affected(changed ...string) []string {
	cleaned := make([]string, 0, len(changed))

	for _, file := range changed {
		if !filepath.IsAbs(file) {
			file = filepath.Join(b.opts.SourceDir, file)
		}

		cleaned = append(cleaned, filepath.Clean(file))
	}

	return b.graph.Affected(cleaned...)
}

// OutputPath maps an entry to its CSS output path under OutDir.
func (b *Builder) OutputPath(entry string) (string, error) {
	rel, err := filepath.Rel(b.opts.SourceDir, entry)
	if err != nil || !within(b.opts.SourceDir, entry) {
		return "", fmt.Errorf("entry %s is outside %s", entry, b.opts.SourceDir)
	}

	return filepath.Join(b.opts.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))+extCSS), nil
}

// Build compiles entries concurrently and writes (or, in check mode, compares)
// their outputs. The first failure cancels the remaining work.
func (b *Builder) Build(ctx context.Context, entries []string) (Report, error) {
	ctx, span := b.tracer.Start(ctx, spanBuild, trace.WithAttributes(
		attribute.Int("entries", len(entries)),
		attribute.Bool("check", b.opts.Check),
	))
	defer span.End()

	start := time.Now()
	results := make([]FileResult, len(entries))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.opts.Workers)

	for i, entry := range entries {
		group.Go(func() error {
			res, err := b.buildEntry(gctx, entry)
			if err != nil {
				return fmt.Errorf("build %s: %w", entry, err)
			}

			results[i] = res

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Report{}, err
	}

	report := Report{Files: results, Duration: time.Since(start)}

	b.logger.InfoContext(ctx, "build finished",
		"entries", len(entries),
		"written", report.Written(),
		"stale", len(report.Stale()),
		"duration", report.Duration)

	return report, nil
}

func (b *Builder) buildEntry(ctx context.Context, entry string) (FileResult, error) {
	start := time.Now()

	cssPath, err := b.OutputPath(entry)
	if err != nil {
		return FileResult{}, err
	}

	data, err := util.ReadFile(b.fsys, entry)
	if err != nil {
		return FileResult{}, fmt.Errorf("read: %w", err)
	}

	out, err := b.pipeline.Compile(ctx, compiler.Source{Path: entry, Data: string(data)})
	if err != nil {
		return FileResult{}, err
	}

	b.graph.Set(entry, out.Dependencies)

	artifacts := []artifact{{path: cssPath, data: []byte(out.CSS), text: true}}

	if len(out.Map) > 0 {
		artifacts = append(artifacts, artifact{path: cssPath + extMap, data: out.Map})
	}

	if out.Exports != "" {
		artifacts = append(artifacts, artifact{path: cssPath + extExports, data: []byte(out.Exports), text: true})
	}

	res := FileResult{
		Entry:        entry,
		Output:       cssPath,
		Status:       StatusUnchanged,
		CSSBytes:     len(out.CSS),
		MapBytes:     len(out.Map),
		Dependencies: len(out.Dependencies),
		Cached:       out.Cached,
	}

	for _, art := range artifacts {
		current, same, cmpErr := b.compare(art)
		if cmpErr != nil {
			return FileResult{}, cmpErr
		}

		if same {
			continue
		}

		if b.opts.Check {
			res.Status = StatusStale

			if art.text && res.Drift == nil {
				drift := LineDiff(current, string(art.data))
				res.Drift = &drift
			}

			continue
		}

		writeErr := b.write(art)
		if writeErr != nil {
			return FileResult{}, writeErr
		}

		res.Status = StatusWritten
	}

	res.Duration = time.Since(start)

	b.logger.DebugContext(ctx, "entry built", "entry", entry, "status", res.Status, "cached", res.Cached)

	return res, nil
}

type artifact struct {
	path string
	data []byte
	text bool
}

// compare reports whether art already holds data on disk. A missing file compares
// as empty content.
func (b *Builder) compare(art artifact) (string, bool, error) {
	current, err := util.ReadFile(b.fsys, art.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("read %s: %w", art.path, err)
		}

		return "", false, nil
	}

	return string(current), bytes.Equal(current, art.data), nil
}

func (b *Builder) write(art artifact) error {
	err := b.fsys.MkdirAll(filepath.Dir(art.path), dirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(art.path), err)
	}

	err = util.WriteFile(b.fsys, art.path, art.data, filePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", art.path, err)
	}

	return nil
}
