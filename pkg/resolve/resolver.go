// Package resolve computes the transitive set of stylesheets a Sass file depends on.
//
// Resolution re-scans import statements only; it never runs the compiler. Every
// returned path was confirmed to exist at resolution time. Imports that match no file
// are dropped, while filesystem faults abort the whole resolution.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sasspipe/pkg/globfs"
	"github.com/Sumatoshi-tech/sasspipe/pkg/sassimport"
)

// ErrFilesystem marks a resolution aborted by a filesystem fault other than a missing path.
var ErrFilesystem = errors.New("filesystem fault during dependency resolution")

const (
	spanResolve       = "resolve.Resolve"
	attrImporter      = "sass.importer"
	attrDependencies  = "sass.dependencies"
	attrUnresolved    = "sass.unresolved"
	minConcurrency    = 1
	concurrencyFactor = 4
)

// Unresolved is an import target that matched no file on any search root.
type Unresolved struct {
	Importer string
	Target   string
}

// Result is the outcome of one resolution.
type Result struct {
	// Files are the absolute dependency paths in first-seen, depth-first order.
	Files []string
	// Unresolved lists targets that were dropped.
	Unresolved []Unresolved
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScanner replaces the default @import-only scanner.
func WithScanner(s *sassimport.Scanner) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scanner = s
		}
	}
}

// WithLogger sets the logger used for debug output about dropped imports.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used for the per-call span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithConcurrency bounds concurrent filesystem checks per import statement.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n >= minConcurrency {
			r.concurrency = n
		}
	}
}

// Resolver resolves Sass import graphs against a read-only filesystem.
// It holds configuration only and is safe for concurrent use.
type Resolver struct {
	fs          billy.Filesystem
	scanner     *sassimport.Scanner
	indented    *sassimport.Scanner
	hostPaths   bool
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
}

// New creates a Resolver reading from fsys.
func New(fsys billy.Filesystem, opts ...Option) *Resolver {
	r := &Resolver{
		fs:          fsys,
		scanner:     sassimport.NewScanner(),
		logger:      slog.Default(),
		tracer:      nooptrace.NewTracerProvider().Tracer(""),
		concurrency: runtime.GOMAXPROCS(0) * concurrencyFactor,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.indented = r.scanner.Indented()

	return r
}

// NewOS creates a Resolver over the host filesystem. Relative importer and root
// paths are taken against the working directory of the process.
func NewOS(opts ...Option) *Resolver {
	r := New(osfs.New(string(filepath.Separator)), opts...)
	r.hostPaths = true

	return r
}

// Filesystem returns the filesystem the resolver reads from.
//
//nolint:ireturn // callers need the billy interface to share the same view.
func (r *Resolver) Filesystem() billy.Filesystem {
	return r.fs
}

// Resolve returns the dependency paths of the stylesheet at importerPath whose
// source is content.
func (r *Resolver) Resolve(ctx context.Context, content, importerPath string, rctx Context) ([]string, error) {
	res, err := r.ResolveDetailed(ctx, content, importerPath, rctx)
	if err != nil {
		return nil, err
	}

	return res.Files, nil
}

// ResolveDetailed is Resolve that also reports the dropped targets.
func (r *Resolver) ResolveDetailed(ctx context.Context, content, importerPath string, rctx Context) (Result, error) {
	importerPath = filepath.Clean(importerPath)

	if r.hostPaths {
		var err error

		importerPath, rctx, err = absolutize(importerPath, rctx)
		if err != nil {
			return Result{}, err
		}
	}

	ctx, span := r.tracer.Start(ctx, spanResolve, trace.WithAttributes(attribute.String(attrImporter, importerPath)))
	defer span.End()

	acc := newAccumulator(importerPath)

	walkErr := r.walk(ctx, content, importerPath, rctx, acc)
	if walkErr != nil {
		span.RecordError(walkErr)
		span.SetStatus(codes.Error, walkErr.Error())

		return Result{}, walkErr
	}

	span.SetAttributes(
		attribute.Int(attrDependencies, len(acc.order)),
		attribute.Int(attrUnresolved, len(acc.unresolved)),
	)

	return Result{Files: acc.files(), Unresolved: acc.unresolved}, nil
}

// walk scans content and descends depth-first into every newly resolved file.
func (r *Resolver) walk(ctx context.Context, content, importerPath string, rctx Context, acc *accumulator) error {
	roots := rctx.SearchRoots(filepath.Dir(importerPath))
	exts := rctx.ExtensionOrder(importerPath)

	for _, stmt := range r.scannerFor(importerPath).Statements(content) {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return fmt.Errorf("resolve %s: %w", importerPath, ctxErr)
		}

		if stmt.Media != "" {
			continue
		}

		found, err := r.resolveStatement(ctx, stmt, roots, exts, rctx.Glob)
		if err != nil {
			return err
		}

		for i, files := range found {
			if files == nil {
				acc.drop(importerPath, Unquote(stmt.Targets[i]))
				r.logger.DebugContext(ctx, "unresolved import dropped",
					slog.String("importer", importerPath), slog.String("target", stmt.Targets[i]))

				continue
			}

			for _, file := range files {
				if !acc.add(file) {
					continue
				}

				data, readErr := util.ReadFile(r.fs, file)
				if readErr != nil {
					return fmt.Errorf("%w: read %q: %w", ErrFilesystem, file, readErr)
				}

				descendErr := r.walk(ctx, string(data), file, rctx, acc)
				if descendErr != nil {
					return descendErr
				}
			}
		}
	}

	return nil
}

// scannerFor picks the comment rules matching the syntax of the file at path.
func (r *Resolver) scannerFor(path string) *sassimport.Scanner {
	if strings.EqualFold(filepath.Ext(path), ".sass") {
		return r.indented
	}

	return r.scanner
}

// absolutize anchors a relative importer path and project root at the working directory.
func absolutize(importerPath string, rctx Context) (string, Context, error) {
	abs, err := filepath.Abs(importerPath)
	if err != nil {
		return "", rctx, fmt.Errorf("%w: absolute path of %q: %w", ErrFilesystem, importerPath, err)
	}

	if rctx.RootPath != "" && !filepath.IsAbs(rctx.RootPath) {
		root, rootErr := filepath.Abs(rctx.RootPath)
		if rootErr != nil {
			return "", rctx, fmt.Errorf("%w: absolute path of %q: %w", ErrFilesystem, rctx.RootPath, rootErr)
		}

		rctx.RootPath = root
	}

	return abs, rctx, nil
}

// resolveStatement resolves the targets of one statement concurrently. The result
// has one slot per target; a nil slot means the target was dropped, an empty
// non-nil slot means it was skipped on purpose.
func (r *Resolver) resolveStatement(
	ctx context.Context, stmt sassimport.Statement, roots, exts []string, glob bool,
) ([][]string, error) {
	found := make([][]string, len(stmt.Targets))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, raw := range stmt.Targets {
		group.Go(func() error {
			files, err := r.resolveTarget(gctx, Unquote(raw), roots, exts, glob)
			found[i] = files

			return err
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		return nil, waitErr
	}

	return found, nil
}

func (r *Resolver) resolveTarget(ctx context.Context, target string, roots, exts []string, glob bool) ([]string, error) {
	if target == "" || IsPlainCSS(target) {
		return []string{}, nil
	}

	if glob && isGlobTarget(target) {
		return r.expandGlob(target, roots)
	}

	hit, err := r.firstExisting(ctx, Candidates(target, roots, exts))
	if err != nil || hit == "" {
		return nil, err
	}

	return []string{hit}, nil
}

// expandGlob matches the target under each root in order; the first root that
// yields stylesheet matches wins. The literal directory prefix of the target is
// joined to the root and the rest, which may span several segments or hold "**",
// is matched below it.
func (r *Resolver) expandGlob(target string, roots []string) ([]string, error) {
	dir, pattern := globfs.Split(target)

	if filepath.IsAbs(target) {
		roots = []string{""}
	}

	for _, root := range roots {
		matches, err := globfs.Glob(r.fs, filepath.Join(root, filepath.FromSlash(dir)), pattern)
		if err != nil {
			if errors.Is(err, globfs.ErrBadPattern) {
				return nil, nil
			}

			return nil, fmt.Errorf("%w: %w", ErrFilesystem, err)
		}

		var files []string

		for _, match := range matches {
			if IsStylesheet(match) {
				files = append(files, match)
			}
		}

		if len(files) > 0 {
			return files, nil
		}
	}

	return nil, nil
}

// firstExisting checks all candidates concurrently and returns the first, in
// candidate order, that is an existing regular file.
func (r *Resolver) firstExisting(ctx context.Context, candidates []string) (string, error) {
	exists := make([]bool, len(candidates))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, candidate := range candidates {
		group.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			ok, err := r.isFile(candidate)
			exists[i] = ok

			return err
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		return "", waitErr
	}

	for i, ok := range exists {
		if ok {
			return candidates[i], nil
		}
	}

	return "", nil
}

func (r *Resolver) isFile(name string) (bool, error) {
	info, err := r.fs.Stat(name)

	switch {
	case err == nil:
		return !info.IsDir(), nil
	case globfs.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat %q: %w", ErrFilesystem, name, err)
	}
}

// isGlobTarget reports whether any segment of target holds a glob metacharacter.
func isGlobTarget(target string) bool {
	for segment := range strings.SplitSeq(filepath.ToSlash(target), "/") {
		if globfs.HasMeta(segment) {
			return true
		}
	}

	return false
}

// accumulator is the visited set of one resolution. It is only touched from the
// sequential part of walk.
type accumulator struct {
	seen       map[string]struct{}
	order      []string
	unresolved []Unresolved
}

func newAccumulator(importer string) *accumulator {
	return &accumulator{seen: map[string]struct{}{importer: {}}}
}

func (a *accumulator) add(file string) bool {
	if _, ok := a.seen[file]; ok {
		return false
	}

	a.seen[file] = struct{}{}
	a.order = append(a.order, file)

	return true
}

func (a *accumulator) drop(importer, target string) {
	a.unresolved = append(a.unresolved, Unresolved{Importer: importer, Target: target})
}

func (a *accumulator) files() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)

	return out
}
