package build_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/pkg/build"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

// echoService returns the source text as CSS.
type echoService struct {
	calls atomic.Int32
	err   error
}

func (e *echoService) Compile(_ context.Context, req compiler.Request) (compiler.Response, error) {
	e.calls.Add(1)

	if e.err != nil {
		return compiler.Response{}, e.err
	}

	return compiler.Response{CSS: req.Source}, nil
}

func projectFS(t *testing.T) billy.Filesystem {
	t.Helper()

	fs := memfs.New()

	files := map[string]string{
		"/p/src/main.scss":                 "@import \"vars\";\n@import \"components/*\";\n",
		"/p/src/_vars.scss":                "$c: red;\n",
		"/p/src/components/_button.scss":   ".button { color: $c; }\n",
		"/p/src/theme.sass":                "@import vars\n",
		"/p/src/empty.scss":                "   \n",
		"/p/src/node_modules/pkg/lib.scss": ".lib {}\n",
	}

	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}

	return fs
}

func newBuilder(t *testing.T, fs billy.Filesystem, svc compiler.Service, opts build.Options) *build.Builder {
	t.Helper()

	pipeline, err := compiler.NewPipeline(svc, resolve.New(fs), compiler.Options{RootPath: "/p/src", Glob: true})
	require.NoError(t, err)

	b, err := build.New(pipeline, fs, opts)
	require.NoError(t, err)

	return b
}

func TestBuilder_Discover(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, projectFS(t), &echoService{}, build.Options{SourceDir: "/p/src", OutDir: "/p/dist"})

	entries, err := b.Discover()
	require.NoError(t, err)

	assert.Equal(t, []string{"/p/src/empty.scss", "/p/src/main.scss", "/p/src/theme.sass"}, entries)
}

func TestBuilder_ScanAndAffected(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, projectFS(t), &echoService{}, build.Options{SourceDir: "/p/src", OutDir: "/p/dist"})

	entries, err := b.Discover()
	require.NoError(t, err)
	require.NoError(t, b.Scan(context.Background(), entries))

	assert.ElementsMatch(t,
		[]string{"/p/src/_vars.scss", "/p/src/components/_button.scss"},
		b.Graph().Dependencies("/p/src/main.scss"))
	assert.Equal(t, []string{"/p/src/_vars.scss"}, b.Graph().Dependencies("/p/src/theme.sass"))

	assert.Equal(t, []string{"/p/src/main.scss", "/p/src/theme.sass"}, b.Affected("_vars.scss"))
	assert.Equal(t, []string{"/p/src/main.scss"}, b.Affected("/p/src/components/_button.scss"))
	assert.Equal(t, []string{"/p/src/empty.scss"}, b.Affected("empty.scss"))
	assert.Empty(t, b.Affected("unrelated.scss"))
}

func TestBuilder_ScanForgetsRemovedEntries(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, projectFS(t), &echoService{}, build.Options{SourceDir: "/p/src"})

	require.NoError(t, b.Scan(context.Background(), []string{"/p/src/main.scss", "/p/src/theme.sass"}))
	require.NoError(t, b.Scan(context.Background(), []string{"/p/src/theme.sass"}))

	assert.Equal(t, []string{"/p/src/theme.sass"}, b.Graph().Entries())
}

func TestBuilder_BuildWritesOutputs(t *testing.T) {
	t.Parallel()

	fs := projectFS(t)
	svc := &echoService{}
	b := newBuilder(t, fs, svc, build.Options{SourceDir: "/p/src", OutDir: "/p/dist", Workers: 2})

	entries, err := b.Discover()
	require.NoError(t, err)

	report, err := b.Build(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, report.Files, 3)
	assert.Equal(t, 3, report.Written())

	main, err := util.ReadFile(fs, "/p/dist/main.css")
	require.NoError(t, err)
	assert.Equal(t, "@import \"vars\";\n@import \"components/*\";\n\n", string(main))

	empty, err := util.ReadFile(fs, "/p/dist/empty.css")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = fs.Stat("/p/dist/theme.css")
	require.NoError(t, err)

	assert.Equal(t, "/p/dist/main.css", report.Files[1].Output)
	assert.Equal(t, 2, report.Files[1].Dependencies)
	assert.Equal(t, int32(2), svc.calls.Load(), "whitespace-only entry skips the compiler")

	second, err := b.Build(context.Background(), entries)
	require.NoError(t, err)
	assert.Zero(t, second.Written())

	for _, f := range second.Files {
		assert.Equal(t, build.StatusUnchanged, f.Status, f.Entry)
	}
}

func TestBuilder_CheckReportsDriftWithoutWriting(t *testing.T) {
	t.Parallel()

	fs := projectFS(t)

	writer := newBuilder(t, fs, &echoService{}, build.Options{SourceDir: "/p/src", OutDir: "/p/dist"})
	_, err := writer.Build(context.Background(), []string{"/p/src/main.scss"})
	require.NoError(t, err)

	require.NoError(t, util.WriteFile(fs, "/p/src/main.scss",
		[]byte("@import \"vars\";\n.extra { margin: 0; }\n"), 0o644))

	checker := newBuilder(t, fs, &echoService{}, build.Options{SourceDir: "/p/src", OutDir: "/p/dist", Check: true})

	report, err := checker.Build(context.Background(), []string{"/p/src/main.scss", "/p/src/theme.sass"})
	require.NoError(t, err)

	stale := report.Stale()
	require.Len(t, stale, 2)

	mainResult := stale[0]
	assert.Equal(t, "/p/src/main.scss", mainResult.Entry)
	require.NotNil(t, mainResult.Drift)
	assert.Equal(t, 1, mainResult.Drift.Added)
	assert.Equal(t, 1, mainResult.Drift.Removed)
	assert.Contains(t, mainResult.Drift.Text, "+.extra { margin: 0; }")
	assert.Contains(t, mainResult.Drift.Text, "-@import \"components/*\";")

	onDisk, err := util.ReadFile(fs, "/p/dist/main.css")
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "components/*", "check mode leaves outputs alone")

	_, err = fs.Stat("/p/dist/theme.css")
	assert.Error(t, err, "check mode creates nothing")
}

func TestBuilder_CompileErrorAborts(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, projectFS(t), &echoService{err: errors.New("sass exploded")},
		build.Options{SourceDir: "/p/src", OutDir: "/p/dist"})

	_, err := b.Build(context.Background(), []string{"/p/src/main.scss"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build /p/src/main.scss")
	assert.Contains(t, err.Error(), "sass exploded")
}

func TestBuilder_OutputPath(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, projectFS(t), &echoService{}, build.Options{SourceDir: "/p/src", OutDir: "/p/dist"})

	got, err := b.OutputPath("/p/src/pages/home.sass")
	require.NoError(t, err)
	assert.Equal(t, "/p/dist/pages/home.css", got)

	_, err = b.OutputPath("/elsewhere/a.scss")
	require.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	fs := memfs.New()

	pipeline, err := compiler.NewPipeline(&echoService{}, resolve.New(fs), compiler.Options{})
	require.NoError(t, err)

	_, err = build.New(pipeline, fs, build.Options{})
	require.ErrorIs(t, err, build.ErrNoSourceDir)

	_, err = build.New(pipeline, fs, build.Options{SourceDir: "/p", Exclude: []string{"[oops"}})
	require.ErrorIs(t, err, build.ErrBadExclude)
}

func TestLineDiff(t *testing.T) {
	t.Parallel()

	drift := build.LineDiff("a\nb\nc\n", "a\nB\nc\nd\n")

	assert.Equal(t, 2, drift.Added)
	assert.Equal(t, 1, drift.Removed)
	assert.Equal(t, "-b\n+B\n+d\n", drift.Text)

	same := build.LineDiff("x\n", "x\n")
	assert.Zero(t, same.Added)
	assert.Empty(t, same.Text)
}
