package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

func TestCandidates_Order(t *testing.T) {
	t.Parallel()

	got := resolve.Candidates("foo", []string{"/a", "/b"}, []string{".scss", ".sass"})
	assert.Equal(t, []string{
		"/a/_foo.scss", "/a/foo.scss", "/a/_foo.sass", "/a/foo.sass",
		"/a/foo/_index.scss", "/a/foo/index.scss", "/a/foo/_index.sass", "/a/foo/index.sass",
		"/b/_foo.scss", "/b/foo.scss", "/b/_foo.sass", "/b/foo.sass",
		"/b/foo/_index.scss", "/b/foo/index.scss", "/b/foo/_index.sass", "/b/foo/index.sass",
	}, got)
}

func TestCandidates_ExplicitExtension(t *testing.T) {
	t.Parallel()

	got := resolve.Candidates("sub/grid.scss", []string{"/a"}, []string{".scss", ".sass"})
	assert.Equal(t, []string{"/a/sub/_grid.scss", "/a/sub/grid.scss"}, got)
}

func TestCandidates_AlreadyPartial(t *testing.T) {
	t.Parallel()

	got := resolve.Candidates("_grid.scss", []string{"/a"}, []string{".scss"})
	assert.Equal(t, []string{"/a/_grid.scss"}, got)
}

func TestCandidates_AbsoluteTarget(t *testing.T) {
	t.Parallel()

	got := resolve.Candidates("/lib/x.sass", []string{"/a", "/b"}, []string{".scss"})
	assert.Equal(t, []string{"/lib/_x.sass", "/lib/x.sass"}, got)
}

func TestCandidates_TrailingSlash(t *testing.T) {
	t.Parallel()

	assert.Nil(t, resolve.Candidates("dir/", []string{"/a"}, []string{".scss"}))
}

func TestIsPlainCSS(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"url(a.css)", "a.css", "HTTP://x", "https://x", "//cdn/x", "sass:math"} {
		assert.True(t, resolve.IsPlainCSS(target), target)
	}

	for _, target := range []string{"a", "a.scss", "dir/b", "_c.sass"} {
		assert.False(t, resolve.IsPlainCSS(target), target)
	}
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a", resolve.Unquote(`"a"`))
	assert.Equal(t, "a", resolve.Unquote(`'a'`))
	assert.Equal(t, `"a'`, resolve.Unquote(`"a'`))
	assert.Equal(t, "bare", resolve.Unquote(" bare "))
}

func TestContext_SearchRoots(t *testing.T) {
	t.Parallel()

	rctx := resolve.Context{RootPath: "/p", AltPaths: []string{"vendor", "/abs", "/p"}}
	assert.Equal(t, []string{"/p/src", "/p", "/p/vendor", "/abs"}, rctx.SearchRoots("/p/src"))
	assert.Equal(t, []string{"/p", "/p/vendor", "/abs"}, rctx.SearchRoots("/p"))
}

func TestContext_ExtensionOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{".scss", ".sass"}, resolve.Context{}.ExtensionOrder("a.scss"))
	assert.Equal(t, []string{".sass", ".scss"}, resolve.Context{}.ExtensionOrder("a.sass"))
	assert.Equal(t, []string{".sass"}, resolve.Context{Extensions: []string{" SASS "}}.ExtensionOrder("a.scss"))
}
