package cssmodules_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/pkg/cssmodules"
)

func TestTransform_NamePattern(t *testing.T) {
	t.Parallel()

	res, err := cssmodules.Transform(".title { color: red; }\n", "/p/app/header.scss",
		cssmodules.Options{ScopedName: "[name]__[local]"})
	require.NoError(t, err)

	assert.Equal(t, ".header__title { color: red; }\n", res.CSS)
	assert.Equal(t, map[string]string{"title": "header__title"}, res.Classes)
}

func TestTransform_DefaultPattern(t *testing.T) {
	t.Parallel()

	res, err := cssmodules.Transform(".btn{margin:0}", "/p/b.scss", cssmodules.Options{})
	require.NoError(t, err)

	scoped := res.Classes["btn"]
	assert.Regexp(t, regexp.MustCompile(`^_btn_[A-Za-z0-9_-]{5}$`), scoped)
	assert.Equal(t, "."+scoped+"{margin:0}", res.CSS)
}

func TestTransform_StableAcrossRoots(t *testing.T) {
	t.Parallel()

	first, err := cssmodules.Transform(".a{}", "/one/src/x.scss", cssmodules.Options{Root: "/one"})
	require.NoError(t, err)

	second, err := cssmodules.Transform(".a{}", "/two/src/x.scss", cssmodules.Options{Root: "/two"})
	require.NoError(t, err)

	assert.Equal(t, first.Classes, second.Classes)
}

func TestTransform_GlobalAndLocal(t *testing.T) {
	t.Parallel()

	src := ":global(.reset) .box, :local(.item):hover { top: 0 }"

	res, err := cssmodules.Transform(src, "/p/m.scss", cssmodules.Options{ScopedName: "m-[local]"})
	require.NoError(t, err)

	assert.Equal(t, ".reset .m-box, .m-item:hover { top: 0 }", res.CSS)
	assert.Equal(t, map[string]string{"box": "m-box", "item": "m-item"}, res.Classes)
}

func TestTransform_DeclarationsUntouched(t *testing.T) {
	t.Parallel()

	src := ".a { background: url(img/x.png); width: .5em; content: \".b\"; }\n"

	res, err := cssmodules.Transform(src, "/p/m.scss", cssmodules.Options{ScopedName: "x-[local]"})
	require.NoError(t, err)

	assert.Equal(t, ".x-a { background: url(img/x.png); width: .5em; content: \".b\"; }\n", res.CSS)
}

func TestTransform_AtRules(t *testing.T) {
	t.Parallel()

	src := "@charset \"utf-8\";\n" +
		"@media (min-width: 10px) { .a::before { color: red } }\n" +
		"@keyframes spin { from { opacity: 0 } to { opacity: 1 } }\n" +
		"@font-face { font-family: x; }\n" +
		".b:not(.c) { color: blue }\n"

	res, err := cssmodules.Transform(src, "/p/m.scss", cssmodules.Options{ScopedName: "s-[local]"})
	require.NoError(t, err)

	expected := "@charset \"utf-8\";\n" +
		"@media (min-width: 10px) { .s-a::before { color: red } }\n" +
		"@keyframes spin { from { opacity: 0 } to { opacity: 1 } }\n" +
		"@font-face { font-family: x; }\n" +
		".s-b:not(.s-c) { color: blue }\n"
	assert.Equal(t, expected, res.CSS)
}

func TestTransform_CommentsPreserved(t *testing.T) {
	t.Parallel()

	src := "/* .not-a-class */\n.a { }\n/*# sourceMappingURL=data:application/json;base64,e30= */"

	res, err := cssmodules.Transform(src, "/p/m.scss", cssmodules.Options{ScopedName: "q-[local]"})
	require.NoError(t, err)

	assert.Equal(t, "/* .not-a-class */\n.q-a { }\n/*# sourceMappingURL=data:application/json;base64,e30= */", res.CSS)
}

func TestTransform_HexHash(t *testing.T) {
	t.Parallel()

	res, err := cssmodules.Transform(".a{}", "/p/m.scss", cssmodules.Options{ScopedName: "[hash:hex:6]"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{6}$`), res.Classes["a"])
}

func TestResult_Exports(t *testing.T) {
	t.Parallel()

	res := cssmodules.Result{Classes: map[string]string{"b": "x_b", "a": "x_a"}}
	assert.Equal(t, `module.exports = {"a":"x_a","b":"x_b"};`, res.Exports())
	assert.Equal(t, "module.exports = {};", cssmodules.Result{}.Exports())
}
