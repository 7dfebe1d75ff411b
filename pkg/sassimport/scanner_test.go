package sassimport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/pkg/sassimport"
)

func TestScan_SingleTargets(t *testing.T) {
	t.Parallel()

	content := `
@import 'valid1';
@import "../../vendor/styles/valid3";
@import '../../app/styles/globbed/*';
`

	assert.Equal(t, []string{
		"'valid1'",
		`"../../vendor/styles/valid3"`,
		"'../../app/styles/globbed/*'",
	}, sassimport.Scan(content))
}

func TestScan_MultipleTargetsKeepWrittenOrder(t *testing.T) {
	t.Parallel()

	content := `@import "b", 'a',
  "c";
.x { color: red; }`

	assert.Equal(t, []string{`"b"`, "'a'", `"c"`}, sassimport.Scan(content))
}

func TestScan_IndentedSyntaxBareTargets(t *testing.T) {
	t.Parallel()

	content := "@import reset, base\n.box\n  color: red\n"

	assert.Equal(t, []string{"reset", "base"}, sassimport.Scan(content))
}

func TestScan_IgnoresComments(t *testing.T) {
	t.Parallel()

	content := `// @import "line";
/* @import "block";
   @import "still-block"; */
@import "real"; // @import "trailing"
`

	assert.Equal(t, []string{`"real"`}, sassimport.Scan(content))
}

func TestScan_IgnoresStrings(t *testing.T) {
	t.Parallel()

	content := `.a::before { content: "@import 'nope';"; }
.b { font-family: '@import "nope"'; }
@import "yes";`

	assert.Equal(t, []string{`"yes"`}, sassimport.Scan(content))
}

func TestScan_URLTokenDoesNotStartComment(t *testing.T) {
	t.Parallel()

	content := `.a { background: url(http://example.com/x.png); } @import "after";`

	assert.Equal(t, []string{`"after"`}, sassimport.Scan(content))
}

func TestScan_NoDirectives(t *testing.T) {
	t.Parallel()

	assert.Empty(t, sassimport.Scan(""))
	assert.Empty(t, sassimport.Scan("$a: 5px; .test { border-radius: $a; }"))
	assert.Empty(t, sassimport.Scan("@important-ish { } @imports 'x';"))
}

func TestScan_MalformedInput(t *testing.T) {
	t.Parallel()

	cases := []string{
		"@import",
		"@import ",
		"@import;",
		`@import "unterminated`,
		"@import 'broken\n'next';",
		"@import url(no-close",
		"/* never closed @import 'x';",
	}

	for _, content := range cases {
		assert.NotPanics(t, func() {
			assert.Empty(t, sassimport.Scan(content), content)
		})
	}
}

func TestScanStatements_MediaQueryMarksPlainCSS(t *testing.T) {
	t.Parallel()

	stmts := sassimport.ScanStatements(`@import "print" print; @import "screen.css" screen and (min-width: 10px);
@import "plain";`)

	require.Len(t, stmts, 3)
	assert.Equal(t, "print", stmts[0].Media)
	assert.Equal(t, "screen and (min-width: 10px)", stmts[1].Media)
	assert.Empty(t, stmts[2].Media)
	assert.Equal(t, sassimport.DirectiveImport, stmts[2].Directive)
}

func TestScanStatements_Offsets(t *testing.T) {
	t.Parallel()

	content := `.a{} @import "x";`
	stmts := sassimport.ScanStatements(content)

	require.Len(t, stmts, 1)
	assert.Equal(t, "@import", content[stmts[0].Offset:stmts[0].Offset+len("@import")])
}

func TestScanStatements_URLTarget(t *testing.T) {
	t.Parallel()

	stmts := sassimport.ScanStatements(`@import url(foo.css);`)

	require.Len(t, stmts, 1)
	assert.Equal(t, []string{"url(foo.css)"}, stmts[0].Targets)
}

func TestScanner_ModuleRulesOptIn(t *testing.T) {
	t.Parallel()

	content := `@use "sass:math";
@use 'config' with ($primary: blue);
@forward "src/list" hide list-reset;
@import "legacy";`

	assert.Equal(t, []string{`"legacy"`}, sassimport.NewScanner().Targets(content))

	stmts := sassimport.NewScanner(sassimport.WithModuleRules()).Statements(content)
	require.Len(t, stmts, 4)
	assert.Equal(t, sassimport.DirectiveUse, stmts[0].Directive)
	assert.Equal(t, []string{"'config'"}, stmts[1].Targets)
	assert.Equal(t, sassimport.DirectiveForward, stmts[2].Directive)
	assert.Equal(t, []string{`"src/list"`}, stmts[2].Targets)
	assert.Equal(t, sassimport.DirectiveImport, stmts[3].Directive)
}

func TestScan_CommentInsideTargetList(t *testing.T) {
	t.Parallel()

	content := `@import "a", /* skipped "b" */ "c";`

	assert.Equal(t, []string{`"a"`, `"c"`}, sassimport.Scan(content))
}

func TestScanner_IndentedCommentEndsAtDedent(t *testing.T) {
	t.Parallel()

	content := "/* header\n   more\n@import foo\n"

	assert.Empty(t, sassimport.Scan(content))
	assert.Equal(t, []string{"foo"}, sassimport.NewScanner(sassimport.WithIndentedSyntax()).Targets(content))
}

func TestScanner_IndentedNestedComments(t *testing.T) {
	t.Parallel()

	content := `.box
  // hidden
    @import nested-under-comment
  @import kept
/* closed */ @import inline

  @import also-kept
// top
  @import hidden-too
@import last
`

	s := sassimport.NewScanner(sassimport.WithIndentedSyntax())
	assert.Equal(t, []string{"kept", "inline", "also-kept", "last"}, s.Targets(content))
	assert.True(t, s.IsIndented())
}

func TestScanner_IndentedCopyKeepsDirectives(t *testing.T) {
	t.Parallel()

	base := sassimport.NewScanner(sassimport.WithModuleRules())
	indented := base.Indented()

	content := "/* license\n  @use 'hidden'\n@use 'shown'\n"

	assert.False(t, base.IsIndented())
	assert.True(t, indented.IsIndented())
	assert.Same(t, indented, indented.Indented())
	assert.Equal(t, []string{"'shown'"}, indented.Targets(content))
	assert.Empty(t, base.Targets(content))
}
