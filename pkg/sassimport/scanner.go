// Package sassimport extracts import targets from Sass and SCSS source text.
//
// Scanning is lexical only: comments, strings and url() tokens are skipped so that
// directive keywords appearing inside them never produce a match. The scanner never
// fails; malformed directives are dropped.
package sassimport

import "strings"

// Directive is a Sass at-rule that loads another stylesheet.
type Directive string

const (
	// DirectiveImport is the classic @import rule.
	DirectiveImport Directive = "import"
	// DirectiveUse is the module system @use rule.
	DirectiveUse Directive = "use"
	// DirectiveForward is the module system @forward rule.
	DirectiveForward Directive = "forward"
)

// Statement is one load directive found in a stylesheet.
type Statement struct {
	// Directive is the at-rule keyword without the leading "@".
	Directive Directive
	// Targets are the import targets exactly as written, quotes included.
	Targets []string
	// Media is any trailing media query or modifier list of an @import.
	// A non-empty value marks the statement as a plain CSS import.
	Media string
	// Offset is the byte offset of the "@" that starts the directive.
	Offset int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithModuleRules makes the scanner recognize @use and @forward in addition to @import.
func WithModuleRules() Option {
	return func(s *Scanner) {
		s.directives = append(s.directives, DirectiveUse, DirectiveForward)
	}
}

// WithIndentedSyntax makes comments follow the indented .sass rules: a comment
// opened at the start of a line runs until the next line that is not indented
// deeper, and a "/*" comment needs no closing "*/".
func WithIndentedSyntax() Option {
	return func(s *Scanner) {
		s.indented = true
	}
}

// Scanner extracts load directives from stylesheet source.
// A Scanner is immutable after construction and safe for concurrent use.
type Scanner struct {
	directives []Directive
	indented   bool
}

// NewScanner creates a Scanner. Without options only @import is recognized.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{directives: []Directive{DirectiveImport}}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var defaultScanner = NewScanner()

// Indented returns a copy of s that scans with the indented syntax comment rules.
func (s *Scanner) Indented() *Scanner {
	if s.indented {
		return s
	}

	return &Scanner{
		directives: append([]Directive(nil), s.directives...),
		indented:   true,
	}
}

// IsIndented reports whether s scans with the indented syntax comment rules.
func (s *Scanner) IsIndented() bool {
	return s.indented
}

// Scan returns the raw @import targets of content in source order.
func Scan(content string) []string {
	return defaultScanner.Targets(content)
}

// ScanStatements returns the @import statements of content in source order.
func ScanStatements(content string) []Statement {
	return defaultScanner.Statements(content)
}

// Targets returns the raw targets of every recognized directive, flattened in source order.
func (s *Scanner) Targets(content string) []string {
	var targets []string

	for _, stmt := range s.Statements(content) {
		targets = append(targets, stmt.Targets...)
	}

	return targets
}

// Statements returns every well-formed recognized directive in source order.
func (s *Scanner) Statements(content string) []Statement {
	var out []Statement

	n := len(content)
	pos := 0

	for pos < n {
		ch := content[pos]

		switch {
		case ch == '/' && pos+1 < n && content[pos+1] == '/':
			pos = s.skipLineComment(content, pos)
		case ch == '/' && pos+1 < n && content[pos+1] == '*':
			pos = s.skipBlockComment(content, pos)
		case ch == '"' || ch == '\'':
			_, pos, _ = readQuoted(content, pos)
		case ch == '@':
			stmt, next, ok := s.directiveAt(content, pos)
			if ok {
				out = append(out, stmt)
			}

			pos = next
		case isIdentStart(ch):
			pos = skipIdentOrURL(content, pos)
		default:
			pos++
		}
	}

	return out
}

// directiveAt parses the at-rule starting at pos. It returns the position scanning
// should resume from, whether or not a statement was produced.
func (s *Scanner) directiveAt(src string, pos int) (Statement, int, bool) {
	nameEnd := identEnd(src, pos+1)
	name := strings.ToLower(src[pos+1 : nameEnd])

	dir, known := s.lookup(name)
	if !known {
		return Statement{}, nameEnd, false
	}

	// The keyword must be followed by whitespace, a quote or a comment.
	if nameEnd >= len(src) || !startsArgument(src, nameEnd) {
		return Statement{}, nameEnd, false
	}

	if dir == DirectiveImport {
		return parseImport(src, pos, nameEnd)
	}

	return parseModuleRule(src, pos, nameEnd, dir)
}

func (s *Scanner) lookup(name string) (Directive, bool) {
	for _, d := range s.directives {
		if string(d) == name {
			return d, true
		}
	}

	return "", false
}

func parseImport(src string, start, pos int) (Statement, int, bool) {
	var targets []string

	pos = skipSpace(src, pos, true)

	for {
		target, next, ok := readTarget(src, pos)
		if !ok {
			return Statement{}, next, false
		}

		targets = append(targets, target)
		pos = skipSpace(src, next, false)

		if pos < len(src) && src[pos] == ',' {
			pos = skipSpace(src, pos+1, true)

			continue
		}

		break
	}

	media, end := readClauseTail(src, pos)

	return Statement{
		Directive: DirectiveImport,
		Targets:   targets,
		Media:     media,
		Offset:    start,
	}, end, true
}

// parseModuleRule handles @use and @forward, which take exactly one quoted URL
// followed by optional clauses that are not relevant to dependency tracking.
func parseModuleRule(src string, start, pos int, dir Directive) (Statement, int, bool) {
	pos = skipSpace(src, pos, true)

	if pos >= len(src) || (src[pos] != '"' && src[pos] != '\'') {
		return Statement{}, pos, false
	}

	target, next, ok := readQuoted(src, pos)
	if !ok {
		return Statement{}, next, false
	}

	_, end := readClauseTail(src, next)

	return Statement{
		Directive: dir,
		Targets:   []string{target},
		Offset:    start,
	}, end, true
}

// readTarget reads one quoted, url() or bare target.
func readTarget(src string, pos int) (string, int, bool) {
	if pos >= len(src) {
		return "", pos, false
	}

	switch ch := src[pos]; {
	case ch == '"' || ch == '\'':
		return readQuoted(src, pos)
	case hasPrefixFold(src[pos:], "url("):
		end := strings.IndexByte(src[pos:], ')')
		if end < 0 {
			return "", len(src), false
		}

		return src[pos : pos+end+1], pos + end + 1, true
	}

	end := pos
	for end < len(src) && !isBareTerminator(src[end]) {
		end++
	}

	if end == pos {
		return "", pos, false
	}

	return src[pos:end], end, true
}

// readQuoted returns the quoted literal at pos including its quotes. Strings may not
// span lines; an unterminated literal consumes the rest of the line.
func readQuoted(src string, pos int) (string, int, bool) {
	quote := src[pos]

	for i := pos + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '\n':
			return "", i, false
		case quote:
			return src[pos : i+1], i + 1, true
		}
	}

	return "", len(src), false
}

// readClauseTail returns the text after the target list up to the end of the
// statement, with trailing comments removed.
func readClauseTail(src string, pos int) (string, int) {
	end := pos
	for end < len(src) && src[end] != ';' && src[end] != '\n' && src[end] != '{' && src[end] != '}' {
		end++
	}

	tail := src[pos:end]
	if i := strings.Index(tail, "//"); i >= 0 {
		tail = tail[:i]
	}

	if i := strings.Index(tail, "/*"); i >= 0 {
		tail = tail[:i]
	}

	return strings.TrimSpace(tail), end
}

// skipSpace skips blanks and block comments. Newlines are skipped only when
// multiline is set; line comments are skipped only in that mode as well.
func skipSpace(src string, pos int, multiline bool) int {
	for pos < len(src) {
		ch := src[pos]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			pos++
		case ch == '\n' && multiline:
			pos++
		case ch == '/' && pos+1 < len(src) && src[pos+1] == '*':
			pos = skipBlockComment(src, pos)
		case ch == '/' && pos+1 < len(src) && src[pos+1] == '/' && multiline:
			pos = skipLineComment(src, pos)
		default:
			return pos
		}
	}

	return pos
}

func (s *Scanner) skipLineComment(src string, pos int) int {
	if s.indented && startsLine(src, pos) {
		return skipIndentedBlock(src, pos)
	}

	return skipLineComment(src, pos)
}

func (s *Scanner) skipBlockComment(src string, pos int) int {
	if !s.indented {
		return skipBlockComment(src, pos)
	}

	return min(skipBlockComment(src, pos), skipIndentedBlock(src, pos))
}

// skipIndentedBlock returns the start of the first non-blank line after pos whose
// indentation is not deeper than that of the line holding pos.
func skipIndentedBlock(src string, pos int) int {
	lineStart := strings.LastIndexByte(src[:pos], '\n') + 1
	depth := indentation(src, lineStart)

	for {
		i := strings.IndexByte(src[pos:], '\n')
		if i < 0 {
			return len(src)
		}

		pos += i + 1

		width := indentation(src, pos)
		if pos+width < len(src) && !isLineEnd(src[pos+width]) && width <= depth {
			return pos
		}
	}
}

func indentation(src string, pos int) int {
	width := 0
	for pos+width < len(src) && (src[pos+width] == ' ' || src[pos+width] == '\t') {
		width++
	}

	return width
}

func startsLine(src string, pos int) bool {
	lineStart := strings.LastIndexByte(src[:pos], '\n') + 1

	return strings.TrimLeft(src[lineStart:pos], " \t") == ""
}

func isLineEnd(ch byte) bool {
	return ch == '\n' || ch == '\r'
}

func skipLineComment(src string, pos int) int {
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}

	return len(src)
}

func skipBlockComment(src string, pos int) int {
	if i := strings.Index(src[pos+2:], "*/"); i >= 0 {
		return pos + 2 + i + 2
	}

	return len(src)
}

// skipIdentOrURL skips an identifier. An unquoted url(...) token is skipped as a
// whole so that "//" inside it is not taken for a comment.
func skipIdentOrURL(src string, pos int) int {
	end := identEnd(src, pos)

	if end < len(src) && src[end] == '(' && strings.EqualFold(src[pos:end], "url") {
		if i := strings.IndexAny(src[end:], ")\n"); i >= 0 {
			return end + i + 1
		}

		return len(src)
	}

	return end
}

func identEnd(src string, pos int) int {
	for pos < len(src) && isIdentChar(src[pos]) {
		pos++
	}

	return pos
}

func startsArgument(src string, pos int) bool {
	switch src[pos] {
	case ' ', '\t', '\r', '\n', '"', '\'':
		return true
	case '/':
		return pos+1 < len(src) && src[pos+1] == '*'
	}

	return false
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '-' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func isBareTerminator(ch byte) bool {
	switch ch {
	case ',', ';', ' ', '\t', '\r', '\n', '{', '}':
		return true
	}

	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
