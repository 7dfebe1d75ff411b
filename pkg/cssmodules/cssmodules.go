// Package cssmodules rewrites class selectors in compiled CSS to file-scoped names
// and reports the mapping for JavaScript consumers.
package cssmodules

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// DefaultScopedName is the naming pattern used when Options.ScopedName is empty.
const DefaultScopedName = "_[local]_[hash:base64:5]"

const defaultHashLength = 8

// ErrMalformed is returned when the input cannot be tokenized.
var ErrMalformed = errors.New("malformed css")

var placeholderRe = regexp.MustCompile(`\[(name|local|hash)(?::(base64|hex))?(?::(\d+))?\]`)

// Options configures Transform.
type Options struct {
	// ScopedName is the pattern for generated class names. It understands [name],
	// [local], [hash], [hash:base64:N] and [hash:hex:N].
	ScopedName string
	// Root makes the hashed path relative, so names are stable across checkouts.
	Root string
}

// Result is the rewritten stylesheet and its class mapping.
type Result struct {
	CSS string
	// Classes maps each local class name to its scoped name.
	Classes map[string]string
}

// Exports renders the class mapping as a CommonJS module.
func (r Result) Exports() string {
	classes := r.Classes
	if classes == nil {
		classes = map[string]string{}
	}

	// Map keys are emitted sorted, which keeps the output stable.
	data, err := json.Marshal(classes)
	if err != nil {
		return "module.exports = {};"
	}

	return "module.exports = " + string(data) + ";"
}

// Transform scopes every local class selector in src. Declaration values, strings,
// urls and at-rule preludes are copied through byte for byte.
func Transform(src, path string, opts Options) (Result, error) {
	pattern := opts.ScopedName
	if pattern == "" {
		pattern = DefaultScopedName
	}

	key := filepath.ToSlash(path)
	if opts.Root != "" {
		if rel, err := filepath.Rel(opts.Root, path); err == nil {
			key = filepath.ToSlash(rel)
		}
	}

	t := &transformer{
		pattern: pattern,
		key:     key,
		name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		classes: make(map[string]string),
	}

	lexer := css.NewLexer(parse.NewInputString(src))

	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return Result{}, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
			}

			break
		}

		t.token(tt, data)
	}

	t.flush()

	return Result{CSS: t.out.String(), Classes: t.classes}, nil
}

type blockKind int

const (
	ruleList blockKind = iota
	declarations
	opaque
)

// groupRules hold nested style rules rather than declarations.
var groupRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@document":  true,
	"@layer":     true,
	"@container": true,
	"@scope":     true,
}

type paren struct {
	wrapper    bool
	prevGlobal bool
}

type transformer struct {
	pattern string
	key     string
	name    string
	classes map[string]string
	out     strings.Builder
	stack   []blockKind

	started      bool
	atName       string
	global       bool
	parens       []paren
	pendingDot   bool
	pendingColon bool
}

func (t *transformer) top() blockKind {
	if len(t.stack) == 0 {
		return ruleList
	}

	return t.stack[len(t.stack)-1]
}

func (t *transformer) pop() {
	if len(t.stack) > 0 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

func (t *transformer) token(tt css.TokenType, data []byte) {
	if t.top() != ruleList {
		switch tt {
		case css.LeftBraceToken:
			t.stack = append(t.stack, opaque)
		case css.RightBraceToken:
			t.pop()
		}

		t.out.Write(data)

		return
	}

	switch tt {
	case css.LeftBraceToken:
		kind := declarations
		if t.atName != "" {
			kind = opaque
			if groupRules[t.atName] {
				kind = ruleList
			}
		}

		t.flush()
		t.stack = append(t.stack, kind)
		t.out.Write(data)
	case css.RightBraceToken, css.SemicolonToken:
		t.flush()

		if tt == css.RightBraceToken {
			t.pop()
		}

		t.out.Write(data)
	case css.WhitespaceToken, css.CommentToken:
		t.flushPending()
		t.out.Write(data)
	case css.AtKeywordToken:
		if !t.started {
			t.atName = strings.ToLower(string(data))
		}

		t.started = true
		t.out.Write(data)
	default:
		t.started = true

		if t.atName != "" {
			t.out.Write(data)

			return
		}

		t.selector(tt, data)
	}
}

func (t *transformer) selector(tt css.TokenType, data []byte) {
	if t.pendingDot {
		t.pendingDot = false
		t.out.WriteByte('.')

		if tt == css.IdentToken {
			t.out.WriteString(t.className(string(data)))

			return
		}
	}

	if t.pendingColon {
		t.pendingColon = false

		if t.pseudoScope(tt, data) {
			return
		}

		t.out.WriteByte(':')
	}

	switch tt {
	case css.DelimToken:
		if string(data) == "." {
			t.pendingDot = true

			return
		}
	case css.ColonToken:
		t.pendingColon = true

		return
	case css.FunctionToken, css.LeftParenthesisToken:
		t.parens = append(t.parens, paren{prevGlobal: t.global})
	case css.RightParenthesisToken:
		if n := len(t.parens); n > 0 {
			p := t.parens[n-1]
			t.parens = t.parens[:n-1]

			if p.wrapper {
				t.global = p.prevGlobal

				return
			}
		}
	case css.CommaToken:
		if len(t.parens) == 0 {
			t.global = false
		}
	}

	t.out.Write(data)
}

// pseudoScope consumes :global/:local markers following a colon.
func (t *transformer) pseudoScope(tt css.TokenType, data []byte) bool {
	word := strings.ToLower(string(data))

	switch {
	case tt == css.FunctionToken && (word == "global(" || word == "local("):
		t.parens = append(t.parens, paren{wrapper: true, prevGlobal: t.global})
		t.global = word == "global("

		return true
	case tt == css.IdentToken && (word == "global" || word == "local"):
		t.global = word == "global"

		return true
	}

	return false
}

func (t *transformer) className(local string) string {
	if t.global {
		return local
	}

	if scoped, ok := t.classes[local]; ok {
		return scoped
	}

	scoped := t.scopedName(local)
	t.classes[local] = scoped

	return scoped
}

func (t *transformer) scopedName(local string) string {
	return placeholderRe.ReplaceAllStringFunc(t.pattern, func(match string) string {
		parts := placeholderRe.FindStringSubmatch(match)

		switch parts[1] {
		case "name":
			return t.name
		case "local":
			return local
		}

		sum := sha256.Sum256([]byte(t.key + "\x00" + local))

		var digest string
		if parts[2] == "base64" {
			digest = base64.RawURLEncoding.EncodeToString(sum[:])
		} else {
			digest = hex.EncodeToString(sum[:])
		}

		length := defaultHashLength
		if parts[3] != "" {
			if n, err := strconv.Atoi(parts[3]); err == nil && n > 0 {
				length = n
			}
		}

		return digest[:min(length, len(digest))]
	})
}

func (t *transformer) flushPending() {
	if t.pendingDot {
		t.out.WriteByte('.')
		t.pendingDot = false
	}

	if t.pendingColon {
		t.out.WriteByte(':')
		t.pendingColon = false
	}
}

// flush ends the current prelude.
func (t *transformer) flush() {
	t.flushPending()
	t.started = false
	t.atName = ""
	t.global = false
	t.parens = nil
}
