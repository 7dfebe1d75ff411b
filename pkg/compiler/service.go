// Package compiler turns Sass sources into CSS through an external compiler service
// and post-processes the result for the asset pipeline.
package compiler

import (
	"context"
	"fmt"
)

// Syntax selects the input grammar.
type Syntax string

// Input grammars.
const (
	SyntaxSCSS     Syntax = "scss"
	SyntaxIndented Syntax = "indented"
)

// Style selects the output formatting.
type Style string

// Output styles.
const (
	StyleExpanded   Style = "expanded"
	StyleCompressed Style = "compressed"
)

// Request is one compilation.
type Request struct {
	// Path is the stylesheet location, used for relative imports and diagnostics.
	Path         string
	Source       string
	Syntax       Syntax
	Style        Style
	IncludePaths []string
	// SourceMap requests a source map in Response.SourceMap.
	SourceMap bool
	// SourceComments asks for line comments in expanded output.
	SourceComments bool
}

// Response is a successful compilation.
type Response struct {
	CSS       string
	SourceMap []byte
	// Warnings are diagnostics the compiler printed without failing.
	Warnings []string
}

// Service compiles Sass.
type Service interface {
	Compile(ctx context.Context, req Request) (Response, error)
}

// SassError is a compiler failure with its reported location. File is empty when the
// error is in the source being compiled.
type SassError struct {
	Message   string
	File      string
	Line      int
	Column    int
	Formatted string
}

func (e *SassError) Error() string {
	if e.Line == 0 {
		return e.Message
	}

	if e.File == "" {
		return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Line, e.Column)
	}

	return fmt.Sprintf("%s (%s line %d, column %d)", e.Message, e.File, e.Line, e.Column)
}
