package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Error is a compile failure reformatted for build output:
// "L<line>:<col>: <message>" when it occurred in the compiled file, or
// "L<line>:<col> of <file>. <message>" when it occurred in an imported one.
type Error struct {
	Path    string
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("L%d:%d", e.Line, e.Column)

	if e.File == "" || e.File == e.Path {
		return loc + ": " + e.Message
	}

	return loc + " of " + e.File + ". " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FormatError converts a compiler failure for path into an *Error. Errors without a
// location are returned unchanged.
func FormatError(path string, err error) error {
	var sassErr *SassError
	if !errors.As(err, &sassErr) || sassErr.Line == 0 {
		return err
	}

	file := sassErr.File
	if file != "" && !filepath.IsAbs(file) && filepath.IsAbs(path) {
		file = filepath.Join(filepath.Dir(path), file)
	}

	return &Error{
		Path:    path,
		File:    file,
		Line:    sassErr.Line,
		Column:  sassErr.Column,
		Message: sassErr.Message,
		Err:     err,
	}
}
