package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the dart-sass executable looked up on PATH.
const DefaultBinary = "sass"

const errorPrefix = "Error: "

// ErrCompilerUnavailable is returned when the compiler process cannot be started.
var ErrCompilerUnavailable = errors.New("sass compiler unavailable")

// traceLineRe matches a stack frame such as "  _partial.scss 3:10  @import".
var traceLineRe = regexp.MustCompile(`^\s+(\S+)\s+(\d+):(\d+)\s+\S.*$`)

// DartSass runs the dart-sass command line compiler, feeding the source on stdin.
type DartSass struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewDartSass creates a DartSass service. An empty binary means DefaultBinary; extra
// args are passed before the generated ones.
func NewDartSass(binary string, timeout time.Duration, args []string, logger *slog.Logger) *DartSass {
	if binary == "" {
		binary = DefaultBinary
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DartSass{binary: binary, args: args, timeout: timeout, logger: logger}
}

// Args returns the command line for req, excluding the binary.
func (d *DartSass) Args(req Request) []string {
	args := make([]string, 0, len(d.args)+len(req.IncludePaths)+6)
	args = append(args, d.args...)
	args = append(args, "--stdin", "--no-color", "--no-error-css")

	if req.Syntax == SyntaxIndented {
		args = append(args, "--indented")
	}

	style := req.Style
	if style == "" {
		style = StyleExpanded
	}

	args = append(args, "--style="+string(style))

	for _, dir := range req.IncludePaths {
		args = append(args, "--load-path="+dir)
	}

	if req.SourceMap {
		args = append(args, "--embed-source-map", "--source-map-urls=absolute")
	}

	return args
}

// Compile runs the compiler once. Failures reported by the compiler come back as
// *SassError; the source map, when requested, is split out of the CSS.
func (d *DartSass) Compile(ctx context.Context, req Request) (Response, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if req.SourceComments {
		d.logger.DebugContext(ctx, "source comments are not supported by dart-sass", "path", req.Path)
	}

	cmd := exec.CommandContext(ctx, d.binary, d.Args(req)...)
	cmd.Stdin = strings.NewReader(req.Source)

	if filepath.IsAbs(req.Path) {
		cmd.Dir = filepath.Dir(req.Path)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("compile %s: %w", req.Path, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Response{}, ParseStderr(stderr.String())
		}

		return Response{}, fmt.Errorf("%w: %s: %w", ErrCompilerUnavailable, d.binary, runErr)
	}

	css, srcMap, err := ExtractSourceMap(stdout.String())
	if err != nil {
		return Response{}, fmt.Errorf("compile %s: %w", req.Path, err)
	}

	return Response{CSS: css, SourceMap: srcMap, Warnings: splitWarnings(stderr.String())}, nil
}

// ParseStderr reads a dart-sass failure report. The first stack frame locates the
// error; a frame named "-" refers to the stylesheet read from stdin.
func ParseStderr(stderr string) *SassError {
	sassErr := &SassError{Formatted: strings.TrimSpace(stderr)}

	for line := range strings.Lines(stderr) {
		line = strings.TrimRight(line, "\r\n")

		if sassErr.Message == "" {
			if msg, ok := strings.CutPrefix(line, errorPrefix); ok {
				sassErr.Message = strings.TrimSpace(msg)
			}

			continue
		}

		match := traceLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		if match[1] != "-" {
			sassErr.File = match[1]
		}

		sassErr.Line, _ = strconv.Atoi(match[2])
		sassErr.Column, _ = strconv.Atoi(match[3])

		break
	}

	if sassErr.Message == "" {
		sassErr.Message = firstLine(sassErr.Formatted)
	}

	return sassErr
}

func splitWarnings(stderr string) []string {
	var warnings []string

	for block := range strings.SplitSeq(strings.TrimSpace(stderr), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			warnings = append(warnings, block)
		}
	}

	return warnings
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
