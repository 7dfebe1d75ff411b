// Package report renders dependency listings and build results for terminals,
// machines (JSON, YAML, DOT) and browsers (HTML charts).
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

// Supported formats. Not every report supports every format.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
	FormatDOT  Format = "dot"
)

// ErrUnsupportedFormat is returned for formats a report cannot render.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat maps a flag value to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatHTML, FormatDOT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// display returns path relative to root when it lies beneath it.
func display(root, path string) string {
	if root == "" {
		return path
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return rel
}

// marshalAndWrite marshals data and writes the result to writer.
func marshalAndWrite(data any, marshal func(any) ([]byte, error), writer io.Writer, label string) error {
	encoded, err := marshal(data)
	if err != nil {
		return fmt.Errorf("%s encode: %w", label, err)
	}

	_, writeErr := writer.Write(encoded)
	if writeErr != nil {
		return fmt.Errorf("%s write: %w", label, writeErr)
	}

	return nil
}

func writeEncoded(data any, format Format, writer io.Writer) error {
	switch format {
	case FormatJSON:
		return marshalAndWrite(data, func(v any) ([]byte, error) {
			out, err := json.MarshalIndent(v, "", "  ")

			return append(out, '\n'), err
		}, writer, "json")
	case FormatYAML:
		return marshalAndWrite(data, yaml.Marshal, writer, "yaml")
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
