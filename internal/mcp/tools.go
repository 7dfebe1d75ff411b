package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
)

// Tool name constants.
const (
	ToolNameDependencies = "sass_dependencies"
	ToolNameCompile      = "sass_compile"
)

// MaxContentBytes is the maximum allowed size for inline stylesheet content (1 MB).
const MaxContentBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrNotStylesheet indicates the path does not end in .scss or .sass.
	ErrNotStylesheet = errors.New("path must name a .scss or .sass file")
	// ErrContentTooLarge indicates the content input exceeds the size limit.
	ErrContentTooLarge = errors.New("content input exceeds maximum size")
)

// DependenciesInput is the input schema for the sass_dependencies tool.
type DependenciesInput struct {
	Content string `json:"content,omitempty" jsonschema:"optional unsaved stylesheet text; read from path when empty"`
	Path    string `json:"path"              jsonschema:"stylesheet path, absolute or relative to the project root"`
}

// CompileInput is the input schema for the sass_compile tool.
type CompileInput struct {
	Content string `json:"content,omitempty" jsonschema:"optional unsaved stylesheet text; read from path when empty"`
	Path    string `json:"path"              jsonschema:"stylesheet path, absolute or relative to the project root"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validatePath checks the path and content constraints and returns the path made
// absolute against root.
func validatePath(root, path, content string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if !resolve.IsStylesheet(path) {
		return "", fmt.Errorf("%w: %s", ErrNotStylesheet, path)
	}

	if len(content) > MaxContentBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrContentTooLarge, len(content), MaxContentBytes)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	return filepath.Clean(path), nil
}
