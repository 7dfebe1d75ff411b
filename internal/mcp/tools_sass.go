package mcp

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
)

// UnresolvedImport is an import target that matched no file.
type UnresolvedImport struct {
	Importer string `json:"importer"`
	Target   string `json:"target"`
}

// DependenciesResult is the sass_dependencies payload.
type DependenciesResult struct {
	Entry      string             `json:"entry"`
	Files      []string           `json:"files"`
	Unresolved []UnresolvedImport `json:"unresolved,omitempty"`
}

// CompileResult is the sass_compile payload.
type CompileResult struct {
	Path         string   `json:"path"`
	CSS          string   `json:"css"`
	SourceMap    string   `json:"source_map,omitempty"`
	Exports      string   `json:"exports,omitempty"`
	Dependencies []string `json:"dependencies"`
	Cached       bool     `json:"cached"`
}

func (s *Server) source(path, content string) (compiler.Source, error) {
	abs, err := validatePath(s.pipeline.Options().RootPath, path, content)
	if err != nil {
		return compiler.Source{}, err
	}

	if content != "" {
		return compiler.Source{Path: abs, Data: content}, nil
	}

	data, err := util.ReadFile(s.resolver.Filesystem(), abs)
	if err != nil {
		return compiler.Source{}, fmt.Errorf("read %s: %w", abs, err)
	}

	return compiler.Source{Path: abs, Data: string(data)}, nil
}

func (s *Server) handleDependencies(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input DependenciesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	src, err := s.source(input.Path, input.Content)
	if err != nil {
		return errorResult(err)
	}

	res, err := s.resolver.ResolveDetailed(ctx, src.Data, src.Path, s.pipeline.ResolveContext())
	if err != nil {
		return errorResult(err)
	}

	out := DependenciesResult{Entry: src.Path, Files: res.Files}
	if out.Files == nil {
		out.Files = []string{}
	}

	for _, miss := range res.Unresolved {
		out.Unresolved = append(out.Unresolved, UnresolvedImport{Importer: miss.Importer, Target: miss.Target})
	}

	return jsonResult(out)
}

func (s *Server) handleCompile(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CompileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	src, err := s.source(input.Path, input.Content)
	if err != nil {
		return errorResult(err)
	}

	out, err := s.pipeline.Compile(ctx, src)
	if err != nil {
		return errorResult(err)
	}

	result := CompileResult{
		Path:         src.Path,
		CSS:          out.CSS,
		SourceMap:    string(out.Map),
		Exports:      out.Exports,
		Dependencies: out.Dependencies,
		Cached:       out.Cached,
	}

	if result.Dependencies == nil {
		result.Dependencies = []string{}
	}

	return jsonResult(result)
}
