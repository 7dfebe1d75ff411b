// Package mcp implements a Model Context Protocol server exposing sasspipe
// dependency resolution and compilation as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/resolve"
	"github.com/Sumatoshi-tech/sasspipe/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "sasspipe"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
type ServerDeps struct {
	// Pipeline compiles stylesheets. Required.
	Pipeline *compiler.Pipeline

	// Resolver reads sources and resolves imports. Required; it should be the
	// resolver the pipeline was built with.
	Resolver *resolve.Resolver

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.OperationMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with sasspipe tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	pipeline *compiler.Pipeline
	resolver *resolve.Resolver
	metrics  *observability.OperationMetrics
	tracer   trace.Tracer
}

// NewServer creates a new MCP server with all sasspipe tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:    inner,
		tools:    make([]string, 0, toolCount),
		pipeline: deps.Pipeline,
		resolver: deps.Resolver,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameDependencies,
		Description: dependenciesToolDescription,
	}, withMetrics(s.metrics, ToolNameDependencies, withTracing(s.tracer, ToolNameDependencies, s.handleDependencies)))

	s.trackTool(ToolNameDependencies)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCompile,
		Description: compileToolDescription,
	}, withMetrics(s.metrics, ToolNameCompile, withTracing(s.tracer, ToolNameCompile, s.handleCompile)))

	s.trackTool(ToolNameCompile)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record one operation per invocation.
func withMetrics[Input any](
	metrics *observability.OperationMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	op := observability.Op(mcpSpanPrefix + toolName)

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.Track(ctx, op)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.Status(err)
		if err == nil && result != nil && result.IsError {
			status = observability.StatusError
		}

		metrics.Record(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	dependenciesToolDescription = "List every stylesheet a Sass/SCSS file imports, transitively, " +
		"following partial, extension, index and glob conventions. " +
		"Accepts a path and optional unsaved content; reports unresolved imports."

	compileToolDescription = "Compile a Sass/SCSS file to CSS with the project's include paths, " +
		"source map and CSS modules settings. Accepts a path and optional unsaved content."
)
