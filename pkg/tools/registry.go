package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/dxfcropmcp/pkg/advisor"
	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools/prompts"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
)

// HandlerFunc handles one tool call.
type HandlerFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Config carries what the tools need from the server.
type Config struct {
	// MaxDocumentBytes bounds document arguments. Zero or less means no limit.
	MaxDocumentBytes int
	// Validator answers validate_clip_geometry. Defaults to advisor.Local.
	Validator advisor.Validator
}

// Registry contains all tool definitions and handlers
type Registry struct {
	logger  *slog.Logger
	factory *core.ToolFactory
	config  Config
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger, config Config) *Registry {
	if config.Validator == nil {
		config.Validator = advisor.Local{}
	}
	return &Registry{
		logger:  logger,
		factory: core.NewToolFactory(config.MaxDocumentBytes),
		config:  config,
	}
}

// ToolDefinition represents a DXF crop MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     HandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	defs := []ToolDefinition{
		{
			Name:        "crop_dxf",
			Description: "Crop a DXF document to a clip polygon. Parameters: document (string), clip_polygon (WKT string), file_name (string, optional), include_document (boolean, optional)",
			Tool:        CropDXFTool(r.factory),
			Handler:     NewCropDXFHandler(r.config.MaxDocumentBytes),
		},
		{
			Name:        "summarize_dxf",
			Description: "Summarize the sections, entities and extents of a DXF document. Parameters: document (string), file_name (string, optional)",
			Tool:        SummarizeDXFTool(r.factory),
			Handler:     NewSummarizeDXFHandler(r.config.MaxDocumentBytes),
		},
		{
			Name:        "parse_clip_polygon",
			Description: "Show the points read from a WKT clip polygon. Parameters: clip_polygon (WKT string)",
			Tool:        ParseClipPolygonTool(r.factory),
			Handler:     HandleParseClipPolygon,
		},
		{
			Name:        "validate_clip_geometry",
			Description: "Advisory WKT validation of clip geometry. Parameters: clip_polygon (WKT string)",
			Tool:        ValidateClipGeometryTool(r.factory),
			Handler:     NewValidateClipGeometryHandler(r.config.Validator),
		},
	}

	names := make([]string, 0, len(defs)+1)
	for _, def := range defs {
		names = append(names, def.Name)
	}
	names = append(names, "get_version")

	return append(defs, ToolDefinition{
		Name:        "get_version",
		Description: "Get the version information for this DXF crop MCP",
		Tool:        GetVersionTool(),
		Handler:     NewGetVersionHandler(names),
	})
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// wrapWithTracing wraps a tool handler with a span and request metrics.
func (r *Registry) wrapWithTracing(toolName string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, toolName)),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case IsErrorResult(result):
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// RegisterPrompts registers all prompts with the MCP server.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering crop prompts")
	prompts.RegisterCropPrompts(mcpServer)
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// Handler returns the traced handler of the named tool, or nil.
func (r *Registry) Handler(name string) HandlerFunc {
	for _, def := range r.GetToolDefinitions() {
		if def.Name == name {
			return r.wrapWithTracing(def.Name, def.Handler)
		}
	}
	return nil
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
