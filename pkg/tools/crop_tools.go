package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/crop"
	"github.com/NERVsystems/dxfcropmcp/pkg/dxf"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
)

// Sources label where a crop request came from in metrics.
const (
	SourceMCP  = "mcp"
	SourceHTTP = "http"
	SourceCLI  = "cli"
)

type sourceKey struct{}

// WithSource returns a context whose tool calls are labelled with source.
// Calls without one are labelled SourceMCP.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if source, ok := ctx.Value(sourceKey{}).(string); ok && source != "" {
		return source
	}
	return SourceMCP
}

// CropDocument crops doc against clip and records metrics and a span for
// the run. source labels the caller.
func CropDocument(ctx context.Context, source, doc, clip string) (crop.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "dxf.crop")
	defer span.End()

	start := time.Now()
	poly, err := crop.ClipPolygon(clip)
	if err != nil {
		reason := "internal"
		if errors.Is(err, crop.ErrInvalidGeometry) {
			reason = "invalid_geometry"
		}
		monitoring.RecordCropFailure(source, reason)
		tracing.RecordError(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return crop.Result{}, err
	}

	result := crop.Crop(doc, poly)
	stats := result.Stats
	monitoring.RecordCrop(source, len(doc), time.Since(start), stats.KeptByType, stats.RemovedByType)
	span.SetAttributes(tracing.CropAttributes(len(doc), stats.Records, stats.Entities, stats.Kept, stats.Removed, len(poly))...)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// CropDXFOutput is the result of crop_dxf.
type CropDXFOutput struct {
	FileName string     `json:"file_name,omitempty"`
	Document string     `json:"document,omitempty"`
	Stats    crop.Stats `json:"stats"`
}

// CropDXFTool returns the crop_dxf tool definition.
func CropDXFTool(f *core.ToolFactory) mcp.Tool {
	return f.CreateCropTool("crop_dxf",
		"Remove every entity of a DXF drawing that lies wholly outside a clip polygon. "+
			"Headers, tables, blocks and objects are returned byte for byte; only the ENTITIES section is filtered.")
}

// NewCropDXFHandler returns the crop_dxf handler. Documents larger than
// maxDocumentBytes are rejected.
func NewCropDXFHandler(maxDocumentBytes int) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", "crop_dxf")
		source := sourceFrom(ctx)

		doc, clip, name, err := core.ParseCropRequestWithLog(req, logger, maxDocumentBytes)
		if err != nil {
			monitoring.RecordCropFailure(source, "invalid_input")
			return ErrorResult(err, "crop_dxf"), nil
		}
		includeDocument := mcp.ParseBoolean(req, "include_document", true)

		result, err := CropDocument(ctx, source, doc, clip)
		if err != nil {
			logger.Error("crop failed", "error", err)
			return ErrorResult(err, "crop_dxf"), nil
		}

		logger.Info("document cropped",
			"bytes_in", len(doc),
			"bytes_out", len(result.Document),
			"kept", result.Stats.Kept,
			"removed", result.Stats.Removed)

		output := CropDXFOutput{Stats: result.Stats}
		if name != "" {
			output.FileName = crop.OutputName(name)
		}
		if includeDocument {
			output.Document = result.Document
		}
		return jsonResult(logger, output), nil
	}
}

// SummarizeDXFTool returns the summarize_dxf tool definition.
func SummarizeDXFTool(f *core.ToolFactory) mcp.Tool {
	return f.CreateDocumentTool("summarize_dxf",
		"Describe a DXF drawing without changing it: section names, record count, entity counts by type, line endings and drawing extents. "+
			"Use it to choose a clip polygon before calling crop_dxf.")
}

// NewSummarizeDXFHandler returns the summarize_dxf handler.
func NewSummarizeDXFHandler(maxDocumentBytes int) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", "summarize_dxf")

		doc, err := core.RequireString(req, "document")
		if err == nil {
			err = core.ValidateDocument(doc, maxDocumentBytes)
		}
		if err == nil {
			err = core.ValidateFileName(mcp.ParseString(req, "file_name", ""))
		}
		if err != nil {
			logger.Error("invalid summarize request", "error", err)
			return ErrorResult(err, "summarize_dxf"), nil
		}

		_, span := tracing.StartSpan(ctx, "dxf.summarize", trace.WithAttributes(attribute.Int(tracing.AttrDocumentBytes, len(doc))))
		summary := dxf.Summarize(doc)
		span.End()

		logger.Debug("document summarized", "records", summary.Records, "entities", summary.Entities)
		return jsonResult(logger, summary), nil
	}
}
