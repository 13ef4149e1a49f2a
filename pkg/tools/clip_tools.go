package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/dxfcropmcp/pkg/advisor"
	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
	"github.com/NERVsystems/dxfcropmcp/pkg/wkt"
)

// ClipPoint is a parsed vertex. Coordinates that are not numbers are null.
type ClipPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ClipBounds is the bounding box of the parsed ring, omitted when any
// coordinate is not finite.
type ClipBounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// ParseClipOutput is the result of parse_clip_polygon.
type ParseClipOutput struct {
	Points  []ClipPoint `json:"points"`
	Count   int         `json:"count"`
	Usable  bool        `json:"usable"`
	Problem string      `json:"problem,omitempty"`
	WKT     string      `json:"wkt,omitempty"`
	Bounds  *ClipBounds `json:"bounds,omitempty"`
}

// ParseClipPolygonTool returns the parse_clip_polygon tool definition.
func ParseClipPolygonTool(f *core.ToolFactory) mcp.Tool {
	return f.CreateClipTool("parse_clip_polygon",
		"Show the points the cropper reads from a clip polygon and whether it can crop with them. "+
			"Only the first ring of the first POLYGON literal is used; at least 3 points are required.")
}

// HandleParseClipPolygon implements parse_clip_polygon.
func HandleParseClipPolygon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "parse_clip_polygon")

	clip, err := core.RequireString(req, "clip_polygon")
	if err != nil {
		logger.Error("invalid parse request", "error", err)
		return ErrorResult(err, "parse_clip_polygon"), nil
	}

	return jsonResult(logger, describeClip(clip)), nil
}

func describeClip(clip string) ParseClipOutput {
	poly, err := wkt.Parse(clip)
	output := ParseClipOutput{
		Points: make([]ClipPoint, 0, len(poly)),
		Count:  len(poly),
	}
	for _, pt := range poly {
		output.Points = append(output.Points, ClipPoint{X: finite(pt.X), Y: finite(pt.Y)})
	}

	switch {
	case err != nil:
		// The cropper sees no points at all for unparseable text.
		output.Points = output.Points[:0]
		output.Count = 0
		output.Problem = err.Error()
	case !poly.Valid():
		output.Problem = "fewer than 3 points"
	default:
		output.Usable = true
		output.WKT = wkt.Format(poly)
		if b := poly.Bounds(); finite(b.MinX) != nil && finite(b.MinY) != nil && finite(b.MaxX) != nil && finite(b.MaxY) != nil {
			output.Bounds = &ClipBounds{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
		}
	}
	return output
}

// ValidateClipInput is the input of validate_clip_geometry.
type ValidateClipInput struct {
	ClipPolygon string `json:"clip_polygon"`
}

// ValidateClipOutput is the result of validate_clip_geometry.
type ValidateClipOutput struct {
	advisor.Verdict
	Validator string `json:"validator"`
	Advisory  bool   `json:"advisory"`
}

// ValidateClipGeometryTool returns the validate_clip_geometry tool definition.
func ValidateClipGeometryTool(f *core.ToolFactory) mcp.Tool {
	return f.CreateClipTool("validate_clip_geometry",
		"Get an advisory opinion on whether clip geometry text is well-formed WKT, with its geometry type. "+
			"The opinion never changes how crop_dxf behaves.")
}

// NewValidateClipGeometryHandler returns the validate_clip_geometry handler
// backed by v.
func NewValidateClipGeometryHandler(v advisor.Validator) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("validate_clip_geometry", func(ctx context.Context, input ValidateClipInput, logger *slog.Logger) (any, error) {
		if strings.TrimSpace(input.ClipPolygon) == "" {
			return nil, core.NewValidationError(core.ErrMissingParameter, "clip_polygon is required")
		}

		verdict, err := ValidateClip(ctx, v, input.ClipPolygon)
		if err != nil {
			return nil, err
		}
		return ValidateClipOutput{Verdict: verdict, Validator: v.Name(), Advisory: true}, nil
	})
}

// ValidateClip asks v for a verdict on clip. Validators record their own
// request metrics.
func ValidateClip(ctx context.Context, v advisor.Validator, clip string) (advisor.Verdict, error) {
	ctx, span := tracing.StartSpan(ctx, "advisor.validate")
	defer span.End()

	verdict, err := v.Validate(ctx, clip)
	if err != nil {
		tracing.RecordError(ctx, err)
		if errors.Is(err, advisor.ErrTooShort) {
			return advisor.Verdict{}, core.NewValidationError(core.ErrClipTooShort, err.Error()).
				WithInput(clip).
				WithGuidance(GuidanceAdvisorShort)
		}
		return advisor.Verdict{}, err
	}

	span.AddEvent("verdict", trace.WithAttributes(tracing.AdvisorAttributes(v.Name(), verdict.GeometryType, false)...))
	return verdict, nil
}
