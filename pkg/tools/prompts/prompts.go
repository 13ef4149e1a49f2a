// Package prompts holds the prompt texts served by the DXF crop MCP server.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CropSystemPrompt explains to an assistant how the cropping tools fit
// together.
func CropSystemPrompt() string {
	return `You can crop DXF drawings to a region with these tools:

1. summarize_dxf: read the drawing's sections, entity counts and extents.
   Use the extents to pick clip coordinates in the drawing's own units.
2. parse_clip_polygon: check which points the cropper reads from your
   clip polygon. It must be a single WKT ring with at least 3 points, e.g.
   POLYGON ((0 0, 100 0, 100 50, 0 50, 0 0)). Interior rings, MULTIPOLYGON
   and other geometry types are not used.
3. validate_clip_geometry (optional): an advisory opinion on the WKT. It
   never changes the crop result.
4. crop_dxf: remove every entity that lies wholly outside the polygon.

Rules the cropper follows:
- Only the ENTITIES section changes. Header, tables, blocks and objects are
  returned byte for byte, with the original line endings.
- LINE, LWPOLYLINE, POLYLINE and SPLINE stay when any vertex is inside or
  any segment crosses the polygon boundary.
- CIRCLE and ARC stay when their center is inside or their bounding square
  overlaps the polygon's bounding box, so a few circles just outside the
  polygon may remain.
- TEXT, MTEXT, INSERT and POINT stay when their insertion point is inside.
- Other entity types follow the LINE rule when they carry coordinates and
  are kept when they do not.
- Coordinates that are not numbers never count as inside.

If crop_dxf reports INVALID_GEOMETRY, call parse_clip_polygon to see what
was read and fix the polygon before retrying.`
}

// CropWorkflowPrompt renders a step-by-step request for cropping one file.
func CropWorkflowPrompt(fileName, region string) string {
	var b strings.Builder
	b.WriteString("Crop the DXF drawing")
	if fileName != "" {
		fmt.Fprintf(&b, " %q", fileName)
	}
	b.WriteString(".\n\n")
	b.WriteString("First call summarize_dxf to learn the drawing extents.\n")
	if region != "" {
		fmt.Fprintf(&b, "The region to keep is: %s\n", region)
		b.WriteString("Express it as a WKT POLYGON in drawing units and check it with parse_clip_polygon.\n")
	} else {
		b.WriteString("Ask which region to keep, then express it as a WKT POLYGON in drawing units and check it with parse_clip_polygon.\n")
	}
	b.WriteString("Finally call crop_dxf and report how many entities were kept and removed, by type.")
	if fileName != "" {
		fmt.Fprintf(&b, " The output file is named cropped_%s.", fileName)
	}
	return b.String()
}

// RegisterCropPrompts adds the crop prompts to mcpServer.
func RegisterCropPrompts(mcpServer *server.MCPServer) {
	systemPrompt := mcp.NewPrompt("crop_system",
		mcp.WithPromptDescription("System prompt describing the DXF cropping tools and their rules"),
	)
	mcpServer.AddPrompt(systemPrompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"DXF Cropping Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(CropSystemPrompt())),
			},
		), nil
	})

	workflow := mcp.NewPrompt("crop_workflow",
		mcp.WithPromptDescription("Guide an assistant through summarizing, checking the clip polygon and cropping one DXF file"),
		mcp.WithArgument("file_name",
			mcp.ArgumentDescription("Name of the DXF file to crop"),
		),
		mcp.WithArgument("region",
			mcp.ArgumentDescription("The region to keep, in words or as WKT"),
		),
	)
	mcpServer.AddPrompt(workflow, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		fileName := req.Params.Arguments["file_name"]
		region := req.Params.Arguments["region"]
		return mcp.NewGetPromptResult(
			"Crop a DXF drawing",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(CropWorkflowPrompt(fileName, region))),
			},
		), nil
	})
}
