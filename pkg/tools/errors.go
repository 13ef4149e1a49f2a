// Package tools provides the DXF cropping MCP tools.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
)

// Common error guidance messages
const (
	GuidanceClipFormat   = "Describe the clip region as a single WKT ring: POLYGON ((x1 y1, x2 y2, x3 y3, x1 y1))."
	GuidanceDocument     = "Pass the complete text of an ASCII DXF file, starting with the first group code."
	GuidanceAdvisorShort = "Geometry text this short cannot describe a polygon."
	GuidanceGeneral      = "Please try again later or modify your request parameters."
)

// ErrorResponse returns a plain error result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorResult converts err into a structured error result. Errors that are
// already MCPErrors keep their code; crop errors are translated.
func ErrorResult(err error, toolName string) *mcp.CallToolResult {
	mcpErr := core.FromCropError(err)
	if example := GetToolUsageExample(toolName); example != "" && len(mcpErr.Suggestions) == 0 {
		mcpErr.WithSuggestions(fmt.Sprintf("Example: %s", example))
	}
	return mcpErr.ToMCPResult()
}

// GetToolUsageExample returns an example argument object for a tool, used
// as a hint when parameter validation fails.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"crop_dxf": `{
  "document": "0\nSECTION\n2\nENTITIES\n0\nLINE\n10\n1\n20\n1\n11\n4\n21\n4\n0\nENDSEC\n0\nEOF\n",
  "clip_polygon": "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))",
  "file_name": "site.dxf"
}`,
		"summarize_dxf": `{
  "document": "0\nSECTION\n2\nENTITIES\n0\nENDSEC\n0\nEOF\n"
}`,
		"parse_clip_polygon": `{
  "clip_polygon": "POLYGON ((0 0, 10 0, 10 10, 0 0))"
}`,
		"validate_clip_geometry": `{
  "clip_polygon": "POLYGON ((0 0, 10 0, 10 10, 0 0))"
}`,
	}
	return examples[toolName]
}
