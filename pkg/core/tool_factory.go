package core

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFactory builds tool definitions that share the same argument
// names and descriptions.
type ToolFactory struct {
	maxDocumentBytes int
}

// NewToolFactory creates a factory whose document arguments advertise
// maxDocumentBytes as their limit. Zero or less means no limit.
func NewToolFactory(maxDocumentBytes int) *ToolFactory {
	return &ToolFactory{maxDocumentBytes: maxDocumentBytes}
}

// CreateBasicTool creates a new tool with the specified name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

func (f *ToolFactory) documentOption() mcp.ToolOption {
	desc := "Full text of an ASCII DXF file"
	if f.maxDocumentBytes > 0 {
		desc += fmt.Sprintf(" (max %d bytes)", f.maxDocumentBytes)
	}
	return mcp.WithString("document",
		mcp.Required(),
		mcp.Description(desc),
	)
}

func clipOption() mcp.ToolOption {
	return mcp.WithString("clip_polygon",
		mcp.Required(),
		mcp.Description("Clip region as WKT, e.g. POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0)). Drawing units, single ring."),
	)
}

// CreateDocumentTool creates a tool that takes a DXF document and an
// optional file name.
func (f *ToolFactory) CreateDocumentTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		f.documentOption(),
		mcp.WithString("file_name",
			mcp.Description("Original file name; must end in .dxf when given"),
		),
	)
}

// CreateCropTool creates a tool that takes a document, a clip polygon and
// an optional file name.
func (f *ToolFactory) CreateCropTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		f.documentOption(),
		clipOption(),
		mcp.WithString("file_name",
			mcp.Description("Original file name; must end in .dxf when given. The result is named cropped_<file_name>."),
		),
		mcp.WithBoolean("include_document",
			mcp.Description("Return the cropped document text (default true). Set false to get statistics only."),
			mcp.DefaultBool(true),
		),
	)
}

// CreateClipTool creates a tool that takes only a clip polygon.
func (f *ToolFactory) CreateClipTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		clipOption(),
	)
}
