package tools

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/dxfcropmcp/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version     string            `json:"version"`
	Commit      string            `json:"commit"`
	BuildDate   string            `json:"build_date"`
	GoVersion   string            `json:"go_version"`
	VCSRevision string            `json:"vcs_revision,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version, build information and tool list of the DXF crop MCP service"),
	)
}

// NewGetVersionHandler returns the get_version handler. tools lists the
// registered tool names.
func NewGetVersionHandler(tools []string) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", "get_version")

		info := version.Info()
		versionInfo := VersionInfo{
			Version:   info["version"],
			Commit:    info["commit"],
			BuildDate: info["build_date"],
			GoVersion: info["go_version"],
			Settings:  make(map[string]string),
			Tools:     tools,
		}

		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range buildInfo.Settings {
				switch setting.Key {
				case "vcs.revision":
					versionInfo.VCSRevision = setting.Value
				case "GOOS", "GOARCH", "vcs.time", "vcs.modified":
					versionInfo.Settings[setting.Key] = setting.Value
				}
			}
		}

		return jsonResult(logger, versionInfo), nil
	}
}
