package core

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/dxfcropmcp/pkg/crop"
)

// DefaultMaxDocumentBytes bounds the size of a document accepted in one
// tool call.
const DefaultMaxDocumentBytes = 32 << 20

// ValidateDocument checks that a document is present and not larger than
// maxBytes. A maxBytes of zero or less disables the size check.
func ValidateDocument(doc string, maxBytes int) error {
	if strings.TrimSpace(doc) == "" {
		return NewValidationError(ErrEmptyParameter, "document is empty").
			WithSuggestions("Pass the full text of an ASCII DXF file")
	}
	if maxBytes > 0 && len(doc) > maxBytes {
		return NewError(ErrDocumentTooLarge,
			fmt.Sprintf("document is %d bytes, limit is %d", len(doc), maxBytes)).
			WithGuidance("Crop large drawings with the dxfcrop command line tool instead.")
	}
	return nil
}

// ValidateFileName checks an optional file name. An empty name is allowed.
func ValidateFileName(name string) error {
	if name == "" {
		return nil
	}
	if err := crop.CheckFormat(name); err != nil {
		return FromCropError(err).WithInput(name)
	}
	return nil
}

// RequireString extracts a required, non-blank string argument.
func RequireString(req mcp.CallToolRequest, key string) (string, error) {
	value, err := req.RequireString(key)
	if err != nil {
		return "", NewValidationError(ErrMissingParameter, fmt.Sprintf("%s is required", key))
	}
	if strings.TrimSpace(value) == "" {
		return "", NewValidationError(ErrEmptyParameter, fmt.Sprintf("%s must not be empty", key))
	}
	return value, nil
}

// ParseCropRequest extracts and validates the document, clip and optional
// file name arguments shared by the document tools.
func ParseCropRequest(req mcp.CallToolRequest, maxBytes int) (doc, clip, name string, err error) {
	doc, err = RequireString(req, "document")
	if err != nil {
		return "", "", "", err
	}
	if err = ValidateDocument(doc, maxBytes); err != nil {
		return "", "", "", err
	}

	clip, err = RequireString(req, "clip_polygon")
	if err != nil {
		return "", "", "", err
	}

	name = mcp.ParseString(req, "file_name", "")
	if err = ValidateFileName(name); err != nil {
		return "", "", "", err
	}
	return doc, clip, name, nil
}

// ParseCropRequestWithLog parses the crop arguments and logs any errors
func ParseCropRequestWithLog(req mcp.CallToolRequest, logger *slog.Logger, maxBytes int) (doc, clip, name string, err error) {
	doc, clip, name, err = ParseCropRequest(req, maxBytes)
	if err != nil {
		logger.Error("invalid crop request", "error", err)
	}
	return doc, clip, name, err
}
