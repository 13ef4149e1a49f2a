// Package core provides shared error, validation and HTTP helpers for the
// DXF cropping tools.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/dxfcropmcp/pkg/crop"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrEmptyParameter     ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter   ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter   ErrorCode = "INVALID_PARAMETER"
	ErrInvalidGeometry    ErrorCode = "INVALID_GEOMETRY"
	ErrUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"
	ErrDocumentTooLarge   ErrorCode = "DOCUMENT_TOO_LARGE"
	ErrClipTooShort       ErrorCode = "CLIP_TOO_SHORT"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Input       string   `json:"input,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithInput records the offending input, truncated to keep results small.
func (e *MCPError) WithInput(input string) *MCPError {
	const max = 120
	if len(input) > max {
		input = input[:max] + "..."
	}
	e.Input = input
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// HTTPStatus maps the error code to the status the REST endpoints answer with.
func (e *MCPError) HTTPStatus() int {
	switch ErrorCode(e.Code) {
	case ErrDocumentTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable, ErrNetworkError, ErrServiceTimeout:
		return http.StatusBadGateway
	case ErrInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *MCPError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Please try again later."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case http.StatusUnauthorized, http.StatusForbidden:
		code = ErrUnauthorized
		guidance = "Check the configured API key."
	default:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// FromCropError translates errors returned by the crop package into
// structured tool errors.
func FromCropError(err error) *MCPError {
	var mcpErr *MCPError
	switch {
	case errors.As(err, &mcpErr):
		return mcpErr
	case errors.Is(err, crop.ErrInvalidGeometry):
		return NewError(ErrInvalidGeometry, err.Error()).
			WithGuidance("The clip polygon must have at least 3 points.").
			WithSuggestions("Use the form POLYGON ((x1 y1, x2 y2, x3 y3, x1 y1))",
				"Call parse_clip_polygon to see which points were read")
	case errors.Is(err, crop.ErrUnsupportedFormat):
		return NewError(ErrUnsupportedFormat, err.Error()).
			WithGuidance("Only ASCII DXF files can be cropped. Export DWG drawings to DXF first.")
	default:
		return NewError(ErrInternalError, err.Error())
	}
}
