package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	AttrDocumentBytes   = "dxf.document.bytes"
	AttrDocumentRecords = "dxf.document.records"
	AttrEntitiesTotal   = "dxf.entities.total"
	AttrEntitiesKept    = "dxf.entities.kept"
	AttrEntitiesRemoved = "dxf.entities.removed"
	AttrClipPoints      = "dxf.clip.points"

	AttrAdvisorName   = "advisor.name"
	AttrAdvisorResult = "advisor.geometry_type"
	AttrCacheHit      = "advisor.cache.hit"

	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// CropAttributes describes the outcome of one crop.
func CropAttributes(documentBytes, records, entities, kept, removed, clipPoints int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrDocumentBytes, documentBytes),
		attribute.Int(AttrDocumentRecords, records),
		attribute.Int(AttrEntitiesTotal, entities),
		attribute.Int(AttrEntitiesKept, kept),
		attribute.Int(AttrEntitiesRemoved, removed),
		attribute.Int(AttrClipPoints, clipPoints),
	}
}

// AdvisorAttributes describes an advisory validation.
func AdvisorAttributes(name, geometryType string, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAdvisorName, name),
		attribute.String(AttrAdvisorResult, geometryType),
		attribute.Bool(AttrCacheHit, cacheHit),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
