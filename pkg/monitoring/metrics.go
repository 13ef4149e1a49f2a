package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "dxfcropmcp"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dxfcropmcp_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Crop metrics
	CropDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_crop_documents_total",
			Help: "Total number of documents cropped",
		},
		[]string{"source", "status"},
	)

	CropEntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_crop_entities_total",
			Help: "Entities judged during cropping, by entity type and decision",
		},
		[]string{"entity_type", "decision"},
	)

	CropDocumentBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dxfcropmcp_crop_document_bytes",
			Help:    "Size of cropped input documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	CropDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dxfcropmcp_crop_duration_seconds",
			Help:    "Time spent cropping one document",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"source"},
	)

	// Advisory validation metrics
	AdvisorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_advisor_requests_total",
			Help: "Total number of advisory geometry validations",
		},
		[]string{"advisor", "status"},
	)

	AdvisorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dxfcropmcp_advisor_request_duration_seconds",
			Help:    "Advisory validation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"advisor"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"scope"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dxfcropmcp_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.01, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"scope"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dxfcropmcp_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dxfcropmcp_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dxfcropmcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dxfcropmcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dxfcropmcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dxfcropmcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordMCPRequest counts one tool call and its duration.
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCrop records a successful crop: its input size, duration and the
// per-type kept and removed entity counts.
func RecordCrop(source string, documentBytes int, duration time.Duration, kept, removed map[string]int) {
	CropDocumentsTotal.WithLabelValues(source, "success").Inc()
	CropDocumentBytes.Observe(float64(documentBytes))
	CropDuration.WithLabelValues(source).Observe(duration.Seconds())
	for entityType, n := range kept {
		CropEntitiesTotal.WithLabelValues(entityLabel(entityType), "kept").Add(float64(n))
	}
	for entityType, n := range removed {
		CropEntitiesTotal.WithLabelValues(entityLabel(entityType), "removed").Add(float64(n))
	}
}

// RecordCropFailure counts a crop that produced no output.
func RecordCropFailure(source, reason string) {
	CropDocumentsTotal.WithLabelValues(source, "error").Inc()
	RecordError("crop", reason)
}

// entityLabel keeps the label set bounded: entity types outside the
// classified set share one label.
func entityLabel(entityType string) string {
	switch entityType {
	case "LINE", "LWPOLYLINE", "POLYLINE", "SPLINE", "CIRCLE", "ARC",
		"POINT", "INSERT", "TEXT", "MTEXT":
		return entityType
	case "":
		return "untyped"
	default:
		return "other"
	}
}

// RecordAdvisorRequest counts one advisory validation.
func RecordAdvisorRequest(advisor string, duration time.Duration, success bool) {
	AdvisorRequestsTotal.WithLabelValues(advisor, statusLabel(success)).Inc()
	AdvisorRequestDuration.WithLabelValues(advisor).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(scope string) {
	RateLimitExceeded.WithLabelValues(scope).Inc()
}

func RecordRateLimitWait(scope string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(scope).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
