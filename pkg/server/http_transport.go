package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/crop"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools"
)

// Auth types accepted by HTTPTransportConfig.AuthType.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// DXFContentType is the media type of cropped documents.
const DXFContentType = "image/vnd.dxf"

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  `json:"addr"`
	BaseURL        string  `json:"base_url"`
	AuthType       string  `json:"auth_type"`
	AuthToken      string  `json:"auth_token"`
	MCPEndpoint    string  `json:"mcp_endpoint"`
	RateLimit      float64 `json:"rate_limit"` // requests per second per IP, 0 disables
	RateBurst      int     `json:"rate_burst"`
	MaxRequestSize int64   `json:"max_request_size"`
	MaxHeaderBytes int     `json:"max_header_bytes"`
	TLSCertFile    string  `json:"tls_cert_file"`
	TLSKeyFile     string  `json:"tls_key_file"`
	ForceHTTPS     bool    `json:"force_https"`
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       AuthNone,
		MCPEndpoint:    "/mcp",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 64 << 20, // JSON escaping can double a document
		MaxHeaderBytes: 1 << 20,
	}
}

// HTTPTransport serves the streamable HTTP MCP endpoint, a small REST API
// over the same tools, and health checks.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	streamable    *mcpserver.StreamableHTTPServer
	registry      *tools.Registry
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport instance. REST requests
// are answered by registry's tool handlers.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, registry *tools.Registry, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MCPEndpoint == "" {
		config.MCPEndpoint = "/mcp"
	}
	if config.AuthType == "" {
		config.AuthType = AuthNone
	}

	if config.AuthType != AuthNone {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	transport := &HTTPTransport{
		config: config,
		logger: logger,
		streamable: mcpserver.NewStreamableHTTPServer(mcpServer,
			mcpserver.WithEndpointPath(config.MCPEndpoint),
		),
		registry: registry,
		mux:      http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		transport.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}

	transport.setupRoutes()
	return transport
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleServiceDiscovery))

	// Health endpoints are never authenticated.
	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/ready", t.handleReady)
	t.mux.HandleFunc("/live", t.handleLive)

	t.mux.Handle(t.config.MCPEndpoint, t.httpsEnforcement(t.authMiddleware(t.streamable).ServeHTTP))
	t.mux.Handle("/api/crop", t.httpsEnforcement(t.authMiddleware(http.HandlerFunc(t.handleCrop)).ServeHTTP))
	t.mux.Handle("/api/summarize", t.httpsEnforcement(t.authMiddleware(http.HandlerFunc(t.handleSummarize)).ServeHTTP))
	t.mux.Handle("/api/validate", t.httpsEnforcement(t.authMiddleware(http.HandlerFunc(t.handleValidate)).ServeHTTP))
}

// Handler returns the full middleware chain around the routes.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = SecurityHeaders(handler)
	handler = ConnectionCounter("http")(handler)
	if t.rateLimiter != nil {
		handler = t.rateLimiter.Middleware(handler)
	}
	return handler
}

// httpsEnforcement redirects HTTP requests to HTTPS if ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			httpsURL := "https://" + r.Host + r.RequestURI
			t.logger.Info("redirecting HTTP request to HTTPS",
				"client_ip", getIP(r),
				"redirect_url", httpsURL)
			http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
			return
		}
		next(w, r)
	}
}

// authMiddleware checks the configured credentials on MCP and API routes.
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.config.AuthType == AuthNone {
			next.ServeHTTP(w, r)
			return
		}

		authResult := core.Authenticate(r, t.config.AuthToken)
		if authResult.Authorized && t.config.AuthType == AuthBasic {
			if _, _, ok := r.BasicAuth(); !ok {
				authResult = core.AuthResult{Error: "Basic auth required"}
			}
		}

		if !authResult.Authorized {
			t.logger.Warn("authentication failed",
				"remote_addr", getIP(r),
				"path", r.URL.Path,
				"auth_type", t.config.AuthType,
				"error", authResult.Error,
				"auth_duration", authResult.Duration)
			monitoring.RecordError("http", "unauthorized")

			if t.config.AuthType == AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="dxfcropmcp"`)
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			if r.URL.Path == t.config.MCPEndpoint {
				t.writeJSONRPCError(w, nil, -32001, "Authentication required", http.StatusUnauthorized)
				return
			}
			t.writeError(w, core.NewError(core.ErrUnauthorized, "Authentication required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	t.writeJSON(w, http.StatusOK, map[string]any{
		"service":   "mcp-server",
		"transport": "streamable-http",
		"endpoints": map[string]string{
			"mcp":       baseURL + t.config.MCPEndpoint,
			"crop":      baseURL + "/api/crop",
			"summarize": baseURL + "/api/summarize",
			"validate":  baseURL + "/api/validate",
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != AuthNone,
		},
	})
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.healthRoute(w, r, (*monitoring.HealthChecker).HealthHandler, map[string]any{"status": "ok"})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	t.healthRoute(w, r, (*monitoring.HealthChecker).ReadinessHandler, map[string]any{"ready": true, "status": "ok"})
}

func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	t.healthRoute(w, r, (*monitoring.HealthChecker).LivenessHandler, map[string]any{"alive": true})
}

// healthRoute answers from the health checker when one is set and with
// fallback otherwise.
func (t *HTTPTransport) healthRoute(w http.ResponseWriter, r *http.Request, handler func(*monitoring.HealthChecker) http.HandlerFunc, fallback map[string]any) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		handler(hc)(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, fallback)
}

// CropRequest is the body of POST /api/crop.
type CropRequest struct {
	Document    string `json:"document"`
	ClipPolygon string `json:"clip_polygon"`
	FileName    string `json:"file_name,omitempty"`
}

// handleCrop answers with the cropped document itself. Statistics travel
// in X-DXF-* headers.
func (t *HTTPTransport) handleCrop(w http.ResponseWriter, r *http.Request) {
	var body CropRequest
	if !t.decodeBody(w, r, &body) {
		return
	}

	r = r.WithContext(tools.WithSource(r.Context(), tools.SourceHTTP))
	result, ok := t.callTool(w, r, "crop_dxf", map[string]any{
		"document":     body.Document,
		"clip_polygon": body.ClipPolygon,
		"file_name":    body.FileName,
	})
	if !ok {
		return
	}

	var output tools.CropDXFOutput
	if err := tools.ParseResultJSON(result, &output); err != nil {
		t.writeError(w, core.NewError(core.ErrInternalError, "malformed crop result"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", DXFContentType)
	h.Set("X-DXF-Records", strconv.Itoa(output.Stats.Records))
	h.Set("X-DXF-Entities", strconv.Itoa(output.Stats.Entities))
	h.Set("X-DXF-Entities-Kept", strconv.Itoa(output.Stats.Kept))
	h.Set("X-DXF-Entities-Removed", strconv.Itoa(output.Stats.Removed))
	name := output.FileName
	if name == "" {
		name = crop.OutputName("drawing" + crop.Extension)
	}
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(output.Document)); err != nil {
		t.logger.Error("failed to write crop response", "error", err)
	}
}

func (t *HTTPTransport) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var body CropRequest
	if !t.decodeBody(w, r, &body) {
		return
	}
	result, ok := t.callTool(w, r, "summarize_dxf", map[string]any{
		"document":  body.Document,
		"file_name": body.FileName,
	})
	if ok {
		t.writeRaw(w, http.StatusOK, tools.ResultText(result))
	}
}

func (t *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body CropRequest
	if !t.decodeBody(w, r, &body) {
		return
	}
	result, ok := t.callTool(w, r, "validate_clip_geometry", map[string]any{
		"clip_polygon": body.ClipPolygon,
	})
	if ok {
		t.writeRaw(w, http.StatusOK, tools.ResultText(result))
	}
}

func (t *HTTPTransport) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			t.writeError(w, core.NewError(core.ErrDocumentTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return false
		}
		t.writeError(w, core.NewValidationError(core.ErrInvalidInput, "request body is not valid JSON: "+err.Error()))
		return false
	}
	return true
}

// callTool runs the named tool and writes the error response when the
// tool fails. ok is false when a response has been written.
func (t *HTTPTransport) callTool(w http.ResponseWriter, r *http.Request, name string, args map[string]any) (*mcp.CallToolResult, bool) {
	handler := t.registry.Handler(name)
	if handler == nil {
		t.writeError(w, core.NewError(core.ErrInternalError, "tool not registered: "+name))
		return nil, false
	}

	result, err := handler(r.Context(), tools.NewCallToolRequest(name, args))
	if err != nil {
		t.writeError(w, core.NewError(core.ErrInternalError, err.Error()))
		return nil, false
	}
	if tools.IsErrorResult(result) {
		var mcpErr core.MCPError
		if err := tools.ParseResultJSON(result, &mcpErr); err != nil || mcpErr.Code == "" {
			mcpErr = core.MCPError{Code: string(core.ErrInternalError), Message: tools.ResultText(result)}
		}
		t.writeError(w, &mcpErr)
		return nil, false
	}
	return result, true
}

func (t *HTTPTransport) writeError(w http.ResponseWriter, mcpErr *core.MCPError) {
	t.writeJSON(w, mcpErr.HTTPStatus(), mcpErr)
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Error("failed to encode response", "error", err)
	}
}

func (t *HTTPTransport) writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		t.logger.Error("failed to write response", "error", err)
	}
}

func (t *HTTPTransport) writeJSONRPCError(w http.ResponseWriter, id any, code int, message string, status int) {
	t.writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// Start begins serving HTTP requests and blocks until the server stops.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"auth_type", t.config.AuthType,
		"base_url", t.config.BaseURL,
		"tls_enabled", tls,
		"force_https", t.config.ForceHTTPS)
	if t.config.ForceHTTPS && !tls {
		t.logger.Warn("HTTPS enforcement enabled but no TLS certificates provided - HTTP requests will be redirected")
	}
	t.mu.Unlock()

	var err error
	if tls {
		err = srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.streamable.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown streamable HTTP server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
