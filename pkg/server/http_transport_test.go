package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools"
)

const (
	testToken = "Zq7vN2kLx9Rb4WmT"
	testClip  = "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))"
)

var testDocument = strings.Join([]string{
	"0", "SECTION", "2", "ENTITIES",
	"0", "LINE", "10", "1", "20", "1", "11", "4", "21", "4",
	"0", "CIRCLE", "10", "50", "20", "50", "40", "1",
	"0", "ENDSEC", "0", "EOF",
}, "\n") + "\n"

var testCropped = strings.Join([]string{
	"0", "SECTION", "2", "ENTITIES",
	"0", "LINE", "10", "1", "20", "1", "11", "4", "21", "4",
	"0", "ENDSEC", "0", "EOF",
}, "\n") + "\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTransport(t *testing.T, mutate func(*HTTPTransportConfig)) *httptest.Server {
	t.Helper()

	s, err := NewServer(Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	config := DefaultHTTPTransportConfig()
	config.Addr = ":0"
	config.RateLimit = 0
	if mutate != nil {
		mutate(&config)
	}

	transport := NewHTTPTransport(s.GetMCPServer(), s.Registry(), config, quietLogger())
	ts := httptest.NewServer(transport.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = transport.Shutdown(context.Background())
	})
	return ts
}

func postJSON(t *testing.T, url string, body any, header http.Header) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHTTPTransport_ServiceDiscovery(t *testing.T) {
	ts := newTestTransport(t, func(c *HTTPTransportConfig) {
		c.BaseURL = "http://localhost:8080"
	})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var discovery struct {
		Service   string            `json:"service"`
		Transport string            `json:"transport"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		t.Fatal(err)
	}
	if discovery.Transport != "streamable-http" {
		t.Errorf("transport = %q", discovery.Transport)
	}
	if got := discovery.Endpoints["mcp"]; got != "http://localhost:8080/mcp" {
		t.Errorf("mcp endpoint = %q", got)
	}
	if got := discovery.Endpoints["crop"]; got != "http://localhost:8080/api/crop" {
		t.Errorf("crop endpoint = %q", got)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPTransport_HealthEndpoints(t *testing.T) {
	ts := newTestTransport(t, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		})
	}

	resp := postJSON(t, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", resp.StatusCode)
	}
}

func TestHTTPTransport_HealthChecker(t *testing.T) {
	s, err := NewServer(Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	transport := NewHTTPTransport(s.GetMCPServer(), s.Registry(), DefaultHTTPTransportConfig(), quietLogger())

	hc := monitoring.NewHealthChecker("dxfcropmcp", "test")
	defer hc.Shutdown()
	hc.UpdateConnection("advisor", monitoring.ConnError, 0, io.ErrUnexpectedEOF)
	transport.SetHealthChecker(hc)

	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with the only dependency failing", rec.Code)
	}

	var health monitoring.ServiceHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Connections["advisor"].LastError == "" {
		t.Error("advisor error not reported")
	}
}

func TestHTTPTransport_Crop(t *testing.T) {
	ts := newTestTransport(t, nil)

	resp := postJSON(t, ts.URL+"/api/crop", CropRequest{
		Document:    testDocument,
		ClipPolygon: testClip,
		FileName:    "plan.dxf",
	}, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if diff := cmp.Diff(testCropped, readBody(t, resp)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	wantHeaders := map[string]string{
		"Content-Type":           DXFContentType,
		"X-Dxf-Entities":         "2",
		"X-Dxf-Entities-Kept":    "1",
		"X-Dxf-Entities-Removed": "1",
		"Content-Disposition":    `attachment; filename="cropped_plan.dxf"`,
	}
	for k, want := range wantHeaders {
		if got := resp.Header.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestHTTPTransport_CropCountedAsHTTP(t *testing.T) {
	ts := newTestTransport(t, nil)

	httpCrops := monitoring.CropDocumentsTotal.WithLabelValues(tools.SourceHTTP, "success")
	mcpCrops := monitoring.CropDocumentsTotal.WithLabelValues(tools.SourceMCP, "success")
	beforeHTTP, beforeMCP := testutil.ToFloat64(httpCrops), testutil.ToFloat64(mcpCrops)

	resp := postJSON(t, ts.URL+"/api/crop", CropRequest{Document: testDocument, ClipPolygon: testClip}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(httpCrops) - beforeHTTP; got != 1 {
		t.Errorf("http crops recorded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mcpCrops) - beforeMCP; got != 0 {
		t.Errorf("mcp crops recorded = %v, want 0", got)
	}
}

func TestHTTPTransport_CropErrors(t *testing.T) {
	ts := newTestTransport(t, func(c *HTTPTransportConfig) {
		c.MaxRequestSize = 4096
	})

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   core.ErrorCode
	}{
		{"invalid geometry", CropRequest{Document: testDocument, ClipPolygon: "POLYGON ((0 0, 1 1))"}, http.StatusBadRequest, core.ErrInvalidGeometry},
		{"empty clip", CropRequest{Document: testDocument}, http.StatusBadRequest, core.ErrEmptyParameter},
		{"dwg", CropRequest{Document: testDocument, ClipPolygon: testClip, FileName: "plan.dwg"}, http.StatusUnsupportedMediaType, core.ErrUnsupportedFormat},
		{"not json", "just text", http.StatusBadRequest, core.ErrInvalidInput},
		{"too large", CropRequest{Document: strings.Repeat("0\nLINE\n", 1000), ClipPolygon: testClip}, http.StatusRequestEntityTooLarge, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/crop", tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, readBody(t, resp))
			}
			if tt.wantCode == "" {
				return
			}
			var mcpErr core.MCPError
			if err := json.NewDecoder(resp.Body).Decode(&mcpErr); err != nil {
				t.Fatal(err)
			}
			if mcpErr.Code != string(tt.wantCode) {
				t.Errorf("code = %s, want %s", mcpErr.Code, tt.wantCode)
			}
		})
	}

	resp, err := http.Get(ts.URL + "/api/crop")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/crop status = %d, want 405", resp.StatusCode)
	}
}

func TestHTTPTransport_SummarizeAndValidate(t *testing.T) {
	ts := newTestTransport(t, nil)

	resp := postJSON(t, ts.URL+"/api/summarize", CropRequest{Document: testDocument}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summarize status = %d", resp.StatusCode)
	}
	var summary struct {
		Entities    int            `json:"entities"`
		EntityTypes map[string]int `json:"entity_types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int{"LINE": 1, "CIRCLE": 1}, summary.EntityTypes); diff != "" {
		t.Errorf("entity types (-want +got):\n%s", diff)
	}

	resp = postJSON(t, ts.URL+"/api/validate", CropRequest{ClipPolygon: testClip}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate status = %d", resp.StatusCode)
	}
	var verdict struct {
		Valid bool   `json:"isValid"`
		Type  string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		t.Fatal(err)
	}
	if !verdict.Valid || verdict.Type != "Polygon" {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestHTTPTransport_Authentication(t *testing.T) {
	ts := newTestTransport(t, func(c *HTTPTransportConfig) {
		c.AuthType = AuthBearer
		c.AuthToken = testToken
	})
	body := CropRequest{Document: testDocument, ClipPolygon: testClip}

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong token", http.Header{"Authorization": {"Bearer wrong-token-value"}}, http.StatusUnauthorized},
		{"wrong scheme", http.Header{"Authorization": {"Token " + testToken}}, http.StatusUnauthorized},
		{"valid", http.Header{"Authorization": {"Bearer " + testToken}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/crop", body, tt.header)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}

	resp := postJSON(t, ts.URL+"/mcp", map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /mcp status = %d, want 401", resp.StatusCode)
	}

	health, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("/health requires no auth, got %d", health.StatusCode)
	}
}

func TestHTTPTransport_BasicAuth(t *testing.T) {
	ts := newTestTransport(t, func(c *HTTPTransportConfig) {
		c.AuthType = AuthBasic
		c.AuthToken = testToken
	})
	body := CropRequest{Document: testDocument, ClipPolygon: testClip}

	resp := postJSON(t, ts.URL+"/api/crop", body, http.Header{"Authorization": {"Bearer " + testToken}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bearer against basic auth status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/crop", strings.NewReader(`{"document":"0\nEOF\n","clip_polygon":"`+testClip+`"}`))
	req.SetBasicAuth("anyone", testToken)
	basic, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	basic.Body.Close()
	if basic.StatusCode != http.StatusOK {
		t.Errorf("basic auth status = %d, want 200", basic.StatusCode)
	}
}

func TestHTTPTransport_MCPInitialize(t *testing.T) {
	ts := newTestTransport(t, nil)

	initialize := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	}
	resp := postJSON(t, ts.URL+"/mcp", initialize, http.Header{
		"Accept": {"application/json, text/event-stream"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if body := readBody(t, resp); !strings.Contains(body, ServerName) {
		t.Errorf("initialize response does not name the server: %s", body)
	}
}

func TestHTTPTransport_ForceHTTPSWithoutTLS(t *testing.T) {
	ts := newTestTransport(t, func(c *HTTPTransportConfig) {
		c.ForceHTTPS = true
	})

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("status = %d, want 301", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "https://") {
		t.Errorf("Location = %q", loc)
	}
}

func TestHTTPTransport_ShutdownBeforeStart(t *testing.T) {
	s, err := NewServer(Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	transport := NewHTTPTransport(s.GetMCPServer(), s.Registry(), DefaultHTTPTransportConfig(), quietLogger())
	if err := transport.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before Start() = %v", err)
	}
}
