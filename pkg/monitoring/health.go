// Package monitoring exposes Prometheus metrics and health endpoints.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/dxfcropmcp/pkg/version"
)

// Health states, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Connection states reported by monitors.
const (
	ConnConnected    = "connected"
	ConnDegraded     = "degraded"
	ConnDisconnected = "disconnected"
	ConnError        = "error"
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type           string `json:"type"`
	HTTPAddr       string `json:"http_addr,omitempty"`
	ActiveSessions int    `json:"active_sessions,omitempty"`
}

// ServiceHealth is the body of the /health response.
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
	Transport     *TransportInfo        `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of a dependency.
type ConnStatus struct {
	Status    string `json:"status"`
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// HealthChecker manages service health monitoring
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]*ConnStatus
	transport   *TransportInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHealthChecker creates a health checker and starts publishing runtime
// metrics every 15 seconds until Shutdown.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics(15 * time.Second)

	return hc
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := &ConnStatus{Status: status, Latency: latencyMs}
	if err != nil {
		conn.LastError = err.Error()
	}
	h.connections[name] = conn
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// SetTransport records which transports are serving.
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// GetHealth returns the current health status. The service is unhealthy
// when more than half of its connections fail, degraded when any fails or
// is degraded, healthy otherwise.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var degraded, failed int
	connections := make(map[string]ConnStatus, len(h.connections))
	for name, conn := range h.connections {
		connections[name] = *conn
		switch conn.Status {
		case ConnError, ConnDisconnected:
			failed++
		case ConnDegraded:
			degraded++
		}
	}

	status := StatusHealthy
	switch {
	case failed > len(h.connections)/2:
		status = StatusUnhealthy
	case failed > 0 || degraded > 0:
		status = StatusDegraded
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health := ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]any{
			"goroutines":        runtime.NumGoroutine(),
			"memory_alloc_mb":   m.Alloc / 1024 / 1024,
			"gc_runs":           m.NumGC,
			"version_info":      version.Info(),
			"error_connections": failed,
		},
	}
	if h.transport != nil {
		t := *h.transport
		health.Transport = &t
	}
	return health
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler returns an HTTP handler for health checks. Degraded
// services still answer 200.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		status := http.StatusOK
		if health.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	}
}

// ReadinessHandler returns a simple readiness check
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		ready := health.Status != StatusUnhealthy
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"ready": ready, "status": health.Status})
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		})
	}
}

func (h *HealthChecker) collectSystemMetrics(interval time.Duration) {
	h.updateSystemMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// Shutdown stops background metric collection.
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// CheckFunc checks a dependency.
type CheckFunc func(ctx context.Context) error

// ConnectionMonitor periodically checks a dependency and reports its state
// to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	check         CheckFunc
	interval      time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, check CheckFunc, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		check:         check,
		interval:      interval,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start runs one check immediately, then one per interval.
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring and waits for the loop to exit.
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	<-cm.done
}

func (cm *ConnectionMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.interval)
	defer cancel()

	start := time.Now()
	err := cm.check(ctx)
	latency := time.Since(start).Milliseconds()

	status := ConnConnected
	if err != nil {
		status = ConnError
	}
	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
