// Package registration announces a running crop service to an HTTP
// service registry and keeps the entry alive with heartbeats. A missing
// or unreachable registry never stops the service.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultTimeout           = 5 * time.Second
)

// ErrNoRegistry is returned by Start when no registry URL is configured.
var ErrNoRegistry = errors.New("registration: no registry URL")

// Announcement describes this service to the registry.
type Announcement struct {
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	URL               string         `json:"url"`
	HealthURL         string         `json:"health_url"`
	InternalURL       string         `json:"internal_url,omitempty"`
	InternalHealthURL string         `json:"internal_health_url,omitempty"`
	Version           string         `json:"version"`
	Capabilities      []string       `json:"capabilities,omitempty"`
	Tools             []string       `json:"tools,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// NewAnnouncement fills in the health URLs from the service URLs.
func NewAnnouncement(name, serviceURL, internalURL, version string, tools []string) Announcement {
	a := Announcement{
		Name:         name,
		Type:         "mcp",
		URL:          serviceURL,
		HealthURL:    healthURL(serviceURL),
		InternalURL:  internalURL,
		Version:      version,
		Capabilities: []string{"dxf-crop", "dxf-summary", "wkt-clip"},
		Tools:        tools,
	}
	if internalURL != "" {
		a.InternalHealthURL = healthURL(internalURL)
	}
	return a
}

func healthURL(base string) string {
	if base == "" {
		return ""
	}
	u, err := url.JoinPath(base, "health")
	if err != nil {
		return base + "/health"
	}
	return u
}

// Config holds the registry location and timing.
type Config struct {
	RegistryURL       string
	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

type response struct {
	Status     string `json:"status"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Client registers one Announcement and renews it until stopped.
type Client struct {
	cfg    Config
	ann    Announcement
	logger *slog.Logger
	client *http.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	registered bool
}

// NewClient creates a client. Nothing is sent until Start.
func NewClient(cfg Config, ann Announcement, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		ann:    ann,
		logger: logger.With("component", "registration"),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Start registers in the background and returns immediately.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.RegistryURL == "" {
		return ErrNoRegistry
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.heartbeatLoop(ctx)
	return nil
}

// Stop deregisters and waits for the heartbeat loop to exit.
func (c *Client) Stop(ctx context.Context) {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.deregister(ctx)
}

// Registered reports whether the last heartbeat was accepted.
func (c *Client) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	c.register(ctx)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.register(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) register(ctx context.Context) {
	body, err := json.Marshal(c.ann)
	if err != nil {
		c.logger.Error("failed to marshal announcement", "error", err)
		return
	}
	endpoint, err := url.JoinPath(c.cfg.RegistryURL, "api", "register")
	if err != nil {
		c.logger.Error("invalid registry url", "registry_url", c.cfg.RegistryURL, "error", err)
		return
	}

	resp, err := core.WithRetryFactory(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, c.client, core.RetryOptions{MaxAttempts: 1})
	if err != nil {
		// A heartbeat cut short by Stop leaves the previous state for deregister.
		if ctx.Err() != nil {
			return
		}
		monitoring.RecordError("registration", "heartbeat")
		c.logger.Debug("registration failed", "error", err)
		c.setRegistered(false)
		return
	}
	defer resp.Body.Close()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		monitoring.RecordError("registration", "decode")
		c.logger.Warn("failed to decode registry response", "error", err)
		c.setRegistered(false)
		return
	}

	if !c.Registered() {
		c.logger.Info("registered with service registry",
			"name", c.ann.Name,
			"ttl_seconds", r.TTLSeconds)
	}
	c.setRegistered(true)
}

func (c *Client) deregister(ctx context.Context) {
	if !c.Registered() {
		return
	}
	defer c.setRegistered(false)

	endpoint, err := url.JoinPath(c.cfg.RegistryURL, "api", "register", c.ann.Name)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("deregistration failed", "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		c.logger.Info("deregistered from service registry", "name", c.ann.Name)
	}
}

func (c *Client) setRegistered(registered bool) {
	c.mu.Lock()
	c.registered = registered
	c.mu.Unlock()
}
