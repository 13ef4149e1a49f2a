package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
)

// maxResponseBytes bounds how much of a remote reply is read.
const maxResponseBytes = 64 << 10

// RemoteConfig configures a Remote validator.
type RemoteConfig struct {
	// URL receives POST requests with a JSON body {"wkt": "..."} and
	// answers with a JSON Verdict.
	URL    string
	APIKey string

	// RPS and Burst bound outgoing requests. Zero RPS means no limit.
	RPS   float64
	Burst int

	Client *http.Client
	Retry  core.RetryOptions
}

// Remote asks an external service for a verdict. It never fails: without
// an API key, or when the service cannot be reached or answers badly, a
// fallback verdict that lets processing continue is returned.
type Remote struct {
	cfg     RemoteConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRemote creates a Remote validator.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Client == nil {
		cfg.Client = core.DefaultClient
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = core.DefaultRetryOptions
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	return &Remote{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  slog.Default().With("advisor", "remote"),
	}
}

// Name implements Validator.
func (r *Remote) Name() string { return "remote" }

// Validate implements Validator.
func (r *Remote) Validate(ctx context.Context, text string) (Verdict, error) {
	text, err := checkLength(text)
	if err != nil {
		return Verdict{}, err
	}
	if r.cfg.APIKey == "" || r.cfg.URL == "" {
		return missingKey(), nil
	}

	ctx, span := tracing.StartSpan(ctx, "advisor.remote")
	defer span.End()

	start := time.Now()
	v, err := r.ask(ctx, text)
	monitoring.RecordAdvisorRequest(r.Name(), time.Since(start), err == nil)
	if err != nil {
		r.logger.Warn("remote validation failed", "error", err)
		span.RecordError(err)
		return unverified(), nil
	}

	span.SetAttributes(tracing.AdvisorAttributes(r.Name(), v.GeometryType, false)...)
	return v, nil
}

func (r *Remote) ask(ctx context.Context, text string) (Verdict, error) {
	waitStart := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		monitoring.RecordRateLimitExceeded("advisor")
		return Verdict{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	if waited := time.Since(waitStart); waited > time.Millisecond {
		monitoring.RecordRateLimitWait("advisor", waited)
	}

	body, err := json.Marshal(map[string]string{"wkt": text})
	if err != nil {
		return Verdict{}, err
	}

	resp, err := core.WithRetryFactory(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
		return req, nil
	}, r.cfg.Client, r.cfg.Retry)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	var v Verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("decoding verdict: %w", err)
	}
	if v.GeometryType == "" {
		return Verdict{}, fmt.Errorf("verdict has no geometry type")
	}
	return v, nil
}

// Ping checks that the remote endpoint answers at all. It is used by the
// health monitor.
func (r *Remote) Ping(ctx context.Context) error {
	if r.cfg.URL == "" {
		return fmt.Errorf("no advisor URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.cfg.URL, nil)
	if err != nil {
		return err
	}
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("advisor answered %s", resp.Status)
	}
	return nil
}
