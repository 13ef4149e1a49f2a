package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/dxfcropmcp/pkg/advisor"
	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/monitoring"
	"github.com/NERVsystems/dxfcropmcp/pkg/registration"
	"github.com/NERVsystems/dxfcropmcp/pkg/server"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
	ver "github.com/NERVsystems/dxfcropmcp/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	generateConfig  string
	mergeOnly       bool

	maxDocumentBytes int
	watchParent      bool

	// HTTP transport flags
	enableHTTP     bool
	httpOnly       bool
	httpAddr       string
	httpBaseURL    string
	httpAuthType   string
	httpAuthToken  string
	httpRateLimit  float64
	httpRateBurst  int
	httpTLSCert    string
	httpTLSKey     string
	httpForceHTTPS bool

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Registration flags
	enableRegistration bool
	registryURL        string
	serviceURL         string
	internalURL        string

	// Advisory validation
	advisorURL      string
	advisorAPIKey   string
	advisorRPS      float64
	advisorBurst    int
	advisorCacheTTL time.Duration
)

func init() {
	// Values from .env become flag defaults; real environment variables win.
	_ = godotenv.Load()

	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&generateConfig, "generate-config", "", "Write an MCP client config entry for this server to the given .json path")
	flag.BoolVar(&mergeOnly, "merge-only", false, "Merge into an existing config instead of overwriting it")

	flag.IntVar(&maxDocumentBytes, "max-document-bytes", envInt("DXFCROP_MAX_DOCUMENT_BYTES", core.DefaultMaxDocumentBytes), "Largest accepted DXF document in bytes (negative disables the limit)")
	flag.BoolVar(&watchParent, "watch-parent", true, "Exit when the parent process that started the stdio server goes away")

	flag.BoolVar(&enableHTTP, "enable-http", false, "Enable streamable HTTP transport and REST API (in addition to stdio)")
	flag.BoolVar(&httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	flag.StringVar(&httpAddr, "http-addr", ":7082", "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")
	flag.StringVar(&httpAuthType, "http-auth-type", envString("DXFCROP_HTTP_AUTH_TYPE", server.AuthNone), "HTTP authentication type: none, bearer, basic")
	flag.StringVar(&httpAuthToken, "http-auth-token", os.Getenv("DXFCROP_HTTP_AUTH_TOKEN"), "HTTP authentication token")
	flag.Float64Var(&httpRateLimit, "http-rate-limit", 10, "Requests per second allowed per client IP (0 disables)")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 20, "Burst size for the per-client rate limit")
	flag.StringVar(&httpTLSCert, "http-tls-cert", "", "TLS certificate file")
	flag.StringVar(&httpTLSKey, "http-tls-key", "", "TLS key file")
	flag.BoolVar(&httpForceHTTPS, "http-force-https", false, "Redirect plain HTTP requests to HTTPS")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	flag.BoolVar(&enableRegistration, "enable-registration", false, "Announce this service to a service registry")
	flag.StringVar(&registryURL, "registry-url", os.Getenv("DXFCROP_REGISTRY_URL"), "Service registry URL (e.g., http://registry:7083)")
	flag.StringVar(&serviceURL, "service-url", "", "External URL where this service is accessible")
	flag.StringVar(&internalURL, "internal-url", "", "Internal URL for container environments")

	flag.StringVar(&advisorURL, "advisor-url", os.Getenv("DXFCROP_ADVISOR_URL"), "Remote clip geometry advisor endpoint (local analysis if empty)")
	flag.StringVar(&advisorAPIKey, "advisor-api-key", os.Getenv("DXFCROP_ADVISOR_API_KEY"), "API key for the remote advisor")
	flag.Float64Var(&advisorRPS, "advisor-rps", 1.0, "Remote advisor rate limit in requests per second")
	flag.IntVar(&advisorBurst, "advisor-burst", 1, "Remote advisor rate limit burst size")
	flag.DurationVar(&advisorCacheTTL, "advisor-cache-ttl", advisor.DefaultCacheTTL, "How long remote advisor verdicts are reused")
}

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := newLogger(os.Getenv("LOG_FORMAT"), logLevel)
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	if generateConfig != "" {
		if err := generateClientConfig(generateConfig, mergeOnly); err != nil {
			logger.Error("failed to generate config", "error", err)
			os.Exit(1)
		}
		logger.Info("generated MCP client config", "path", generateConfig)
		return
	}

	if httpOnly && !enableHTTP {
		logger.Error("--http-only requires --enable-http")
		os.Exit(2)
	}

	shutdownTracing, err := tracing.InitTracing(context.Background(), ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting DXF crop MCP server",
		"version", ver.BuildVersion,
		"log_level", logLevel.String(),
		"max_document_bytes", maxDocumentBytes,
		"http_enabled", enableHTTP,
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr,
		"advisor", advisorName())

	var healthChecker *monitoring.HealthChecker
	if enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
		healthChecker.SetTransport(transportInfo())
	}

	validator, stopAdvisor := newValidator(healthChecker, logger)
	defer stopAdvisor()

	s, err := server.NewServer(server.Options{
		Validator:        validator,
		MaxDocumentBytes: maxDocumentBytes,
		WatchParent:      watchParent && !httpOnly,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if enableMonitoring {
		startMonitoringServer(ctx, healthChecker, logger)
	}

	if enableRegistration {
		regClient := newRegistrationClient(s.Registry().GetToolNames(), logger)
		if err := regClient.Start(ctx); err != nil {
			logger.Warn("service registration not started", "error", err)
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				regClient.Stop(stopCtx)
			}()
		}
	}

	if enableHTTP {
		startHTTPTransport(ctx, s, healthChecker, logger)
	}

	// Without HTTP, stdio runs on the main goroutine and its end ends the
	// process. With HTTP, stdio runs alongside until a signal arrives.
	switch {
	case !enableHTTP:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		if err := s.RunWithContext(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case httpOnly:
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)
		<-ctx.Done()
		logger.Info("shutdown signal received")
	default:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
		<-ctx.Done()
		logger.Info("shutdown signal received")
	}

	logger.Info("server stopped")
}

func newLogger(format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func advisorName() string {
	if advisorURL == "" {
		return "local"
	}
	return "remote"
}

func transportInfo() monitoring.TransportInfo {
	switch {
	case httpOnly:
		return monitoring.TransportInfo{Type: "http", HTTPAddr: httpAddr}
	case enableHTTP:
		return monitoring.TransportInfo{Type: "stdio+http", HTTPAddr: httpAddr}
	default:
		return monitoring.TransportInfo{Type: "stdio"}
	}
}

// newValidator picks the advisory validator. A remote advisor is cached
// and, when monitoring is on, checked for the health report.
func newValidator(hc *monitoring.HealthChecker, logger *slog.Logger) (advisor.Validator, func()) {
	if advisorURL == "" {
		return advisor.Local{}, func() {}
	}

	remote := advisor.NewRemote(advisor.RemoteConfig{
		URL:    advisorURL,
		APIKey: advisorAPIKey,
		RPS:    advisorRPS,
		Burst:  advisorBurst,
	})
	validator := advisor.NewCached(remote, advisor.DefaultCacheSize, advisorCacheTTL)

	if hc == nil {
		return validator, func() {}
	}
	mon := monitoring.NewConnectionMonitor("advisor", hc, remote.Ping, 30*time.Second)
	mon.Start()
	logger.Info("started advisor monitoring", "url", advisorURL, "check_interval", "30s")
	return validator, mon.Stop
}

func startMonitoringServer(ctx context.Context, hc *monitoring.HealthChecker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", hc.HealthHandler())
	mux.HandleFunc("/ready", hc.ReadinessHandler())
	mux.HandleFunc("/live", hc.LivenessHandler())

	srv := &http.Server{
		Addr:              monitoringAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}()
}

func startHTTPTransport(ctx context.Context, s *server.Server, hc *monitoring.HealthChecker, logger *slog.Logger) {
	config := server.DefaultHTTPTransportConfig()
	config.Addr = httpAddr
	config.BaseURL = httpBaseURL
	config.AuthType = httpAuthType
	config.AuthToken = httpAuthToken
	config.RateLimit = httpRateLimit
	config.RateBurst = httpRateBurst
	config.TLSCertFile = httpTLSCert
	config.TLSKeyFile = httpTLSKey
	config.ForceHTTPS = httpForceHTTPS

	transport := server.NewHTTPTransport(s.GetMCPServer(), s.Registry(), config, logger)
	if hc != nil {
		transport.SetHealthChecker(hc)
	}

	go func() {
		logger.Info("starting Streamable HTTP transport", "addr", httpAddr, "endpoint", config.MCPEndpoint)
		if err := transport.Start(); err != nil {
			logger.Error("HTTP transport error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := transport.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP transport", "error", err)
		}
	}()
}

func newRegistrationClient(toolNames []string, logger *slog.Logger) *registration.Client {
	svcURL := serviceURL
	if svcURL == "" && enableHTTP {
		svcURL = "http://localhost" + httpAddr
	}
	ann := registration.NewAnnouncement("dxfcropmcp", svcURL, internalURL, ver.BuildVersion, toolNames)
	ann.Metadata = map[string]any{
		"transport": map[string]bool{"stdio": !httpOnly, "http": enableHTTP},
	}

	logger.Info("registration client initialized",
		"registry_url", registryURL,
		"service_url", svcURL,
		"tool_count", len(toolNames))
	return registration.NewClient(registration.Config{RegistryURL: registryURL}, ann, logger)
}
