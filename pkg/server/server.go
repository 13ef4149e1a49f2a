// Package server provides the MCP server for DXF cropping.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/dxfcropmcp/pkg/advisor"
	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools/prompts"
	"github.com/NERVsystems/dxfcropmcp/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "dxfcrop-mcp-server"

// Options configure a Server.
type Options struct {
	// Validator answers validate_clip_geometry; nil selects advisor.Local.
	Validator advisor.Validator
	// MaxDocumentBytes bounds document arguments; zero selects
	// core.DefaultMaxDocumentBytes and a negative value disables the limit.
	MaxDocumentBytes int
	// WatchParent shuts a stdio server down when its parent process exits.
	WatchParent bool
	Logger      *slog.Logger
	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// Server encapsulates the MCP server with the DXF tools.
type Server struct {
	srv          *mcpserver.MCPServer
	registry     *tools.Registry
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once
	watchParent  bool
	stdin        io.Reader
	stdout       io.Writer
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	maxBytes := opts.MaxDocumentBytes
	if maxBytes == 0 {
		maxBytes = core.DefaultMaxDocumentBytes
	}

	logger.Info("initializing DXF crop MCP server",
		"name", ServerName,
		"version", version.BuildVersion,
		"max_document_bytes", maxBytes)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(prompts.CropSystemPrompt()),
	)

	registry := tools.NewRegistry(logger, tools.Config{
		MaxDocumentBytes: maxBytes,
		Validator:        opts.Validator,
	})
	registry.RegisterAll(srv)

	return &Server{
		srv:      srv,
		registry: registry,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),

		watchParent: opts.WatchParent,
		stdin:       opts.Stdin,
		stdout:      opts.Stdout,
	}, nil
}

// Run serves MCP over stdin/stdout and blocks until the server is stopped
// or stdin closes.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Unlock()
	defer cancel()

	go func() {
		defer close(s.doneCh)
		stdio := mcpserver.NewStdioServer(s.srv)
		stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
		err := stdio.Listen(runCtx, s.stdin, s.stdout)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			s.logger.Error("server error", "error", err)
		}
		s.Shutdown()
	}()

	<-s.stopCh
	cancel()
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// RunWithContext runs the server until ctx is canceled or stdin closes.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
			}
		}()

		if s.watchParent {
			go s.monitorParent(derived, parentPollInterval)
		}
	})

	return s.Run()
}

// Shutdown initiates a graceful shutdown of the server. It does not
// block, and a server shut down before Run returns from Run at once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.once.Do(func() {
		close(s.stopCh)
	})

	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until a running server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Registry returns the tool registry the server was built with.
func (s *Server) Registry() *tools.Registry {
	return s.registry
}

// CallTool runs a registered tool directly, bypassing any transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	handler := s.registry.Handler(name)
	if handler == nil {
		return nil, core.NewError(core.ErrInvalidParameter, "unknown tool: "+name)
	}
	return handler(ctx, tools.NewCallToolRequest(name, args))
}
