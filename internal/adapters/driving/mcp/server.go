package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Options configures caller identity for the server.
type Options struct {
	// Claims is the identity of the stdio caller, typically from --token.
	Claims *tenant.Claims

	// Trusted allows set_tenant_context and clear_tenant_context.
	Trusted bool

	// TokenSecret verifies "Authorization: Bearer" tokens on HTTP sessions.
	// When empty, HTTP sessions inherit Claims.
	TokenSecret string
}

// Server is the MCP server for vconsearch.
// Each Server owns one tenant session; HTTP sessions get their own Server.
type Server struct {
	ports   *Ports
	opts    Options
	claims  *tenant.Claims
	session *tenant.Session
	server  *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports, opts Options) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	return newServer(ports, opts, opts.Claims), nil
}

func newServer(ports *Ports, opts Options, claims *tenant.Claims) *Server {
	impl := &mcp.Implementation{
		Name:    "vconsearch",
		Version: Version,
	}

	s := &Server{
		ports:   ports,
		opts:    opts,
		claims:  claims,
		session: tenant.NewSession(),
		server:  mcp.NewServer(impl, nil),
	}

	s.registerTools()
	s.registerResources()

	return s
}

// bind attaches the caller's identity to a handler context.
func (s *Server) bind(ctx context.Context) context.Context {
	ctx = tenant.WithSession(ctx, s.session)
	if s.claims != nil {
		ctx = tenant.WithClaims(ctx, s.claims)
	}
	if s.opts.Trusted {
		ctx = tenant.WithTrusted(ctx)
	}
	return ctx
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// HTTPHandler returns a streamable HTTP handler. Every new MCP session is
// served by a fresh Server so tenant contexts never leak between sessions.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		sub, err := s.forRequest(r)
		if err != nil {
			logger.L().Warn("rejecting mcp session", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return nil
		}
		return sub.server
	}, nil)
}

// forRequest builds the per-session server for an HTTP request.
func (s *Server) forRequest(r *http.Request) (*Server, error) {
	claims := s.claims
	if s.opts.TokenSecret != "" {
		if raw, ok := bearerToken(r); ok {
			c, err := tenant.ParseToken(raw, s.opts.TokenSecret)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}
			claims = c
		}
	}
	return newServer(s.ports, s.opts, claims), nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
