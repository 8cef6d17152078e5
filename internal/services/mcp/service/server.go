package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	platformgrpc "github.com/louisbranch/cellarpool/internal/platform/grpc"
	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/platform/timeouts"
	"github.com/louisbranch/cellarpool/internal/services/mcp/domain"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	serverName    = "cellarpool MCP"
	serverVersion = "0.1.0"

	defaultHTTPAddr = "localhost:8092"
	healthInterval  = 30 * time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	PoolAddr  string
	Transport TransportKind
	// HTTPAddr is used by the HTTP transport. Defaults to localhost only.
	HTTPAddr string
	// ActorID is the initial actor; the set_actor tool changes it.
	ActorID string
	Logger  *logging.Logger
	// ActorTokenSecret signs outgoing actors when the pool requires tokens.
	ActorTokenSecret string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
	logger    *logging.Logger

	ctx   domain.Context
	ctxMu sync.RWMutex

	poolHealthy atomic.Bool
}

// newServer binds tools and resources to client once.
func newServer(client poolgrpc.PoolServiceClient, conn *grpc.ClientConn, actorID string, logger *logging.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("pool client is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})
	server := &Server{
		mcpServer: mcpServer,
		conn:      conn,
		logger:    logger,
		ctx:       domain.Context{ActorID: strings.ToLower(strings.TrimSpace(actorID))},
	}
	server.poolHealthy.Store(true)
	notify := resourceNotifier(mcpServer, logger.Printf)
	for _, module := range newMCPRegistrationModules(server, client, notify) {
		if err := module.register(mcpServer); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// Run connects to the pool service and serves MCP until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	dialOpts := platformgrpc.DefaultClientDialOptions()
	if cfg.ActorTokenSecret != "" {
		tokens, err := poolgrpc.NewActorTokens(cfg.ActorTokenSecret, 0, nil)
		if err != nil {
			return fmt.Errorf("load actor tokens: %w", err)
		}
		dialOpts = append(dialOpts, grpc.WithChainUnaryInterceptor(poolgrpc.ActorTokenClientInterceptor(tokens)))
	}
	conn, err := dialPoolGRPC(ctx, cfg.PoolAddr, cfg.Logger, dialOpts...)
	if err != nil {
		return err
	}
	server, err := newServer(poolgrpc.NewClient(conn), conn, cfg.ActorID, cfg.Logger)
	if err != nil {
		_ = conn.Close()
		return err
	}

	if cfg.Transport == TransportHTTP {
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func dialPoolGRPC(ctx context.Context, addr string, logger *logging.Logger, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("pool address is required")
	}
	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf("pool "+format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, poolgrpc.ServiceName, timeouts.GRPCDial, logf, opts...)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
			return nil, fmt.Errorf("connect to pool server at %s: %w", addr, dialErr.Err)
		}
		return nil, fmt.Errorf("pool server at %s is not healthy: %w", addr, err)
	}
	return conn, nil
}

// serveWithTransport serves one MCP session over transport and releases the
// gRPC connection on the way out.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return s.finish(err)
}

// serveHTTP serves MCP over streamable HTTP until ctx ends.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	return s.finish(s.runHTTP(ctx, addr))
}

func (s *Server) runHTTP(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	var wg sync.WaitGroup
	healthCtx, stopHealth := context.WithCancel(ctx)
	wg.Go(func() { s.monitorHealth(healthCtx) })
	defer func() {
		stopHealth()
		wg.Wait()
	}()

	httpServer := &http.Server{Handler: s.httpHandler(), ReadHeaderTimeout: timeouts.ReadHeader}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()
	s.logger.Info("mcp http listening", "addr", listener.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// httpHandler serves streamable MCP sessions and a /healthz check that
// reflects the last pool health check.
func (s *Server) httpHandler() http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.poolHealthy.Load() {
			http.Error(w, "pool unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	router.Mount("/", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil))
	return router
}

// monitorHealth polls the pool health service and logs transitions.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkPoolHealth(ctx)
		}
	}
}

func (s *Server) checkPoolHealth(ctx context.Context) {
	if s.conn == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	defer cancel()
	response, err := grpc_health_v1.NewHealthClient(s.conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: poolgrpc.ServiceName})
	healthy := err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
	if s.poolHealthy.Swap(healthy) == healthy {
		return
	}
	if healthy {
		s.logger.Info("pool service healthy again")
	} else {
		s.logger.Warn("pool service unhealthy", "status", response.GetStatus().String(), "error", err)
	}
}

func (s *Server) finish(err error) error {
	closeErr := s.Close()
	switch {
	case err != nil && closeErr != nil:
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	case err != nil:
		return fmt.Errorf("serve MCP: %w", err)
	case closeErr != nil:
		return fmt.Errorf("close gRPC connection: %w", closeErr)
	}
	return nil
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Server) setContext(ctx domain.Context) {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	s.ctx = ctx
}

func (s *Server) getContext() domain.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}
