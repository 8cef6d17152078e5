package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	platformgrpc "github.com/louisbranch/cellarpool/internal/platform/grpc"
	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/platform/timeouts"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	poolhttp "github.com/louisbranch/cellarpool/internal/services/pool/api/http"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/outbox"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Server hosts the pool gRPC API, the read-only HTTP API and the event relay.
type Server struct {
	logger *logging.Logger

	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server

	httpListener net.Listener
	httpServer   *http.Server

	store     Backend
	engine    *engine.Engine
	relay     *outbox.Relay
	publisher *outbox.RedisPublisher

	closeOnce sync.Once
}

// New opens storage and binds the listeners described by cfg.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	cfg = cfg.normalized()

	keyring, err := integrity.OptionalKeyringFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load journal keyring: %w", err)
	}
	if keyring == nil {
		logger.Warn("journal signing disabled, events are hash-chained only")
	} else {
		logger.Info("journal signing enabled", "active_key_id", keyring.ActiveKeyID(), "key_ids", keyring.KeyIDs())
	}

	s := &Server{logger: logger}
	s.store, err = openLedger(ctx, cfg.DBPath, keyring)
	if err != nil {
		return nil, err
	}

	s.engine, err = engine.New(engine.Config{
		Ledger:     s.store,
		Logger:     logger.With("component", "engine"),
		Governance: cfg.governance(),
		Sink:       logSink{logger: logger.With("component", "transfers")},
		Keyring:    keyring,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	if err := s.bindGRPC(cfg); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.HTTPAddr != "" {
		if err := s.bindHTTP(cfg.HTTPAddr); err != nil {
			s.Close()
			return nil, err
		}
	}
	if cfg.RedisAddr != "" {
		if err := s.bindRelay(ctx, cfg); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) bindGRPC(cfg Config) error {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	service, err := poolgrpc.NewService(s.engine)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("build pool service: %w", err)
	}

	var interceptorOpts []poolgrpc.InterceptorOption
	if cfg.ActorTokenSecret != "" {
		tokens, err := poolgrpc.NewActorTokens(cfg.ActorTokenSecret, 0, nil)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("load actor tokens: %w", err)
		}
		interceptorOpts = append(interceptorOpts, poolgrpc.WithActorTokens(tokens))
		s.logger.Info("actor tokens required for pool commands")
	}

	s.listener = listener
	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(poolgrpc.UnaryServerInterceptor(nil, interceptorOpts...)),
	)
	poolgrpc.RegisterPoolServiceServer(s.grpcServer, service)
	s.health = platformgrpc.RegisterHealth(s.grpcServer, poolgrpc.ServiceName)
	return nil
}

func (s *Server) bindHTTP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	handler := poolhttp.NewHandler(s.engine, s.logger.With("component", "http"))
	s.httpListener = listener
	s.httpServer = &http.Server{
		Handler:           poolhttp.NewRouter(handler),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return nil
}

func (s *Server) bindRelay(ctx context.Context, cfg Config) error {
	publisher, err := outbox.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		return fmt.Errorf("connect event relay: %w", err)
	}
	relay, err := outbox.NewRelay(s.store, publisher, outbox.Config{Interval: cfg.RelayInterval}, s.logger.With("component", "relay"))
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("build event relay: %w", err)
	}
	s.publisher = publisher
	s.relay = relay
	return nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address, empty when disabled.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Engine returns the engine behind the APIs.
func (s *Server) Engine() *engine.Engine {
	if s == nil {
		return nil
	}
	return s.engine
}

// Run creates and serves a pool server until the context ends.
func Run(ctx context.Context, cfg Config, logger *logging.Logger) error {
	server, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs every bound component until ctx ends or one of them fails, then
// stops the rest and releases storage.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			cancel()
		}()
	}

	s.logger.Info("pool server listening", "addr", s.Addr())
	run("grpc", func(ctx context.Context) error {
		return platformgrpc.Serve(ctx, s.grpcServer, s.listener, s.health)
	})
	if s.httpServer != nil {
		s.logger.Info("pool read api listening", "addr", s.HTTPAddr())
		run("http", s.serveHTTP)
	}
	if s.relay != nil {
		s.logger.Info("relaying events to redis", "channel", s.publisher.Channel())
		run("relay", s.relay.Run)
	}

	wg.Wait()
	return errors.Join(errs...)
}

func (s *Server) serveHTTP(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.httpListener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.httpListener != nil {
			_ = s.httpListener.Close()
		}
		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				s.logger.Warn("close redis publisher", "error", err)
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Warn("close pool store", "error", err)
			}
		}
	})
}
