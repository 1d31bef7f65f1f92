package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/poexist/poe/auth"
	"github.com/poexist/poe/clock"
	"github.com/poexist/poe/events"
	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/registry"
	"github.com/poexist/poe/rpc"
	"github.com/poexist/poe/store"
)

const claimsGaugeInterval = 30 * time.Second

type Server struct {
	cfg     Config
	version string

	store    registry.Store
	height   *clock.Height
	bus      *events.Broadcaster
	registry *registry.Registry
	auth     auth.Authenticator

	rpcListener     net.Listener
	metricsListener net.Listener
}

type serverOptions struct {
	version string
}

type OptionFunc func(*serverOptions)

func WithVersion(version string) OptionFunc {
	return func(o *serverOptions) {
		o.version = version
	}
}

func New(ctx context.Context, cfg Config, opts ...OptionFunc) (*Server, error) {
	options := serverOptions{version: "unknown"}
	for _, opt := range opts {
		opt(&options)
	}
	logger := logging.FromContext(ctx)

	if err := cfg.Clock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clock config: %w", err)
	}
	authenticator, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	claims, seed, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		version: options.version,
		store:   claims,
		bus:     events.NewBroadcaster(events.DefaultSubscriberBuffer),
		auth:    authenticator,
	}

	var clk registry.Clock
	switch cfg.Clock.Kind {
	case ClockHeight:
		s.height = clock.NewHeight(seed)
		clk = s.height
	case ClockCounter:
		clk = clock.NewCounter(seed)
	case ClockEpoch:
		epoch := clock.NewEpoch(cfg.Clock.Genesis.Time(), cfg.Clock.PhaseShift, cfg.Clock.EpochDuration)
		clk = clock.MonotonicFrom(epoch, seed)
	default:
		_ = claims.Close()
		return nil, fmt.Errorf("unknown clock %q", cfg.Clock.Kind)
	}
	logger.Info("claim registry clock", zap.Object("clock", cfg.Clock), zap.Uint64("seed", seed))

	s.registry = registry.New(
		claims,
		clk,
		events.Multi(events.NewLogSink(logger), s.bus),
		registry.WithConfig(cfg.Registry),
	)
	count, err := s.registry.Count(ctx)
	if err != nil {
		_ = claims.Close()
		return nil, fmt.Errorf("counting claims: %w", err)
	}
	logger.Info("claim registry ready", zap.Int("claims", count), zap.Object("store", cfg.Store))

	// Resolve the RPC listener
	addr, err := net.ResolveTCPAddr("tcp", cfg.RawRPCListener)
	if err != nil {
		_ = claims.Close()
		return nil, err
	}
	s.rpcListener, err = net.Listen(addr.Network(), addr.String())
	if err != nil {
		_ = claims.Close()
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	if cfg.MetricsPort != nil {
		s.metricsListener, err = net.Listen("tcp", fmt.Sprintf(":%d", *cfg.MetricsPort))
		if err != nil {
			_ = s.rpcListener.Close()
			_ = claims.Close()
			return nil, fmt.Errorf("failed to listen for metrics: %v", err)
		}
	}
	return s, nil
}

func newAuthenticator(cfg AuthConfig) (auth.Authenticator, error) {
	var authenticators []auth.Authenticator
	if cfg.TokensFile != "" {
		tokens, err := auth.LoadTokensFile(cfg.TokensFile)
		if err != nil {
			return nil, err
		}
		authenticators = append(authenticators, tokens)
	}
	if cfg.IdentityHeader != "" && (cfg.TokensFile == "" || cfg.HeaderWithTokens) {
		authenticators = append(authenticators, auth.Header(cfg.IdentityHeader))
	}
	if len(authenticators) == 0 {
		return nil, errors.New("no authentication method configured")
	}
	return auth.Chain(authenticators...), nil
}

// openStore opens the configured backend and returns the highest registration
// time found in it, used to seed the clock.
func openStore(ctx context.Context, cfg Config) (registry.Store, uint64, error) {
	switch cfg.Store.Backend {
	case StoreMemory:
		return store.NewMemory(cfg.Store.Shards), 0, nil
	case StoreLevelDB:
		if err := os.MkdirAll(cfg.DbDir, 0o700); err != nil {
			return nil, 0, err
		}
		db, err := store.OpenLevelDB(
			cfg.DbDir,
			store.WithCacheSize(cfg.Store.CacheSize),
			store.WithSync(!cfg.Store.NoSync),
		)
		if err != nil {
			return nil, 0, err
		}
		seed, err := db.MaxRegisteredAt(ctx)
		if err != nil {
			_ = db.Close()
			return nil, 0, fmt.Errorf("scanning claims: %w", err)
		}
		return db, seed, nil
	default:
		return nil, 0, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (s *Server) Close() error {
	return s.store.Close()
}

// GrpcAddr returns the address that server is listening on for GRPC.
func (s *Server) GrpcAddr() net.Addr {
	return s.rpcListener.Addr()
}

func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start starts the RPC server and blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)

	if s.height != nil {
		logger.Info("starting height clock", zap.Duration("interval", s.cfg.Clock.BlockInterval))
		serverGroup.Go(func() error {
			return s.height.Run(ctx, s.cfg.Clock.BlockInterval)
		})
	}

	rpcServer := rpc.NewServer(s.registry, s.auth, rpc.WithEvents(s.bus),
		rpc.WithVersion(s.version),
		rpc.WithShutdown(ctx.Done()),
	)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(loggerInterceptor(logger), metricsInterceptor),
		grpc.ChainStreamInterceptor(streamLoggerInterceptor(logger), streamMetricsInterceptor),
		// XXX: this is done to prevent routers from cleaning up our connections (e.g aws load balances..)
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     time.Minute * 120,
			MaxConnectionAge:      time.Minute * 180,
			MaxConnectionAgeGrace: time.Minute * 10,
			Time:                  time.Minute,
			Timeout:               time.Minute * 3,
		}),
	)
	rpc.RegisterClaimServiceServer(grpcServer, rpcServer)
	reflection.Register(grpcServer)

	// Start the gRPC server listening for HTTP/2 connections.
	serverGroup.Go(func() error {
		logger.Sugar().Infof("GRPC server listening on %s", s.rpcListener.Addr())
		return grpcServer.Serve(s.rpcListener)
	})

	var metricsServer *http.Server
	if s.metricsListener != nil {
		serverGroup.Go(func() error {
			s.refreshClaimsGauge(ctx)
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 5}
		serverGroup.Go(func() error {
			logger.Sugar().Infof("metrics server listening on %s", s.metricsListener.Addr())
			err := metricsServer.Serve(s.metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	grpcServer.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown metrics server: %s", err)
		}
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
	}
	return nil
}

// refreshClaimsGauge recounts the claims periodically so the claims gauge stays current.
func (s *Server) refreshClaimsGauge(ctx context.Context) {
	ticker := time.NewTicker(claimsGaugeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.registry.Count(ctx); err != nil && ctx.Err() == nil {
				logging.FromContext(ctx).Warn("failed to count claims", zap.Error(err))
			}
		}
	}
}
