package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/poexist/poe/logging"
)

var (
	grpcRequestsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poe",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Number of handled gRPC calls",
	}, []string{"method", "code"})

	grpcLatencyMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poe",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "Time spent handling gRPC calls",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"method"})
)

func observeCall(method string, start time.Time, err error) {
	grpcRequestsMetric.WithLabelValues(method, status.Code(err).String()).Inc()
	grpcLatencyMetric.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func requestLogger(ctx context.Context, logger *zap.Logger, method string) *zap.Logger {
	logger = logger.Named(method).With(zap.Stringer("request_id", uuid.New()))
	if p, ok := peer.FromContext(ctx); ok {
		logger = logger.With(zap.Stringer("from", p.Addr))
	}
	return logger
}

// loggerInterceptor returns UnaryServerInterceptor handler to log all RPC server incoming requests.
func loggerInterceptor(
	logger *zap.Logger,
) func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		logger := requestLogger(ctx, logger, info.FullMethod)
		ctx = logging.NewContext(ctx, logger)

		if msg, ok := req.(fmt.Stringer); ok {
			logger.Debug("new GRPC", zap.Stringer("message", msg))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			logger.Info("FAILURE", zap.Error(err))
		}
		return resp, err
	}
}

func metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	observeCall(info.FullMethod, start, err)
	return resp, err
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context {
	return s.ctx
}

func streamLoggerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		logger := requestLogger(ss.Context(), logger, info.FullMethod)
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: logging.NewContext(ss.Context(), logger)})
		if err != nil {
			logger.Info("FAILURE", zap.Error(err))
		}
		return err
	}
}

func streamMetricsInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	observeCall(info.FullMethod, start, err)
	return err
}
