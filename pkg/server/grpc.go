package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// NewGRPCServer creates a gRPC server with tracing, request logging, panic recovery
// and an optional per-call deadline, then registers the given services.
func NewGRPCServer(logger *slog.Logger, cfg config.GrpcServerConfig, registerFunc ...RegistrationFunc) *grpc.Server {
	unary := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(InterceptorLogger(logger)),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(recoveryHandler(logger))),
	}
	if cfg.RequestTimeout > 0 {
		unary = append(unary, UnaryServerTimeoutInterceptor(cfg.RequestTimeout))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(InterceptorLogger(logger)),
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandlerContext(recoveryHandler(logger))),
		),
	)

	if cfg.ReflectionEnabled {
		reflection.Register(grpcServer)
	}
	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}
	return grpcServer
}

// InterceptorLogger adapts slog to the go-grpc-middleware logging interface.
func InterceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func recoveryHandler(l *slog.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "Panic recovered in gRPC handler", "panic", p)
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryServerTimeoutInterceptor bounds every unary call by timeout.
func UnaryServerTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(callCtx, req)
	}
}
