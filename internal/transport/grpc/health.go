// Package grpc exposes the operational gRPC surface of the sweet shop: the standard health service.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// InventoryServiceName is the health service name that tracks the sweet store.
const InventoryServiceName = "sweetshop.Inventory"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Health wraps the grpc health server. The overall status ("") follows the process lifecycle,
// InventoryServiceName follows the store probe.
type Health struct {
	server *health.Server
	probe  Probe
	logger *slog.Logger
}

func NewHealth(probe Probe, logger *slog.Logger) *Health {
	h := &Health{
		server: health.NewServer(),
		probe:  probe,
		logger: logger.With("component", "grpc-health"),
	}
	h.server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.server.SetServingStatus(InventoryServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return h
}

// Register is a server.RegistrationFunc.
func (h *Health) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.server)
}

// Watch runs the probe every interval until ctx is done and updates the inventory status.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	if h.probe == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		h.check(ctx, interval)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) check(ctx context.Context, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := h.probe(probeCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.WarnContext(ctx, "Inventory store probe failed", "error", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(InventoryServiceName, status)
}

// Shutdown marks every service NOT_SERVING. Further status updates are ignored.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}
