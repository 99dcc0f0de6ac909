package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"memodams/backend/internal/logging"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "memodams.auth"

// DefaultPollInterval is how often Watch re-runs the readiness check.
const DefaultPollInterval = 10 * time.Second

// GRPC exposes the standard grpc.health.v1 service, kept in sync with the readiness check.
type GRPC struct {
	srv     *health.Server
	checker Checker
	log     logging.Logger
}

// NewGRPC starts in NOT_SERVING until the first check passes.
func NewGRPC(checker Checker, log logging.Logger) *GRPC {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPC{srv: srv, checker: checker, log: log}
}

func (g *GRPC) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, g.srv)
}

// Refresh runs the readiness check once and publishes the result.
func (g *GRPC) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := g.checker.Check(ctx); err != nil {
		g.log.Warn(ctx, "health: readiness check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.srv.SetServingStatus("", status)
	g.srv.SetServingStatus(ServiceName, status)
}

// Watch runs the check every interval until ctx is done, then marks the service as shutting down.
func (g *GRPC) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	g.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.srv.Shutdown()
			return
		case <-ticker.C:
			g.Refresh(ctx)
		}
	}
}

// Server returns the underlying health server.
func (g *GRPC) Server() healthpb.HealthServer {
	return g.srv
}
