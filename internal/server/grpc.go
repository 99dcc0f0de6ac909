// Package server assembles the HTTP application and the gRPC health listener.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"memodams/backend/internal/server/interceptors"
	"memodams/backend/internal/telemetry"
)

// NewGRPC returns a gRPC server traced by otelgrpc that records a grpc_request event per
// unary call. Only the health service is registered on it today.
func NewGRPC(rec telemetry.Recorder, skipMethods map[string]bool) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.TelemetryUnary(rec, skipMethods)),
	)
}
