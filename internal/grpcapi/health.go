// Package grpcapi exposes the standard gRPC health service so supervisors
// can probe the process and the card reader separately.
package grpcapi

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ReaderService is the health service name that tracks the card reader.
const ReaderService = "rollcall.reader"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ReaderService, healthpb.HealthCheckResponse_UNKNOWN)
	return s
}

// SetReaderHealthy implements reader.HealthReporter.
func (s *Server) SetReaderHealthy(healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ReaderService, status)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", l.Addr().String()))
	return s.grpc.Serve(l)
}

// Stop flips every status to NOT_SERVING, then drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
