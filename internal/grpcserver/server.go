// Package grpcserver exposes the standard gRPC health service so process
// supervisors can probe the works store and the media engine separately.
package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service names reported by the health service. The empty name is the
// overall process status.
const (
	ServiceWorks = "reelcms.works"
	ServiceMedia = "reelcms.media"
)

// Check reports whether one subsystem can serve.
type Check func(ctx context.Context) error

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return &Server{grpc: gs, health: hs, logger: logger.With(slog.String("component", "grpc"))}
}

// SetServing records the status of service.
func (s *Server) SetServing(service string, ok bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(service, st)
}

// Monitor runs checks immediately and then every interval until ctx ends.
// The overall status is serving only while every check passes.
func (s *Server) Monitor(ctx context.Context, interval time.Duration, checks map[string]Check) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	run := func() {
		all := true
		for name, check := range checks {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := check(cctx)
			cancel()
			if err != nil {
				all = false
				s.logger.Warn("health check failed", slog.String("service", name), slog.String("error", err.Error()))
			}
			s.SetServing(name, err == nil)
		}
		s.SetServing("", all)
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health listening", slog.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop marks everything not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
