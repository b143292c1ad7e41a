// Package grpcapi serves the admin gRPC endpoint: per-component health and reflection.
package grpcapi

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Konseptt/ai-lecture-notes/internal/observability"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/logging"
	"github.com/Konseptt/ai-lecture-notes/internal/observability/metrics"
)

// Component service names reported through the health service.
const (
	ServiceTranscription = "lecture.Transcription"
	ServiceCompletion    = "lecture.Completion"
	ServiceStore         = "lecture.Store"
)

// Check reports whether one component is usable.
type Check func(ctx context.Context) error

// Server is the admin gRPC server.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
	mu     sync.Mutex
	logger zerolog.Logger
}

// New builds the server and registers health and reflection. checks is keyed by service
// name; the overall ("") status is SERVING only when every check passes.
func New(checks map[string]Check) *Server {
	m := metrics.DefaultMetrics
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(g, hs)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{
		grpc:   g,
		health: hs,
		checks: checks,
		logger: logging.WithComponent("grpc-admin"),
	}
}

// Refresh runs every check and publishes the results.
func (s *Server) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn().Err(err).Str("service", name).Msg("Component unhealthy")
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}

// Run refreshes health every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Admin gRPC server started")
	return s.grpc.Serve(lis)
}

// Shutdown marks every service NOT_SERVING and stops gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
