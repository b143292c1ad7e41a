// Command testclient probes the admin gRPC health service.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "github.com/Konseptt/ai-lecture-notes/internal/api/grpc"
)

func main() {
	addr := flag.String("server", "localhost:50051", "Admin gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "Probe timeout")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	healthy := true
	for _, service := range []string{"", grpcapi.ServiceTranscription, grpcapi.ServiceCompletion, grpcapi.ServiceStore} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		name := service
		if name == "" {
			name = "overall"
		}
		if err != nil {
			log.Error().Err(err).Str("service", name).Msg("Health check failed")
			healthy = false
			continue
		}
		evt := log.Info()
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			evt = log.Warn()
			healthy = false
		}
		evt.Str("service", name).Str("status", resp.GetStatus().String()).Msg("Health")
	}

	if !healthy {
		os.Exit(1)
	}
}
