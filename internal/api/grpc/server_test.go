package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T, checks map[string]Check) (*Server, healthpb.HealthClient) {
	t.Helper()
	s := New(checks)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Shutdown)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestRefresh_ReportsPerComponent(t *testing.T) {
	storeErr := errors.New("connection refused")
	healthy := true
	s, client := startServer(t, map[string]Check{
		ServiceTranscription: func(context.Context) error { return nil },
		ServiceStore: func(context.Context) error {
			if healthy {
				return nil
			}
			return storeErr
		},
	})

	s.Refresh(context.Background())
	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall = %v, want SERVING", got)
	}
	if got := status(t, client, ServiceStore); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("store = %v, want SERVING", got)
	}

	healthy = false
	s.Refresh(context.Background())
	if got := status(t, client, ServiceStore); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("store = %v, want NOT_SERVING", got)
	}
	if got := status(t, client, ServiceTranscription); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("transcription = %v, want SERVING", got)
	}
	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("overall = %v, want NOT_SERVING", got)
	}
}
