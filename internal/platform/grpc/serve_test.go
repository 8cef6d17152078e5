package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer()
	healthServer := RegisterHealth(server, "cellarpool.test.Service")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, server, listener, healthServer)
	}()

	conn := dialHealthServer(t, listener.Addr().String())
	defer conn.Close()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := WaitForHealth(waitCtx, conn, "cellarpool.test.Service", nil); err != nil {
		t.Fatalf("wait for named service health: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected serve to return after cancel")
	}
}

func TestServeRequiresServer(t *testing.T) {
	if err := Serve(context.Background(), nil, nil, nil); err == nil {
		t.Fatal("expected error for missing server")
	}
}

func TestRegisterHealthMarksServing(t *testing.T) {
	server := gogrpc.NewServer()
	healthServer := RegisterHealth(server, "svc")
	resp, err := healthServer.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "svc"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}
}
