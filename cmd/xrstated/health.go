package main

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/session"
)

// runtimeService is the health service name reported for the runtime.
const runtimeService = "xrstate.Runtime"

// healthServer serves the gRPC health protocol. The runtime service
// reports NOT_SERVING while any session is lost.
type healthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

func newHealthServer(addr string) (*healthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(runtimeService, grpc_health_v1.HealthCheckResponse_SERVING)
	return &healthServer{listener: lis, grpc: srv, health: hs}, nil
}

// Addr returns the listener address.
func (h *healthServer) Addr() string { return h.listener.Addr().String() }

// Serve serves until ctx is done, following inst's events to keep the
// runtime status current.
func (h *healthServer) Serve(ctx context.Context, inst *session.Instance) error {
	id, events := inst.Subscribe()
	defer inst.Unsubscribe(id)

	monitoring.Logf("[health] gRPC health listening at %s", h.Addr())
	serveErr := make(chan error, 1)
	go func() { serveErr <- h.grpc.Serve(h.listener) }()

	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			h.grpc.GracefulStop()
			return nil
		case err := <-serveErr:
			return fmt.Errorf("serve health: %w", err)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.health.SetServingStatus(runtimeService, statusFor(inst))
		}
	}
}

func statusFor(inst *session.Instance) grpc_health_v1.HealthCheckResponse_ServingStatus {
	for _, s := range inst.Sessions() {
		if s.Lost() {
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
