package router

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joshp123/gohome-sengled/internal/core"
)

// RegisterPlugins registers the gRPC health service with one entry per plugin.
func RegisterPlugins(server *grpc.Server, plugins []core.Plugin) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	SyncHealth(hs, plugins)
	return hs
}

// SyncHealth maps plugin health onto gRPC serving status. Only HEALTHY serves.
func SyncHealth(hs *health.Server, plugins []core.Plugin) {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, p := range plugins {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if p.Health() == core.HealthHealthy {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(p.ID(), status)
	}
}

// WatchHealth re-syncs plugin health until ctx is done, then marks everything
// as not serving.
func WatchHealth(ctx context.Context, hs *health.Server, plugins []core.Plugin, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			SyncHealth(hs, plugins)
		}
	}
}
