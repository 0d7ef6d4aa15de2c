package main

import (
	"context"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func healthCmd(ctx context.Context, conn *grpc.ClientConn, args []string) {
	service := ""
	if len(args) > 0 {
		service = args[0]
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		fatal("health check", err)
	}

	name := service
	if name == "" {
		name = "gohome"
	}
	outputMode{}.table([][]string{{name, resp.GetStatus().String()}})
}
