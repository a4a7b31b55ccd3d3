package grpcserver

import (
	"context"
	"time"

	logpkg "github.com/rzbill/spool/pkg/log"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// refresh publishes the runtime's health to the health service.
func (s *Server) refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.rt.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// watch refreshes health until ctx is done, logging transitions.
func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if st := s.refresh(ctx); st != last && ctx.Err() == nil {
				s.log.Warn("health changed", logpkg.Str("status", st.String()))
				last = st
			}
		}
	}
}
