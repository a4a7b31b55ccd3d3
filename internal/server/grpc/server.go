package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rzbill/spool/internal/runtime"
	logpkg "github.com/rzbill/spool/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the server-wide
// "" entry.
const ServiceName = "spool.Buffer"

const healthInterval = time.Second

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	health *health.Server
	grpc   *grpc.Server
	lis    net.Listener
	log    logpkg.Logger
}

// New constructs a gRPC server and registers the health and reflection
// services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{
		rt:     rt,
		health: health.NewServer(),
		grpc:   grpc.NewServer(opts...),
		log:    rt.Logger().With(logpkg.Component("grpc")),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.refresh(context.Background())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.log.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	go s.watch(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
