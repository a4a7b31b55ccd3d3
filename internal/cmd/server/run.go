package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/rzbill/spool/internal/config"
	"github.com/rzbill/spool/internal/runtime"
	grpcserver "github.com/rzbill/spool/internal/server/grpc"
	httpserver "github.com/rzbill/spool/internal/server/http"
	logpkg "github.com/rzbill/spool/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Options for Run.
type Options struct {
	Config cfgpkg.Config
	// Logger defaults to one built from Config.Log.
	Logger logpkg.Logger
}

// Run opens the runtime, starts the HTTP and gRPC servers and the flush
// loop, and blocks until ctx is cancelled or a signal arrives. An empty
// address disables that server.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(&cfg.Log)
		if err != nil {
			return err
		}
		logger = l
	}
	// Pebble logs through the standard library.
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting spool",
		logpkg.Str("grpc", cfg.GRPCAddr),
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("backend", cfg.Backend),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	g, gctx := errgroup.WithContext(sctx)
	if cfg.GRPCAddr != "" {
		gsrv := grpcserver.New(rt)
		g.Go(func() error { return gsrv.ListenAndServe(gctx, cfg.GRPCAddr) })
	}
	if cfg.HTTPAddr != "" {
		hsrv := httpserver.New(rt, logger)
		g.Go(func() error { return hsrv.ListenAndServe(gctx, cfg.HTTPAddr) })
	}
	g.Go(func() error { return rt.Channel().Run(gctx) })

	err = g.Wait()
	if err != nil {
		logger.Error("server stopped", logpkg.Err(err))
		return err
	}
	logger.Info("spool stopped")
	return nil
}
