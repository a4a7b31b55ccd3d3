package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rzbill/spool/internal/codec"
	cfgpkg "github.com/rzbill/spool/internal/config"
	"github.com/rzbill/spool/internal/ingestion"
	"github.com/rzbill/spool/internal/metrics"
	"github.com/rzbill/spool/internal/persistence"
	"github.com/rzbill/spool/internal/rowstore"
	"github.com/rzbill/spool/internal/rowstore/memrows"
	"github.com/rzbill/spool/internal/rowstore/pebblerows"
	"github.com/rzbill/spool/internal/rowstore/sqliterows"
	channelsvc "github.com/rzbill/spool/internal/services/channels"
	pebblestore "github.com/rzbill/spool/internal/storage/pebble"
	logpkg "github.com/rzbill/spool/pkg/log"
)

const installIDFile = "install_id"

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Logger defaults to a no-op logger.
	Logger logpkg.Logger
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
	// Sender overrides the ingestion client built from Config.
	Sender ingestion.Ingestion
}

// Runtime wires storage, codec, engine and channel for a single-node
// instance.
type Runtime struct {
	config  cfgpkg.Config
	log     logpkg.Logger
	metrics *metrics.Metrics
	channel *channelsvc.Service
}

// Open validates the configuration, opens the configured backend and
// returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	c, err := codec.New(cfg.Codec, cfg.Compression)
	if err != nil {
		return nil, err
	}
	opener, err := storeOpener(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	engine, err := persistence.New(opener, c,
		persistence.WithLogger(logger),
		persistence.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	sender := opts.Sender
	if sender == nil {
		sender, err = newSender(cfg, logger)
		if err != nil {
			_ = engine.Close()
			return nil, err
		}
	}

	channel, err := channelsvc.New(engine, sender, channelsvc.Config{
		Groups:        cfg.Groups,
		Filter:        cfg.Filter,
		BatchSize:     cfg.Flush.BatchSize,
		FlushInterval: cfg.FlushInterval(),
		RatePerSecond: cfg.Flush.RatePerSecond,
	}, channelsvc.WithLogger(logger), channelsvc.WithMetrics(m))
	if err != nil {
		_ = sender.Close()
		_ = engine.Close()
		return nil, err
	}

	logger.Info("runtime opened",
		logpkg.Str("backend", cfg.Backend),
		logpkg.Str("codec", c.Name()),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Int("capacity", cfg.Capacity))
	return &Runtime{config: cfg, log: logger, metrics: m, channel: channel}, nil
}

// storeOpener returns the Opener for the configured backend. Every call of
// the Opener acquires a fresh handle, which is what Reopen relies on.
func storeOpener(cfg cfgpkg.Config, logger logpkg.Logger, m *metrics.Metrics) (persistence.Opener, error) {
	switch cfg.Backend {
	case cfgpkg.BackendPebble:
		fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
		if err != nil {
			return nil, err
		}
		dbOpts := pebblestore.Options{
			DataDir:       filepath.Join(cfg.DataDir, "rows"),
			Fsync:         fsync,
			FsyncInterval: cfg.FsyncInterval(),
			Metrics:       m,
			Logger:        logger,
		}
		return func(onFault rowstore.FaultListener) (rowstore.Store, error) {
			return pebblerows.OpenDir(dbOpts, rowstore.Options{Capacity: cfg.Capacity, OnFault: onFault})
		}, nil
	case cfgpkg.BackendSQLite:
		path := filepath.Join(cfg.DataDir, "spool.db")
		return func(onFault rowstore.FaultListener) (rowstore.Store, error) {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("runtime: create data dir: %w", err)
			}
			return sqliterows.Open(sqliterows.Config{Path: path}, rowstore.Options{Capacity: cfg.Capacity, OnFault: onFault})
		}, nil
	case cfgpkg.BackendMemory:
		return func(onFault rowstore.FaultListener) (rowstore.Store, error) {
			return memrows.New(rowstore.Options{Capacity: cfg.Capacity, OnFault: onFault}), nil
		}, nil
	default:
		return nil, fmt.Errorf("runtime: unknown backend %q", cfg.Backend)
	}
}

func newSender(cfg cfgpkg.Config, logger logpkg.Logger) (ingestion.Ingestion, error) {
	if cfg.Ingestion.URL == "" {
		return ingestion.NewDiscard(logger), nil
	}
	installID := cfg.Ingestion.InstallID
	if installID == "" {
		var err error
		installID, err = loadInstallID(cfg)
		if err != nil {
			return nil, err
		}
	}
	return ingestion.NewHTTP(ingestion.HTTPConfig{
		BaseURL:   cfg.Ingestion.URL,
		AppSecret: cfg.Ingestion.AppSecret,
		InstallID: installID,
		AuthToken: cfg.Ingestion.AuthToken,
		Timeout:   cfg.IngestionTimeout(),
		Logger:    logger,
	})
}

// loadInstallID reads the install identifier kept in the data directory,
// creating it on first use. The memory backend gets a fresh one per process.
func loadInstallID(cfg cfgpkg.Config) (string, error) {
	if cfg.Backend == cfgpkg.BackendMemory {
		return uuid.NewString(), nil
	}
	path := filepath.Join(cfg.DataDir, installIDFile)
	b, err := os.ReadFile(path)
	if err == nil {
		if id, perr := uuid.Parse(strings.TrimSpace(string(b))); perr == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("runtime: read install id: %w", err)
	}
	id := uuid.NewString()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("runtime: create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("runtime: write install id: %w", err)
	}
	return id, nil
}

// Close closes the channel, its sender and the store.
func (r *Runtime) Close() error {
	if r.channel == nil {
		return nil
	}
	return r.channel.Close()
}

// CheckHealth reports an error when the store is not open.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.channel == nil || !r.channel.Healthy() {
		return errors.New("store not open")
	}
	return nil
}

// Channel returns the service that owns the engine.
func (r *Runtime) Channel() *channelsvc.Service { return r.channel }

// Metrics returns the collectors shared by every component.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.log }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
