package channelsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/spool/internal/codec"
	"github.com/rzbill/spool/internal/ingestion"
	"github.com/rzbill/spool/internal/persistence"
	"github.com/rzbill/spool/pkg/id"
	logpkg "github.com/rzbill/spool/pkg/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 3 * time.Second
)

// ErrFiltered is returned by Enqueue when the admission filter rejects a
// record.
var ErrFiltered = errors.New("channel: record rejected by filter")

// Config controls admission and flushing.
type Config struct {
	// Groups are flushed by Run and FlushAll.
	Groups []string
	// Filter is a CEL expression over group, record_type, attributes, size
	// and ts_ms. Empty admits everything.
	Filter string
	// BatchSize is the lease limit per send.
	BatchSize int
	// FlushInterval is the Run tick.
	FlushInterval time.Duration
	// RatePerSecond caps batch sends across all groups. Zero is unlimited.
	RatePerSecond float64
}

// Metrics receives channel events.
type Metrics interface {
	RecordSend(group string, records int, err error)
	RecordFiltered(group string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSend(string, int, error) {}
func (noopMetrics) RecordFiltered(string)         {}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logpkg.Logger) Option {
	return func(s *Service) { s.log = l.With(logpkg.Component("channel")) }
}

// WithMetrics reports sends and filtered records to m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns an engine and its sender.
type Service struct {
	cfg     Config
	sender  ingestion.Ingestion
	filter  celFilter
	ids     *id.Generator
	limiter *rate.Limiter
	metrics Metrics
	log     logpkg.Logger
	now     func() time.Time

	// flushing admits one lease, send and confirm cycle at a time. A
	// recoverable failure abandons every lease, which is only safe while
	// no other batch is in flight.
	flushing *semaphore.Weighted

	mu     sync.Mutex
	engine *persistence.Engine
}

// New builds a service. The filter expression is compiled here.
func New(engine *persistence.Engine, sender ingestion.Ingestion, cfg Config, opts ...Option) (*Service, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	filter, err := newCELFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("channel: compile filter: %w", err)
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	s := &Service{
		cfg:     cfg,
		sender:  sender,
		filter:  filter,
		limiter: rate.NewLimiter(limit, 1),
		metrics: noopMetrics{},
		log:     logpkg.NewNopLogger(),
		now:     time.Now,
		engine:  engine,

		flushing: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ids = id.NewGeneratorWithClock(func() int64 { return s.now().UnixMilli() })
	return s, nil
}

// Groups returns the configured groups.
func (s *Service) Groups() []string {
	return append([]string(nil), s.cfg.Groups...)
}

// Enqueue stamps rec with an ID and timestamp when missing, applies the
// filter, and stores it.
func (s *Service) Enqueue(ctx context.Context, group string, rec codec.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	if !s.filter.Eval(group, rec) {
		s.metrics.RecordFiltered(group)
		return ErrFiltered
	}
	if rec.ID == "" {
		rec.ID = s.ids.Next().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Put(group, rec)
}

// Flush sends group's records in batches until none are left. A rejected
// batch is dropped and flushing continues. A recoverable failure abandons
// every lease and returns the error with the number sent so far. Flushes
// never overlap; a caller waits for the one in progress.
func (s *Service) Flush(ctx context.Context, group string) (int, error) {
	if err := s.flushing.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer s.flushing.Release(1)
	return s.flush(ctx, group)
}

// FlushAll flushes every configured group in order and stops at the first
// failure.
func (s *Service) FlushAll(ctx context.Context) (int, error) {
	if err := s.flushing.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer s.flushing.Release(1)
	total := 0
	for _, group := range s.cfg.Groups {
		n, err := s.flush(ctx, group)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Service) flush(ctx context.Context, group string) (int, error) {
	sent := 0
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return sent, err
		}

		s.mu.Lock()
		batch, err := s.engine.Lease(group, s.cfg.BatchSize)
		s.mu.Unlock()
		if err != nil {
			return sent, err
		}
		if batch == nil {
			return sent, nil
		}

		err = s.sender.Send(ctx, ingestion.Container{Logs: batch.Records})
		s.metrics.RecordSend(group, batch.Len(), err)
		switch {
		case err == nil:
			sent += batch.Len()
		case errors.Is(err, ingestion.ErrRejected):
			s.log.Warn("dropping rejected batch",
				logpkg.Group(group), logpkg.Int("logs", batch.Len()), logpkg.Err(err))
		default:
			s.mu.Lock()
			s.engine.AbandonAll()
			s.mu.Unlock()
			return sent, fmt.Errorf("channel: send %s: %w", group, err)
		}

		s.mu.Lock()
		err = s.engine.Confirm(group, batch.Token)
		s.mu.Unlock()
		if err != nil {
			return sent, err
		}
	}
}

// Run abandons leases left from an earlier run, then flushes every
// FlushInterval until ctx is done. Send failures are logged and retried on
// the next tick.
func (s *Service) Run(ctx context.Context) error {
	if err := s.flushing.Acquire(ctx, 1); err != nil {
		return nil
	}
	s.mu.Lock()
	s.engine.AbandonAll()
	s.mu.Unlock()
	s.flushing.Release(1)

	s.log.Info("channel started",
		logpkg.Int("groups", len(s.cfg.Groups)), logpkg.Dur("interval", s.cfg.FlushInterval))
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.FlushAll(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.Warn("flush failed", logpkg.Int("sent", n), logpkg.Err(err))
			} else if n > 0 {
				s.log.Debug("flushed", logpkg.Int("sent", n))
			}
		}
	}
}

// Count returns the stored records of group.
func (s *Service) Count(group string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Count(group)
}

// Purge deletes every record of group.
func (s *Service) Purge(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PurgeGroup(group)
}

// Clear deletes every record.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Clear()
}

// Healthy reports whether the engine is open.
func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.engine.Closed()
}

// Close closes the sender and the engine.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	serr := s.sender.Close()
	if err := s.engine.Close(); err != nil {
		return err
	}
	return serr
}
