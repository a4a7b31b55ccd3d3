package ingestion

import (
	"context"

	logpkg "github.com/rzbill/spool/pkg/log"
)

// Discard accepts every batch and only logs it. It is used when no upstream
// URL is configured.
type Discard struct {
	log logpkg.Logger
}

// NewDiscard returns a Discard that logs at debug level.
func NewDiscard(logger logpkg.Logger) *Discard {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Discard{log: logger.With(logpkg.Component("ingestion"))}
}

func (d *Discard) Send(_ context.Context, batch Container) error {
	d.log.Debug("discarding batch", logpkg.Int("logs", len(batch.Logs)))
	return nil
}

func (d *Discard) Close() error { return nil }
