package persistence

import (
	"github.com/google/uuid"
	"github.com/rzbill/spool/internal/rowstore"
	logpkg "github.com/rzbill/spool/pkg/log"
)

// Opener acquires the row store. The engine passes its own fault handler so
// every store fault reaches the engine's listener and metrics.
type Opener func(onFault rowstore.FaultListener) (rowstore.Store, error)

// Metrics receives engine events. Implementations must be cheap.
type Metrics interface {
	RecordPut(group string, ok bool)
	RecordLease(group string, records int)
	RecordConfirm(group string, records int)
	RecordCorrupt(group string, rows int)
	RecordFault(op string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordPut(string, bool)    {}
func (NoopMetrics) RecordLease(string, int)   {}
func (NoopMetrics) RecordConfirm(string, int) {}
func (NoopMetrics) RecordCorrupt(string, int) {}
func (NoopMetrics) RecordFault(string)        {}

type options struct {
	logger   logpkg.Logger
	onFault  rowstore.FaultListener
	metrics  Metrics
	newToken func() string
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger. Storage faults are logged at error level unless
// a fault listener is installed.
func WithLogger(l logpkg.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFaultListener replaces fault logging with fn.
func WithFaultListener(fn rowstore.FaultListener) Option {
	return func(o *options) { o.onFault = fn }
}

// WithMetrics reports engine events to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTokenSource overrides lease token generation.
func WithTokenSource(fn func() string) Option {
	return func(o *options) { o.newToken = fn }
}

func defaultOptions() options {
	return options{
		logger:   logpkg.NewNopLogger(),
		metrics:  NoopMetrics{},
		newToken: uuid.NewString,
	}
}
