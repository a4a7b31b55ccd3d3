// Package ingestion ships leased batches to the upstream log service.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rzbill/spool/internal/codec"
)

// APIVersion is sent as the api-version query parameter.
const APIVersion = "1.0.0"

var (
	// ErrRejected matches send errors that retrying cannot fix. The caller
	// should drop the batch.
	ErrRejected = errors.New("ingestion: batch rejected")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("ingestion: closed")
)

// Container is the wire envelope of one batch.
type Container struct {
	Logs []codec.Record `json:"logs"`
}

// Ingestion sends batches upstream.
type Ingestion interface {
	Send(ctx context.Context, batch Container) error
	Close() error
}

// HTTPError carries a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ingestion: http %d", e.StatusCode)
	}
	return fmt.Sprintf("ingestion: http %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrRejected) true for non-recoverable statuses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRejected && !Recoverable(e.StatusCode)
}

// Recoverable reports whether a request that failed with status may succeed
// when retried: server errors, timeouts and throttling.
func Recoverable(status int) bool {
	switch {
	case status >= 500:
		return true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 400:
		return false
	default:
		return true
	}
}
