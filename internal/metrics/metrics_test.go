package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rzbill/spool/internal/persistence"
	channelsvc "github.com/rzbill/spool/internal/services/channels"
	pebblestore "github.com/rzbill/spool/internal/storage/pebble"
	"github.com/stretchr/testify/require"
)

var (
	_ pebblestore.MetricsHook = (*Metrics)(nil)
	_ persistence.Metrics     = (*Metrics)(nil)
	_ channelsvc.Metrics      = (*Metrics)(nil)
)

func TestEngineCounters(t *testing.T) {
	m := New()
	m.RecordPut("g", true)
	m.RecordPut("g", true)
	m.RecordPut("g", false)
	m.RecordLease("g", 5)
	m.RecordConfirm("g", 5)
	m.RecordCorrupt("g", 2)
	m.RecordFault("scan")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Puts.WithLabelValues("g", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Puts.WithLabelValues("g", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Leases.WithLabelValues("g")))
	require.Equal(t, 5.0, testutil.ToFloat64(m.LeasedRecords.WithLabelValues("g")))
	require.Equal(t, 5.0, testutil.ToFloat64(m.Confirmed.WithLabelValues("g")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CorruptPurged.WithLabelValues("g")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Faults.WithLabelValues("scan")))
}

func TestChannelCounters(t *testing.T) {
	m := New()
	m.RecordSend("g", 3, nil)
	m.RecordSend("g", 3, errors.New("boom"))
	m.RecordFiltered("g")

	require.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("g", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("g", "failed")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.SentRecords.WithLabelValues("g")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FilteredTotal.WithLabelValues("g")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveWrite(time.Millisecond, 10)
	m.ObserveBatchCommit(2*time.Millisecond, 3, 30)
	m.RecordPut("analytics", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	text := string(body)
	require.True(t, strings.Contains(text, `spool_engine_puts_total{group="analytics",status="ok"} 1`), text)
	require.Contains(t, text, `spool_storage_bytes_total{direction="write"} 40`)
	require.Contains(t, text, "spool_storage_batch_commit_duration_seconds_count 1")
	require.Contains(t, text, "go_goroutines")
}
