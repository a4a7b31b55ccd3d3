package persistence

import (
	"testing"

	"github.com/rzbill/spool/internal/codec"
	"github.com/rzbill/spool/internal/rowstore"
	"github.com/rzbill/spool/internal/rowstore/pebblerows"
	pebblestore "github.com/rzbill/spool/internal/storage/pebble"
	"github.com/stretchr/testify/require"
)

// pebbleHarness opens engines over pebblerows in one directory so the same
// rows are seen across Reopen.
type pebbleHarness struct {
	dir      string
	capacity int
	store    *pebblerows.Store
}

func (h *pebbleHarness) open(onFault rowstore.FaultListener) (rowstore.Store, error) {
	s, err := pebblerows.OpenDir(
		pebblestore.Options{DataDir: h.dir, Fsync: pebblestore.FsyncModeAlways},
		rowstore.Options{Capacity: h.capacity, OnFault: onFault},
	)
	if err != nil {
		return nil, err
	}
	h.store = s
	return s, nil
}

func newPebbleEngine(t *testing.T, capacity int) (*Engine, *pebbleHarness) {
	t.Helper()
	h := &pebbleHarness{dir: t.TempDir(), capacity: capacity}
	e, err := New(h.open, codec.JSON(), WithTokenSource(sequentialTokens()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, h
}

func TestPebbleEvictionThenOverlappingLeases(t *testing.T) {
	e, _ := newPebbleEngine(t, 3)
	put(t, e, "g", "A", "B", "C", "D")
	require.Equal(t, 3, count(t, e, "g"))

	first, err := e.Lease("g", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C"}, names(first))
	require.Equal(t, "T1", first.Token)

	second, err := e.Lease("g", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"D"}, names(second))

	require.NoError(t, e.Confirm("g", first.Token))
	require.Equal(t, 1, count(t, e, "g"))

	// The unconfirmed lease does not survive a reopen; its row does.
	require.NoError(t, e.Close())
	require.NoError(t, e.Reopen())
	again, err := e.Lease("g", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"D"}, names(again))
	require.Equal(t, second.RowIDs, again.RowIDs)
}

func TestPebbleDamagedFrameIsPurged(t *testing.T) {
	e, h := newPebbleEngine(t, 10)
	put(t, e, "g", "X")
	ids := rowIDs(t, h.store, "g")
	require.Len(t, ids, 1)
	require.True(t, h.store.DamageFrame(ids[0]))

	b, err := e.Lease("g", 1)
	require.NoError(t, err)
	require.Nil(t, b)
	require.Equal(t, 0, count(t, e, "g"))
	require.Zero(t, e.Leases())
}

func TestPebbleUndecodableRowsAreSkipped(t *testing.T) {
	e, h := newPebbleEngine(t, 10)
	put(t, e, "g", "r1", "r2", "r3", "r4")
	ids := rowIDs(t, h.store, "g")
	require.True(t, h.store.DamageFrame(ids[1]))
	require.True(t, h.store.Corrupt(ids[2], []byte("{not json")))

	b, err := e.Lease("g", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r4"}, names(b))
	require.Equal(t, 2, count(t, e, "g"))

	require.NoError(t, e.Confirm("g", b.Token))
	require.Equal(t, 0, count(t, e, "g"))
}
