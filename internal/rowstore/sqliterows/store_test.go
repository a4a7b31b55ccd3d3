package sqliterows

import (
	"path/filepath"
	"testing"

	"github.com/rzbill/spool/internal/rowstore"
	"github.com/rzbill/spool/internal/rowstore/rowstoretest"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string, opts rowstore.Options) *Store {
	t.Helper()
	s, err := Open(Config{Path: path, PoolSize: 2}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	rowstoretest.Run(t, func(t *testing.T, opts rowstore.Options) rowstore.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "logs.db"), opts)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{}, rowstore.Options{})
	require.Error(t, err)
}

func TestRowsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	s, err := Open(Config{Path: path}, rowstore.Options{})
	require.NoError(t, err)
	last, err := s.Insert("g", []byte("one"))
	require.NoError(t, err)
	s.Clear()
	_, err = s.Insert("g", []byte("two"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, rowstore.Options{})
	require.Equal(t, 1, s2.Count("g"))
	next, err := s2.Insert("g", []byte("three"))
	require.NoError(t, err)
	require.Greater(t, next, last+1)
}

func TestCorruptOverwritesPayload(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "logs.db"), rowstore.Options{})
	id, err := s.Insert("g", []byte("good"))
	require.NoError(t, err)
	require.True(t, s.Corrupt(id, []byte("bad")))
	require.False(t, s.Corrupt(id+100, []byte("bad")))
	require.Equal(t, []string{"bad"}, rowstoretest.Payloads(rowstoretest.Collect(t, s.Scan("g"))))
}

func TestClosedStoreReportsFaults(t *testing.T) {
	var faults []string
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "logs.db")}, rowstore.Options{
		OnFault: func(op string, err error) { faults = append(faults, op) },
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Insert("g", []byte("x"))
	require.ErrorIs(t, err, rowstore.ErrClosed)
	require.False(t, s.Scan("g").Next())
	require.Zero(t, s.Count("g"))
	s.DeleteByID(1)
	s.DeleteByGroup("g")
	s.Clear()
	require.Equal(t, []string{"insert", "scan", "count", "delete", "delete_group", "clear"}, faults)
}
