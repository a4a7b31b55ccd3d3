// Package rowstoretest is the conformance suite for rowstore backends.
package rowstoretest

import (
	"fmt"
	"testing"

	"github.com/rzbill/spool/internal/rowstore"
	"github.com/stretchr/testify/require"
)

// Opener builds a fresh, empty store for one subtest.
type Opener func(t *testing.T, opts rowstore.Options) rowstore.Store

// Collect drains a cursor into a slice and closes it.
func Collect(t *testing.T, cur rowstore.Cursor) []rowstore.Row {
	t.Helper()
	var rows []rowstore.Row
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	require.NoError(t, cur.Close())
	return rows
}

// Payloads returns the payloads of rows as strings, in order.
func Payloads(rows []rowstore.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.Payload)
	}
	return out
}

func mustInsert(t *testing.T, s rowstore.Store, group, payload string) rowstore.RowID {
	t.Helper()
	id, err := s.Insert(group, []byte(payload))
	require.NoError(t, err)
	return id
}

// Run executes the suite against the backend produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("InsertAssignsIncreasingIDs", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		var last rowstore.RowID
		for i := 0; i < 10; i++ {
			id := mustInsert(t, s, "g", fmt.Sprintf("p%d", i))
			require.Greater(t, id, last)
			last = id
		}
	})

	t.Run("ScanFiltersByGroupInOrder", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		mustInsert(t, s, "a", "a1")
		mustInsert(t, s, "b", "b1")
		mustInsert(t, s, "a", "a2")
		mustInsert(t, s, "ab", "ab1")
		mustInsert(t, s, "a", "a3")

		rows := Collect(t, s.Scan("a"))
		require.Equal(t, []string{"a1", "a2", "a3"}, Payloads(rows))
		for i := 1; i < len(rows); i++ {
			require.Less(t, rows[i-1].ID, rows[i].ID)
		}
		for _, r := range rows {
			require.Equal(t, "a", r.Group)
		}
		require.Empty(t, Collect(t, s.Scan("missing")))
	})

	t.Run("CountPerGroup", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		require.Equal(t, 0, s.Count("a"))
		mustInsert(t, s, "a", "1")
		mustInsert(t, s, "a", "2")
		mustInsert(t, s, "b", "3")
		require.Equal(t, 2, s.Count("a"))
		require.Equal(t, 1, s.Count("b"))
	})

	t.Run("EvictsGloballyOldest", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 3})
		mustInsert(t, s, "x", "x1")
		mustInsert(t, s, "y", "y1")
		mustInsert(t, s, "x", "x2")
		mustInsert(t, s, "y", "y2")
		mustInsert(t, s, "y", "y3")

		require.Equal(t, 1, s.Count("x"))
		require.Equal(t, 2, s.Count("y"))
		require.Equal(t, []string{"x2"}, Payloads(Collect(t, s.Scan("x"))))
		require.Equal(t, []string{"y2", "y3"}, Payloads(Collect(t, s.Scan("y"))))
	})

	t.Run("DeleteByID", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		a := mustInsert(t, s, "g", "a")
		mustInsert(t, s, "g", "b")
		c := mustInsert(t, s, "g", "c")
		s.DeleteByID(a, c, rowstore.RowID(99999))
		require.Equal(t, []string{"b"}, Payloads(Collect(t, s.Scan("g"))))
		require.Equal(t, 1, s.Count("g"))
		s.DeleteByID()
		require.Equal(t, 1, s.Count("g"))
	})

	t.Run("DeleteByGroup", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		mustInsert(t, s, "a", "1")
		mustInsert(t, s, "ab", "2")
		mustInsert(t, s, "a", "3")
		s.DeleteByGroup("a")
		require.Equal(t, 0, s.Count("a"))
		require.Equal(t, 1, s.Count("ab"))
	})

	t.Run("ClearAll", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		mustInsert(t, s, "a", "1")
		mustInsert(t, s, "b", "2")
		s.Clear()
		require.Equal(t, 0, s.Count("a"))
		require.Equal(t, 0, s.Count("b"))
		require.Empty(t, Collect(t, s.Scan("a")))
	})

	t.Run("IDsNeverReused", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		mustInsert(t, s, "g", "1")
		last := mustInsert(t, s, "g", "2")
		s.DeleteByID(last)
		next := mustInsert(t, s, "g", "3")
		require.Greater(t, next, last)
		s.Clear()
		after := mustInsert(t, s, "g", "4")
		require.Greater(t, after, next)
	})

	t.Run("ScanIsSnapshot", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 100})
		first := mustInsert(t, s, "g", "1")
		mustInsert(t, s, "g", "2")

		cur := s.Scan("g")
		mustInsert(t, s, "g", "3")
		s.DeleteByID(first)

		rows := Collect(t, cur)
		require.Equal(t, []string{"1", "2"}, Payloads(rows))
		require.Equal(t, []string{"2", "3"}, Payloads(Collect(t, s.Scan("g"))))
	})

	t.Run("EvictionKeepsCountAtCapacity", func(t *testing.T) {
		s := open(t, rowstore.Options{Capacity: 5})
		for i := 0; i < 25; i++ {
			mustInsert(t, s, fmt.Sprintf("g%d", i%3), fmt.Sprintf("%d", i))
		}
		total := s.Count("g0") + s.Count("g1") + s.Count("g2")
		require.Equal(t, 5, total)
	})
}
