// Package memrows is an in-memory rowstore.Store ordered by a B-tree.
// Rows do not survive Close.
package memrows

import (
	"sync"

	"github.com/google/btree"
	"github.com/rzbill/spool/internal/rowstore"
)

// Store keeps rows in a B-tree keyed by RowID.
type Store struct {
	opts rowstore.Options

	mu     sync.Mutex
	tree   *btree.BTreeG[rowstore.Row]
	groups map[string]int
	lastID rowstore.RowID
	closed bool
}

var _ rowstore.Store = (*Store)(nil)

// New returns an empty store.
func New(opts rowstore.Options) *Store {
	return &Store{
		opts: opts,
		tree: btree.NewG(32, func(a, b rowstore.Row) bool {
			return a.ID < b.ID
		}),
		groups: make(map[string]int),
	}
}

func (s *Store) Insert(group string, payload []byte) (rowstore.RowID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("insert", rowstore.ErrClosed)
		return 0, rowstore.ErrClosed
	}
	s.lastID++
	row := rowstore.Row{ID: s.lastID, Group: group, Payload: append([]byte(nil), payload...)}
	s.tree.ReplaceOrInsert(row)
	s.groups[group]++

	capacity := s.opts.EffectiveCapacity()
	for s.tree.Len() > capacity {
		oldest, ok := s.tree.DeleteMin()
		if !ok {
			break
		}
		s.decGroup(oldest.Group)
	}
	return row.ID, nil
}

func (s *Store) decGroup(group string) {
	if s.groups[group] <= 1 {
		delete(s.groups, group)
		return
	}
	s.groups[group]--
}

// Scan copies the group's rows so later mutations are not observed.
func (s *Store) Scan(group string) rowstore.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("scan", rowstore.ErrClosed)
		return rowstore.EmptyCursor()
	}
	rows := make([]rowstore.Row, 0, s.groups[group])
	s.tree.Ascend(func(r rowstore.Row) bool {
		if r.Group == group {
			rows = append(rows, r)
		}
		return true
	})
	return rowstore.NewSliceCursor(rows)
}

func (s *Store) DeleteByID(ids ...rowstore.RowID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("delete", rowstore.ErrClosed)
		return
	}
	for _, id := range ids {
		if row, ok := s.tree.Delete(rowstore.Row{ID: id}); ok {
			s.decGroup(row.Group)
		}
	}
}

func (s *Store) DeleteByGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("delete_group", rowstore.ErrClosed)
		return
	}
	var doomed []rowstore.RowID
	s.tree.Ascend(func(r rowstore.Row) bool {
		if r.Group == group {
			doomed = append(doomed, r.ID)
		}
		return true
	})
	for _, id := range doomed {
		s.tree.Delete(rowstore.Row{ID: id})
	}
	delete(s.groups, group)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("clear", rowstore.ErrClosed)
		return
	}
	s.tree.Clear(false)
	s.groups = make(map[string]int)
}

func (s *Store) Count(group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("count", rowstore.ErrClosed)
		return 0
	}
	return s.groups[group]
}

// Corrupt overwrites the payload of a stored row. It exists so tests of
// self-healing readers can damage a row in place.
func (s *Store) Corrupt(id rowstore.RowID, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tree.Get(rowstore.Row{ID: id})
	if !ok {
		return false
	}
	row.Payload = append([]byte(nil), payload...)
	s.tree.ReplaceOrInsert(row)
	return true
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree.Clear(false)
	s.groups = nil
	return nil
}
