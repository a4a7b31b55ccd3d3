// Package pebblerows implements rowstore.Store on Pebble.
//
// Each row is written as an entry keyed by its big-endian RowID plus a
// per-group index key, so a group scan is a single prefix iteration and
// eviction walks entries from the lowest key. The last assigned RowID is
// persisted with every insert, so IDs keep increasing across reopen.
package pebblerows

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/rzbill/spool/internal/rowstore"
	pebblestore "github.com/rzbill/spool/internal/storage/pebble"
)

// Store is a Pebble-backed rowstore.Store.
type Store struct {
	db     *pebblestore.DB
	ownsDB bool
	opts   rowstore.Options

	mu     sync.Mutex
	lastID rowstore.RowID
	total  int
	groups map[string]int
	closed bool
}

var _ rowstore.Store = (*Store)(nil)

// OpenDir opens a Pebble database and a store over it. Closing the store
// closes the database.
func OpenDir(dbOpts pebblestore.Options, opts rowstore.Options) (*Store, error) {
	db, err := pebblestore.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	s, err := Open(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Open builds a store over an already open database and loads its counters.
// The caller keeps ownership of db.
func Open(db *pebblestore.DB, opts rowstore.Options) (*Store, error) {
	s := &Store{db: db, opts: opts, groups: make(map[string]int)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load restores lastID from metadata and rebuilds counts from the index.
func (s *Store) load() error {
	meta, err := s.db.Get(metaKey)
	switch {
	case err == nil && len(meta) >= 8:
		s.lastID = rowstore.RowID(binary.BigEndian.Uint64(meta[:8]))
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return fmt.Errorf("pebblerows: read meta: %w", err)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: indexPrefix, UpperBound: upperBound(indexPrefix)})
	if err != nil {
		return fmt.Errorf("pebblerows: open index: %w", err)
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		group, id, valid := parseIndexKey(iter.Key())
		if !valid {
			continue
		}
		s.groups[group]++
		s.total++
		if id > s.lastID {
			s.lastID = id
		}
	}
	return iter.Error()
}

func (s *Store) Insert(group string, payload []byte) (rowstore.RowID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("insert", rowstore.ErrClosed)
		return 0, rowstore.ErrClosed
	}

	id := s.lastID + 1
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(entryKey(id), encodeEntry(group, payload), nil); err != nil {
		return 0, s.insertFault(err)
	}
	if err := b.Set(indexKey(group, id), nil, nil); err != nil {
		return 0, s.insertFault(err)
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], uint64(id))
	if err := b.Set(metaKey, meta[:], nil); err != nil {
		return 0, s.insertFault(err)
	}

	evicted, err := s.stageEviction(b, s.total+1-s.opts.EffectiveCapacity())
	if err != nil {
		return 0, s.insertFault(err)
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return 0, s.insertFault(err)
	}

	s.lastID = id
	s.total++
	s.groups[group]++
	for _, g := range evicted {
		s.dec(g)
	}
	return id, nil
}

func (s *Store) insertFault(err error) error {
	err = fmt.Errorf("pebblerows: insert: %w", err)
	s.opts.Fault("insert", err)
	return err
}

// stageEviction adds deletes for the n oldest committed rows to b and
// returns their groups.
func (s *Store) stageEviction(b *pebble.Batch, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: entryPrefix, UpperBound: upperBound(entryPrefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	groups := make([]string, 0, n)
	for ok := iter.First(); ok && len(groups) < n; ok = iter.Next() {
		id, _ := idFromKey(iter.Key())
		group, indexed, err := s.groupOf(id, iter.Value())
		if err != nil {
			return nil, err
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			return nil, err
		}
		if !indexed {
			// Orphaned entry, never counted.
			continue
		}
		if err := b.Delete(indexKey(group, id), nil); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, iter.Error()
}

// groupOf returns the group stored in an entry value. When the frame is
// damaged it falls back to searching the index for the row; indexed is false
// if no index key references id.
func (s *Store) groupOf(id rowstore.RowID, value []byte) (group string, indexed bool, err error) {
	if e, ok := decodeEntry(value); ok {
		return e.Group, true, nil
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: indexPrefix, UpperBound: upperBound(indexPrefix)})
	if err != nil {
		return "", false, err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		if g, rid, valid := parseIndexKey(iter.Key()); valid && rid == id {
			return g, true, nil
		}
	}
	return "", false, iter.Error()
}

func (s *Store) dec(group string) {
	s.total--
	if s.groups[group] <= 1 {
		delete(s.groups, group)
		return
	}
	s.groups[group]--
}

// Scan iterates the group index over a Pebble snapshot taken at call time.
func (s *Store) Scan(group string) rowstore.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("scan", rowstore.ErrClosed)
		return rowstore.EmptyCursor()
	}
	snap := s.db.NewSnapshot()
	prefix := groupPrefix(group)
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		_ = snap.Close()
		s.opts.Fault("scan", err)
		return rowstore.EmptyCursor()
	}
	return &cursor{snap: snap, iter: iter, group: group, fault: s.opts.Fault}
}

func (s *Store) DeleteByID(ids ...rowstore.RowID) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("delete", rowstore.ErrClosed)
		return
	}

	b := s.db.NewBatch()
	defer b.Close()
	var removed []string
	for _, id := range ids {
		value, err := s.db.Get(entryKey(id))
		if errors.Is(err, pebblestore.ErrNotFound) {
			continue
		}
		if err != nil {
			s.opts.Fault("delete", err)
			return
		}
		group, indexed, err := s.groupOf(id, value)
		if err != nil {
			s.opts.Fault("delete", err)
			return
		}
		_ = b.Delete(entryKey(id), nil)
		if indexed {
			_ = b.Delete(indexKey(group, id), nil)
			removed = append(removed, group)
		}
	}
	if b.Empty() {
		return
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		s.opts.Fault("delete", err)
		return
	}
	for _, g := range removed {
		s.dec(g)
	}
}

func (s *Store) DeleteByGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("delete_group", rowstore.ErrClosed)
		return
	}

	prefix := groupPrefix(group)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		s.opts.Fault("delete_group", err)
		return
	}
	b := s.db.NewBatch()
	defer b.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		id, _ := idFromKey(iter.Key())
		_ = b.Delete(entryKey(id), nil)
		n++
	}
	iterErr := iter.Error()
	_ = iter.Close()
	if iterErr != nil {
		s.opts.Fault("delete_group", iterErr)
		return
	}
	if n == 0 {
		return
	}
	_ = b.DeleteRange(prefix, upperBound(prefix), nil)
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		s.opts.Fault("delete_group", err)
		return
	}
	s.total -= s.groups[group]
	delete(s.groups, group)
}

// Clear drops every row. The last RowID is kept so IDs are not reused.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.opts.Fault("clear", rowstore.ErrClosed)
		return
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.DeleteRange(entryPrefix, upperBound(entryPrefix), nil)
	_ = b.DeleteRange(indexPrefix, upperBound(indexPrefix), nil)
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		s.opts.Fault("clear", err)
		return
	}
	s.total = 0
	s.groups = make(map[string]int)
	// Compaction hint: range tombstones are only reclaimed on compaction.
	_ = s.db.CompactRange(entryPrefix, upperBound(indexPrefix))
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

// DB exposes the underlying database to tests and maintenance tooling.
func (s *Store) DB() *pebblestore.DB { return s.db }

// Corrupt rewrites the stored frame of a row with a new payload and a valid
// checksum, so the damage surfaces only when the payload is decoded.
func (s *Store) Corrupt(id rowstore.RowID, payload []byte) bool {
	value, err := s.db.Get(entryKey(id))
	if err != nil {
		return false
	}
	e, ok := decodeEntry(value)
	if !ok {
		return false
	}
	return s.db.Set(entryKey(id), encodeEntry(e.Group, payload)) == nil
}

// DamageFrame overwrites the stored frame of a row with bytes that fail the
// checksum. Scans then yield the row with a nil payload.
func (s *Store) DamageFrame(id rowstore.RowID) bool {
	if _, err := s.db.Get(entryKey(id)); err != nil {
		return false
	}
	return s.db.Set(entryKey(id), []byte("garbage-without-valid-crc")) == nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// cursor walks a group's index keys and resolves entries from the same
// snapshot. Entries whose frame fails its checksum are yielded with a nil
// payload so the reader can discard them.
type cursor struct {
	snap    *pebble.Snapshot
	iter    *pebble.Iterator
	group   string
	fault   func(op string, err error)
	started bool
	done    bool
	row     rowstore.Row
}

func (c *cursor) Next() bool {
	if c.done {
		return false
	}
	for {
		var ok bool
		if !c.started {
			ok = c.iter.First()
			c.started = true
		} else {
			ok = c.iter.Next()
		}
		if !ok {
			if err := c.iter.Error(); err != nil {
				c.fault("scan", err)
			}
			c.done = true
			return false
		}

		id, _ := idFromKey(c.iter.Key())
		value, closer, err := c.snap.Get(entryKey(id))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			c.fault("scan", err)
			c.done = true
			return false
		}
		row := rowstore.Row{ID: id, Group: c.group}
		if e, valid := decodeEntry(value); valid {
			row.Payload = e.Payload
		}
		_ = closer.Close()
		c.row = row
		return true
	}
}

func (c *cursor) Row() rowstore.Row { return c.row }

func (c *cursor) Close() error {
	c.done = true
	if c.iter == nil {
		return nil
	}
	err := c.iter.Close()
	if serr := c.snap.Close(); err == nil {
		err = serr
	}
	c.iter = nil
	return err
}
