package persistence

import (
	"errors"
	"fmt"

	"github.com/rzbill/spool/internal/codec"
	"github.com/rzbill/spool/internal/rowstore"
	logpkg "github.com/rzbill/spool/pkg/log"
)

var (
	// ErrClosed is returned by every operation between Close and Reopen.
	ErrClosed = errors.New("persistence: engine closed")
	// ErrInvalidGroup is returned for an empty group name.
	ErrInvalidGroup = errors.New("persistence: group must not be empty")
)

// Batch is a leased set of records. Records and RowIDs are parallel and in
// ascending row order.
type Batch struct {
	Token   string
	Group   string
	Records []codec.Record
	RowIDs  []rowstore.RowID
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.Records) }

// leaseKey scopes a token to its group.
type leaseKey struct {
	group string
	token string
}

// Engine owns one row store and the in-memory lease state over it.
type Engine struct {
	open  Opener
	codec codec.Codec
	opts  options
	log   logpkg.Logger

	store   rowstore.Store
	closed  bool
	pending map[rowstore.RowID]struct{}
	leases  map[leaseKey][]rowstore.RowID
}

// New opens the store and returns an engine with no leases.
func New(open Opener, c codec.Codec, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		open:  open,
		codec: c,
		opts:  o,
		log:   o.logger.With(logpkg.Component("persistence")),
	}
	e.resetLeases()
	store, err := open(e.fault)
	if err != nil {
		return nil, fmt.Errorf("persistence: open store: %w", err)
	}
	e.store = store
	return e, nil
}

func (e *Engine) resetLeases() {
	e.pending = make(map[rowstore.RowID]struct{})
	e.leases = make(map[leaseKey][]rowstore.RowID)
}

// fault is the listener handed to the store.
func (e *Engine) fault(op string, err error) {
	e.opts.metrics.RecordFault(op)
	if e.opts.onFault != nil {
		e.opts.onFault(op, err)
		return
	}
	e.log.Error("storage fault", logpkg.Str(logpkg.OperationKey, op), logpkg.Err(err))
}

func (e *Engine) check(group string) error {
	if e.closed {
		return ErrClosed
	}
	if group == "" {
		return ErrInvalidGroup
	}
	return nil
}

// Put encodes rec and appends it to group. An *codec.EncodeError is returned
// unchanged and nothing is written. A failed store write is returned too.
func (e *Engine) Put(group string, rec codec.Record) error {
	if err := e.check(group); err != nil {
		return err
	}
	data, err := e.codec.Encode(rec)
	if err != nil {
		e.opts.metrics.RecordPut(group, false)
		return err
	}
	if _, err := e.store.Insert(group, data); err != nil {
		e.opts.metrics.RecordPut(group, false)
		return fmt.Errorf("persistence: put: %w", err)
	}
	e.opts.metrics.RecordPut(group, true)
	return nil
}

// Lease returns up to limit records of group that are not already leased,
// oldest first, or nil when there are none. Rows that fail to decode are
// deleted and do not count toward limit.
func (e *Engine) Lease(group string, limit int) (*Batch, error) {
	if err := e.check(group); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var (
		records []codec.Record
		ids     []rowstore.RowID
		corrupt []rowstore.RowID
	)
	cur := e.store.Scan(group)
	for len(records) < limit && cur.Next() {
		row := cur.Row()
		if _, leased := e.pending[row.ID]; leased {
			continue
		}
		rec, err := e.codec.Decode(row.Payload)
		if err != nil {
			e.log.Debug("dropping undecodable row",
				logpkg.Group(group), logpkg.Uint64("row_id", uint64(row.ID)), logpkg.Err(err))
			corrupt = append(corrupt, row.ID)
			continue
		}
		records = append(records, rec)
		ids = append(ids, row.ID)
	}
	if err := cur.Close(); err != nil {
		e.fault("scan", err)
	}

	if len(corrupt) > 0 {
		e.store.DeleteByID(corrupt...)
		e.opts.metrics.RecordCorrupt(group, len(corrupt))
		e.log.Warn("purged corrupt rows", logpkg.Group(group), logpkg.Int("rows", len(corrupt)))
	}
	if len(records) == 0 {
		return nil, nil
	}

	token := e.opts.newToken()
	for _, id := range ids {
		e.pending[id] = struct{}{}
	}
	e.leases[leaseKey{group: group, token: token}] = ids
	e.opts.metrics.RecordLease(group, len(records))
	return &Batch{Token: token, Group: group, Records: records, RowIDs: ids}, nil
}

// Confirm deletes the rows of a lease. Unknown tokens are ignored.
func (e *Engine) Confirm(group, token string) error {
	if err := e.check(group); err != nil {
		return err
	}
	key := leaseKey{group: group, token: token}
	ids, ok := e.leases[key]
	if !ok {
		return nil
	}
	e.store.DeleteByID(ids...)
	e.release(ids)
	delete(e.leases, key)
	e.opts.metrics.RecordConfirm(group, len(ids))
	return nil
}

func (e *Engine) release(ids []rowstore.RowID) {
	for _, id := range ids {
		delete(e.pending, id)
	}
}

// PurgeGroup deletes every row of group and drops its leases, releasing
// their pending rows.
func (e *Engine) PurgeGroup(group string) error {
	if err := e.check(group); err != nil {
		return err
	}
	e.store.DeleteByGroup(group)
	for key, ids := range e.leases {
		if key.group != group {
			continue
		}
		e.release(ids)
		delete(e.leases, key)
	}
	return nil
}

// Count returns the rows stored for group, leased ones included.
func (e *Engine) Count(group string) (int, error) {
	if err := e.check(group); err != nil {
		return 0, err
	}
	return e.store.Count(group), nil
}

// AbandonAll forgets every lease so their rows can be leased again. The
// store is not touched.
func (e *Engine) AbandonAll() {
	if n := len(e.leases); n > 0 {
		e.log.Debug("abandoning leases", logpkg.Int("leases", n), logpkg.Int("rows", len(e.pending)))
	}
	e.resetLeases()
}

// Clear abandons every lease and deletes every row.
func (e *Engine) Clear() error {
	if e.closed {
		return ErrClosed
	}
	e.AbandonAll()
	e.store.Clear()
	return nil
}

// Pending returns the number of rows held by live leases.
func (e *Engine) Pending() int { return len(e.pending) }

// Leases returns the number of live leases.
func (e *Engine) Leases() int { return len(e.leases) }

// Closed reports whether the store is released.
func (e *Engine) Closed() bool { return e.closed }

// Close releases the store and drops lease state. Closing a closed engine
// is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.resetLeases()
	store := e.store
	e.store = nil
	if err := store.Close(); err != nil {
		return fmt.Errorf("persistence: close store: %w", err)
	}
	return nil
}

// Reopen reacquires the store after Close with fresh lease state, the same
// as a process restart. It does nothing on an open engine.
func (e *Engine) Reopen() error {
	if !e.closed {
		return nil
	}
	store, err := e.open(e.fault)
	if err != nil {
		return fmt.Errorf("persistence: reopen store: %w", err)
	}
	e.store = store
	e.closed = false
	e.resetLeases()
	return nil
}
