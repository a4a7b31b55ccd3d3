package rowstore

import "errors"

// DefaultCapacity is the row limit used when Options.Capacity is not positive.
const DefaultCapacity = 300

// RowID is the store-assigned ordinal of a row. IDs strictly increase in
// insertion order and are never reused, including across reopen.
type RowID uint64

// Row is one stored record: its ordinal, its group and the opaque payload.
type Row struct {
	ID      RowID
	Group   string
	Payload []byte
}

// FaultListener is told about storage I/O failures. op names the store
// operation ("insert", "scan", "delete", "delete_group", "clear", "count").
type FaultListener func(op string, err error)

// Options are shared by every backend.
type Options struct {
	// Capacity bounds the store-wide row count. Inserting past it evicts the
	// globally oldest rows.
	Capacity int
	// OnFault is notified of storage failures. Optional.
	OnFault FaultListener
}

// EffectiveCapacity returns Capacity or DefaultCapacity.
func (o Options) EffectiveCapacity() int {
	if o.Capacity <= 0 {
		return DefaultCapacity
	}
	return o.Capacity
}

// Fault reports err to the listener when one is set.
func (o Options) Fault(op string, err error) {
	if o.OnFault != nil && err != nil {
		o.OnFault(op, err)
	}
}

// ErrClosed is returned by Insert on a closed store.
var ErrClosed = errors.New("rowstore: closed")

// Cursor enumerates rows in ascending RowID order.
//
//	cur := store.Scan("analytics")
//	defer cur.Close()
//	for cur.Next() {
//	    row := cur.Row()
//	}
type Cursor interface {
	Next() bool
	Row() Row
	Close() error
}

// Store is a durable, insertion-ordered, capacity-bounded row table.
//
// Only Insert returns an error: a write that did not happen must not look
// like one that did. Every other method reports failures to the fault
// listener and degrades to its empty or no-op result.
type Store interface {
	// Insert appends a row and evicts the oldest rows if the store-wide count
	// exceeds capacity.
	Insert(group string, payload []byte) (RowID, error)
	// Scan returns the group's rows present at call time, ascending by ID.
	Scan(group string) Cursor
	DeleteByID(ids ...RowID)
	DeleteByGroup(group string)
	Clear()
	// Count returns the number of rows in group.
	Count(group string) int
	Close() error
}

// SliceCursor is a Cursor over an already materialized slice of rows.
type SliceCursor struct {
	rows []Row
	pos  int
}

// NewSliceCursor returns a cursor yielding rows in slice order.
func NewSliceCursor(rows []Row) *SliceCursor {
	return &SliceCursor{rows: rows, pos: -1}
}

// EmptyCursor yields nothing.
func EmptyCursor() Cursor { return NewSliceCursor(nil) }

func (c *SliceCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Row() Row {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return Row{}
	}
	return c.rows[c.pos]
}

func (c *SliceCursor) Close() error { return nil }
