// Package sqliterows implements rowstore.Store on SQLite.
//
// Rows live in a single logs table whose AUTOINCREMENT primary key is the
// RowID, so SQLite itself guarantees IDs are never reused. Inserts and
// their evictions run in one IMMEDIATE transaction.
package sqliterows

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzbill/spool/internal/rowstore"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	oid               INTEGER PRIMARY KEY AUTOINCREMENT,
	persistence_group TEXT NOT NULL,
	log               BLOB
);
CREATE INDEX IF NOT EXISTS logs_group_oid ON logs (persistence_group, oid);
`

// Config selects the database file and pool size.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string
	// PoolSize defaults to 4. Writes are serialized by SQLite regardless.
	PoolSize int
}

// Store is a SQLite-backed rowstore.Store.
type Store struct {
	pool *sqlitex.Pool
	opts rowstore.Options
	path string

	mu     sync.Mutex
	closed bool
}

var _ rowstore.Store = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config, opts rowstore.Options) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqliterows: Path is required")
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 4
	}
	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqliterows: opening %s: %w", cfg.Path, err)
	}
	s := &Store{pool: pool, opts: opts, path: cfg.Path}

	// Create the schema eagerly so a bad file fails Open rather than the
	// first insert.
	conn, err := pool.Take(context.Background())
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqliterows: opening %s: %w", cfg.Path, err)
	}
	pool.Put(conn)
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqliterows: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqliterows: schema: %w", err)
	}
	return nil
}

// take borrows a connection, reporting failures against op.
func (s *Store) take(op string) (*sqlite.Conn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.opts.Fault(op, rowstore.ErrClosed)
		return nil, rowstore.ErrClosed
	}
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		err = fmt.Errorf("sqliterows: %s: %w", op, err)
		s.opts.Fault(op, err)
		return nil, err
	}
	return conn, nil
}

func (s *Store) Insert(group string, payload []byte) (rowstore.RowID, error) {
	conn, err := s.take("insert")
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	id, err := s.insert(conn, group, payload)
	if err != nil {
		err = fmt.Errorf("sqliterows: insert: %w", err)
		s.opts.Fault("insert", err)
		return 0, err
	}
	return id, nil
}

func (s *Store) insert(conn *sqlite.Conn, group string, payload []byte) (id rowstore.RowID, err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, err
	}
	defer endTransaction(&err)

	if payload == nil {
		payload = []byte{}
	}
	err = sqlitex.Execute(conn, `INSERT INTO logs (persistence_group, log) VALUES (?, ?)`, &sqlitex.ExecOptions{
		Args: []any{group, payload},
	})
	if err != nil {
		return 0, err
	}
	id = rowstore.RowID(conn.LastInsertRowID())

	var total int64
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM logs`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			total = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if excess := total - int64(s.opts.EffectiveCapacity()); excess > 0 {
		err = sqlitex.Execute(conn,
			`DELETE FROM logs WHERE oid IN (SELECT oid FROM logs ORDER BY oid LIMIT ?)`,
			&sqlitex.ExecOptions{Args: []any{excess}})
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Scan reads the group's rows in one statement; the cursor is a
// materialized snapshot.
func (s *Store) Scan(group string) rowstore.Cursor {
	conn, err := s.take("scan")
	if err != nil {
		return rowstore.EmptyCursor()
	}
	defer s.pool.Put(conn)

	var rows []rowstore.Row
	err = sqlitex.Execute(conn,
		`SELECT oid, log FROM logs WHERE persistence_group = ? ORDER BY oid`,
		&sqlitex.ExecOptions{
			Args: []any{group},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := rowstore.Row{ID: rowstore.RowID(stmt.ColumnInt64(0)), Group: group}
				if !stmt.ColumnIsNull(1) {
					row.Payload = make([]byte, stmt.ColumnLen(1))
					stmt.ColumnBytes(1, row.Payload)
				}
				rows = append(rows, row)
				return nil
			},
		})
	if err != nil {
		s.opts.Fault("scan", fmt.Errorf("sqliterows: scan: %w", err))
		return rowstore.EmptyCursor()
	}
	return rowstore.NewSliceCursor(rows)
}

func (s *Store) DeleteByID(ids ...rowstore.RowID) {
	if len(ids) == 0 {
		return
	}
	conn, err := s.take("delete")
	if err != nil {
		return
	}
	defer s.pool.Put(conn)

	if err := deleteIDs(conn, ids); err != nil {
		s.opts.Fault("delete", fmt.Errorf("sqliterows: delete: %w", err))
	}
}

func deleteIDs(conn *sqlite.Conn, ids []rowstore.RowID) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endTransaction(&err)
	for _, id := range ids {
		err = sqlitex.Execute(conn, `DELETE FROM logs WHERE oid = ?`, &sqlitex.ExecOptions{
			Args: []any{int64(id)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteByGroup(group string) {
	s.exec("delete_group", `DELETE FROM logs WHERE persistence_group = ?`, group)
}

// Clear removes every row. The AUTOINCREMENT sequence is kept, so IDs are
// not reused.
func (s *Store) Clear() {
	s.exec("clear", `DELETE FROM logs`)
}

func (s *Store) exec(op, query string, args ...any) {
	conn, err := s.take(op)
	if err != nil {
		return
	}
	defer s.pool.Put(conn)
	if err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		s.opts.Fault(op, fmt.Errorf("sqliterows: %s: %w", op, err))
	}
}

func (s *Store) Count(group string) int {
	conn, err := s.take("count")
	if err != nil {
		return 0
	}
	defer s.pool.Put(conn)

	var n int
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM logs WHERE persistence_group = ?`, &sqlitex.ExecOptions{
		Args: []any{group},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		s.opts.Fault("count", fmt.Errorf("sqliterows: count: %w", err))
		return 0
	}
	return n
}

// Corrupt overwrites a stored payload. Tests use it to simulate damage.
func (s *Store) Corrupt(id rowstore.RowID, payload []byte) bool {
	conn, err := s.take("corrupt")
	if err != nil {
		return false
	}
	defer s.pool.Put(conn)
	err = sqlitex.Execute(conn, `UPDATE logs SET log = ? WHERE oid = ?`, &sqlitex.ExecOptions{
		Args: []any{payload, int64(id)},
	})
	return err == nil && conn.Changes() > 0
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqliterows: closing %s: %w", s.path, err)
	}
	return nil
}
