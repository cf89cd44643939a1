// Package store is the storage layer for one member of a replicated
// cluster: a relational table interface over a single SQLite file whose
// whole state can be serialized to a blob and atomically replaced when the
// cluster leader installs a snapshot.
//
// The model is single-threaded and synchronous. The consensus apply loop is
// expected to drive a DB one operation at a time; nothing here locks.
package store

import (
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB is an open member store. All access to the underlying engine goes
// through the one connection held here; Statements derived from it borrow
// the connection and must be closed before the DB is.
type DB struct {
	path   string
	conn   *sqlite3.Conn
	tables TableDefinitions // cache of the engine catalog, not a live view
}

// Open opens (creating if necessary) the store backed by the file at path.
func Open(path string) (*DB, error) {
	conn, err := sqlite3.Open(path)
	if err != nil {
		return nil, newError(KindOpen, "open %s: %v", path, err)
	}
	db := &DB{path: path, conn: conn}
	if err := db.refreshSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the backing file path.
func (db *DB) Path() string { return db.path }

// Close releases the engine connection. Statements built from this DB must
// already be closed.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	if err != nil {
		return newError(KindExecute, "close: %v", err)
	}
	return nil
}

// BuildStatement compiles sql into a Statement. Compile failures (syntax
// error, unknown table or column) come back as a KindCompile error.
func (db *DB) BuildStatement(sql string) (*Statement, error) {
	stmt, _, err := db.conn.Prepare(sql)
	if err != nil {
		return nil, newError(KindCompile, "%v", err)
	}
	return &Statement{stmt: stmt, conn: db.conn}, nil
}

// ExecuteStatement compiles and runs sql to completion, discarding any
// result rows. Intended for DDL and fire-and-forget DML that needs no
// bound parameters.
func (db *DB) ExecuteStatement(sql string) error {
	if err := db.conn.Exec(sql); err != nil {
		return newError(KindExecute, "%v", err)
	}
	return nil
}

// withTransaction runs fn inside BEGIN IMMEDIATE .. COMMIT, rolling back if
// fn fails. Used so multi-statement operations take effect entirely or not
// at all.
func (db *DB) withTransaction(fn func() error) error {
	if err := db.ExecuteStatement("BEGIN IMMEDIATE"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		// Rollback failure would mask the original error; the original
		// is the one the caller needs.
		_ = db.ExecuteStatement("ROLLBACK")
		return err
	}
	return db.ExecuteStatement("COMMIT")
}
