package store

import (
	"os"

	"github.com/ncruces/go-sqlite3/ext/serdes"
)

// CreateSnapshot serializes the complete store state into a blob. Two
// stores holding identical logical content reached by the same statement
// history serialize to identical bytes, which is what lets followers verify
// snapshots byte-for-byte.
func (db *DB) CreateSnapshot() ([]byte, error) {
	blob, err := serdes.Serialize(db.conn, "main")
	if err != nil {
		return nil, newError(KindExecute, "serialize: %v", err)
	}
	return blob, nil
}

// InstallSnapshot replaces the entire store with the contents of blob, as
// when the cluster leader pushes its state to a lagging member. The live
// connection is released first (an open handle may cache pages and block
// the overwrite), then the backing file is rewritten and truncated to
// exactly the blob's length, then a fresh connection is opened and the
// schema cache rebuilt. Each phase fails with its own error kind; after a
// reopen failure the store has no usable connection and the caller must
// treat it as down until corrected.
func (db *DB) InstallSnapshot(blob []byte) error {
	if db.conn != nil {
		_ = db.conn.Close()
		db.conn = nil
	}

	file, err := os.OpenFile(db.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return newError(KindSnapshotOpen, "unable to open the database file for writing: %v", err)
	}
	if n, err := file.Write(blob); err != nil || n != len(blob) {
		file.Close()
		return newError(KindSnapshotWrite, "unable to write to database file: wrote %d of %d bytes: %v", n, len(blob), err)
	}
	// A snapshot smaller than the previous state must not leave trailing
	// pages behind.
	if err := file.Truncate(int64(len(blob))); err != nil {
		file.Close()
		return newError(KindSnapshotResize, "unable to set the end of the database file: %v", err)
	}
	if err := file.Close(); err != nil {
		return newError(KindSnapshotWrite, "unable to close database file: %v", err)
	}

	reopened, err := Open(db.path)
	if err != nil {
		return newError(KindSnapshotReopen, "unable to open database after installing snapshot: %v", err)
	}
	db.conn = reopened.conn
	db.tables = reopened.tables
	return nil
}
