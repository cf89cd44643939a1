package raft

import (
	"encoding/json"
	"math"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	"github.com/myuser/memberstore/internal/wal"
)

// DiskStorage wraps raft.MemoryStorage and persists every entry, hard
// state, and snapshot to a WAL so the member survives restarts.
type DiskStorage struct {
	*raft.MemoryStorage
	wal *wal.WAL
}

// Record types for WAL
const (
	RecordEntry     = 1
	RecordHardState = 2
	RecordSnapshot  = 3
)

type Record struct {
	Type int
	Data []byte
}

func NewDiskStorage(walPath string) (*DiskStorage, error) {
	w, err := wal.Open(walPath)
	if err != nil {
		return nil, err
	}

	mem := raft.NewMemoryStorage()
	ds := &DiskStorage{
		MemoryStorage: mem,
		wal:           w,
	}

	// Replay the log into memory.
	err = w.Iterate(func(data []byte) error {
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}

		switch r.Type {
		case RecordEntry:
			var ent raftpb.Entry
			if err := ent.Unmarshal(r.Data); err != nil {
				return err
			}
			mem.Append([]raftpb.Entry{ent})
		case RecordHardState:
			var hs raftpb.HardState
			if err := hs.Unmarshal(r.Data); err != nil {
				return err
			}
			mem.SetHardState(hs)
		case RecordSnapshot:
			var snap raftpb.Snapshot
			if err := snap.Unmarshal(r.Data); err != nil {
				return err
			}
			mem.ApplySnapshot(snap)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return ds, nil
}

// Save persists entries and hard state, then updates memory.
func (ds *DiskStorage) Save(entries []raftpb.Entry, state raftpb.HardState) error {
	for _, ent := range entries {
		b, err := ent.Marshal()
		if err != nil {
			return err
		}
		if err := ds.writeRecord(RecordEntry, b); err != nil {
			return err
		}
	}

	if !raft.IsEmptyHardState(state) {
		b, err := state.Marshal()
		if err != nil {
			return err
		}
		if err := ds.writeRecord(RecordHardState, b); err != nil {
			return err
		}
	}

	ds.MemoryStorage.Append(entries)
	if !raft.IsEmptyHardState(state) {
		ds.MemoryStorage.SetHardState(state)
	}

	return nil
}

func (ds *DiskStorage) writeRecord(typ int, data []byte) error {
	r := Record{Type: typ, Data: data}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return ds.wal.Append(b)
}

// CreateSnapshot records a snapshot at index i, compacts the in-memory log,
// and rewrites the WAL from the snapshot forward so it stops growing
// without bound.
func (ds *DiskStorage) CreateSnapshot(i uint64, cs *raftpb.ConfState, data []byte) (raftpb.Snapshot, error) {
	snap, err := ds.MemoryStorage.CreateSnapshot(i, cs, data)
	if err != nil {
		return raftpb.Snapshot{}, err
	}
	if err := ds.MemoryStorage.Compact(i); err != nil {
		return raftpb.Snapshot{}, err
	}
	if err := ds.rewriteLog(snap); err != nil {
		return raftpb.Snapshot{}, err
	}
	return snap, nil
}

// ApplySnapshot installs a snapshot received from the leader and rewrites
// the log, which the snapshot has made stale.
func (ds *DiskStorage) ApplySnapshot(snap raftpb.Snapshot) error {
	if err := ds.MemoryStorage.ApplySnapshot(snap); err != nil {
		return err
	}
	return ds.rewriteLog(snap)
}

// rewriteLog rebuilds the WAL as: snapshot record, surviving entries, then
// the current hard state.
func (ds *DiskStorage) rewriteLog(snap raftpb.Snapshot) error {
	if err := ds.wal.Reset(); err != nil {
		return err
	}

	b, err := snap.Marshal()
	if err != nil {
		return err
	}
	if err := ds.writeRecord(RecordSnapshot, b); err != nil {
		return err
	}

	first, err := ds.MemoryStorage.FirstIndex()
	if err != nil {
		return err
	}
	last, err := ds.MemoryStorage.LastIndex()
	if err != nil {
		return err
	}
	if last >= first {
		entries, err := ds.MemoryStorage.Entries(first, last+1, math.MaxUint64)
		if err != nil {
			return err
		}
		for _, ent := range entries {
			b, err := ent.Marshal()
			if err != nil {
				return err
			}
			if err := ds.writeRecord(RecordEntry, b); err != nil {
				return err
			}
		}
	}

	hs, _, err := ds.MemoryStorage.InitialState()
	if err != nil {
		return err
	}
	if !raft.IsEmptyHardState(hs) {
		b, err := hs.Marshal()
		if err != nil {
			return err
		}
		if err := ds.writeRecord(RecordHardState, b); err != nil {
			return err
		}
	}

	return nil
}

func (ds *DiskStorage) Close() error {
	return ds.wal.Close()
}
