package command

import (
	"sync"

	"go.etcd.io/etcd/raft/v3/raftpb"
	"go.uber.org/zap"

	"github.com/myuser/memberstore/internal/metrics"
	"github.com/myuser/memberstore/internal/store"
)

// Applier connects the consensus layer to the member's store: committed
// entries are decoded and applied, snapshots are the store's own serialized
// state. The store itself is single-writer with no internal locking, so the
// Applier serializes every path that touches it: the raft apply loop,
// snapshot create/install, and local reads through WithStore.
type Applier struct {
	DB  *store.DB
	Log *zap.Logger

	mu sync.Mutex
}

func NewApplier(db *store.DB, log *zap.Logger) *Applier {
	return &Applier{DB: db, Log: log}
}

// WithStore runs fn with exclusive access to the store. Used by read paths
// that live outside the raft loop, such as the node's query endpoint.
func (a *Applier) WithStore(fn func(db *store.DB) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.DB)
}

// Apply decodes and executes one committed entry. A command the store
// rejects is logged and dropped; every member rejects it identically, so
// state stays converged.
func (a *Applier) Apply(entry raftpb.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cmd, err := Decode(entry.Data)
	if err != nil {
		metrics.Inc("apply_decode_errors")
		a.Log.Error("undecodable log entry", zap.Uint64("index", entry.Index), zap.Error(err))
		return
	}
	if err := Apply(a.DB, cmd); err != nil {
		metrics.Inc("apply_errors")
		a.Log.Warn("command rejected by store",
			zap.Uint64("index", entry.Index),
			zap.String("op", string(cmd.Op)),
			zap.Error(err))
		return
	}
	metrics.Inc("commands_applied")
}

// GetSnapshot serializes the member's complete state for the leader to ship
// to a lagging follower.
func (a *Applier) GetSnapshot() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	blob, err := a.DB.CreateSnapshot()
	if err != nil {
		return nil, err
	}
	metrics.Inc("snapshots_created")
	return blob, nil
}

// Restore replaces the member's entire state with a leader snapshot.
// Install failure means this member's store may be unusable; surface it
// loudly and let the operator or the caller decide.
func (a *Applier) Restore(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.DB.InstallSnapshot(data); err != nil {
		metrics.Inc("snapshot_install_errors")
		a.Log.Error("snapshot install failed", zap.Error(err))
		return err
	}
	metrics.Inc("snapshots_installed")
	return nil
}
