// Package raft runs the consensus side of a member: an etcd/raft node whose
// committed entries are applied, one at a time, to the member's store.
package raft

import (
	"context"
	"time"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"
	"go.uber.org/zap"

	"github.com/myuser/memberstore/internal/snapshot"
)

// Node wraps etcd/raft.Node to provide a simpler interface.
type Node struct {
	ID        uint64
	RaftNode  raft.Node
	Storage   Storage
	Transport Transport
	// Applier applies committed entries to the member's store.
	Applier Applier
	// Archive keeps recently created snapshots for lagging followers.
	Archive *snapshot.Archive
	Log     *zap.Logger

	snapCount uint64
	confState raftpb.ConfState
}

// Storage is the subset of DiskStorage the node needs.
type Storage interface {
	raft.Storage
	Save(entries []raftpb.Entry, state raftpb.HardState) error
	CreateSnapshot(i uint64, cs *raftpb.ConfState, data []byte) (raftpb.Snapshot, error)
	ApplySnapshot(snap raftpb.Snapshot) error
	Close() error
}

// Applier is the state machine: the store-facing side of the member.
type Applier interface {
	Apply(entry raftpb.Entry)
	GetSnapshot() ([]byte, error)
	Restore(data []byte) error
}

type Transport interface {
	Send(msgs []raftpb.Message)
}

// Config for the Node
type Config struct {
	ID      uint64
	Peers   []uint64
	WALPath string
	// SnapCount is how many applied entries accumulate before the node
	// snapshots its store and compacts the log. Zero means 50.
	SnapCount uint64
}

// NewNode creates a new Raft node.
func NewNode(cfg Config, applier Applier, transport Transport, logger *zap.Logger) (*Node, error) {
	var storage Storage
	if cfg.WALPath != "" {
		ds, err := NewDiskStorage(cfg.WALPath)
		if err != nil {
			return nil, err
		}
		storage = ds
	} else {
		storage = &memoryStorageWrapper{raft.NewMemoryStorage()}
	}

	c := &raft.Config{
		ID:              cfg.ID,
		ElectionTick:    10,
		HeartbeatTick:   1,
		Storage:         storage,
		MaxSizePerMsg:   4096,
		MaxInflightMsgs: 256,
	}

	var peers []raft.Peer
	for _, p := range cfg.Peers {
		peers = append(peers, raft.Peer{ID: p})
	}

	if _, err := storage.FirstIndex(); err != nil {
		return nil, err
	}
	lastIndex, _ := storage.LastIndex()

	var rn raft.Node
	if lastIndex > 0 {
		rn = raft.RestartNode(c)
	} else {
		rn = raft.StartNode(c, peers)
	}

	snapCount := cfg.SnapCount
	if snapCount == 0 {
		snapCount = 50
	}

	return &Node{
		ID:        cfg.ID,
		RaftNode:  rn,
		Storage:   storage,
		Transport: transport,
		Applier:   applier,
		Archive:   snapshot.NewArchive(),
		Log:       logger,
		snapCount: snapCount,
		confState: raftpb.ConfState{Voters: cfg.Peers},
	}, nil
}

// memoryStorageWrapper makes MemoryStorage satisfy our Storage interface.
type memoryStorageWrapper struct {
	*raft.MemoryStorage
}

func (m *memoryStorageWrapper) Save(entries []raftpb.Entry, state raftpb.HardState) error {
	m.Append(entries)
	if !raft.IsEmptyHardState(state) {
		m.SetHardState(state)
	}
	return nil
}
func (m *memoryStorageWrapper) Close() error { return nil }

// Run starts the main loop. Blocking.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.RaftNode.Stop()
			return
		case <-ticker.C:
			n.RaftNode.Tick()
		case rd := <-n.RaftNode.Ready():
			n.processReady(rd)
			n.RaftNode.Advance()
		}
	}
}

// processReady handles one Ready from the raft state machine. Order
// matters: a leader-installed snapshot must replace the store before any
// committed entries apply, since the entries in the same Ready follow the
// snapshot's index and a later restore would wipe their effects.
func (n *Node) processReady(rd raft.Ready) {
	// 1. Persist before anything else.
	if err := n.Storage.Save(rd.Entries, rd.HardState); err != nil {
		n.Log.Fatal("failed to persist raft state", zap.Error(err))
	}

	// 2. Send messages to peers.
	n.Transport.Send(rd.Messages)

	// 3. A leader-installed snapshot replaces our whole store.
	if !raft.IsEmptySnap(rd.Snapshot) {
		n.Log.Info("applying leader snapshot",
			zap.Uint64("index", rd.Snapshot.Metadata.Index))
		if err := n.Storage.ApplySnapshot(rd.Snapshot); err != nil {
			n.Log.Error("persisting leader snapshot failed", zap.Error(err))
		}
		if err := n.Applier.Restore(rd.Snapshot.Data); err != nil {
			n.Log.Error("restoring store from leader snapshot failed", zap.Error(err))
		}
	}

	// 4. Apply committed entries, one at a time.
	for _, entry := range rd.CommittedEntries {
		if entry.Type == raftpb.EntryNormal && len(entry.Data) > 0 {
			n.Applier.Apply(entry)
		}
	}

	// 5. Snapshot once enough entries have applied.
	if len(rd.CommittedEntries) > 0 {
		lastApplied := rd.CommittedEntries[len(rd.CommittedEntries)-1].Index
		n.maybeSnapshot(lastApplied)
	}
}

func (n *Node) maybeSnapshot(lastApplied uint64) {
	first, err := n.Storage.FirstIndex()
	if err != nil || lastApplied <= first || lastApplied-first <= n.snapCount {
		return
	}
	data, err := n.Applier.GetSnapshot()
	if err != nil {
		n.Log.Error("store snapshot failed", zap.Error(err))
		return
	}
	snap, err := n.Storage.CreateSnapshot(lastApplied, &n.confState, data)
	if err != nil {
		n.Log.Error("snapshot create failed", zap.Error(err))
		return
	}
	n.Archive.Put(snap.Metadata.Index, data)
	n.Archive.Prune(3)
	n.Log.Info("snapshot created", zap.Uint64("index", snap.Metadata.Index))
}

func (n *Node) Propose(ctx context.Context, data []byte) error {
	return n.RaftNode.Propose(ctx, data)
}

func (n *Node) Step(ctx context.Context, msg raftpb.Message) error {
	return n.RaftNode.Step(ctx, msg)
}
