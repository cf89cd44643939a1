package raft

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"
	"go.uber.org/zap"

	"github.com/myuser/memberstore/internal/snapshot"
)

type mockTransport struct {
	msgs []raftpb.Message
}

func (m *mockTransport) Send(msgs []raftpb.Message) {
	m.msgs = append(m.msgs, msgs...)
}

type mockApplier struct {
	committed [][]byte
}

func (m *mockApplier) Apply(entry raftpb.Entry) {
	m.committed = append(m.committed, entry.Data)
}

func (m *mockApplier) GetSnapshot() ([]byte, error) {
	return []byte("state"), nil
}

func (m *mockApplier) Restore(data []byte) error {
	return nil
}

func TestRaftNode_SingleNode(t *testing.T) {
	// Single node cluster (ID 1)
	cfg := Config{
		ID:    1,
		Peers: []uint64{1},
	}

	transport := &mockTransport{}
	applier := &mockApplier{}

	node, err := NewNode(cfg, applier, transport, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go node.Run(ctx)

	data := []byte(`{"op":"exec","sql":"SELECT 1"}`)
	if err := node.Propose(ctx, data); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	// Single node should elect itself leader and commit quickly.
	deadline := time.Now().Add(2 * time.Second)
	found := false
	for time.Now().Before(deadline) {
		if len(applier.committed) > 0 {
			found = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !found {
		t.Fatal("Timeout waiting for entry to apply")
	}

	if string(applier.committed[0]) != string(data) {
		t.Errorf("Expected committed data %s, got %s", data, applier.committed[0])
	}
}

// orderingApplier records the order of restore and apply calls.
type orderingApplier struct {
	events []string
}

func (o *orderingApplier) Apply(entry raftpb.Entry) {
	o.events = append(o.events, "apply")
}

func (o *orderingApplier) GetSnapshot() ([]byte, error) { return []byte("state"), nil }

func (o *orderingApplier) Restore(data []byte) error {
	o.events = append(o.events, "restore")
	return nil
}

func TestProcessReadyRestoresSnapshotBeforeEntries(t *testing.T) {
	applier := &orderingApplier{}
	n := &Node{
		Storage:   &memoryStorageWrapper{raft.NewMemoryStorage()},
		Transport: &mockTransport{},
		Applier:   applier,
		Archive:   snapshot.NewArchive(),
		Log:       zap.NewNop(),
		snapCount: 1 << 20,
	}

	// A lagging follower can receive a snapshot and entries past it in the
	// same Ready. The store must be restored first, or the entries' effects
	// would be wiped.
	rd := raft.Ready{
		Snapshot: raftpb.Snapshot{
			Metadata: raftpb.SnapshotMetadata{
				Index: 5, Term: 1,
				ConfState: raftpb.ConfState{Voters: []uint64{1}},
			},
			Data: []byte("leader-state"),
		},
		CommittedEntries: []raftpb.Entry{
			{Term: 1, Index: 6, Type: raftpb.EntryNormal, Data: []byte("after")},
		},
	}

	n.processReady(rd)

	if len(applier.events) != 2 || applier.events[0] != "restore" || applier.events[1] != "apply" {
		t.Fatalf("Want restore then apply, got %v", applier.events)
	}
}

func TestDiskStorageReplay(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "raft.wal")

	ds, err := NewDiskStorage(walPath)
	if err != nil {
		t.Fatalf("NewDiskStorage failed: %v", err)
	}

	entries := []raftpb.Entry{
		{Term: 1, Index: 1, Type: raftpb.EntryNormal, Data: []byte("one")},
		{Term: 1, Index: 2, Type: raftpb.EntryNormal, Data: []byte("two")},
	}
	state := raftpb.HardState{Term: 1, Commit: 2, Vote: 1}
	if err := ds.Save(entries, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen: entries and hard state should come back from the log.
	ds2, err := NewDiskStorage(walPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer ds2.Close()

	last, err := ds2.LastIndex()
	if err != nil {
		t.Fatalf("LastIndex failed: %v", err)
	}
	if last != 2 {
		t.Errorf("Want last index 2, got %d", last)
	}
	hs, _, err := ds2.InitialState()
	if err != nil {
		t.Fatalf("InitialState failed: %v", err)
	}
	if hs.Commit != 2 {
		t.Errorf("Want commit 2, got %d", hs.Commit)
	}
}

func TestDiskStorageSnapshotCompactsLog(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "raft.wal")

	ds, err := NewDiskStorage(walPath)
	if err != nil {
		t.Fatalf("NewDiskStorage failed: %v", err)
	}

	var entries []raftpb.Entry
	for i := uint64(1); i <= 10; i++ {
		entries = append(entries, raftpb.Entry{
			Term: 1, Index: i, Type: raftpb.EntryNormal, Data: []byte("x"),
		})
	}
	if err := ds.Save(entries, raftpb.HardState{Term: 1, Commit: 10, Vote: 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cs := &raftpb.ConfState{Voters: []uint64{1}}
	snap, err := ds.CreateSnapshot(8, cs, []byte("store-state"))
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	if snap.Metadata.Index != 8 {
		t.Errorf("Want snapshot index 8, got %d", snap.Metadata.Index)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen: the snapshot and only the entries past it survive.
	ds2, err := NewDiskStorage(walPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer ds2.Close()

	got, err := ds2.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got.Metadata.Index != 8 {
		t.Errorf("Want snapshot index 8 after replay, got %d", got.Metadata.Index)
	}
	if string(got.Data) != "store-state" {
		t.Errorf("Snapshot data mismatch: %q", got.Data)
	}
	first, _ := ds2.FirstIndex()
	last, _ := ds2.LastIndex()
	if first != 9 || last != 10 {
		t.Errorf("Want entries [9,10], got [%d,%d]", first, last)
	}
}
