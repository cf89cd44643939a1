// Package snapshot keeps recently created store snapshots in memory, keyed
// by the raft log index they cover. A lagging follower can be served a
// recent snapshot without re-serializing the store.
package snapshot

import (
	"sync"

	"github.com/google/btree"
)

// Entry is one archived snapshot.
type Entry struct {
	Index uint64
	Data  []byte
}

func (e *Entry) Less(than btree.Item) bool {
	return e.Index < than.(*Entry).Index
}

// Archive holds snapshots ordered by index.
type Archive struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func NewArchive() *Archive {
	return &Archive{tree: btree.New(32)}
}

// Put stores a snapshot for the given index, replacing any previous
// snapshot at that index.
func (a *Archive) Put(index uint64, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tree.ReplaceOrInsert(&Entry{Index: index, Data: data})
}

// Get returns the snapshot at exactly the given index.
func (a *Archive) Get(index uint64) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	item := a.tree.Get(&Entry{Index: index})
	if item == nil {
		return nil, false
	}
	return item.(*Entry).Data, true
}

// Latest returns the most recent snapshot.
func (a *Archive) Latest() (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	item := a.tree.Max()
	if item == nil {
		return Entry{}, false
	}
	return *item.(*Entry), true
}

// Len returns the number of archived snapshots.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tree.Len()
}

// Prune discards all but the newest keep snapshots, returning how many were
// dropped.
func (a *Archive) Prune(keep int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	excess := a.tree.Len() - keep
	dropped := 0
	for dropped < excess {
		if a.tree.DeleteMin() == nil {
			break
		}
		dropped++
	}
	return dropped
}
