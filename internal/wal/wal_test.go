package wal

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWALAppendIterate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "member.wal")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}

	records := [][]byte{
		[]byte("record1"),
		[]byte("record2-longer"),
		[]byte("record3"),
	}

	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close WAL: %v", err)
	}

	// Reopen and verify
	w2, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer w2.Close()

	var read [][]byte
	err = w2.Iterate(func(data []byte) error {
		d := make([]byte, len(data))
		copy(d, data)
		read = append(read, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}

	if len(read) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(read))
	}
	for i, r := range records {
		if !bytes.Equal(r, read[i]) {
			t.Errorf("Record %d mismatch. Want %s, got %s", i, r, read[i])
		}
	}
}

func TestWALReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "member.wal")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	defer w.Close()

	if err := w.Append([]byte("old")); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := w.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := w.Append([]byte("new")); err != nil {
		t.Fatalf("Failed to append after reset: %v", err)
	}

	var read [][]byte
	err = w.Iterate(func(data []byte) error {
		d := make([]byte, len(data))
		copy(d, data)
		read = append(read, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}

	if len(read) != 1 || string(read[0]) != "new" {
		t.Errorf("Expected only the post-reset record, got %q", read)
	}
}
