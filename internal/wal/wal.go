// Package wal is the append-only log backing raft persistence. Records
// survive restarts; the raft layer replays them to rebuild its in-memory
// state.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// WAL is an append-only record log over a single file.
// Record framing: Len(4) | Data(N) | CRC(4).
type WAL struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens or creates the log at path.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &WAL{f: f, path: path}, nil
}

// Append writes one record and syncs it to disk.
func (w *WAL) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	if _, err := w.f.Write(buf); err != nil {
		return err
	}
	if _, err := w.f.Write(data); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(data))
	if _, err := w.f.Write(buf); err != nil {
		return err
	}
	return w.f.Sync()
}

// Iterate reads every record from the start of the log, calling handler for
// each. The position is left at the end so appends continue normally.
func (w *WAL) Iterate(handler func(data []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(w.f, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		data := make([]byte, length)
		if _, err := io.ReadFull(w.f, data); err != nil {
			return err
		}

		if _, err := io.ReadFull(w.f, lenBuf); err != nil {
			return err
		}
		if binary.BigEndian.Uint32(lenBuf) != crc32.ChecksumIEEE(data) {
			return fmt.Errorf("wal: checksum mismatch in %s", w.path)
		}

		if err := handler(data); err != nil {
			return err
		}
	}

	_, err := w.f.Seek(0, io.SeekEnd)
	return err
}

// Reset discards every record. Used after a snapshot makes the prefix of
// the log redundant; the caller rewrites whatever must survive.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Truncate(0); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close closes the backing file.
func (w *WAL) Close() error {
	return w.f.Close()
}
