// Package storage provides capped, newest-first record logs.
//
// A Log behaves like a browser's local storage holding one list per key:
// records are pushed to the front, the list is trimmed to a limit, and the
// whole list can be read, replaced, or cleared. Records are opaque bytes;
// schema validation belongs to the caller.
//
// Implementations:
//   - MemoryLog: process memory, for tests and ephemeral runs
//   - FileLog: one JSON array file per key
//   - RedisLog: one redis list per key (LPUSH + LTRIM)
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrCorrupt is returned by ReadAll when the stored list cannot be decoded.
// Callers treat it as an empty list; the next write replaces the data.
var ErrCorrupt = errors.New("stored log is corrupt")

// Log is a capped ordered log keyed by name.
type Log interface {
	// PushFront prepends record and evicts the oldest entries beyond limit.
	PushFront(ctx context.Context, key string, record []byte, limit int) error
	// ReadAll returns records newest first.
	ReadAll(ctx context.Context, key string) ([][]byte, error)
	// Replace overwrites the list with records, newest first.
	Replace(ctx context.Context, key string, records [][]byte) error
	// Clear removes the list.
	Clear(ctx context.Context, key string) error
	Close() error
}

// MemoryLog keeps lists in memory.
type MemoryLog struct {
	mu    sync.Mutex
	lists map[string][][]byte
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{lists: make(map[string][][]byte)}
}

func (m *MemoryLog) PushFront(ctx context.Context, key string, record []byte, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([][]byte, 0, len(m.lists[key])+1)
	list = append(list, clone(record))
	list = append(list, m.lists[key]...)
	m.lists[key] = trim(list, limit)
	return nil
}

func (m *MemoryLog) ReadAll(ctx context.Context, key string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.lists[key]))
	for i, r := range m.lists[key] {
		out[i] = clone(r)
	}
	return out, nil
}

func (m *MemoryLog) Replace(ctx context.Context, key string, records [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([][]byte, len(records))
	for i, r := range records {
		list[i] = clone(r)
	}
	m.lists[key] = list
	return nil
}

func (m *MemoryLog) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lists, key)
	return nil
}

func (m *MemoryLog) Close() error { return nil }

func trim(list [][]byte, limit int) [][]byte {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
