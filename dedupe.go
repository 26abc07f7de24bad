package datalake

import (
	"sync"
)

// MapDeduper is an in-memory Deduper. It is the default, and holds one
// entry per distinct row.
type MapDeduper struct {
	lock sync.Mutex
	seen map[string]struct{}
}

// NewMapDeduper creates a new MapDeduper.
func NewMapDeduper() *MapDeduper {
	return &MapDeduper{
		seen: make(map[string]struct{}),
	}
}

// NewMapDeduperFactory returns a DeduperFactory which creates MapDedupers.
func NewMapDeduperFactory() DeduperFactory {
	return func(table string) (Deduper, error) {
		return NewMapDeduper(), nil
	}
}

// Seen implements Deduper.
func (m *MapDeduper) Seen(key []byte) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.seen[string(key)]; ok {
		return true, nil
	}
	m.seen[string(key)] = struct{}{}
	return false, nil
}

// Len returns the number of distinct keys seen.
func (m *MapDeduper) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.seen)
}

// Close releases the keys.
func (m *MapDeduper) Close() error {
	m.lock.Lock()
	m.seen = nil
	m.lock.Unlock()
	return nil
}
