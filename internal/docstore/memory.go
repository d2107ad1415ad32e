package docstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store for tests and single-process dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Doc
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]Doc{}, now: time.Now}
}

// NewMemoryStoreWithClock is test-only for deterministic timestamps.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{docs: map[string]Doc{}, now: now}
}

func (m *MemoryStore) Get(_ context.Context, path string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *MemoryStore) Set(_ context.Context, path string, fields Doc, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.docs[path]
	if !ok || !merge {
		dst = Doc{}
	}
	apply(dst, fields, m.now())
	m.docs[path] = dst
	return nil
}

func (m *MemoryStore) Update(_ context.Context, path string, fields Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.docs[path]
	if !ok {
		return ErrNotFound
	}
	apply(dst, fields, m.now())
	return nil
}

func (m *MemoryStore) UpdateIf(_ context.Context, path string, cond Doc, fields Doc) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.docs[path]
	if !ok {
		return false, ErrNotFound
	}
	for k, want := range cond {
		if !looseEqual(dst[k], want) {
			return false, nil
		}
	}
	apply(dst, fields, m.now())
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

func (m *MemoryStore) Add(_ context.Context, collection string, fields Doc) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	dst := Doc{}
	apply(dst, fields, m.now())
	m.docs[collection+"/"+id] = dst
	return id, nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Snapshot, error) {
	prefix := collection + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for path, d := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if strings.ContainsRune(rest, '/') {
			continue // doc in a nested subcollection, not a direct child
		}
		out = append(out, Snapshot{ID: rest, Data: cloneDoc(d)})
	}
	return out, nil
}

func cloneDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// looseEqual compares condition values the way JSON round-tripping stores
// them: numerics compare by value, everything else by interface equality.
func looseEqual(have, want any) bool {
	if hn, ok := AsInt64(have); ok {
		if wn, ok2 := AsInt64(want); ok2 {
			return hn == wn
		}
	}
	return have == want
}
