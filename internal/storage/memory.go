package storage

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/weftworks/weft/internal/ir"
)

// Memory is an in-memory Store for tests and ephemeral runs. Records
// are deep-copied on the way in and out, so callers cannot alias the
// store's state.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]ir.Object // relation -> key -> body
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]ir.Object)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, relation, key string) (ir.Object, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.data[relation][key]
	if !ok {
		return nil, false, nil
	}
	return copyObject(body), true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, relation, key string, body ir.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[relation] == nil {
		m.data[relation] = make(map[string]ir.Object)
	}
	m.data[relation][key] = copyObject(body)
	return nil
}

// Find implements Store. Results are ordered by key to match the
// SQLite implementation.
func (m *Memory) Find(_ context.Context, relation string, filter ir.Object) ([]ir.Object, error) {
	for field, v := range filter {
		switch v.(type) {
		case ir.String, ir.Int, ir.Bool:
		default:
			return nil, fmt.Errorf("find %s: field %q: filter value is %T, want scalar", relation, field, v)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[relation]))
	for key := range m.data[relation] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []ir.Object
	for _, key := range keys {
		body := m.data[relation][key]
		if matchesFilter(body, filter) {
			out = append(out, copyObject(body))
		}
	}
	return out, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, relation, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[relation], key)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

func matchesFilter(body, filter ir.Object) bool {
	for field, want := range filter {
		got, ok := body[field]
		if !ok || !ir.Equal(got, want) {
			return false
		}
	}
	return true
}

func copyObject(o ir.Object) ir.Object {
	out := maps.Clone(o)
	for k, v := range out {
		switch val := v.(type) {
		case ir.Object:
			out[k] = copyObject(val)
		case ir.Array:
			out[k] = copyArray(val)
		}
	}
	return out
}

func copyArray(a ir.Array) ir.Array {
	out := make(ir.Array, len(a))
	for i, v := range a {
		switch val := v.(type) {
		case ir.Object:
			out[i] = copyObject(val)
		case ir.Array:
			out[i] = copyArray(val)
		default:
			out[i] = val
		}
	}
	return out
}
