// internal/corpus/memory.go
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"registry-workers/internal/dedup"
)

// Memory is an in-process corpus. Every mutation publishes a fresh slice
// for the affected entity type, so snapshots already handed out never
// change.
type Memory struct {
	mu     sync.RWMutex
	byType map[string][]dedup.Entry
}

func NewMemory() *Memory {
	return &Memory{byType: make(map[string][]dedup.Entry)}
}

// RecordsForType implements dedup.CorpusProvider.
func (m *Memory) RecordsForType(_ context.Context, entityType string) ([]dedup.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byType[entityType], nil
}

// Put inserts or replaces the record with the given id.
func (m *Memory) Put(entityType, id string, record dedup.Record) error {
	if id == "" {
		return fmt.Errorf("record id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.byType[entityType]
	next := make([]dedup.Entry, 0, len(current)+1)
	replaced := false
	for _, e := range current {
		if e.ID == id {
			next = append(next, dedup.Entry{ID: id, Record: record.Clone()})
			replaced = true
			continue
		}
		next = append(next, e)
	}
	if !replaced {
		next = append(next, dedup.Entry{ID: id, Record: record.Clone()})
	}
	m.byType[entityType] = next
	return nil
}

// Remove deletes the record with the given id and reports whether it existed.
func (m *Memory) Remove(entityType, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.byType[entityType]
	next := make([]dedup.Entry, 0, len(current))
	for _, e := range current {
		if e.ID != id {
			next = append(next, e)
		}
	}
	if len(next) == len(current) {
		return false
	}
	m.byType[entityType] = next
	return true
}

// Replace swaps the whole corpus of one entity type.
func (m *Memory) Replace(entityType string, entries []dedup.Entry) {
	next := make([]dedup.Entry, len(entries))
	for i, e := range entries {
		next[i] = dedup.Entry{ID: e.ID, Record: e.Record.Clone()}
	}

	m.mu.Lock()
	m.byType[entityType] = next
	m.mu.Unlock()
}

// Len returns the number of records stored for entityType.
func (m *Memory) Len(entityType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byType[entityType])
}

// LoadFile replaces the corpus of every entity type named in a JSON seed
// file shaped {"INDIVIDUAL": [{"id": "...", "record": {...}}], ...}.
func (m *Memory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read corpus seed: %w", err)
	}

	var seed map[string][]dedup.Entry
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode corpus seed %s: %w", path, err)
	}
	for entityType, entries := range seed {
		for _, e := range entries {
			if e.ID == "" {
				return fmt.Errorf("corpus seed %s: %s record without id", path, entityType)
			}
		}
	}

	for entityType, entries := range seed {
		m.Replace(entityType, entries)
	}
	return nil
}
