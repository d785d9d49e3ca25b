package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"vet/internal/core"
)

// MemoryStore is a process-local RecordStore. It does not survive restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]core.Expense
}

func NewMemoryStore(seed ...core.Expense) *MemoryStore {
	s := &MemoryStore{items: make(map[string]core.Expense, len(seed))}
	for _, e := range seed {
		s.items[e.ID] = e.Clone()
	}
	return s
}

// NewMemoryStoreFromFile seeds the store from a JSON array of expenses.
// A missing file yields an empty store.
func NewMemoryStoreFromFile(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewMemoryStore(), nil
	}
	if err != nil {
		return nil, unavailable("read seed file", err)
	}
	var seed []core.Expense
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return NewMemoryStore(seed...), nil
}

// Add implements RecordStore.
func (s *MemoryStore) Add(ctx context.Context, e core.Expense) error {
	if err := ctx.Err(); err != nil {
		return unavailable("add expense", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; ok {
		return fmt.Errorf("add expense %s: %w", e.ID, core.ErrDuplicateKey)
	}
	s.items[e.ID] = e.Clone()
	return nil
}

// Put implements RecordStore.
func (s *MemoryStore) Put(ctx context.Context, e core.Expense) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put expense", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e.Clone()
	return nil
}

// Get implements RecordStore.
func (s *MemoryStore) Get(ctx context.Context, id string) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, core.ErrNotFound)
	}
	return e.Clone(), nil
}

// GetAll implements RecordStore.
func (s *MemoryStore) GetAll(ctx context.Context) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list expenses", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.Clone())
	}
	return out, nil
}

// MarkSynced implements RecordStore.
func (s *MemoryStore) MarkSynced(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("mark synced", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, id := range ids {
		e, ok := s.items[id]
		if !ok {
			continue
		}
		e.Synced = true
		s.items[id] = e
		count++
	}
	return count, nil
}

func (s *MemoryStore) Close() error { return nil }
