package recon

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory MasterStore. The batch CLI uses it to apply
// a plan against a workbook-loaded master, and tests use it to exercise
// the sync state machine without a database.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]MasterEntry
}

func NewMemStore(entries []MasterEntry) *MemStore {
	s := &MemStore{entries: make(map[string]MasterEntry, len(entries))}
	for _, e := range entries {
		s.entries[groupKey(e.Key)] = e
	}
	return s
}

func (s *MemStore) Get(ctx context.Context, key Key) (*MasterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[groupKey(key)]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

func (s *MemStore) Put(ctx context.Context, entry MasterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[groupKey(entry.Key)] = entry
	return nil
}

// Snapshot materializes the current contents for a new planning pass.
func (s *MemStore) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MasterEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return NewSnapshot(out)
}

// Entries returns the contents sorted by key, for writing the updated
// master workbook.
func (s *MemStore) Entries() []MasterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MasterEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Invoice != out[j].Key.Invoice {
			return out[i].Key.Invoice < out[j].Key.Invoice
		}
		return out[i].Key.Item < out[j].Key.Item
	})
	return out
}
