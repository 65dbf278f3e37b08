package registry

import (
	"context"
	"sync"
)

// MemoryStore is a simple in-memory registry useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewMemoryStore(initial Snapshot) *MemoryStore {
	return &MemoryStore{snap: cloneSnapshot(initial)}
}

func (s *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap), nil
}

func (s *MemoryStore) Replace(ctx context.Context, r Replacement) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.TelephonyIdentities != nil {
		s.snap.TelephonyIdentities = append([]TelephonyIdentity(nil), (*r.TelephonyIdentities)...)
	}
	if r.Agents != nil {
		s.snap.Agents = append([]Agent(nil), (*r.Agents)...)
	}
	if r.Assignments != nil {
		s.snap.Assignments = append([]Assignment(nil), (*r.Assignments)...)
	}
	return nil
}

func cloneSnapshot(in Snapshot) Snapshot {
	return Snapshot{
		TelephonyIdentities: append([]TelephonyIdentity{}, in.TelephonyIdentities...),
		Agents:              append([]Agent{}, in.Agents...),
		Assignments:         append([]Assignment{}, in.Assignments...),
	}
}
