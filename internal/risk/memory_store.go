package risk

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and database-less runs.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments []*Assessment
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FindRecent returns the newest assessment for the pair no older than ttl.
func (m *MemoryStore) FindRecent(_ context.Context, chainID int64, tokenAddress string, ttl time.Duration) (*Assessment, error) {
	if ttl <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-ttl)
	var newest *Assessment
	for _, a := range m.assessments {
		if a.ChainID != chainID || a.TokenAddress != tokenAddress {
			continue
		}
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

// Persist stores an assessment.
func (m *MemoryStore) Persist(_ context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *a
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	m.assessments = append(m.assessments, &clone)
	return nil
}

// Count reports how many assessments are stored, for tests.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assessments)
}
