package risk

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment          // customerID → assessments
	analyses    map[string][]*TransactionAnalysis // customerID → analyses
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string][]*Assessment),
		analyses:    make(map[string][]*TransactionAnalysis),
	}
}

func (s *MemoryStore) RecordAssessment(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.assessments[a.CustomerID] = append(s.assessments[a.CustomerID], &cp)
	return nil
}

func (s *MemoryStore) ListAssessmentsByCustomer(ctx context.Context, customerID string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[customerID]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	// Most recent first.
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) RecordAnalysis(ctx context.Context, a *TransactionAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.analyses[a.CustomerID] = append(s.analyses[a.CustomerID], &cp)
	return nil
}

func (s *MemoryStore) ListAnalysesByCustomer(ctx context.Context, customerID string, limit int) ([]*TransactionAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.analyses[customerID]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	result := make([]*TransactionAnalysis, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		result = append(result, &cp)
	}
	return result, nil
}
