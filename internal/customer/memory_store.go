package customer

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*Customer
	txns      map[string][]*Transaction   // customerID → transactions
	logins    map[string][]*LoginActivity // customerID → login activities
}

// NewMemoryStore creates an in-memory customer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*Customer),
		txns:      make(map[string][]*Transaction),
		logins:    make(map[string][]*LoginActivity),
	}
}

func (s *MemoryStore) Create(ctx context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Delete removes the customer and everything it owns.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return ErrNotFound
	}
	delete(s.customers, id)
	delete(s.txns, id)
	delete(s.logins, id)
	return nil
}

func (s *MemoryStore) UpdateRiskProfile(ctx context.Context, id string, score int, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.RiskScore = score
	c.RiskLevel = level
	return nil
}

func (s *MemoryStore) AddTransaction(ctx context.Context, txn *Transaction) error {
	if txn.Amount.IsNegative() {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[txn.CustomerID]; !ok {
		return ErrNotFound
	}
	cp := *txn
	s.txns[txn.CustomerID] = append(s.txns[txn.CustomerID], &cp)
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, customerID string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, ErrNotFound
	}
	all := s.txns[customerID]
	result := make([]*Transaction, 0, len(all))
	for _, txn := range all {
		cp := *txn
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) AddLogin(ctx context.Context, login *LoginActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[login.CustomerID]; !ok {
		return ErrNotFound
	}
	cp := *login
	s.logins[login.CustomerID] = append(s.logins[login.CustomerID], &cp)
	return nil
}

func (s *MemoryStore) ListLogins(ctx context.Context, customerID string) ([]*LoginActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, ErrNotFound
	}
	all := s.logins[customerID]
	result := make([]*LoginActivity, 0, len(all))
	for _, login := range all {
		cp := *login
		result = append(result, &cp)
	}
	return result, nil
}
