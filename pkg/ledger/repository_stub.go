package ledger

import (
	"context"
	"sort"
	"sync"
)

// RepositoryStub keeps ledgers in memory. Ledgers are copied in and out so callers never share
// expense slices with the store.
type RepositoryStub struct {
	mu      sync.Mutex
	ledgers map[string]Ledger
	order   []string
	// FailUpdates makes Update return the error after fn succeeded, simulating a failed write.
	FailUpdates error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{ledgers: map[string]Ledger{}}
}

func (s *RepositoryStub) Get(_ context.Context, ownerUid string) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[ownerUid]
	if !ok {
		return Ledger{}, ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (s *RepositoryStub) List(_ context.Context) ([]Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledgers := make([]Ledger, 0, len(s.order))
	for _, owner := range s.order {
		ledgers = append(ledgers, s.ledgers[owner].Clone())
	}
	return ledgers, nil
}

func (s *RepositoryStub) Create(_ context.Context, ledger Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ledgers[ledger.OwnerUid]; exists {
		return ErrLedgerExists
	}
	ledger = ledger.Clone()
	ledger.Version = 1
	s.ledgers[ledger.OwnerUid] = ledger
	s.order = append(s.order, ledger.OwnerUid)
	return nil
}

func (s *RepositoryStub) Delete(_ context.Context, ownerUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ledgers[ownerUid]; !exists {
		return false, nil
	}
	delete(s.ledgers, ownerUid)
	for i, owner := range s.order {
		if owner == ownerUid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *RepositoryStub) Update(_ context.Context, ownerUid string, fn func(l *Ledger) error) (Ledger, error) {
	s.mu.Lock()
	current, ok := s.ledgers[ownerUid]
	if !ok {
		s.mu.Unlock()
		return Ledger{}, ErrLedgerNotFound
	}
	next := current.Clone()
	s.mu.Unlock()

	if err := fn(&next); err != nil {
		return Ledger{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return Ledger{}, s.FailUpdates
	}
	if stored, ok := s.ledgers[ownerUid]; !ok || stored.Version != current.Version {
		return Ledger{}, ErrConcurrentUpdate
	}
	sort.SliceStable(next.Expenses, func(i, j int) bool { return next.Expenses[i].Position < next.Expenses[j].Position })
	next.Version = current.Version + 1
	s.ledgers[ownerUid] = next.Clone()
	return next, nil
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers = map[string]Ledger{}
	s.order = nil
	s.FailUpdates = nil
}
