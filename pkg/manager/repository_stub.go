package manager

import (
	"context"
	"sort"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu       sync.Mutex
	nextId   int
	managers map[string]Manager
	// FailCreates makes Create return the error.
	FailCreates error
	// FailUpdates makes Update return the error.
	FailUpdates error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{managers: map[string]Manager{}}
}

func (s *RepositoryStub) Create(_ context.Context, m Manager) (Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreates != nil {
		return Manager{}, s.FailCreates
	}
	for _, existing := range s.managers {
		if existing.Username == m.Username {
			return Manager{}, ErrUsernameTaken
		}
		if m.EmployeeUid != "" && existing.EmployeeUid == m.EmployeeUid {
			return Manager{}, ErrEmployeeLinked
		}
	}
	s.nextId++
	m.Id = s.nextId
	m.CreatedAt = time.Now().UTC()
	s.managers[m.Uid] = m
	return m, nil
}

func (s *RepositoryStub) Get(_ context.Context, uid string) (Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managers[uid]
	if !ok {
		return Manager{}, ErrManagerNotFound
	}
	return m, nil
}

func (s *RepositoryStub) GetByUsername(_ context.Context, username string) (Manager, error) {
	return s.find(func(m Manager) bool { return m.Username == username })
}

func (s *RepositoryStub) GetByEmployee(_ context.Context, employeeUid string) (Manager, error) {
	return s.find(func(m Manager) bool { return m.EmployeeUid != "" && m.EmployeeUid == employeeUid })
}

func (s *RepositoryStub) find(match func(Manager) bool) (Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.managers {
		if match(m) {
			return m, nil
		}
	}
	return Manager{}, ErrManagerNotFound
}

func (s *RepositoryStub) List(_ context.Context, includeInactive bool) ([]Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	managers := make([]Manager, 0, len(s.managers))
	for _, m := range s.managers {
		if m.IsActive || includeInactive {
			managers = append(managers, m)
		}
	}
	sort.Slice(managers, func(i, j int) bool { return managers[i].Id > managers[j].Id })
	return managers, nil
}

func (s *RepositoryStub) Update(_ context.Context, m Manager) (Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return Manager{}, s.FailUpdates
	}
	if _, ok := s.managers[m.Uid]; !ok {
		return Manager{}, ErrManagerNotFound
	}
	for _, existing := range s.managers {
		if existing.Uid != m.Uid && m.EmployeeUid != "" && existing.EmployeeUid == m.EmployeeUid {
			return Manager{}, ErrEmployeeLinked
		}
	}
	s.managers[m.Uid] = m
	return m, nil
}

func (s *RepositoryStub) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.managers[uid]; !ok {
		return ErrManagerNotFound
	}
	delete(s.managers, uid)
	return nil
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId = 0
	s.managers = map[string]Manager{}
	s.FailCreates = nil
	s.FailUpdates = nil
}
