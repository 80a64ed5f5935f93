package employee

import (
	"context"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu        sync.Mutex
	nextId    int
	employees map[string]Employee
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{employees: map[string]Employee{}}
}

func (s *RepositoryStub) Create(_ context.Context, e Employee) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts(e) {
		return Employee{}, ErrDuplicateEmployee
	}
	s.nextId++
	e.Id = s.nextId
	s.employees[e.Uid] = e
	return e, nil
}

func (s *RepositoryStub) conflicts(e Employee) bool {
	for _, existing := range s.employees {
		if existing.Uid == e.Uid {
			continue
		}
		if existing.EmployeeCode == e.EmployeeCode || (e.Email != "" && existing.Email == e.Email) {
			return true
		}
	}
	return false
}

func (s *RepositoryStub) Get(_ context.Context, uid string) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[uid]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (s *RepositoryStub) GetByCode(_ context.Context, code string) (Employee, error) {
	return s.find(func(e Employee) bool { return e.EmployeeCode == code })
}

func (s *RepositoryStub) GetByEmail(_ context.Context, email string) (Employee, error) {
	return s.find(func(e Employee) bool { return e.Email != "" && e.Email == email })
}

func (s *RepositoryStub) find(match func(Employee) bool) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.employees {
		if match(e) {
			return e, nil
		}
	}
	return Employee{}, ErrEmployeeNotFound
}

func (s *RepositoryStub) List(_ context.Context) ([]Employee, error) {
	return s.filter(func(Employee) bool { return true }), nil
}

func (s *RepositoryStub) Search(_ context.Context, query string) ([]Employee, error) {
	return s.filter(func(e Employee) bool { return e.matches(query) }), nil
}

func (s *RepositoryStub) filter(match func(Employee) bool) []Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	employees := make([]Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if e.IsActive && match(e) {
			employees = append(employees, e)
		}
	}
	sort.Slice(employees, func(i, j int) bool {
		if !employees[i].CreatedAt.Equal(employees[j].CreatedAt) {
			return employees[i].CreatedAt.After(employees[j].CreatedAt)
		}
		return employees[i].Id > employees[j].Id
	})
	return employees
}

func (s *RepositoryStub) Update(_ context.Context, e Employee) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[e.Uid]; !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	if s.conflicts(e) {
		return Employee{}, ErrDuplicateEmployee
	}
	s.employees[e.Uid] = e
	return e, nil
}

func (s *RepositoryStub) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[uid]; !ok {
		return ErrEmployeeNotFound
	}
	delete(s.employees, uid)
	return nil
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId = 0
	s.employees = map[string]Employee{}
}
