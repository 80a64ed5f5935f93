package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/klokku/hris/internal/utils"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Create(ctx context.Context, details Details) (Employee, error)
	// Get returns an active employee.
	Get(ctx context.Context, uid string) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
	Search(ctx context.Context, query string) ([]Employee, error)
	// Update replaces the details of an active employee.
	Update(ctx context.Context, uid string, details Details) (Employee, error)
	Delete(ctx context.Context, uid string) error
}

type ServiceImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewService(repo Repository, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock}
}

func (s *ServiceImpl) Create(ctx context.Context, details Details) (Employee, error) {
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return Employee{}, err
	}
	if err := s.checkUnique(ctx, "", details); err != nil {
		return Employee{}, err
	}

	now := s.clock.Now()
	created, err := s.repo.Create(ctx, Employee{
		Uid:       uuid.NewString(),
		Details:   details,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Employee{}, err
	}
	log.Infof("employee %s (%s) created", created.Uid, created.EmployeeCode)
	return created, nil
}

func (s *ServiceImpl) Get(ctx context.Context, uid string) (Employee, error) {
	e, err := s.repo.Get(ctx, uid)
	if err != nil {
		return Employee{}, err
	}
	if !e.IsActive {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (s *ServiceImpl) List(ctx context.Context) ([]Employee, error) {
	return s.repo.List(ctx)
}

func (s *ServiceImpl) Search(ctx context.Context, query string) ([]Employee, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "is required"}
	}
	return s.repo.Search(ctx, query)
}

func (s *ServiceImpl) Update(ctx context.Context, uid string, details Details) (Employee, error) {
	e, err := s.Get(ctx, uid)
	if err != nil {
		return Employee{}, err
	}
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return Employee{}, err
	}
	if err := s.checkUnique(ctx, uid, details); err != nil {
		return Employee{}, err
	}

	e.Details = details
	e.UpdatedAt = s.clock.Now()
	updated, err := s.repo.Update(ctx, e)
	if err != nil {
		return Employee{}, err
	}
	log.Infof("employee %s updated", uid)
	return updated, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, uid string) error {
	if err := s.repo.Delete(ctx, uid); err != nil {
		return err
	}
	log.Infof("employee %s deleted", uid)
	return nil
}

// checkUnique rejects an employee code or email used by an employee other than uid.
func (s *ServiceImpl) checkUnique(ctx context.Context, uid string, details Details) error {
	if err := s.checkTaken(uid, "employeeCode", func() (Employee, error) {
		return s.repo.GetByCode(ctx, details.EmployeeCode)
	}); err != nil {
		return err
	}
	if details.Email == "" {
		return nil
	}
	return s.checkTaken(uid, "email", func() (Employee, error) {
		return s.repo.GetByEmail(ctx, details.Email)
	})
}

func (s *ServiceImpl) checkTaken(uid string, field string, lookup func() (Employee, error)) error {
	existing, err := lookup()
	if errors.Is(err, ErrEmployeeNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", field, err)
	}
	if existing.Uid != uid {
		return &DuplicateError{Field: field}
	}
	return nil
}
