package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/klokku/hris/pkg/employee"
	"github.com/klokku/hris/pkg/ledger"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Ledgers is the part of the ledger service managing the lifecycle of a manager's budget.
type Ledgers interface {
	Fetch(ctx context.Context, ownerUid string) (ledger.View, error)
	OpenLedger(ctx context.Context, ownerUid string, allocated decimal.Decimal) (ledger.View, error)
	SetAllocation(ctx context.Context, ownerUid string, allocated decimal.Decimal) (ledger.View, error)
	CloseLedger(ctx context.Context, ownerUid string) error
}

// Employees looks up the employee record a manager is linked to.
type Employees interface {
	Get(ctx context.Context, uid string) (employee.Employee, error)
}

type Service interface {
	Create(ctx context.Context, m NewManager) (Manager, error)
	Get(ctx context.Context, uid string) (Manager, error)
	// Resolve returns the active manager with the given uid, used to identify request callers.
	Resolve(ctx context.Context, uid string) (Manager, error)
	List(ctx context.Context, includeInactive bool) ([]Manager, error)
	Update(ctx context.Context, uid string, changes Changes) (Manager, error)
	Delete(ctx context.Context, uid string) error
	Budget(ctx context.Context, uid string) (ledger.View, error)
	// Authenticate checks the password of an active manager.
	Authenticate(ctx context.Context, username string, password string) (Manager, error)
}

type ServiceImpl struct {
	repo      Repository
	ledgers   Ledgers
	employees Employees
	hashCost  int
}

func NewService(repo Repository, ledgers Ledgers, employees Employees) *ServiceImpl {
	return &ServiceImpl{repo: repo, ledgers: ledgers, employees: employees, hashCost: bcrypt.DefaultCost}
}

func (s *ServiceImpl) Create(ctx context.Context, n NewManager) (Manager, error) {
	if err := n.Validate(); err != nil {
		return Manager{}, err
	}
	if err := ledger.ValidateAllocation(n.BudgetAllocated); err != nil {
		return Manager{}, err
	}

	username := normalizeUsername(n.Username)
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return Manager{}, ErrUsernameTaken
	}
	if !errors.Is(err, ErrManagerNotFound) {
		return Manager{}, fmt.Errorf("failed to check username: %w", err)
	}

	m := Manager{
		Uid:          uuid.NewString(),
		Username:     username,
		TeamName:     strings.TrimSpace(n.TeamName),
		EmployeeName: strings.TrimSpace(n.EmployeeName),
		Department:   strings.TrimSpace(n.Department),
		IsActive:     true,
	}
	if err := s.linkEmployee(ctx, &m, n.EmployeeUid); err != nil {
		return Manager{}, err
	}
	if m.PasswordHash, err = s.hashPassword(n.Password); err != nil {
		return Manager{}, err
	}

	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return Manager{}, err
	}

	if _, err := s.ledgers.OpenLedger(ctx, created.Uid, n.BudgetAllocated); err != nil {
		log.Warnf("failed to open ledger for manager %s, removing the manager: %v", created.Uid, err)
		if deleteErr := s.repo.Delete(ctx, created.Uid); deleteErr != nil {
			log.Errorf("failed to remove manager %s without a ledger: %v", created.Uid, deleteErr)
		}
		return Manager{}, err
	}

	log.Infof("team manager %s (%s) created", created.Uid, created.Username)
	return created, nil
}

// Get returns the manager whether active or not, so an administrator can reactivate it.
func (s *ServiceImpl) Get(ctx context.Context, uid string) (Manager, error) {
	return s.repo.Get(ctx, uid)
}

func (s *ServiceImpl) Resolve(ctx context.Context, uid string) (Manager, error) {
	m, err := s.repo.Get(ctx, uid)
	if err != nil {
		return Manager{}, err
	}
	if !m.IsActive {
		return Manager{}, ErrManagerNotFound
	}
	return m, nil
}

func (s *ServiceImpl) List(ctx context.Context, includeInactive bool) ([]Manager, error) {
	return s.repo.List(ctx, includeInactive)
}

// Update validates and prepares every change before the budget is touched. A budget change that
// cannot be stored together with the other fields is rolled back.
func (s *ServiceImpl) Update(ctx context.Context, uid string, changes Changes) (Manager, error) {
	if err := changes.Validate(); err != nil {
		return Manager{}, err
	}
	if changes.BudgetAllocated != nil {
		if err := ledger.ValidateAllocation(*changes.BudgetAllocated); err != nil {
			return Manager{}, err
		}
	}
	m, err := s.repo.Get(ctx, uid)
	if err != nil {
		return Manager{}, err
	}

	if changes.TeamName != nil {
		m.TeamName = strings.TrimSpace(*changes.TeamName)
	}
	if changes.EmployeeName != nil {
		m.EmployeeName = strings.TrimSpace(*changes.EmployeeName)
	}
	if changes.Department != nil {
		m.Department = strings.TrimSpace(*changes.Department)
	}
	if changes.IsActive != nil {
		m.IsActive = *changes.IsActive
	}
	if changes.EmployeeUid != nil && strings.TrimSpace(*changes.EmployeeUid) != m.EmployeeUid {
		if err := s.linkEmployee(ctx, &m, *changes.EmployeeUid); err != nil {
			return Manager{}, err
		}
	}
	if changes.Password != nil {
		if m.PasswordHash, err = s.hashPassword(*changes.Password); err != nil {
			return Manager{}, err
		}
	}

	var previous ledger.View
	if changes.BudgetAllocated != nil {
		if previous, err = s.ledgers.Fetch(ctx, uid); err != nil {
			return Manager{}, err
		}
		if _, err := s.ledgers.SetAllocation(ctx, uid, *changes.BudgetAllocated); err != nil {
			return Manager{}, err
		}
	}

	updated, err := s.repo.Update(ctx, m)
	if err != nil {
		if changes.BudgetAllocated != nil {
			s.restoreAllocation(ctx, uid, previous.BudgetAllocated)
		}
		return Manager{}, err
	}
	log.Infof("team manager %s updated", uid)
	return updated, nil
}

func (s *ServiceImpl) restoreAllocation(ctx context.Context, uid string, allocated decimal.Decimal) {
	if _, err := s.ledgers.SetAllocation(ctx, uid, allocated); err != nil {
		log.Errorf("failed to restore budget %s of manager %s: %v", allocated.StringFixed(2), uid, err)
		return
	}
	log.Warnf("budget of manager %s restored to %s", uid, allocated.StringFixed(2))
}

// linkEmployee points m at an active employee not linked to another manager. Names the manager
// lacks are taken from the employee record.
func (s *ServiceImpl) linkEmployee(ctx context.Context, m *Manager, employeeUid string) error {
	employeeUid = strings.TrimSpace(employeeUid)
	if employeeUid == "" {
		m.EmployeeUid = ""
		return nil
	}
	e, err := s.employees.Get(ctx, employeeUid)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return &ValidationError{Field: "employeeUid", Reason: "does not match an active employee"}
	}
	if err != nil {
		return fmt.Errorf("failed to get employee: %w", err)
	}

	linked, err := s.repo.GetByEmployee(ctx, employeeUid)
	if err == nil && linked.Uid != m.Uid {
		return ErrEmployeeLinked
	}
	if err != nil && !errors.Is(err, ErrManagerNotFound) {
		return fmt.Errorf("failed to check employee link: %w", err)
	}

	m.EmployeeUid = e.Uid
	if m.EmployeeName == "" {
		m.EmployeeName = e.Name
	}
	if m.Department == "" {
		m.Department = e.Department
	}
	return nil
}

func (s *ServiceImpl) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *ServiceImpl) Delete(ctx context.Context, uid string) error {
	if _, err := s.repo.Get(ctx, uid); err != nil {
		return err
	}
	if err := s.ledgers.CloseLedger(ctx, uid); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, uid); err != nil {
		return err
	}
	log.Infof("team manager %s deleted", uid)
	return nil
}

func (s *ServiceImpl) Budget(ctx context.Context, uid string) (ledger.View, error) {
	return s.ledgers.Fetch(ctx, uid)
}

// Authenticate does not tell an unknown username from a wrong password. The account state is only
// reported once the password matched.
func (s *ServiceImpl) Authenticate(ctx context.Context, username string, password string) (Manager, error) {
	if len(password) > maxPasswordLength {
		return Manager{}, ErrInvalidCredentials
	}
	m, err := s.repo.GetByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, ErrManagerNotFound) {
		return Manager{}, ErrInvalidCredentials
	}
	if err != nil {
		return Manager{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Infof("failed login attempt for %s", m.Username)
			return Manager{}, ErrInvalidCredentials
		}
		return Manager{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !m.IsActive {
		return Manager{}, ErrManagerInactive
	}
	return m, nil
}
