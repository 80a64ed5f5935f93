package manager

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrManagerNotFound = errors.New("team manager not found")
var ErrUsernameTaken = errors.New("username is already in use")
var ErrEmployeeLinked = errors.New("employee is already linked to another team manager")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrManagerInactive = errors.New("team manager account is deactivated")

const (
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes
	maxPasswordLength = 72

	maxUsernameLength = 100
	maxNameLength     = 200
)

type Manager struct {
	Id           int
	Uid          string
	Username     string
	TeamName     string
	EmployeeName string
	Department   string
	// EmployeeUid links the manager to its employee record, empty when unlinked.
	EmployeeUid  string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// NewManager is the input of Create. The ledger of the manager is opened with BudgetAllocated.
type NewManager struct {
	Username        string
	Password        string
	TeamName        string
	EmployeeName    string
	Department      string
	EmployeeUid     string
	BudgetAllocated decimal.Decimal
}

// Changes holds the fields of an update. Nil fields are left untouched, an empty EmployeeUid unlinks
// the employee.
type Changes struct {
	TeamName        *string
	EmployeeName    *string
	Department      *string
	EmployeeUid     *string
	Password        *string
	IsActive        *bool
	BudgetAllocated *decimal.Decimal
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (n NewManager) Validate() error {
	if strings.TrimSpace(n.TeamName) == "" {
		return &ValidationError{Field: "teamName", Reason: "is required"}
	}
	if normalizeUsername(n.Username) == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	if err := validateLength("username", n.Username, maxUsernameLength); err != nil {
		return err
	}
	if err := validateNames(&n.TeamName, &n.EmployeeName, &n.Department); err != nil {
		return err
	}
	return validatePassword(n.Password)
}

func (c Changes) Validate() error {
	if c.TeamName != nil && strings.TrimSpace(*c.TeamName) == "" {
		return &ValidationError{Field: "teamName", Reason: "must not be empty"}
	}
	if err := validateNames(c.TeamName, c.EmployeeName, c.Department); err != nil {
		return err
	}
	if c.Password != nil {
		return validatePassword(*c.Password)
	}
	return nil
}

func validateNames(teamName, employeeName, department *string) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"teamName", teamName},
		{"employeeName", employeeName},
		{"department", department},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := validateLength(f.name, *f.value, maxNameLength); err != nil {
			return err
		}
	}
	return nil
}

// validateLength counts characters of the trimmed value, as stored.
func validateLength(field, value string, max int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	if len(password) > maxPasswordLength {
		return &ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}
	return nil
}
