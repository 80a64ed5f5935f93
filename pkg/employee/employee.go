package employee

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrEmployeeNotFound = errors.New("employee not found")
var ErrDuplicateEmployee = errors.New("employee already exists")

const TeamManagerRole = "Team Manager"

var Companies = []string{"RFE", "Royal Tree", "Royal Falcon"}
var Statuses = []string{"Tourist", "Resident"}
var EmploymentTypes = []string{"Full-Time", "Part-Time", "Contract", "Intern"}

// maxSalary is the largest value the NUMERIC(14,2) column holds.
var maxSalary = decimal.RequireFromString("999999999999.99")

// Details are the editable fields of an employee record. Dates are kept as YYYY-MM-DD.
type Details struct {
	EmployeeCode     string
	Name             string
	Email            string
	MobileNo         string
	DateOfBirth      string
	DateOfJoining    string
	Department       string
	Company          string
	Status           string
	Role             string
	JobTitle         string
	WorkLocation     string
	ReportingManager string
	EmploymentType   string
	Gender           string
	Nationality      string
	Salary           decimal.Decimal
	Notes            string
}

type Employee struct {
	Id  int
	Uid string
	Details
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// DuplicateError reports the unique field another employee already uses.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "Employee with this " + e.Field + " already exists"
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateEmployee
}

// Normalize trims every text field and lower-cases the email.
func (d Details) Normalize() Details {
	n := d
	for _, field := range n.textFields() {
		*field.value = strings.TrimSpace(*field.value)
	}
	n.Email = strings.ToLower(n.Email)
	return n
}

type textField struct {
	name      string
	value     *string
	maxLength int
	required  bool
}

func (d *Details) textFields() []textField {
	return []textField{
		{"employeeCode", &d.EmployeeCode, 50, true},
		{"name", &d.Name, 200, true},
		{"email", &d.Email, 254, false},
		{"mobileNo", &d.MobileNo, 30, true},
		{"dateOfBirth", &d.DateOfBirth, 10, false},
		{"dateOfJoining", &d.DateOfJoining, 10, true},
		{"department", &d.Department, 200, true},
		{"company", &d.Company, 20, true},
		{"employeeStatus", &d.Status, 20, true},
		{"role", &d.Role, 100, true},
		{"jobTitle", &d.JobTitle, 200, false},
		{"workLocation", &d.WorkLocation, 200, false},
		{"reportingManager", &d.ReportingManager, 200, false},
		{"employmentType", &d.EmploymentType, 20, false},
		{"gender", &d.Gender, 20, false},
		{"nationality", &d.Nationality, 100, false},
		{"notes", &d.Notes, 0, false},
	}
}

// Validate checks normalized details.
func (d Details) Validate() error {
	for _, field := range d.textFields() {
		value := *field.value
		if field.required && value == "" {
			return &ValidationError{Field: field.name, Reason: "is required"}
		}
		if field.maxLength > 0 && utf8.RuneCountInString(value) > field.maxLength {
			return &ValidationError{Field: field.name, Reason: fmt.Sprintf("must be at most %d characters", field.maxLength)}
		}
	}
	if d.Email != "" && !strings.Contains(d.Email, "@") {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	if err := validateDate("dateOfJoining", d.DateOfJoining); err != nil {
		return err
	}
	if d.DateOfBirth != "" {
		if err := validateDate("dateOfBirth", d.DateOfBirth); err != nil {
			return err
		}
	}
	if err := validateOneOf("company", d.Company, Companies); err != nil {
		return err
	}
	if err := validateOneOf("employeeStatus", d.Status, Statuses); err != nil {
		return err
	}
	if d.EmploymentType != "" {
		if err := validateOneOf("employmentType", d.EmploymentType, EmploymentTypes); err != nil {
			return err
		}
	}
	if d.Salary.IsNegative() {
		return &ValidationError{Field: "salary", Reason: "must not be negative"}
	}
	if !d.Salary.Equal(d.Salary.Round(2)) {
		return &ValidationError{Field: "salary", Reason: "must have at most 2 decimal places"}
	}
	if d.Salary.GreaterThan(maxSalary) {
		return &ValidationError{Field: "salary", Reason: "is too large"}
	}
	return nil
}

func validateDate(field, value string) error {
	if _, err := time.Parse(time.DateOnly, value); err != nil {
		return &ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return nil
}

func validateOneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if a == value {
			return nil
		}
	}
	return &ValidationError{Field: field, Reason: "must be one of " + strings.Join(allowed, ", ")}
}

// IsTeamManager reports whether the employee holds the team manager role.
func (e Employee) IsTeamManager() bool {
	return strings.EqualFold(e.Role, TeamManagerRole)
}

// matches reports whether query occurs, ignoring case, in the searchable fields.
func (e Employee) matches(query string) bool {
	query = strings.ToLower(query)
	for _, value := range []string{e.Name, e.EmployeeCode, e.Email, e.Department, e.Role} {
		if strings.Contains(strings.ToLower(value), query) {
			return true
		}
	}
	return false
}
