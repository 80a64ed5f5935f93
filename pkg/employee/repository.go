package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, e Employee) (Employee, error)
	Get(ctx context.Context, uid string) (Employee, error)
	GetByCode(ctx context.Context, code string) (Employee, error)
	GetByEmail(ctx context.Context, email string) (Employee, error)
	// List returns active employees, newest first.
	List(ctx context.Context) ([]Employee, error)
	// Search returns active employees whose name, code, email, department or role contains query.
	Search(ctx context.Context, query string) ([]Employee, error)
	Update(ctx context.Context, e Employee) (Employee, error)
	Delete(ctx context.Context, uid string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const employeeColumns = `id, uid, employee_code, name, email, mobile_no, date_of_birth, date_of_joining, department,
	company, status, role, job_title, work_location, reporting_manager, employment_type, gender, nationality,
	salary, notes, is_active, created, updated`

const selectEmployee = `SELECT ` + employeeColumns + ` FROM employee`

func (r *RepositoryImpl) Create(ctx context.Context, e Employee) (Employee, error) {
	query := `INSERT INTO employee (uid, employee_code, name, email, mobile_no, date_of_birth, date_of_joining,
				department, company, status, role, job_title, work_location, reporting_manager, employment_type, gender,
				nationality, salary, notes, is_active, created, updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
				RETURNING id`
	err := r.db.QueryRow(ctx, query, e.Uid, e.EmployeeCode, e.Name, nullable(e.Email), e.MobileNo, e.DateOfBirth,
		e.DateOfJoining, e.Department, e.Company, e.Status, e.Role, e.JobTitle, e.WorkLocation, e.ReportingManager,
		e.EmploymentType, e.Gender, e.Nationality, e.Salary, e.Notes, e.IsActive, e.CreatedAt, e.UpdatedAt).Scan(&e.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return Employee{}, ErrDuplicateEmployee
		}
		log.Errorf("failed to create employee: %v", err)
		return Employee{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, uid string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE uid = $1`, uid)
}

func (r *RepositoryImpl) GetByCode(ctx context.Context, code string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE employee_code = $1`, code)
}

func (r *RepositoryImpl) GetByEmail(ctx context.Context, email string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE email = $1`, email)
}

func (r *RepositoryImpl) getOne(ctx context.Context, query string, arg string) (Employee, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		log.Errorf("failed to get employee: %v", err)
		return Employee{}, err
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEmployee)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	if err != nil {
		log.Errorf("failed to scan employee: %v", err)
		return Employee{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) List(ctx context.Context) ([]Employee, error) {
	return r.list(ctx, selectEmployee+` WHERE is_active ORDER BY created DESC, id DESC`)
}

func (r *RepositoryImpl) Search(ctx context.Context, query string) ([]Employee, error) {
	pattern := likePattern(query)
	return r.list(ctx, selectEmployee+` WHERE is_active AND (name ILIKE $1 ESCAPE '\' OR employee_code ILIKE $1 ESCAPE '\'
		OR email ILIKE $1 ESCAPE '\' OR department ILIKE $1 ESCAPE '\' OR role ILIKE $1 ESCAPE '\')
		ORDER BY created DESC, id DESC`, pattern)
}

func (r *RepositoryImpl) list(ctx context.Context, query string, args ...any) ([]Employee, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		log.Errorf("failed to list employees: %v", err)
		return nil, err
	}
	employees, err := pgx.CollectRows(rows, scanEmployee)
	if err != nil {
		log.Errorf("failed to scan employees: %v", err)
		return nil, err
	}
	return employees, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, e Employee) (Employee, error) {
	query := `UPDATE employee SET employee_code = $1, name = $2, email = $3, mobile_no = $4, date_of_birth = $5,
				date_of_joining = $6, department = $7, company = $8, status = $9, role = $10, job_title = $11,
				work_location = $12, reporting_manager = $13, employment_type = $14, gender = $15, nationality = $16,
				salary = $17, notes = $18, is_active = $19, updated = $20
				WHERE uid = $21`
	result, err := r.db.Exec(ctx, query, e.EmployeeCode, e.Name, nullable(e.Email), e.MobileNo, e.DateOfBirth,
		e.DateOfJoining, e.Department, e.Company, e.Status, e.Role, e.JobTitle, e.WorkLocation, e.ReportingManager,
		e.EmploymentType, e.Gender, e.Nationality, e.Salary, e.Notes, e.IsActive, e.UpdatedAt, e.Uid)
	if err != nil {
		if isUniqueViolation(err) {
			return Employee{}, ErrDuplicateEmployee
		}
		log.Errorf("failed to update employee: %v", err)
		return Employee{}, err
	}
	if result.RowsAffected() == 0 {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, uid string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM employee WHERE uid = $1`, uid)
	if err != nil {
		log.Errorf("failed to delete employee: %v", err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.CollectableRow) (Employee, error) {
	var e Employee
	var email *string
	err := row.Scan(&e.Id, &e.Uid, &e.EmployeeCode, &e.Name, &email, &e.MobileNo, &e.DateOfBirth, &e.DateOfJoining,
		&e.Department, &e.Company, &e.Status, &e.Role, &e.JobTitle, &e.WorkLocation, &e.ReportingManager,
		&e.EmploymentType, &e.Gender, &e.Nationality, &e.Salary, &e.Notes, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Employee{}, fmt.Errorf("error scanning row: %w", err)
	}
	if email != nil {
		e.Email = *email
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullable stores an empty optional email as NULL, so several employees may go without one.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
