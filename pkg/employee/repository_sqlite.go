package employee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, e Employee) (Employee, error) {
	query := `INSERT INTO employee (uid, employee_code, name, email, mobile_no, date_of_birth, date_of_joining,
				department, company, status, role, job_title, work_location, reporting_manager, employment_type, gender,
				nationality, salary, notes, is_active, created, updated)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, e.Uid, e.EmployeeCode, e.Name, nullable(e.Email), e.MobileNo,
		e.DateOfBirth, e.DateOfJoining, e.Department, e.Company, e.Status, e.Role, e.JobTitle, e.WorkLocation,
		e.ReportingManager, e.EmploymentType, e.Gender, e.Nationality, e.Salary.StringFixed(2), e.Notes, e.IsActive,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return Employee{}, ErrDuplicateEmployee
		}
		log.Errorf("failed to create employee: %v", err)
		return Employee{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Employee{}, err
	}
	e.Id = int(id)
	return e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, uid string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE uid = ?`, uid)
}

func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE employee_code = ?`, code)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (Employee, error) {
	return r.getOne(ctx, selectEmployee+` WHERE email = ?`, email)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (Employee, error) {
	e, err := scanSQLiteEmployee(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	if err != nil {
		log.Errorf("failed to get employee: %v", err)
		return Employee{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Employee, error) {
	return r.list(ctx, selectEmployee+` WHERE is_active ORDER BY created DESC, id DESC`)
}

func (r *SQLiteRepository) Search(ctx context.Context, query string) ([]Employee, error) {
	pattern := likePattern(query)
	return r.list(ctx, selectEmployee+` WHERE is_active AND (name LIKE ? ESCAPE '\' OR employee_code LIKE ? ESCAPE '\'
		OR email LIKE ? ESCAPE '\' OR department LIKE ? ESCAPE '\' OR role LIKE ? ESCAPE '\')
		ORDER BY created DESC, id DESC`, pattern, pattern, pattern, pattern, pattern)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]Employee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Errorf("failed to list employees: %v", err)
		return nil, err
	}
	defer rows.Close()

	employees := make([]Employee, 0, 10)
	for rows.Next() {
		e, err := scanSQLiteEmployee(rows)
		if err != nil {
			log.Errorf("failed to scan employee: %v", err)
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return employees, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e Employee) (Employee, error) {
	query := `UPDATE employee SET employee_code = ?, name = ?, email = ?, mobile_no = ?, date_of_birth = ?,
				date_of_joining = ?, department = ?, company = ?, status = ?, role = ?, job_title = ?, work_location = ?,
				reporting_manager = ?, employment_type = ?, gender = ?, nationality = ?, salary = ?, notes = ?,
				is_active = ?, updated = ?
				WHERE uid = ?`
	result, err := r.db.ExecContext(ctx, query, e.EmployeeCode, e.Name, nullable(e.Email), e.MobileNo, e.DateOfBirth,
		e.DateOfJoining, e.Department, e.Company, e.Status, e.Role, e.JobTitle, e.WorkLocation, e.ReportingManager,
		e.EmploymentType, e.Gender, e.Nationality, e.Salary.StringFixed(2), e.Notes, e.IsActive, e.UpdatedAt, e.Uid)
	if err != nil {
		if isConstraintViolation(err) {
			return Employee{}, ErrDuplicateEmployee
		}
		log.Errorf("failed to update employee: %v", err)
		return Employee{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Employee{}, err
	}
	if affected == 0 {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, uid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM employee WHERE uid = ?`, uid)
	if err != nil {
		log.Errorf("failed to delete employee: %v", err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEmployee(row rowScanner) (Employee, error) {
	var e Employee
	var email sql.NullString
	var salary string
	err := row.Scan(&e.Id, &e.Uid, &e.EmployeeCode, &e.Name, &email, &e.MobileNo, &e.DateOfBirth, &e.DateOfJoining,
		&e.Department, &e.Company, &e.Status, &e.Role, &e.JobTitle, &e.WorkLocation, &e.ReportingManager,
		&e.EmploymentType, &e.Gender, &e.Nationality, &salary, &e.Notes, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Employee{}, err
	}
	e.Email = email.String
	e.Salary, err = decimal.NewFromString(salary)
	if err != nil {
		return Employee{}, fmt.Errorf("invalid salary %q: %w", salary, err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
