package manager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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

func (r *SQLiteRepository) Create(ctx context.Context, m Manager) (Manager, error) {
	m.CreatedAt = time.Now().UTC()
	query := `INSERT INTO team_manager (uid, username, team_name, employee_name, department, employee_uid, password_hash,
				is_active, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, m.Uid, m.Username, m.TeamName, m.EmployeeName, m.Department,
		nullable(m.EmployeeUid), m.PasswordHash, m.IsActive, m.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			if isEmployeeLinkViolation(err) {
				return Manager{}, ErrEmployeeLinked
			}
			return Manager{}, ErrUsernameTaken
		}
		log.Errorf("failed to create team manager: %v", err)
		return Manager{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Manager{}, err
	}
	m.Id = int(id)
	return m, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, uid string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE uid = ?`, uid)
}

func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE username = ?`, username)
}

func (r *SQLiteRepository) GetByEmployee(ctx context.Context, employeeUid string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE employee_uid = ?`, employeeUid)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (Manager, error) {
	m, err := scanSQLiteManager(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Manager{}, ErrManagerNotFound
	}
	if err != nil {
		log.Errorf("failed to get team manager: %v", err)
		return Manager{}, err
	}
	return m, nil
}

func (r *SQLiteRepository) List(ctx context.Context, includeInactive bool) ([]Manager, error) {
	query := selectManager
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		log.Errorf("failed to list team managers: %v", err)
		return nil, err
	}
	defer rows.Close()

	managers := make([]Manager, 0, 10)
	for rows.Next() {
		m, err := scanSQLiteManager(rows)
		if err != nil {
			log.Errorf("failed to scan team manager: %v", err)
			return nil, err
		}
		managers = append(managers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return managers, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, m Manager) (Manager, error) {
	query := `UPDATE team_manager SET team_name = ?, employee_name = ?, department = ?, employee_uid = ?,
				password_hash = ?, is_active = ? WHERE uid = ?`
	result, err := r.db.ExecContext(ctx, query, m.TeamName, m.EmployeeName, m.Department, nullable(m.EmployeeUid),
		m.PasswordHash, m.IsActive, m.Uid)
	if err != nil {
		if isConstraintViolation(err) && isEmployeeLinkViolation(err) {
			return Manager{}, ErrEmployeeLinked
		}
		log.Errorf("failed to update team manager: %v", err)
		return Manager{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Manager{}, err
	}
	if affected == 0 {
		return Manager{}, ErrManagerNotFound
	}
	return m, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, uid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_manager WHERE uid = ?`, uid)
	if err != nil {
		log.Errorf("failed to delete team manager: %v", err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrManagerNotFound
	}
	return nil
}

// isConstraintViolation checks the primary result code, the driver may report the extended
// SQLITE_CONSTRAINT_UNIQUE.
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// isEmployeeLinkViolation relies on SQLite naming the violated column in the message.
func isEmployeeLinkViolation(err error) bool {
	return strings.Contains(err.Error(), "team_manager.employee_uid")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteManager(row rowScanner) (Manager, error) {
	var m Manager
	var employeeUid sql.NullString
	err := row.Scan(&m.Id, &m.Uid, &m.Username, &m.TeamName, &m.EmployeeName, &m.Department, &employeeUid,
		&m.PasswordHash, &m.IsActive, &m.CreatedAt)
	if err != nil {
		return Manager{}, err
	}
	m.EmployeeUid = employeeUid.String
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}
