package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

const employeeLinkConstraint = "team_manager_employee_uid_key"

type Repository interface {
	Create(ctx context.Context, m Manager) (Manager, error)
	Get(ctx context.Context, uid string) (Manager, error)
	GetByUsername(ctx context.Context, username string) (Manager, error)
	// GetByEmployee returns the manager linked to the employee.
	GetByEmployee(ctx context.Context, employeeUid string) (Manager, error)
	List(ctx context.Context, includeInactive bool) ([]Manager, error)
	Update(ctx context.Context, m Manager) (Manager, error)
	Delete(ctx context.Context, uid string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectManager = `SELECT id, uid, username, team_name, employee_name, department, employee_uid, password_hash,
	is_active, created FROM team_manager`

func (r *RepositoryImpl) Create(ctx context.Context, m Manager) (Manager, error) {
	query := `INSERT INTO team_manager (uid, username, team_name, employee_name, department, employee_uid, password_hash,
				is_active) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created`
	err := r.db.QueryRow(ctx, query, m.Uid, m.Username, m.TeamName, m.EmployeeName, m.Department,
		nullable(m.EmployeeUid), m.PasswordHash, m.IsActive).Scan(&m.Id, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == employeeLinkConstraint {
				return Manager{}, ErrEmployeeLinked
			}
			return Manager{}, ErrUsernameTaken
		}
		log.Errorf("failed to create team manager: %v", err)
		return Manager{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, uid string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE uid = $1`, uid)
}

func (r *RepositoryImpl) GetByUsername(ctx context.Context, username string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE username = $1`, username)
}

func (r *RepositoryImpl) GetByEmployee(ctx context.Context, employeeUid string) (Manager, error) {
	return r.getOne(ctx, selectManager+` WHERE employee_uid = $1`, employeeUid)
}

func (r *RepositoryImpl) getOne(ctx context.Context, query string, arg string) (Manager, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		log.Errorf("failed to get team manager: %v", err)
		return Manager{}, err
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanManager)
	if errors.Is(err, pgx.ErrNoRows) {
		return Manager{}, ErrManagerNotFound
	}
	if err != nil {
		log.Errorf("failed to scan team manager: %v", err)
		return Manager{}, err
	}
	return m, nil
}

func (r *RepositoryImpl) List(ctx context.Context, includeInactive bool) ([]Manager, error) {
	query := selectManager
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created DESC, id DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Errorf("failed to list team managers: %v", err)
		return nil, err
	}
	managers, err := pgx.CollectRows(rows, scanManager)
	if err != nil {
		log.Errorf("failed to scan team managers: %v", err)
		return nil, err
	}
	return managers, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, m Manager) (Manager, error) {
	query := `UPDATE team_manager SET team_name = $1, employee_name = $2, department = $3, employee_uid = $4,
				password_hash = $5, is_active = $6 WHERE uid = $7`
	result, err := r.db.Exec(ctx, query, m.TeamName, m.EmployeeName, m.Department, nullable(m.EmployeeUid),
		m.PasswordHash, m.IsActive, m.Uid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == employeeLinkConstraint {
			return Manager{}, ErrEmployeeLinked
		}
		log.Errorf("failed to update team manager: %v", err)
		return Manager{}, err
	}
	if result.RowsAffected() == 0 {
		return Manager{}, ErrManagerNotFound
	}
	return m, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, uid string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM team_manager WHERE uid = $1`, uid)
	if err != nil {
		log.Errorf("failed to delete team manager: %v", err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrManagerNotFound
	}
	return nil
}

func scanManager(row pgx.CollectableRow) (Manager, error) {
	var m Manager
	var employeeUid *string
	err := row.Scan(&m.Id, &m.Uid, &m.Username, &m.TeamName, &m.EmployeeName, &m.Department, &employeeUid,
		&m.PasswordHash, &m.IsActive, &m.CreatedAt)
	if err != nil {
		return Manager{}, fmt.Errorf("error scanning row: %w", err)
	}
	if employeeUid != nil {
		m.EmployeeUid = *employeeUid
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
