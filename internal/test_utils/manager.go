package test_utils

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertManagerRow stores a bare team manager so ledger rows referencing it can be created.
func InsertManagerRow(t *testing.T, db *sql.DB, uid string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO team_manager (uid, username, team_name, password_hash, is_active, created)
		VALUES (?, ?, ?, 'x', 1, ?)`, uid, "user-"+uid, "Team "+uid, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to insert manager %s: %v", uid, err)
	}
}

// InsertManagerRowPg is InsertManagerRow for Postgres.
func InsertManagerRowPg(t *testing.T, db *pgxpool.Pool, uid string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `INSERT INTO team_manager (uid, username, team_name, password_hash)
		VALUES ($1, $2, $3, 'x')`, uid, "user-"+uid, "Team "+uid)
	if err != nil {
		t.Fatalf("Failed to insert manager %s: %v", uid, err)
	}
}

// InsertEmployeeRow stores a minimal employee a team manager can be linked to.
func InsertEmployeeRow(t *testing.T, db *sql.DB, uid string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO employee (uid, employee_code, name, mobile_no, date_of_joining, department, company,
		status, role, salary, created, updated) VALUES (?, ?, ?, '0', '2024-01-01', 'Operations', 'RFE', 'Resident',
		'Team Manager', '0.00', ?, ?)`, uid, "code-"+uid, "Employee "+uid, now, now)
	if err != nil {
		t.Fatalf("Failed to insert employee %s: %v", uid, err)
	}
}

// InsertEmployeeRowPg is InsertEmployeeRow for Postgres.
func InsertEmployeeRowPg(t *testing.T, db *pgxpool.Pool, uid string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `INSERT INTO employee (uid, employee_code, name, mobile_no, date_of_joining,
		department, company, status, role, salary, created, updated) VALUES ($1, $2, $3, '0', '2024-01-01', 'Operations',
		'RFE', 'Resident', 'Team Manager', 0, now(), now())`, uid, "code-"+uid, "Employee "+uid)
	if err != nil {
		t.Fatalf("Failed to insert employee %s: %v", uid, err)
	}
}
