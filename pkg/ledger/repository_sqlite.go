package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SQLiteRepository stores ledgers in SQLite. Amounts are kept as fixed two-decimal text so no
// floating point conversion happens on the way in or out.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerUid string) (Ledger, error) {
	return r.load(ctx, r.db, ownerUid)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Ledger, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT owner_uid FROM ledger ORDER BY created, owner_uid`)
	if err != nil {
		err := fmt.Errorf("could not query ledgers: %w", err)
		log.Error(err)
		return nil, err
	}
	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		owners = append(owners, owner)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	ledgers := make([]Ledger, 0, len(owners))
	for _, owner := range owners {
		l, err := r.load(ctx, r.db, owner)
		if errors.Is(err, ErrLedgerNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, ledger Ledger) error {
	query := `INSERT INTO ledger (owner_uid, budget_allocated, version, created) VALUES (?, ?, 1, ?)
				ON CONFLICT (owner_uid) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, ledger.OwnerUid, ledger.BudgetAllocated.StringFixed(2), time.Now().UTC())
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLedgerExists
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerUid string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ledger WHERE owner_uid = ?`, ownerUid)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, ownerUid string, fn func(l *Ledger) error) (Ledger, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Ledger{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	current, err := r.load(ctx, tx, ownerUid)
	if err != nil {
		return Ledger{}, err
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return Ledger{}, err
	}

	if err := r.persist(ctx, tx, current, next); err != nil {
		return Ledger{}, err
	}

	if err := tx.Commit(); err != nil {
		return Ledger{}, fmt.Errorf("commit transaction: %w", err)
	}
	next.Version = current.Version + 1
	return next, nil
}

func (r *SQLiteRepository) load(ctx context.Context, q sqlQuerier, ownerUid string) (Ledger, error) {
	var allocated string
	l := Ledger{OwnerUid: ownerUid}
	err := q.QueryRowContext(ctx, `SELECT budget_allocated, version FROM ledger WHERE owner_uid = ?`, ownerUid).
		Scan(&allocated, &l.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Ledger{}, ErrLedgerNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query ledger: %w", err)
		log.Error(err)
		return Ledger{}, err
	}
	l.BudgetAllocated, err = decimal.NewFromString(allocated)
	if err != nil {
		return Ledger{}, fmt.Errorf("invalid stored allocation %q: %w", allocated, err)
	}

	rows, err := q.QueryContext(ctx, `SELECT id, description, amount, category, spent_at, notes, position, created, updated
			FROM ledger_expense WHERE owner_uid = ? ORDER BY position`, ownerUid)
	if err != nil {
		err := fmt.Errorf("could not query expenses: %w", err)
		log.Error(err)
		return Ledger{}, err
	}
	defer rows.Close()

	l.Expenses = []Expense{}
	for rows.Next() {
		var e Expense
		var amount, category string
		if err := rows.Scan(&e.Id, &e.Description, &amount, &category, &e.Date, &e.Notes, &e.Position,
			&e.Created, &e.Updated); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return Ledger{}, err
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return Ledger{}, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		e.Category = Category(category)
		e.Date = e.Date.UTC()
		e.Created = e.Created.UTC()
		e.Updated = e.Updated.UTC()
		l.Expenses = append(l.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return Ledger{}, fmt.Errorf("error iterating over rows: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) persist(ctx context.Context, tx *sql.Tx, current, next Ledger) error {
	changes := diffExpenses(current.Expenses, next.Expenses)

	for _, id := range changes.deleted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_expense WHERE id = ? AND owner_uid = ?`, id, next.OwnerUid); err != nil {
			return fmt.Errorf("could not delete expense %s: %w", id, err)
		}
	}
	for _, e := range changes.updated {
		query := `UPDATE ledger_expense SET description = ?, amount = ?, category = ?, spent_at = ?, notes = ?, updated = ?
					WHERE id = ? AND owner_uid = ?`
		if _, err := tx.ExecContext(ctx, query, e.Description, e.Amount.StringFixed(2), string(e.Category), e.Date,
			e.Notes, e.Updated, e.Id, next.OwnerUid); err != nil {
			return fmt.Errorf("could not update expense %s: %w", e.Id, err)
		}
	}
	for _, e := range changes.inserted {
		query := `INSERT INTO ledger_expense (id, owner_uid, position, description, amount, category, spent_at, notes,
					created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, e.Id, next.OwnerUid, e.Position, e.Description, e.Amount.StringFixed(2),
			string(e.Category), e.Date, e.Notes, e.Created, e.Updated); err != nil {
			return fmt.Errorf("could not insert expense %s: %w", e.Id, err)
		}
	}

	result, err := tx.ExecContext(ctx, `UPDATE ledger SET budget_allocated = ?, version = version + 1
			WHERE owner_uid = ? AND version = ?`, next.BudgetAllocated.StringFixed(2), next.OwnerUid, current.Version)
	if err != nil {
		return fmt.Errorf("could not update ledger: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
