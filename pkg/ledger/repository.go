package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrConcurrentUpdate = errors.New("ledger was modified concurrently")

type Repository interface {
	Get(ctx context.Context, ownerUid string) (Ledger, error)
	List(ctx context.Context) ([]Ledger, error)
	Create(ctx context.Context, ledger Ledger) error
	Delete(ctx context.Context, ownerUid string) (bool, error)
	// Update loads the ledger under an exclusive lock, passes a copy to fn and persists the result in a
	// single transaction. When fn returns an error nothing is written and that error is returned as is.
	Update(ctx context.Context, ownerUid string, fn func(l *Ledger) error) (Ledger, error)
}

type querier interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Get(ctx context.Context, ownerUid string) (Ledger, error) {
	return r.load(ctx, r.db, ownerUid, false)
}

func (r *RepositoryImpl) List(ctx context.Context) ([]Ledger, error) {
	rows, err := r.db.Query(ctx, `SELECT owner_uid FROM ledger ORDER BY created, owner_uid`)
	if err != nil {
		err := fmt.Errorf("could not query ledgers: %w", err)
		log.Error(err)
		return nil, err
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return nil, err
	}

	ledgers := make([]Ledger, 0, len(owners))
	for _, owner := range owners {
		l, err := r.load(ctx, r.db, owner, false)
		if errors.Is(err, ErrLedgerNotFound) {
			// closed between the two queries
			continue
		}
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, ledger Ledger) error {
	query := `INSERT INTO ledger (owner_uid, budget_allocated, version) VALUES ($1, $2, 1)
				ON CONFLICT (owner_uid) DO NOTHING`
	result, err := r.db.Exec(ctx, query, ledger.OwnerUid, ledger.BudgetAllocated)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrLedgerExists
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, ownerUid string) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM ledger WHERE owner_uid = $1`, ownerUid)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, ownerUid string, fn func(l *Ledger) error) (Ledger, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	current, err := r.load(ctx, tx, ownerUid, true)
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

	if err := tx.Commit(ctx); err != nil {
		return Ledger{}, fmt.Errorf("commit transaction: %w", err)
	}
	next.Version = current.Version + 1
	return next, nil
}

func (r *RepositoryImpl) load(ctx context.Context, q querier, ownerUid string, forUpdate bool) (Ledger, error) {
	query := `SELECT budget_allocated, version FROM ledger WHERE owner_uid = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	l := Ledger{OwnerUid: ownerUid}
	err := q.QueryRow(ctx, query, ownerUid).Scan(&l.BudgetAllocated, &l.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ledger{}, ErrLedgerNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not query ledger: %w", err)
		log.Error(err)
		return Ledger{}, err
	}

	rows, err := q.Query(ctx, `SELECT id, description, amount, category, spent_at, notes, position, created, updated
			FROM ledger_expense WHERE owner_uid = $1 ORDER BY position`, ownerUid)
	if err != nil {
		err := fmt.Errorf("could not query expenses: %w", err)
		log.Error(err)
		return Ledger{}, err
	}
	defer rows.Close()

	l.Expenses = []Expense{}
	for rows.Next() {
		var e Expense
		var category string
		if err := rows.Scan(&e.Id, &e.Description, &e.Amount, &category, &e.Date, &e.Notes, &e.Position,
			&e.Created, &e.Updated); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return Ledger{}, err
		}
		e.Category = Category(category)
		e.Date = e.Date.UTC()
		e.Created = e.Created.UTC()
		e.Updated = e.Updated.UTC()
		l.Expenses = append(l.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return Ledger{}, err
	}
	return l, nil
}

func (r *RepositoryImpl) persist(ctx context.Context, tx pgx.Tx, current, next Ledger) error {
	changes := diffExpenses(current.Expenses, next.Expenses)

	for _, id := range changes.deleted {
		if _, err := tx.Exec(ctx, `DELETE FROM ledger_expense WHERE id = $1 AND owner_uid = $2`, id, next.OwnerUid); err != nil {
			return fmt.Errorf("could not delete expense %s: %w", id, err)
		}
	}
	for _, e := range changes.updated {
		query := `UPDATE ledger_expense SET description = $1, amount = $2, category = $3, spent_at = $4, notes = $5,
					updated = $6 WHERE id = $7 AND owner_uid = $8`
		if _, err := tx.Exec(ctx, query, e.Description, e.Amount, string(e.Category), e.Date, e.Notes, e.Updated,
			e.Id, next.OwnerUid); err != nil {
			return fmt.Errorf("could not update expense %s: %w", e.Id, err)
		}
	}
	for _, e := range changes.inserted {
		query := `INSERT INTO ledger_expense (id, owner_uid, position, description, amount, category, spent_at, notes,
					created, updated) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.Exec(ctx, query, e.Id, next.OwnerUid, e.Position, e.Description, e.Amount, string(e.Category),
			e.Date, e.Notes, e.Created, e.Updated); err != nil {
			return fmt.Errorf("could not insert expense %s: %w", e.Id, err)
		}
	}

	result, err := tx.Exec(ctx, `UPDATE ledger SET budget_allocated = $1, version = version + 1
			WHERE owner_uid = $2 AND version = $3`, next.BudgetAllocated, next.OwnerUid, current.Version)
	if err != nil {
		return fmt.Errorf("could not update ledger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

type expenseChanges struct {
	inserted []Expense
	updated  []Expense
	deleted  []string
}

// diffExpenses compares two states of the same ledger by expense id.
func diffExpenses(before, after []Expense) expenseChanges {
	var changes expenseChanges
	previous := make(map[string]Expense, len(before))
	for _, e := range before {
		previous[e.Id] = e
	}
	seen := make(map[string]bool, len(after))
	for _, e := range after {
		seen[e.Id] = true
		old, existed := previous[e.Id]
		switch {
		case !existed:
			changes.inserted = append(changes.inserted, e)
		case !sameExpense(old, e):
			changes.updated = append(changes.updated, e)
		}
	}
	for _, e := range before {
		if !seen[e.Id] {
			changes.deleted = append(changes.deleted, e.Id)
		}
	}
	return changes
}

func sameExpense(a, b Expense) bool {
	return a.Description == b.Description &&
		a.Amount.Equal(b.Amount) &&
		a.Category == b.Category &&
		a.Date.Equal(b.Date) &&
		a.Notes == b.Notes &&
		a.Position == b.Position
}
