package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/klokku/hris/internal/event_bus"
	"github.com/klokku/hris/internal/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Fetch(ctx context.Context, ownerUid string) (View, error)
	AddExpense(ctx context.Context, ownerUid string, expense NewExpense) (View, error)
	UpdateExpense(ctx context.Context, ownerUid string, expenseId string, patch ExpensePatch) (View, error)
	DeleteExpense(ctx context.Context, ownerUid string, expenseId string) (View, error)
	OpenLedger(ctx context.Context, ownerUid string, allocated decimal.Decimal) (View, error)
	SetAllocation(ctx context.Context, ownerUid string, allocated decimal.Decimal) (View, error)
	CloseLedger(ctx context.Context, ownerUid string) error
	ListViews(ctx context.Context) ([]View, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
	clock    utils.Clock
	locks    *ownerLocks
	currency string
}

func NewService(repo Repository, eventBus *event_bus.EventBus, clock utils.Clock, currencySymbol string) *ServiceImpl {
	return &ServiceImpl{
		repo:     repo,
		eventBus: eventBus,
		clock:    clock,
		locks:    newOwnerLocks(),
		currency: currencySymbol,
	}
}

func (s *ServiceImpl) Fetch(ctx context.Context, ownerUid string) (View, error) {
	l, err := s.repo.Get(ctx, ownerUid)
	if err != nil {
		return View{}, s.classify("fetch ledger", err)
	}
	return l.View(), nil
}

func (s *ServiceImpl) AddExpense(ctx context.Context, ownerUid string, expense NewExpense) (View, error) {
	if err := expense.Validate(); err != nil {
		return View{}, err
	}

	now := s.clock.Now()
	record := Expense{
		Id:          uuid.NewString(),
		Description: strings.TrimSpace(expense.Description),
		Amount:      *expense.Amount,
		Category:    Category(expense.Category),
		Date:        now,
		Created:     now,
		Updated:     now,
	}
	if expense.Date != nil {
		record.Date = expense.Date.UTC()
	}
	if expense.Notes != nil {
		record.Notes = strings.TrimSpace(*expense.Notes)
	}

	var added Expense
	updated, err := s.mutate(ctx, ownerUid, "add expense", func(l *Ledger) error {
		if err := l.AddExpense(record); err != nil {
			return err
		}
		added = l.Expenses[len(l.Expenses)-1]
		return nil
	})
	if err != nil {
		return View{}, err
	}

	log.Infof("expense %s added to ledger %s (used %s of %s)", added.Id, ownerUid,
		updated.BudgetUsed().StringFixed(2), updated.BudgetAllocated.StringFixed(2))
	s.publish(ctx, event_bus.LedgerExpenseAdded, updated, &added)
	return updated.View(), nil
}

func (s *ServiceImpl) UpdateExpense(ctx context.Context, ownerUid string, expenseId string, patch ExpensePatch) (View, error) {
	if err := patch.Validate(); err != nil {
		return View{}, err
	}

	now := s.clock.Now()
	var revised Expense
	updated, err := s.mutate(ctx, ownerUid, "update expense", func(l *Ledger) error {
		var err error
		revised, err = l.ReviseExpense(expenseId, patch, now)
		return err
	})
	if err != nil {
		return View{}, err
	}

	log.Infof("expense %s updated in ledger %s (used %s of %s)", expenseId, ownerUid,
		updated.BudgetUsed().StringFixed(2), updated.BudgetAllocated.StringFixed(2))
	s.publish(ctx, event_bus.LedgerExpenseUpdated, updated, &revised)
	return updated.View(), nil
}

func (s *ServiceImpl) DeleteExpense(ctx context.Context, ownerUid string, expenseId string) (View, error) {
	var removed Expense
	updated, err := s.mutate(ctx, ownerUid, "delete expense", func(l *Ledger) error {
		var err error
		removed, err = l.RemoveExpense(expenseId)
		return err
	})
	if err != nil {
		return View{}, err
	}

	log.Infof("expense %s deleted from ledger %s (used %s of %s)", expenseId, ownerUid,
		updated.BudgetUsed().StringFixed(2), updated.BudgetAllocated.StringFixed(2))
	s.publish(ctx, event_bus.LedgerExpenseDeleted, updated, &removed)
	return updated.View(), nil
}

// OpenLedger creates an empty ledger for a newly provisioned manager.
func (s *ServiceImpl) OpenLedger(ctx context.Context, ownerUid string, allocated decimal.Decimal) (View, error) {
	if strings.TrimSpace(ownerUid) == "" {
		return View{}, &ValidationError{Field: "ownerUid", Reason: "is required"}
	}
	if err := ValidateAllocation(allocated); err != nil {
		return View{}, err
	}

	unlock := s.locks.lock(ownerUid)
	defer unlock()

	l := Ledger{OwnerUid: ownerUid, BudgetAllocated: allocated, Expenses: []Expense{}, Version: 1}
	if err := s.repo.Create(ctx, l); err != nil {
		return View{}, s.classify("open ledger", err)
	}

	log.Infof("ledger opened for %s with %s allocated", ownerUid, allocated.StringFixed(2))
	s.publish(ctx, event_bus.LedgerOpened, l, nil)
	return l.View(), nil
}

// SetAllocation changes the ceiling of an existing ledger.
func (s *ServiceImpl) SetAllocation(ctx context.Context, ownerUid string, allocated decimal.Decimal) (View, error) {
	if err := ValidateAllocation(allocated); err != nil {
		return View{}, err
	}

	updated, err := s.mutate(ctx, ownerUid, "change allocation", func(l *Ledger) error {
		return l.Reallocate(allocated)
	})
	if err != nil {
		return View{}, err
	}

	log.Infof("ledger %s allocation set to %s", ownerUid, allocated.StringFixed(2))
	s.publish(ctx, event_bus.LedgerAllocationChanged, updated, nil)
	return updated.View(), nil
}

// CloseLedger removes a ledger with all its expenses. Closing a missing ledger is not an error,
// the owner may have been removed by a cascading delete already.
func (s *ServiceImpl) CloseLedger(ctx context.Context, ownerUid string) error {
	unlock := s.locks.lock(ownerUid)
	defer unlock()

	deleted, err := s.repo.Delete(ctx, ownerUid)
	if err != nil {
		return s.classify("close ledger", err)
	}
	if !deleted {
		log.Debugf("ledger %s already closed", ownerUid)
		return nil
	}

	log.Infof("ledger %s closed", ownerUid)
	s.publish(ctx, event_bus.LedgerClosed, Ledger{OwnerUid: ownerUid}, nil)
	return nil
}

func (s *ServiceImpl) ListViews(ctx context.Context) ([]View, error) {
	ledgers, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.classify("list ledgers", err)
	}
	views := make([]View, 0, len(ledgers))
	for _, l := range ledgers {
		views = append(views, l.View())
	}
	return views, nil
}

// mutate runs fn as one read-modify-write of the owner's ledger. Mutations of the same ledger are
// serialized in process; the repository transaction guards against other processes.
func (s *ServiceImpl) mutate(ctx context.Context, ownerUid string, op string, fn func(l *Ledger) error) (Ledger, error) {
	unlock := s.locks.lock(ownerUid)
	defer unlock()

	updated, err := s.repo.Update(ctx, ownerUid, fn)
	if err != nil {
		return Ledger{}, s.classify(op, err)
	}
	return updated, nil
}

// classify passes domain errors through and wraps everything else as a PersistenceError.
func (s *ServiceImpl) classify(op string, err error) error {
	var validationErr *ValidationError
	var budgetErr *BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		budgetErr.Currency = s.currency
		return budgetErr
	case errors.As(err, &validationErr),
		errors.Is(err, ErrLedgerNotFound),
		errors.Is(err, ErrExpenseNotFound),
		errors.Is(err, ErrLedgerExists):
		return err
	default:
		log.Errorf("ledger storage failure during %s: %v", op, err)
		return &PersistenceError{Op: op, Err: err}
	}
}

// publish notifies subscribers about a committed change. The change is already durable, so a
// failing subscriber is logged and does not fail the operation.
func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, l Ledger, expense *Expense) {
	if s.eventBus == nil {
		return
	}
	payload := event_bus.LedgerChanged{
		OwnerUid:         l.OwnerUid,
		BudgetAllocated:  l.BudgetAllocated,
		BudgetUsed:       l.BudgetUsed(),
		BalanceRemaining: l.BalanceRemaining(),
	}
	if expense != nil {
		payload.Expense = &event_bus.ExpenseSnapshot{
			Id:       expense.Id,
			Amount:   expense.Amount,
			Category: string(expense.Category),
			Date:     expense.Date,
		}
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), eventType, payload)); err != nil {
		log.Errorf("failed to publish %s for ledger %s: %v", eventType, l.OwnerUid, err)
	}
}
