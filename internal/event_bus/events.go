package event_bus

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerOpened            EventType = "ledger.opened"
	LedgerAllocationChanged EventType = "ledger.allocation.changed"
	LedgerClosed            EventType = "ledger.closed"
	LedgerExpenseAdded      EventType = "ledger.expense.added"
	LedgerExpenseUpdated    EventType = "ledger.expense.updated"
	LedgerExpenseDeleted    EventType = "ledger.expense.deleted"
)

// LedgerEventTypes lists every event the ledger publishes.
var LedgerEventTypes = []EventType{
	LedgerOpened,
	LedgerAllocationChanged,
	LedgerClosed,
	LedgerExpenseAdded,
	LedgerExpenseUpdated,
	LedgerExpenseDeleted,
}

// LedgerChanged is the payload of every ledger event. Totals reflect the committed state.
// Expense is nil for events that do not concern a single expense.
type LedgerChanged struct {
	OwnerUid         string
	BudgetAllocated  decimal.Decimal
	BudgetUsed       decimal.Decimal
	BalanceRemaining decimal.Decimal
	Expense          *ExpenseSnapshot
}

type ExpenseSnapshot struct {
	Id       string
	Amount   decimal.Decimal
	Category string
	Date     time.Time
}
