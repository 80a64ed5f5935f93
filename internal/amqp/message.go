package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klokku/hris/internal/event_bus"
	"github.com/shopspring/decimal"
)

// LedgerMessage is the wire format of a ledger event.
type LedgerMessage struct {
	Type             string          `json:"type"`
	OccurredAt       time.Time       `json:"occurredAt"`
	OwnerUid         string          `json:"ownerUid"`
	BudgetAllocated  decimal.Decimal `json:"budgetAllocated"`
	BudgetUsed       decimal.Decimal `json:"budgetUsed"`
	BalanceRemaining decimal.Decimal `json:"balanceRemaining"`
	Expense          *ExpenseMessage `json:"expense,omitempty"`
}

type ExpenseMessage struct {
	Id       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
}

func NewLedgerMessage(e event_bus.EventT[event_bus.LedgerChanged]) LedgerMessage {
	msg := LedgerMessage{
		Type:             string(e.Type),
		OccurredAt:       e.Timestamp,
		OwnerUid:         e.Data.OwnerUid,
		BudgetAllocated:  e.Data.BudgetAllocated,
		BudgetUsed:       e.Data.BudgetUsed,
		BalanceRemaining: e.Data.BalanceRemaining,
	}
	if e.Data.Expense != nil {
		msg.Expense = &ExpenseMessage{
			Id:       e.Data.Expense.Id,
			Amount:   e.Data.Expense.Amount,
			Category: e.Data.Expense.Category,
			Date:     e.Data.Expense.Date,
		}
	}
	return msg
}

func (m LedgerMessage) ToJSON() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger message: %w", err)
	}
	return body, nil
}

func LedgerMessageFromJSON(data []byte) (LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return LedgerMessage{}, fmt.Errorf("unmarshal ledger message: %w", err)
	}
	return msg, nil
}
