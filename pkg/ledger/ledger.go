package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrLedgerNotFound = errors.New("ledger not found")
var ErrExpenseNotFound = errors.New("expense not found")
var ErrLedgerExists = errors.New("ledger already exists")
var ErrBudgetExceeded = errors.New("budget exceeded")
var ErrPersistence = errors.New("ledger storage failure")

// maxAmount is the largest value the NUMERIC(14,2) columns hold.
var maxAmount = decimal.RequireFromString("999999999999.99")

const maxDescriptionLength = 500

type Category string

const (
	Equipment Category = "Equipment"
	Software  Category = "Software"
	Training  Category = "Training"
	Travel    Category = "Travel"
	Supplies  Category = "Supplies"
	Other     Category = "Other"
)

var Categories = []Category{Equipment, Software, Training, Travel, Supplies, Other}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Expense struct {
	Id          string
	Description string
	Amount      decimal.Decimal
	Category    Category
	Date        time.Time
	Notes       string
	// Position orders expenses by insertion within the ledger.
	Position int
	Created  time.Time
	Updated  time.Time
}

// Ledger is a manager's budget: an allocated ceiling and the expenses charged against it.
// Used and remaining amounts are always derived from Expenses.
type Ledger struct {
	OwnerUid        string
	BudgetAllocated decimal.Decimal
	Expenses        []Expense
	// Version increases with every committed change.
	Version int64
}

// View is the read model returned by every ledger operation.
type View struct {
	OwnerUid         string
	BudgetAllocated  decimal.Decimal
	BudgetUsed       decimal.Decimal
	BalanceRemaining decimal.Decimal
	Expenses         []Expense
}

// NewExpense is the input of an add operation. Amount is a pointer so a missing value can be told
// apart from zero.
type NewExpense struct {
	Description string
	Amount      *decimal.Decimal
	Category    string
	Date        *time.Time
	Notes       *string
}

// ExpensePatch holds the fields of an update. Nil fields keep their current value.
type ExpensePatch struct {
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	Date        *time.Time
	Notes       *string
}

func (l Ledger) BudgetUsed() decimal.Decimal {
	used := decimal.Zero
	for _, e := range l.Expenses {
		used = used.Add(e.Amount)
	}
	return used
}

func (l Ledger) BalanceRemaining() decimal.Decimal {
	return l.BudgetAllocated.Sub(l.BudgetUsed())
}

func (l Ledger) View() View {
	expenses := make([]Expense, len(l.Expenses))
	copy(expenses, l.Expenses)
	used := l.BudgetUsed()
	return View{
		OwnerUid:         l.OwnerUid,
		BudgetAllocated:  l.BudgetAllocated,
		BudgetUsed:       used,
		BalanceRemaining: l.BudgetAllocated.Sub(used),
		Expenses:         expenses,
	}
}

func (l Ledger) Clone() Ledger {
	clone := l
	clone.Expenses = make([]Expense, len(l.Expenses))
	copy(clone.Expenses, l.Expenses)
	return clone
}

func (l Ledger) FindExpense(id string) (Expense, bool) {
	idx := l.indexOf(id)
	if idx == -1 {
		return Expense{}, false
	}
	return l.Expenses[idx], true
}

// AddExpense appends e when it fits under the ceiling. On rejection the ledger is not modified.
func (l *Ledger) AddExpense(e Expense) error {
	if l.BudgetUsed().Add(e.Amount).GreaterThan(l.BudgetAllocated) {
		return &BudgetExceededError{
			Op:        OpAddExpense,
			Remaining: l.BalanceRemaining(),
			Used:      l.BudgetUsed(),
			Attempted: e.Amount,
		}
	}
	e.Position = l.nextPosition()
	l.Expenses = append(l.Expenses, e)
	return nil
}

// ReviseExpense applies patch to the expense with the given id. The ceiling check uses the
// difference between the new and the old amount, other expenses being unaffected.
func (l *Ledger) ReviseExpense(id string, patch ExpensePatch, now time.Time) (Expense, error) {
	idx := l.indexOf(id)
	if idx == -1 {
		return Expense{}, ErrExpenseNotFound
	}
	original := l.Expenses[idx]
	revised := original

	if patch.Amount != nil {
		difference := patch.Amount.Sub(revised.Amount)
		if l.BudgetUsed().Add(difference).GreaterThan(l.BudgetAllocated) {
			return Expense{}, &BudgetExceededError{
				Op:        OpUpdateExpense,
				Remaining: l.BalanceRemaining(),
				Used:      l.BudgetUsed(),
				Attempted: *patch.Amount,
			}
		}
		revised.Amount = *patch.Amount
	}
	if patch.Description != nil {
		revised.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		revised.Category = Category(*patch.Category)
	}
	if patch.Date != nil {
		revised.Date = patch.Date.UTC()
	}
	if patch.Notes != nil {
		revised.Notes = strings.TrimSpace(*patch.Notes)
	}
	if sameExpense(original, revised) {
		return original, nil
	}
	revised.Updated = now

	l.Expenses[idx] = revised
	return revised, nil
}

// RemoveExpense deletes the expense with the given id. Removal only lowers the used amount, so it
// never violates the ceiling.
func (l *Ledger) RemoveExpense(id string) (Expense, error) {
	idx := l.indexOf(id)
	if idx == -1 {
		return Expense{}, ErrExpenseNotFound
	}
	removed := l.Expenses[idx]
	expenses := make([]Expense, 0, len(l.Expenses)-1)
	expenses = append(expenses, l.Expenses[:idx]...)
	expenses = append(expenses, l.Expenses[idx+1:]...)
	l.Expenses = expenses
	return removed, nil
}

// Reallocate changes the ceiling. A ceiling below the amount already spent is rejected.
func (l *Ledger) Reallocate(allocated decimal.Decimal) error {
	if allocated.LessThan(l.BudgetUsed()) {
		return &BudgetExceededError{
			Op:        OpReallocate,
			Remaining: l.BalanceRemaining(),
			Used:      l.BudgetUsed(),
			Attempted: allocated,
		}
	}
	l.BudgetAllocated = allocated
	return nil
}

func (l Ledger) indexOf(id string) int {
	for idx, e := range l.Expenses {
		if e.Id == id {
			return idx
		}
	}
	return -1
}

func (l Ledger) nextPosition() int {
	maxPosition := 0
	for _, e := range l.Expenses {
		if e.Position > maxPosition {
			maxPosition = e.Position
		}
	}
	return maxPosition + 1
}

func (n NewExpense) Validate() error {
	if strings.TrimSpace(n.Description) == "" {
		return &ValidationError{Field: "description", Reason: "is required"}
	}
	if err := validateDescriptionLength(n.Description); err != nil {
		return err
	}
	if n.Amount == nil {
		return &ValidationError{Field: "amount", Reason: "is required"}
	}
	if err := validateAmount("amount", *n.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(n.Category) == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if _, ok := ParseCategory(n.Category); !ok {
		return invalidCategory()
	}
	return nil
}

func (p ExpensePatch) Validate() error {
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return &ValidationError{Field: "description", Reason: "must not be empty"}
		}
		if err := validateDescriptionLength(*p.Description); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := validateAmount("amount", *p.Amount); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if _, ok := ParseCategory(*p.Category); !ok {
			return invalidCategory()
		}
	}
	return nil
}

// ValidateAllocation checks a ceiling value.
func ValidateAllocation(allocated decimal.Decimal) error {
	return validateAmount("budgetAllocated", allocated)
}

// validateDescriptionLength counts characters of the trimmed text, as stored.
func validateDescriptionLength(description string) error {
	if utf8.RuneCountInString(strings.TrimSpace(description)) > maxDescriptionLength {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("must be at most %d characters", maxDescriptionLength)}
	}
	return nil
}

func validateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: field, Reason: "must have at most 2 decimal places"}
	}
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{Field: field, Reason: "is too large"}
	}
	return nil
}

func invalidCategory() error {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return &ValidationError{Field: "category", Reason: "must be one of " + strings.Join(names, ", ")}
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

type BudgetOp string

const (
	OpAddExpense    BudgetOp = "add"
	OpUpdateExpense BudgetOp = "update"
	OpReallocate    BudgetOp = "reallocate"
)

// BudgetExceededError reports a mutation rejected by the ceiling. Remaining is the balance before
// the rejected operation.
type BudgetExceededError struct {
	Op        BudgetOp
	Remaining decimal.Decimal
	Used      decimal.Decimal
	Attempted decimal.Decimal
	// Currency prefixes amounts in the message, "$" when empty.
	Currency string
}

func (e *BudgetExceededError) Error() string {
	currency := e.Currency
	if currency == "" {
		currency = "$"
	}
	switch e.Op {
	case OpUpdateExpense:
		return fmt.Sprintf("Updated amount exceeds budget. Remaining: %s%s", currency, e.Remaining.StringFixed(2))
	case OpReallocate:
		return fmt.Sprintf("Allocated budget cannot be lower than the amount already spent. Used: %s%s",
			currency, e.Used.StringFixed(2))
	default:
		return fmt.Sprintf("Expense exceeds budget. Remaining: %s%s", currency, e.Remaining.StringFixed(2))
	}
}

func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// PersistenceError wraps a storage failure that happened after validation passed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
