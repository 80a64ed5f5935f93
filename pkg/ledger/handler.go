package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/rest"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type LedgerDTO struct {
	BudgetAllocated  json.Number  `json:"budgetAllocated"`
	BudgetUsed       json.Number  `json:"budgetUsed"`
	BalanceRemaining json.Number  `json:"balanceRemaining"`
	Expenses         []ExpenseDTO `json:"expenses"`
}

type ExpenseDTO struct {
	Id          string      `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Date        time.Time   `json:"date"`
	Notes       string      `json:"notes"`
}

// ExpenseRequestDTO is the body of add and update requests. Fields left out of an update keep
// their current value.
type ExpenseRequestDTO struct {
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Date        *RequestDate     `json:"date"`
	Notes       *string          `json:"notes"`
}

// RequestDate accepts RFC3339 timestamps and plain "2006-01-02" dates.
type RequestDate struct {
	time.Time
}

func (d *RequestDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return fmt.Errorf("date must be RFC3339 or YYYY-MM-DD, got %q", raw)
	}
	d.Time = t
	return nil
}

// OwnerResolver returns the uid of the ledger owner making the request.
type OwnerResolver func(ctx context.Context) (string, error)

type Handler struct {
	service       Service
	ownerResolver OwnerResolver
}

func NewHandler(service Service, ownerResolver OwnerResolver) *Handler {
	return &Handler{service: service, ownerResolver: ownerResolver}
}

// GetBudget godoc
// @Summary Get the manager's budget
// @Description Allocated budget, derived totals and all expenses of the current manager
// @Tags Ledger
// @Produce json
// @Success 200 {object} LedgerDTO
// @Failure 403 {object} rest.ErrorResponse "Manager not found"
// @Failure 404 {object} rest.ErrorResponse "Ledger not found"
// @Router /api/budget [get]
// @Security XManagerId
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Fetching budget")
	ownerUid, ok := h.owner(w, r)
	if !ok {
		return
	}
	view, err := h.service.Fetch(r.Context(), ownerUid)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ViewToDTO(view))
}

// AddExpense godoc
// @Summary Add an expense
// @Description Charges a new expense against the manager's budget
// @Tags Ledger
// @Accept json
// @Produce json
// @Param expense body ExpenseRequestDTO true "Expense"
// @Success 201 {object} LedgerDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid expense or budget exceeded"
// @Failure 403 {object} rest.ErrorResponse "Manager not found"
// @Failure 404 {object} rest.ErrorResponse "Ledger not found"
// @Router /api/expenses [post]
// @Security XManagerId
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	log.Debug("Adding expense")
	ownerUid, ok := h.owner(w, r)
	if !ok {
		return
	}
	var body ExpenseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	view, err := h.service.AddExpense(r.Context(), ownerUid, body.toNewExpense())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, ViewToDTO(view))
}

// UpdateExpense godoc
// @Summary Update an expense
// @Description Partially updates an expense; a new amount is checked against the remaining budget
// @Tags Ledger
// @Accept json
// @Produce json
// @Param expenseId path string true "Expense ID"
// @Param expense body ExpenseRequestDTO true "Fields to change"
// @Success 200 {object} LedgerDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid expense or budget exceeded"
// @Failure 403 {object} rest.ErrorResponse "Manager not found"
// @Failure 404 {object} rest.ErrorResponse "Expense not found"
// @Router /api/expenses/{expenseId} [put]
// @Security XManagerId
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating expense")
	ownerUid, ok := h.owner(w, r)
	if !ok {
		return
	}
	expenseId := mux.Vars(r)["expenseId"]
	if expenseId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Expense id is required", "")
		return
	}
	var body ExpenseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	view, err := h.service.UpdateExpense(r.Context(), ownerUid, expenseId, body.toPatch())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ViewToDTO(view))
}

// DeleteExpense godoc
// @Summary Delete an expense
// @Tags Ledger
// @Produce json
// @Param expenseId path string true "Expense ID"
// @Success 200 {object} LedgerDTO
// @Failure 403 {object} rest.ErrorResponse "Manager not found"
// @Failure 404 {object} rest.ErrorResponse "Expense not found"
// @Router /api/expenses/{expenseId} [delete]
// @Security XManagerId
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	log.Debug("Deleting expense")
	ownerUid, ok := h.owner(w, r)
	if !ok {
		return
	}
	expenseId := mux.Vars(r)["expenseId"]
	if expenseId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Expense id is required", "")
		return
	}

	view, err := h.service.DeleteExpense(r.Context(), ownerUid, expenseId)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ViewToDTO(view))
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerUid, err := h.ownerResolver(r.Context())
	if err != nil || ownerUid == "" {
		log.Debugf("ledger request without a manager: %v", err)
		rest.WriteError(w, http.StatusForbidden, "Manager not found", "")
		return "", false
	}
	return ownerUid, true
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		rest.WriteError(w, http.StatusBadRequest, validationErr.Error(), validationErr.Field)
	case errors.Is(err, ErrBudgetExceeded):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrExpenseNotFound):
		rest.WriteError(w, http.StatusNotFound, "Expense not found", "")
	case errors.Is(err, ErrLedgerNotFound):
		rest.WriteError(w, http.StatusNotFound, "Ledger not found", "")
	case errors.Is(err, ErrLedgerExists):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		log.Errorf("ledger request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func (b ExpenseRequestDTO) toNewExpense() NewExpense {
	expense := NewExpense{Amount: b.Amount, Notes: b.Notes}
	if b.Description != nil {
		expense.Description = *b.Description
	}
	if b.Category != nil {
		expense.Category = *b.Category
	}
	if b.Date != nil {
		expense.Date = &b.Date.Time
	}
	return expense
}

func (b ExpenseRequestDTO) toPatch() ExpensePatch {
	patch := ExpensePatch{
		Description: b.Description,
		Amount:      b.Amount,
		Category:    b.Category,
		Notes:       b.Notes,
	}
	if b.Date != nil {
		patch.Date = &b.Date.Time
	}
	return patch
}

func ViewToDTO(view View) LedgerDTO {
	expenses := make([]ExpenseDTO, 0, len(view.Expenses))
	for _, e := range view.Expenses {
		expenses = append(expenses, ExpenseToDTO(e))
	}
	return LedgerDTO{
		BudgetAllocated:  Money(view.BudgetAllocated),
		BudgetUsed:       Money(view.BudgetUsed),
		BalanceRemaining: Money(view.BalanceRemaining),
		Expenses:         expenses,
	}
}

func ExpenseToDTO(e Expense) ExpenseDTO {
	return ExpenseDTO{
		Id:          e.Id,
		Description: e.Description,
		Amount:      Money(e.Amount),
		Category:    string(e.Category),
		Date:        e.Date,
		Notes:       e.Notes,
	}
}

// Money renders an amount as a JSON number with two decimals.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
