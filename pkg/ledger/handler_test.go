package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedOwner OwnerResolver = func(ctx context.Context) (string, error) {
	return ownerUid, nil
}

var noOwner OwnerResolver = func(ctx context.Context) (string, error) {
	return "", errors.New("no manager in context")
}

func setupHandlerTest(t *testing.T, allocated string) (*Handler, func()) {
	teardown := setup(t)
	openLedger(t, allocated)
	return NewHandler(service, fixedOwner), teardown
}

func postExpense(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.AddExpense(w, req)
	return w
}

func decodeLedger(t *testing.T, w *httptest.ResponseRecorder) LedgerDTO {
	t.Helper()
	var dto LedgerDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	return dto
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) rest.ErrorResponse {
	t.Helper()
	var errResponse rest.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResponse))
	return errResponse
}

func TestHandler_GetBudget(t *testing.T) {
	t.Run("should return totals with two decimals", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()
		addExpense(t, "Laptop", "600", "Equipment")

		req := httptest.NewRequest(http.MethodGet, "/api/budget", nil)
		w := httptest.NewRecorder()
		handler.GetBudget(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		dto := decodeLedger(t, w)
		assert.Equal(t, json.Number("1000.00"), dto.BudgetAllocated)
		assert.Equal(t, json.Number("600.00"), dto.BudgetUsed)
		assert.Equal(t, json.Number("400.00"), dto.BalanceRemaining)
		require.Len(t, dto.Expenses, 1)
		assert.Equal(t, "Laptop", dto.Expenses[0].Description)
	})

	t.Run("should return 403 without a manager", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		handler := NewHandler(service, noOwner)

		req := httptest.NewRequest(http.MethodGet, "/api/budget", nil)
		w := httptest.NewRecorder()
		handler.GetBudget(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should return 404 without a ledger", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		handler := NewHandler(service, fixedOwner)

		req := httptest.NewRequest(http.MethodGet, "/api/budget", nil)
		w := httptest.NewRecorder()
		handler.GetBudget(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Ledger not found", decodeError(t, w).Error)
	})
}

func TestHandler_AddExpense(t *testing.T) {
	t.Run("should add an expense", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()

		w := postExpense(t, handler, `{"description":"Course","amount":"199.90","category":"Training","date":"2025-03-01","notes":"online"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		dto := decodeLedger(t, w)
		require.Len(t, dto.Expenses, 1)
		assert.Equal(t, json.Number("199.90"), dto.Expenses[0].Amount)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), dto.Expenses[0].Date)
		assert.Equal(t, "online", dto.Expenses[0].Notes)
		assert.Equal(t, json.Number("800.10"), dto.BalanceRemaining)
	})

	t.Run("should reject an expense over budget with the remaining balance", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()
		addExpense(t, "Laptop", "600", "Equipment")

		w := postExpense(t, handler, `{"description":"Course","amount":500,"category":"Training"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Expense exceeds budget. Remaining: $400.00", decodeError(t, w).Error)
	})

	t.Run("should reject a missing description", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()

		w := postExpense(t, handler, `{"amount":5,"category":"Other"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		errResponse := decodeError(t, w)
		assert.Equal(t, "description is required", errResponse.Error)
		assert.Equal(t, "description", errResponse.Details)
	})

	t.Run("should reject a non numeric amount", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()

		w := postExpense(t, handler, `{"description":"Course","amount":"ten","category":"Training"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decodeError(t, w).Error)
	})

	t.Run("should reject a malformed date", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "1000")
		defer teardown()

		w := postExpense(t, handler, `{"description":"Course","amount":1,"category":"Training","date":"01/03/2025"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_UpdateExpense(t *testing.T) {
	t.Run("should update only the provided fields", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "100")
		defer teardown()
		expense := addExpense(t, "Laptop", "100", "Equipment").Expenses[0]

		req := httptest.NewRequest(http.MethodPut, "/api/expenses/"+expense.Id, bytes.NewBufferString(`{"amount":50}`))
		req = mux.SetURLVars(req, map[string]string{"expenseId": expense.Id})
		w := httptest.NewRecorder()
		handler.UpdateExpense(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		dto := decodeLedger(t, w)
		assert.Equal(t, json.Number("50.00"), dto.BudgetUsed)
		assert.Equal(t, "Laptop", dto.Expenses[0].Description)
		assert.Equal(t, "Equipment", dto.Expenses[0].Category)
	})

	t.Run("should return 404 for an unknown expense", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "100")
		defer teardown()

		req := httptest.NewRequest(http.MethodPut, "/api/expenses/missing", bytes.NewBufferString(`{"amount":50}`))
		req = mux.SetURLVars(req, map[string]string{"expenseId": "missing"})
		w := httptest.NewRecorder()
		handler.UpdateExpense(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Expense not found", decodeError(t, w).Error)
	})

	t.Run("should reject an update over budget", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "100")
		defer teardown()
		expense := addExpense(t, "Laptop", "60", "Equipment").Expenses[0]

		req := httptest.NewRequest(http.MethodPut, "/api/expenses/"+expense.Id, bytes.NewBufferString(`{"amount":120}`))
		req = mux.SetURLVars(req, map[string]string{"expenseId": expense.Id})
		w := httptest.NewRecorder()
		handler.UpdateExpense(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Updated amount exceeds budget. Remaining: $40.00", decodeError(t, w).Error)
	})
}

func TestHandler_DeleteExpense(t *testing.T) {
	t.Run("should delete an expense", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "100")
		defer teardown()
		expense := addExpense(t, "Laptop", "60", "Equipment").Expenses[0]

		req := httptest.NewRequest(http.MethodDelete, "/api/expenses/"+expense.Id, nil)
		req = mux.SetURLVars(req, map[string]string{"expenseId": expense.Id})
		w := httptest.NewRecorder()
		handler.DeleteExpense(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		dto := decodeLedger(t, w)
		assert.Empty(t, dto.Expenses)
		assert.Equal(t, json.Number("0.00"), dto.BudgetUsed)
	})

	t.Run("should return 500 on storage failure", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t, "100")
		defer teardown()
		expense := addExpense(t, "Laptop", "60", "Equipment").Expenses[0]
		repoStub.FailUpdates = errors.New("connection refused")

		req := httptest.NewRequest(http.MethodDelete, "/api/expenses/"+expense.Id, nil)
		req = mux.SetURLVars(req, map[string]string{"expenseId": expense.Id})
		w := httptest.NewRecorder()
		handler.DeleteExpense(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", decodeError(t, w).Error)
	})
}
