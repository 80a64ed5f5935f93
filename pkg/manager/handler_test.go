package manager

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*Handler, func()) {
	teardown := setup(t)
	return NewHandler(service), teardown
}

func createViaHandler(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/managers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.CreateManager(w, req)
	return w
}

func TestHandler_CreateManager(t *testing.T) {
	t.Run("should create a manager with its budget", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		w := createViaHandler(t, handler, `{"username":"Jane","password":"secret1","teamName":"Sales","budgetAllocated":2500}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var dto ManagerDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, "jane", dto.Username)
		assert.Equal(t, "Sales", dto.TeamName)
		assert.Equal(t, json.Number("2500.00"), dto.BudgetAllocated)
		assert.Equal(t, json.Number("0.00"), dto.BudgetUsed)
		assert.Equal(t, json.Number("2500.00"), dto.BalanceRemaining)
	})

	t.Run("should return 409 for a taken username", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		createViaHandler(t, handler, `{"username":"jane","password":"secret1","teamName":"Sales"}`)

		w := createViaHandler(t, handler, `{"username":"jane","password":"secret2","teamName":"Support"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("should return 400 for a short password", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		w := createViaHandler(t, handler, `{"username":"jane","password":"123","teamName":"Sales"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var errResponse rest.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&errResponse))
		assert.Equal(t, "password", errResponse.Details)
	})
}

func TestHandler_UpdateManager(t *testing.T) {
	t.Run("should change the budget", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created, err := service.Create(ctx, newManager("jane", "100"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPut, "/api/managers/"+created.Uid, bytes.NewBufferString(`{"budgetAllocated":"150.50"}`))
		req = mux.SetURLVars(req, map[string]string{"uid": created.Uid})
		w := httptest.NewRecorder()
		handler.UpdateManager(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var dto ManagerDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, json.Number("150.50"), dto.BudgetAllocated)
		assert.Equal(t, "Platform", dto.TeamName)
	})

	t.Run("should return 404 for an unknown manager", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		req := httptest.NewRequest(http.MethodPut, "/api/managers/missing", bytes.NewBufferString(`{}`))
		req = mux.SetURLVars(req, map[string]string{"uid": "missing"})
		w := httptest.NewRecorder()
		handler.UpdateManager(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_ListGetDelete(t *testing.T) {
	handler, teardown := setupHandlerTest(t)
	defer teardown()
	created, err := service.Create(ctx, newManager("jane", "100"))
	require.NoError(t, err)

	// list
	w := httptest.NewRecorder()
	handler.ListManagers(w, httptest.NewRequest(http.MethodGet, "/api/managers", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var dtos []ManagerDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, created.Uid, dtos[0].Uid)

	// get
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/managers/"+created.Uid, nil), map[string]string{"uid": created.Uid})
	w = httptest.NewRecorder()
	handler.GetManager(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// delete
	req = mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/managers/"+created.Uid, nil), map[string]string{"uid": created.Uid})
	w = httptest.NewRecorder()
	handler.DeleteManager(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// get after delete
	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/managers/"+created.Uid, nil), map[string]string{"uid": created.Uid})
	w = httptest.NewRecorder()
	handler.GetManager(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func loginViaHandler(handler *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/manager-login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.Login(w, req)
	return w
}

func TestHandler_Login(t *testing.T) {
	t.Run("should return the uid for valid credentials", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created, err := service.Create(ctx, newManager("jane", "100"))
		require.NoError(t, err)

		w := loginViaHandler(handler, `{"username":"Jane","password":"secret-password"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var dto LoginResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, created.Uid, dto.Uid)
		assert.Equal(t, "Platform", dto.TeamName)
	})

	t.Run("should return 401 for a wrong password", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		_, err := service.Create(ctx, newManager("jane", "100"))
		require.NoError(t, err)

		w := loginViaHandler(handler, `{"username":"jane","password":"not-the-password"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var errResponse rest.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&errResponse))
		assert.Equal(t, "Invalid credentials", errResponse.Error)
	})

	t.Run("should return 401 for a deactivated account", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()
		created, err := service.Create(ctx, newManager("jane", "100"))
		require.NoError(t, err)
		inactive := false
		_, err = service.Update(ctx, created.Uid, Changes{IsActive: &inactive})
		require.NoError(t, err)

		w := loginViaHandler(handler, `{"username":"jane","password":"secret-password"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var errResponse rest.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&errResponse))
		assert.Contains(t, errResponse.Error, "deactivated")
	})

	t.Run("should return 400 without a password", func(t *testing.T) {
		handler, teardown := setupHandlerTest(t)
		defer teardown()

		w := loginViaHandler(handler, `{"username":"jane"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CreateManagerLinkedToEmployee(t *testing.T) {
	handler, teardown := setupHandlerTest(t)
	defer teardown()
	e := createEmployee(t, "E-1", "Jane Roe")
	createViaHandler(t, handler, `{"username":"jane","password":"secret1","teamName":"Sales","employeeUid":"`+e.Uid+`"}`)

	w := createViaHandler(t, handler, `{"username":"john","password":"secret1","teamName":"Sales","employeeUid":"`+e.Uid+`"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	managers, err := service.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, e.Uid, managers[0].EmployeeUid)
	assert.Equal(t, "Jane Roe", managers[0].EmployeeName)
}
