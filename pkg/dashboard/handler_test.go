package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest() *Handler {
	service := newTestService(managerListerStub{managers: sampleManagers}, ledgerListerStub{views: sampleViews})
	return NewHandler(service, NewCsvRenderer())
}

func TestHandler_GetStats(t *testing.T) {
	t.Run("should return json", func(t *testing.T) {
		handler := setupHandlerTest()

		w := httptest.NewRecorder()
		handler.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var dto SummaryDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
		assert.Equal(t, 2, dto.ActiveManagers)
		assert.Equal(t, json.Number("800.00"), dto.TotalUsed)
		require.Len(t, dto.Teams, 2)
		assert.Equal(t, json.Number("20.00"), dto.Teams[0].Utilisation)
		assert.Equal(t, 5, dto.Employees.TotalEmployees)
		assert.Equal(t, 2, dto.Employees.TeamManagers)
		require.Len(t, dto.Employees.GrowthData, 6)
		assert.Equal(t, MonthCountDTO{Year: 2025, Month: "Jun", Count: 2}, dto.Employees.GrowthData[5])
		assert.Equal(t, CountDTO{Name: "RFE", Count: 3}, dto.Employees.CompanyStats[0])
	})

	t.Run("should return csv when requested", func(t *testing.T) {
		handler := setupHandlerTest()

		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
		req.Header.Set("Accept", "text/csv")
		w := httptest.NewRecorder()
		handler.GetStats(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "Team,Manager"))
	})

	t.Run("should return 500 when loading fails", func(t *testing.T) {
		handler := NewHandler(newTestService(managerListerStub{err: errors.New("db down")}, ledgerListerStub{}), NewCsvRenderer())

		w := httptest.NewRecorder()
		handler.GetStatsCsv(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/stats/csv", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
