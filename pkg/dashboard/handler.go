package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/klokku/hris/internal/rest"
	"github.com/klokku/hris/pkg/ledger"
	log "github.com/sirupsen/logrus"
)

type TeamStatsDTO struct {
	ManagerUid   string      `json:"managerUid"`
	Username     string      `json:"username"`
	TeamName     string      `json:"teamName"`
	Department   string      `json:"department"`
	Allocated    json.Number `json:"budgetAllocated"`
	Used         json.Number `json:"budgetUsed"`
	Remaining    json.Number `json:"balanceRemaining"`
	ExpenseCount int         `json:"expenseCount"`
	Utilisation  json.Number `json:"utilisation"`
}

type CategoryStatsDTO struct {
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
	Count    int         `json:"count"`
}

type CountDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type MonthCountDTO struct {
	Year  int    `json:"year"`
	Month string `json:"name"`
	Count int    `json:"employees"`
}

type EmployeeStatsDTO struct {
	TotalEmployees  int             `json:"totalEmployees"`
	TeamManagers    int             `json:"teamManagers"`
	DepartmentStats []CountDTO      `json:"departmentStats"`
	CompanyStats    []CountDTO      `json:"companyStats"`
	StatusStats     []CountDTO      `json:"statusStats"`
	GrowthData      []MonthCountDTO `json:"growthData"`
}

type SummaryDTO struct {
	Employees      EmployeeStatsDTO   `json:"employees"`
	ActiveManagers int                `json:"activeManagers"`
	TotalAllocated json.Number        `json:"totalAllocated"`
	TotalUsed      json.Number        `json:"totalUsed"`
	TotalRemaining json.Number        `json:"totalRemaining"`
	Utilisation    json.Number        `json:"utilisation"`
	Categories     []CategoryStatsDTO `json:"categories"`
	Teams          []TeamStatsDTO     `json:"teams"`
}

type Handler struct {
	service     Service
	csvRenderer Renderer
}

func NewHandler(service Service, csvRenderer Renderer) *Handler {
	return &Handler{service: service, csvRenderer: csvRenderer}
}

// GetStats godoc
// @Summary Budget statistics
// @Description Totals, per category and per team budget usage of active managers, and counts of active
// @Description employees. Responds with CSV when the Accept header is text/csv.
// @Tags Dashboard
// @Produce json
// @Produce text/csv
// @Success 200 {object} SummaryDTO
// @Failure 401 {object} rest.ErrorResponse "Invalid admin key"
// @Router /api/dashboard/stats [get]
// @Security XAdminKey
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "text/csv" {
		h.GetStatsCsv(w, r)
		return
	}
	log.Debug("Getting dashboard stats")
	summary, err := h.service.Stats(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Error fetching dashboard statistics", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, summaryToDTO(summary))
}

// GetStatsCsv godoc
// @Summary Budget statistics as CSV
// @Tags Dashboard
// @Produce text/csv
// @Success 200 {string} string "CSV"
// @Router /api/dashboard/stats/csv [get]
// @Security XAdminKey
func (h *Handler) GetStatsCsv(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting dashboard stats as csv")
	summary, err := h.service.Stats(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Error fetching dashboard statistics", "")
		return
	}
	csv, err := h.csvRenderer.Render(summary)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Error rendering dashboard statistics", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="budget-stats.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(csv)); err != nil {
		log.Errorf("failed to write csv response: %v", err)
	}
}

func summaryToDTO(summary Summary) SummaryDTO {
	categories := make([]CategoryStatsDTO, 0, len(summary.Categories))
	for _, c := range summary.Categories {
		categories = append(categories, CategoryStatsDTO{Category: c.Category, Amount: ledger.Money(c.Amount), Count: c.Count})
	}
	teams := make([]TeamStatsDTO, 0, len(summary.Teams))
	for _, t := range summary.Teams {
		teams = append(teams, TeamStatsDTO{
			ManagerUid:   t.ManagerUid,
			Username:     t.Username,
			TeamName:     t.TeamName,
			Department:   t.Department,
			Allocated:    ledger.Money(t.Allocated),
			Used:         ledger.Money(t.Used),
			Remaining:    ledger.Money(t.Remaining),
			ExpenseCount: t.ExpenseCount,
			Utilisation:  ledger.Money(t.Utilisation),
		})
	}
	return SummaryDTO{
		Employees:      employeeStatsToDTO(summary.Employees),
		ActiveManagers: summary.ActiveManagers,
		TotalAllocated: ledger.Money(summary.TotalAllocated),
		TotalUsed:      ledger.Money(summary.TotalUsed),
		TotalRemaining: ledger.Money(summary.TotalRemaining),
		Utilisation:    ledger.Money(summary.Utilisation),
		Categories:     categories,
		Teams:          teams,
	}
}

func employeeStatsToDTO(stats EmployeeStats) EmployeeStatsDTO {
	growth := make([]MonthCountDTO, 0, len(stats.Growth))
	for _, m := range stats.Growth {
		growth = append(growth, MonthCountDTO{Year: m.Year, Month: m.Month.String()[:3], Count: m.Count})
	}
	return EmployeeStatsDTO{
		TotalEmployees:  stats.Total,
		TeamManagers:    stats.TeamManagers,
		DepartmentStats: countsToDTO(stats.ByDepartment),
		CompanyStats:    countsToDTO(stats.ByCompany),
		StatusStats:     countsToDTO(stats.ByStatus),
		GrowthData:      growth,
	}
}

func countsToDTO(counts []Count) []CountDTO {
	dtos := make([]CountDTO, 0, len(counts))
	for _, c := range counts {
		dtos = append(dtos, CountDTO{Name: c.Name, Count: c.Count})
	}
	return dtos
}
