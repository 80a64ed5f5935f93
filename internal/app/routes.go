package app

import (
	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Budget ledger of the calling manager
	r.HandleFunc("/api/budget", deps.LedgerHandler.GetBudget).Methods("GET")
	r.HandleFunc("/api/expenses", deps.LedgerHandler.AddExpense).Methods("POST")
	r.HandleFunc("/api/expenses/{expenseId}", deps.LedgerHandler.UpdateExpense).Methods("PUT")
	r.HandleFunc("/api/expenses/{expenseId}", deps.LedgerHandler.DeleteExpense).Methods("DELETE")

	r.HandleFunc("/api/auth/manager-login", deps.ManagerHandler.Login).Methods("POST")

	admin := r.NewRoute().Subrouter()
	admin.Use(requireAdmin(cfg.Admin))

	// Team managers
	admin.HandleFunc("/api/managers", deps.ManagerHandler.ListManagers).Methods("GET")
	admin.HandleFunc("/api/managers", deps.ManagerHandler.CreateManager).Methods("POST")
	admin.HandleFunc("/api/managers/{uid}", deps.ManagerHandler.GetManager).Methods("GET")
	admin.HandleFunc("/api/managers/{uid}", deps.ManagerHandler.UpdateManager).Methods("PUT")
	admin.HandleFunc("/api/managers/{uid}", deps.ManagerHandler.DeleteManager).Methods("DELETE")

	// Employee records
	admin.HandleFunc("/api/employees", deps.EmployeeHandler.ListEmployees).Methods("GET")
	admin.HandleFunc("/api/employees", deps.EmployeeHandler.CreateEmployee).Methods("POST")
	admin.HandleFunc("/api/employees/search", deps.EmployeeHandler.SearchEmployees).Methods("GET")
	admin.HandleFunc("/api/employees/{uid}", deps.EmployeeHandler.GetEmployee).Methods("GET")
	admin.HandleFunc("/api/employees/{uid}", deps.EmployeeHandler.UpdateEmployee).Methods("PUT")
	admin.HandleFunc("/api/employees/{uid}", deps.EmployeeHandler.DeleteEmployee).Methods("DELETE")

	// Dashboard
	admin.HandleFunc("/api/dashboard/stats", deps.DashboardHandler.GetStats).Methods("GET")
	admin.HandleFunc("/api/dashboard/stats/csv", deps.DashboardHandler.GetStatsCsv).Methods("GET")
}
