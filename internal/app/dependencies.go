package app

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/hris/internal/amqp"
	"github.com/klokku/hris/internal/config"
	"github.com/klokku/hris/internal/event_bus"
	"github.com/klokku/hris/internal/utils"
	"github.com/klokku/hris/pkg/dashboard"
	"github.com/klokku/hris/pkg/employee"
	"github.com/klokku/hris/pkg/ledger"
	"github.com/klokku/hris/pkg/manager"
)

// Storage holds the open database of the configured driver. Exactly one of the fields is set.
type Storage struct {
	Pool   *pgxpool.Pool
	SQLite *sql.DB
}

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	LedgerRepo    ledger.Repository
	LedgerService *ledger.ServiceImpl
	LedgerHandler *ledger.Handler

	EmployeeRepo    employee.Repository
	EmployeeService *employee.ServiceImpl
	EmployeeHandler *employee.Handler

	ManagerRepo    manager.Repository
	ManagerService *manager.ServiceImpl
	ManagerHandler *manager.Handler

	DashboardService     *dashboard.ServiceImpl
	DashboardCsvRenderer *dashboard.CsvRendererImpl
	DashboardHandler     *dashboard.Handler

	// EventForwarder is nil when no broker is configured.
	EventForwarder *amqp.Forwarder
}

// BuildDependencies initializes and wires all application services and handlers. publisher may be nil.
func BuildDependencies(storage Storage, publisher amqp.Publisher, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	if storage.Pool != nil {
		deps.LedgerRepo = ledger.NewRepository(storage.Pool)
		deps.EmployeeRepo = employee.NewRepository(storage.Pool)
		deps.ManagerRepo = manager.NewRepository(storage.Pool)
	} else {
		deps.LedgerRepo = ledger.NewSQLiteRepository(storage.SQLite)
		deps.EmployeeRepo = employee.NewSQLiteRepository(storage.SQLite)
		deps.ManagerRepo = manager.NewSQLiteRepository(storage.SQLite)
	}

	deps.LedgerService = ledger.NewService(deps.LedgerRepo, deps.EventBus, deps.Clock, cfg.Ledger.CurrencySymbol)
	deps.LedgerHandler = ledger.NewHandler(deps.LedgerService, manager.CurrentUid)

	deps.EmployeeService = employee.NewService(deps.EmployeeRepo, deps.Clock)
	deps.EmployeeHandler = employee.NewHandler(deps.EmployeeService)

	deps.ManagerService = manager.NewService(deps.ManagerRepo, deps.LedgerService, deps.EmployeeService)
	deps.ManagerHandler = manager.NewHandler(deps.ManagerService)

	deps.DashboardService = dashboard.NewService(deps.ManagerService, deps.LedgerService, deps.EmployeeService, deps.Clock)
	deps.DashboardCsvRenderer = dashboard.NewCsvRenderer()
	deps.DashboardHandler = dashboard.NewHandler(deps.DashboardService, deps.DashboardCsvRenderer)

	if publisher != nil {
		deps.EventForwarder = amqp.NewForwarder(publisher)
		deps.EventForwarder.Start(deps.EventBus)
	}

	return deps
}
