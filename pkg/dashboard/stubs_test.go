package dashboard

import (
	"context"
	"time"

	"github.com/klokku/hris/internal/utils"
	"github.com/klokku/hris/pkg/employee"
	"github.com/klokku/hris/pkg/ledger"
	"github.com/klokku/hris/pkg/manager"
)

var statsClock = &utils.MockClock{FixedNow: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

func newTestService(managers ManagerLister, ledgers LedgerLister) *ServiceImpl {
	return NewService(managers, ledgers, employeeListerStub{employees: sampleEmployees}, statsClock)
}

type managerListerStub struct {
	managers []manager.Manager
	err      error
}

func (s managerListerStub) List(_ context.Context, includeInactive bool) ([]manager.Manager, error) {
	if s.err != nil {
		return nil, s.err
	}
	var result []manager.Manager
	for _, m := range s.managers {
		if m.IsActive || includeInactive {
			result = append(result, m)
		}
	}
	return result, nil
}

type ledgerListerStub struct {
	views []ledger.View
	err   error
}

func (s ledgerListerStub) ListViews(context.Context) ([]ledger.View, error) {
	return s.views, s.err
}

type employeeListerStub struct {
	employees []employee.Employee
	err       error
}

func (s employeeListerStub) List(context.Context) ([]employee.Employee, error) {
	return s.employees, s.err
}

func sampleEmployee(department, company, status, role string, created time.Time) employee.Employee {
	return employee.Employee{
		Details: employee.Details{
			Department: department,
			Company:    company,
			Status:     status,
			Role:       role,
		},
		IsActive:  true,
		CreatedAt: created,
	}
}

var sampleEmployees = []employee.Employee{
	sampleEmployee("Sales", "RFE", "Resident", employee.TeamManagerRole, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)),
	sampleEmployee("Sales", "RFE", "Tourist", "Sales Agent", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)),
	sampleEmployee("Engineering", "Royal Tree", "Resident", "team manager", time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)),
	sampleEmployee("Finance", "Royal Falcon", "Resident", "Accountant", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	sampleEmployee("Engineering", "RFE", "Resident", "Developer", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)),
}
