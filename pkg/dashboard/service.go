package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/klokku/hris/internal/utils"
	"github.com/klokku/hris/pkg/employee"
	"github.com/klokku/hris/pkg/ledger"
	"github.com/klokku/hris/pkg/manager"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ManagerLister interface {
	List(ctx context.Context, includeInactive bool) ([]manager.Manager, error)
}

type LedgerLister interface {
	ListViews(ctx context.Context) ([]ledger.View, error)
}

type EmployeeLister interface {
	List(ctx context.Context) ([]employee.Employee, error)
}

const growthMonths = 6

type Service interface {
	Stats(ctx context.Context) (Summary, error)
}

type ServiceImpl struct {
	managers  ManagerLister
	ledgers   LedgerLister
	employees EmployeeLister
	clock     utils.Clock
}

func NewService(managers ManagerLister, ledgers LedgerLister, employees EmployeeLister, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{managers: managers, ledgers: ledgers, employees: employees, clock: clock}
}

// Stats aggregates the budgets of all active managers and counts active employees. Managers, ledgers
// and employees are loaded concurrently.
func (s *ServiceImpl) Stats(ctx context.Context) (Summary, error) {
	var managers []manager.Manager
	var views []ledger.View
	var employees []employee.Employee

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = s.employees.List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list employees: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		managers, err = s.managers.List(gctx, false)
		if err != nil {
			return fmt.Errorf("failed to list managers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		views, err = s.ledgers.ListViews(gctx)
		if err != nil {
			return fmt.Errorf("failed to list ledgers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("failed to load dashboard data: %v", err)
		return Summary{}, err
	}

	summary := summarize(managers, views)
	summary.Employees = countEmployees(employees, s.clock.Now())
	return summary, nil
}

func countEmployees(employees []employee.Employee, now time.Time) EmployeeStats {
	stats := EmployeeStats{Total: len(employees)}
	departments := map[string]int{}
	companies := map[string]int{}
	statuses := map[string]int{}

	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstMonth := currentMonth.AddDate(0, 1-growthMonths, 0)
	stats.Growth = make([]MonthCount, growthMonths)
	for i := range stats.Growth {
		month := firstMonth.AddDate(0, i, 0)
		stats.Growth[i] = MonthCount{Year: month.Year(), Month: month.Month()}
	}

	for _, e := range employees {
		if e.IsTeamManager() {
			stats.TeamManagers++
		}
		departments[e.Department]++
		companies[e.Company]++
		statuses[e.Status]++

		created := e.CreatedAt.UTC()
		if created.Before(firstMonth) {
			continue
		}
		i := (created.Year()-firstMonth.Year())*12 + int(created.Month()-firstMonth.Month())
		if i < growthMonths {
			stats.Growth[i].Count++
		}
	}

	stats.ByDepartment = sortedCounts(departments)
	stats.ByCompany = sortedCounts(companies)
	stats.ByStatus = sortedCounts(statuses)
	return stats
}

// sortedCounts orders by count, largest first, then by name.
func sortedCounts(counts map[string]int) []Count {
	result := make([]Count, 0, len(counts))
	for name, count := range counts {
		result = append(result, Count{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func summarize(managers []manager.Manager, views []ledger.View) Summary {
	viewsByOwner := make(map[string]ledger.View, len(views))
	for _, v := range views {
		viewsByOwner[v.OwnerUid] = v
	}

	summary := Summary{
		ActiveManagers: len(managers),
		TotalAllocated: decimal.Zero,
		TotalUsed:      decimal.Zero,
		TotalRemaining: decimal.Zero,
		Categories:     []CategoryStats{},
		Teams:          make([]TeamStats, 0, len(managers)),
	}
	categories := map[string]*CategoryStats{}

	for _, m := range managers {
		view, ok := viewsByOwner[m.Uid]
		if !ok {
			log.Warnf("active manager %s has no ledger", m.Uid)
			continue
		}
		summary.Teams = append(summary.Teams, TeamStats{
			ManagerUid:   m.Uid,
			Username:     m.Username,
			TeamName:     m.TeamName,
			Department:   m.Department,
			Allocated:    view.BudgetAllocated,
			Used:         view.BudgetUsed,
			Remaining:    view.BalanceRemaining,
			ExpenseCount: len(view.Expenses),
			Utilisation:  utilisation(view.BudgetUsed, view.BudgetAllocated),
		})
		summary.TotalAllocated = summary.TotalAllocated.Add(view.BudgetAllocated)
		summary.TotalUsed = summary.TotalUsed.Add(view.BudgetUsed)
		summary.TotalRemaining = summary.TotalRemaining.Add(view.BalanceRemaining)

		for _, e := range view.Expenses {
			c, ok := categories[string(e.Category)]
			if !ok {
				c = &CategoryStats{Category: string(e.Category), Amount: decimal.Zero}
				categories[string(e.Category)] = c
			}
			c.Amount = c.Amount.Add(e.Amount)
			c.Count++
		}
	}
	summary.Utilisation = utilisation(summary.TotalUsed, summary.TotalAllocated)

	for _, c := range categories {
		summary.Categories = append(summary.Categories, *c)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	sort.SliceStable(summary.Teams, func(i, j int) bool {
		if summary.Teams[i].TeamName != summary.Teams[j].TeamName {
			return summary.Teams[i].TeamName < summary.Teams[j].TeamName
		}
		return summary.Teams[i].ManagerUid < summary.Teams[j].ManagerUid
	})
	return summary
}
