package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

type TeamStats struct {
	ManagerUid   string
	Username     string
	TeamName     string
	Department   string
	Allocated    decimal.Decimal
	Used         decimal.Decimal
	Remaining    decimal.Decimal
	ExpenseCount int
	// Utilisation is the used share of the allocation in percent, rounded to two decimals.
	Utilisation decimal.Decimal
}

type CategoryStats struct {
	Category string
	Amount   decimal.Decimal
	Count    int
}

type Count struct {
	Name  string
	Count int
}

type MonthCount struct {
	Year  int
	Month time.Month
	Count int
}

// EmployeeStats counts active employee records.
type EmployeeStats struct {
	Total        int
	TeamManagers int
	ByDepartment []Count
	ByCompany    []Count
	ByStatus     []Count
	// Growth holds the employees created in each of the last growthMonths months, oldest first.
	Growth []MonthCount
}

type Summary struct {
	Employees      EmployeeStats
	ActiveManagers int
	TotalAllocated decimal.Decimal
	TotalUsed      decimal.Decimal
	TotalRemaining decimal.Decimal
	Utilisation    decimal.Decimal
	Categories     []CategoryStats
	Teams          []TeamStats
}

var hundred = decimal.NewFromInt(100)

func utilisation(used, allocated decimal.Decimal) decimal.Decimal {
	if allocated.IsZero() {
		return decimal.Zero
	}
	return used.Mul(hundred).DivRound(allocated, 2)
}
