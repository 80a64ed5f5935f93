package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/klokku/hris/internal/event_bus"
	"github.com/klokku/hris/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerUid = "2f0c3a51-6f8e-4c1e-9d53-4b0d9a7e1c11"

var ctx = context.Background()

var repoStub = NewRepositoryStub()

var clock = &utils.MockClock{FixedNow: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}

var eventBus *event_bus.EventBus

var service *ServiceImpl

func setup(t *testing.T) func() {
	eventBus = event_bus.NewEventBus()
	service = NewService(repoStub, eventBus, clock, "$")
	return func() {
		t.Log("Teardown after test")
		repoStub.Reset()
	}
}

func openLedger(t *testing.T, allocated string) {
	t.Helper()
	_, err := service.OpenLedger(ctx, ownerUid, dec(allocated))
	require.NoError(t, err)
}

func addExpense(t *testing.T, description, amount, category string) View {
	t.Helper()
	view, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: description, Amount: decPtr(amount), Category: category})
	require.NoError(t, err)
	return view
}

func TestServiceImpl_Scenarios(t *testing.T) {
	t.Run("should reject an expense over the remaining balance and accept one that fits", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "1000")

		// when
		view := addExpense(t, "Laptop", "600", "Equipment")

		// then
		assert.Equal(t, "600.00", view.BudgetUsed.StringFixed(2))
		assert.Equal(t, "400.00", view.BalanceRemaining.StringFixed(2))

		// when
		_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Course", Amount: decPtr("500"), Category: "Training"})

		// then
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, "Expense exceeds budget. Remaining: $400.00", err.Error())

		// when
		view = addExpense(t, "Course", "400", "Training")

		// then
		assert.Equal(t, "1000.00", view.BudgetUsed.StringFixed(2))
		assert.True(t, view.BalanceRemaining.IsZero())
		assert.Len(t, view.Expenses, 2)
	})

	t.Run("should free budget when an expense is deleted", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "1000")
		first := addExpense(t, "Laptop", "600", "Equipment").Expenses[0]
		addExpense(t, "Course", "400", "Training")

		// when
		view, err := service.DeleteExpense(ctx, ownerUid, first.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, "400.00", view.BudgetUsed.StringFixed(2))

		// when
		view = addExpense(t, "Chair", "500", "Supplies")

		// then
		assert.Equal(t, "900.00", view.BudgetUsed.StringFixed(2))
		assert.Equal(t, "100.00", view.BalanceRemaining.StringFixed(2))
		assert.Equal(t, []string{"Course", "Chair"}, descriptions(view))
	})
}

func TestServiceImpl_AddExpense(t *testing.T) {
	t.Run("should default date, notes and generate an id", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		view := addExpense(t, " Keyboard ", "49.99", "Equipment")

		// then
		require.Len(t, view.Expenses, 1)
		expense := view.Expenses[0]
		assert.NotEmpty(t, expense.Id)
		assert.Equal(t, "Keyboard", expense.Description)
		assert.Equal(t, Equipment, expense.Category)
		assert.Equal(t, clock.Now(), expense.Date)
		assert.Equal(t, "", expense.Notes)
	})

	t.Run("should keep the provided date and notes", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

		// when
		view, err := service.AddExpense(ctx, ownerUid, NewExpense{
			Description: "Flight", Amount: decPtr("80"), Category: "Travel", Date: &date, Notes: strPtr("conference"),
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, date, view.Expenses[0].Date)
		assert.Equal(t, "conference", view.Expenses[0].Notes)
	})

	t.Run("should return a validation error naming the field", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Flight", Amount: decPtr("80")})

		// then
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "category", validationErr.Field)
	})

	t.Run("should fail for a missing ledger", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.AddExpense(ctx, "unknown", NewExpense{Description: "Flight", Amount: decPtr("80"), Category: "Travel"})

		// then
		assert.ErrorIs(t, err, ErrLedgerNotFound)
	})

	t.Run("should leave the ledger unchanged when rejected", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		addExpense(t, "Mouse", "30", "Equipment")
		before, _ := service.Fetch(ctx, ownerUid)

		// when
		_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Monitor", Amount: decPtr("70.01"), Category: "Equipment"})

		// then
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		after, _ := service.Fetch(ctx, ownerUid)
		assert.Equal(t, before, after)
	})

	t.Run("should report a storage failure and keep the previous state", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		repoStub.FailUpdates = errors.New("disk full")

		// when
		_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Monitor", Amount: decPtr("10"), Category: "Equipment"})

		// then
		assert.ErrorIs(t, err, ErrPersistence)
		var persistenceErr *PersistenceError
		require.ErrorAs(t, err, &persistenceErr)
		assert.Equal(t, "add expense", persistenceErr.Op)

		repoStub.FailUpdates = nil
		view, err := service.Fetch(ctx, ownerUid)
		require.NoError(t, err)
		assert.Empty(t, view.Expenses)
	})
}

func TestServiceImpl_UpdateExpense(t *testing.T) {
	t.Run("should lower an expense of a full ledger", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		expense := addExpense(t, "Laptop", "100", "Equipment").Expenses[0]

		// when
		view, err := service.UpdateExpense(ctx, ownerUid, expense.Id, ExpensePatch{Amount: decPtr("50")})

		// then
		require.NoError(t, err)
		assert.Equal(t, "50.00", view.BudgetUsed.StringFixed(2))
	})

	t.Run("should preserve fields that were not provided", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		created, err := service.AddExpense(ctx, ownerUid, NewExpense{
			Description: "Flight", Amount: decPtr("80"), Category: "Travel", Date: &date, Notes: strPtr("conference"),
		})
		require.NoError(t, err)
		original := created.Expenses[0]
		clock.Advance(time.Hour)

		// when
		view, err := service.UpdateExpense(ctx, ownerUid, original.Id, ExpensePatch{Amount: decPtr("75")})

		// then
		require.NoError(t, err)
		updated := view.Expenses[0]
		assert.Equal(t, original.Description, updated.Description)
		assert.Equal(t, original.Category, updated.Category)
		assert.Equal(t, original.Date, updated.Date)
		assert.Equal(t, original.Notes, updated.Notes)
		assert.True(t, updated.Amount.Equal(dec("75")))
		assert.True(t, updated.Updated.After(original.Updated))
	})

	t.Run("should reject an update over the ceiling and report the remaining balance", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		expense := addExpense(t, "Laptop", "60", "Equipment").Expenses[0]
		before, _ := service.Fetch(ctx, ownerUid)

		// when
		_, err := service.UpdateExpense(ctx, ownerUid, expense.Id, ExpensePatch{Amount: decPtr("100.01"), Description: strPtr("Better laptop")})

		// then
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, "Updated amount exceeds budget. Remaining: $40.00", err.Error())
		after, _ := service.Fetch(ctx, ownerUid)
		assert.Equal(t, before, after)
	})

	t.Run("should fail for an unknown expense", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		_, err := service.UpdateExpense(ctx, ownerUid, "missing", ExpensePatch{Amount: decPtr("1")})

		// then
		assert.ErrorIs(t, err, ErrExpenseNotFound)
	})
}

func TestServiceImpl_DeleteExpense(t *testing.T) {
	t.Run("should never increase the used amount", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		addExpense(t, "A", "10", "Other")
		view := addExpense(t, "B", "90", "Other")

		for _, expense := range view.Expenses {
			before, _ := service.Fetch(ctx, ownerUid)

			// when
			after, err := service.DeleteExpense(ctx, ownerUid, expense.Id)

			// then
			require.NoError(t, err)
			assert.True(t, after.BudgetUsed.LessThanOrEqual(before.BudgetUsed))
		}
	})

	t.Run("should fail for an unknown expense", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		_, err := service.DeleteExpense(ctx, ownerUid, "missing")

		// then
		assert.ErrorIs(t, err, ErrExpenseNotFound)
	})
}

func TestServiceImpl_Administration(t *testing.T) {
	t.Run("should not open a second ledger for the same owner", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		_, err := service.OpenLedger(ctx, ownerUid, dec("200"))

		// then
		assert.ErrorIs(t, err, ErrLedgerExists)
	})

	t.Run("should reject a negative allocation", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// when
		_, err := service.OpenLedger(ctx, ownerUid, dec("-1"))

		// then
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("should not lower the allocation below the used amount", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "1000")
		addExpense(t, "Laptop", "600", "Equipment")

		// when
		_, err := service.SetAllocation(ctx, ownerUid, dec("500"))
		view, setErr := service.SetAllocation(ctx, ownerUid, dec("600"))

		// then
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		require.NoError(t, setErr)
		assert.True(t, view.BalanceRemaining.IsZero())
	})

	t.Run("should close a ledger once", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")

		// when
		err := service.CloseLedger(ctx, ownerUid)
		secondErr := service.CloseLedger(ctx, ownerUid)

		// then
		assert.NoError(t, err)
		assert.NoError(t, secondErr)
		_, fetchErr := service.Fetch(ctx, ownerUid)
		assert.ErrorIs(t, fetchErr, ErrLedgerNotFound)
	})

	t.Run("should list views of all ledgers", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		addExpense(t, "Laptop", "60", "Equipment")
		_, err := service.OpenLedger(ctx, "other-owner", dec("50"))
		require.NoError(t, err)

		// when
		views, err := service.ListViews(ctx)

		// then
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, ownerUid, views[0].OwnerUid)
		assert.Equal(t, "40.00", views[0].BalanceRemaining.StringFixed(2))
		assert.Equal(t, "other-owner", views[1].OwnerUid)
	})
}

func TestServiceImpl_Events(t *testing.T) {
	t.Run("should publish committed changes", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		var received []event_bus.EventT[event_bus.LedgerChanged]
		for _, eventType := range event_bus.LedgerEventTypes {
			event_bus.SubscribeTyped(eventBus, eventType, func(e event_bus.EventT[event_bus.LedgerChanged]) error {
				received = append(received, e)
				return nil
			})
		}

		// when
		openLedger(t, "100")
		view := addExpense(t, "Laptop", "60", "Equipment")
		_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Too much", Amount: decPtr("50"), Category: "Other"})
		require.Error(t, err)
		_, err = service.DeleteExpense(ctx, ownerUid, view.Expenses[0].Id)
		require.NoError(t, err)

		// then
		require.Len(t, received, 3)
		assert.Equal(t, event_bus.LedgerOpened, received[0].Type)
		assert.Equal(t, event_bus.LedgerExpenseAdded, received[1].Type)
		assert.Equal(t, "60.00", received[1].Data.BudgetUsed.StringFixed(2))
		require.NotNil(t, received[1].Data.Expense)
		assert.Equal(t, view.Expenses[0].Id, received[1].Data.Expense.Id)
		assert.Equal(t, event_bus.LedgerExpenseDeleted, received[2].Type)
		assert.True(t, received[2].Data.BudgetUsed.IsZero())
	})

	t.Run("should not fail a committed change when a subscriber fails", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		openLedger(t, "100")
		eventBus.Subscribe(event_bus.LedgerExpenseAdded, func(e event_bus.Event) error {
			return errors.New("broker down")
		})

		// when
		view, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Laptop", Amount: decPtr("60"), Category: "Equipment"})

		// then
		require.NoError(t, err)
		assert.Len(t, view.Expenses, 1)
	})
}

func TestServiceImpl_ConcurrentAdds(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	// given
	openLedger(t, "1000")
	const attempts = 50

	// when
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, rejected int
	var unexpected []error
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddExpense(ctx, ownerUid, NewExpense{Description: "Licence", Amount: decPtr("30"), Category: "Software"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrBudgetExceeded):
				rejected++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	// then
	assert.Empty(t, unexpected)
	assert.Equal(t, 33, accepted)
	assert.Equal(t, attempts-33, rejected)
	view, err := service.Fetch(ctx, ownerUid)
	require.NoError(t, err)
	assert.Equal(t, "990.00", view.BudgetUsed.StringFixed(2))
	assert.True(t, view.BudgetUsed.LessThanOrEqual(view.BudgetAllocated))
}

func descriptions(view View) []string {
	result := make([]string, 0, len(view.Expenses))
	for _, e := range view.Expenses {
		result = append(result, e.Description)
	}
	return result
}

func TestServiceImpl_RandomSequenceKeepsCeiling(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	// given
	openLedger(t, "1000")
	rnd := rand.New(rand.NewSource(20250314))
	randomAmount := func() *decimal.Decimal {
		d := decimal.New(rnd.Int63n(30000), -2)
		return &d
	}

	for step := 0; step < 1000; step++ {
		before, err := service.Fetch(ctx, ownerUid)
		require.NoError(t, err)

		// when
		var opErr error
		switch op := rnd.Intn(3); {
		case op == 0 || len(before.Expenses) == 0:
			_, opErr = service.AddExpense(ctx, ownerUid, NewExpense{
				Description: fmt.Sprintf("Expense %d", step),
				Amount:      randomAmount(),
				Category:    string(Categories[rnd.Intn(len(Categories))]),
			})
		case op == 1:
			target := before.Expenses[rnd.Intn(len(before.Expenses))]
			_, opErr = service.UpdateExpense(ctx, ownerUid, target.Id, ExpensePatch{Amount: randomAmount()})
		default:
			target := before.Expenses[rnd.Intn(len(before.Expenses))]
			_, opErr = service.DeleteExpense(ctx, ownerUid, target.Id)
		}

		// then
		after, err := service.Fetch(ctx, ownerUid)
		require.NoError(t, err)
		if opErr != nil {
			require.ErrorIs(t, opErr, ErrBudgetExceeded, "step %d", step)
			require.Equal(t, before, after, "step %d", step)
		}
		sum := decimal.Zero
		for _, e := range after.Expenses {
			sum = sum.Add(e.Amount)
		}
		require.True(t, after.BudgetUsed.Equal(sum), "step %d", step)
		require.True(t, after.BudgetUsed.LessThanOrEqual(after.BudgetAllocated), "step %d: used %s", step, after.BudgetUsed)
		require.True(t, after.BalanceRemaining.Equal(after.BudgetAllocated.Sub(after.BudgetUsed)), "step %d", step)
	}
}
