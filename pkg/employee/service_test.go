package employee

import (
	"context"
	"testing"
	"time"

	"github.com/klokku/hris/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var repoStub = NewRepositoryStub()

var clock *utils.MockClock

var service *ServiceImpl

func setup(t *testing.T) func() {
	clock = &utils.MockClock{FixedNow: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	service = NewService(repoStub, clock)
	return func() {
		t.Log("Teardown after test")
		repoStub.Reset()
	}
}

func createEmployee(t *testing.T, code string) Employee {
	t.Helper()
	created, err := service.Create(ctx, sampleDetails(code))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	return created
}

func TestServiceImpl_Create(t *testing.T) {
	t.Run("should create an active employee", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		d := sampleDetails("E1")
		d.Email = " E1@Example.com "

		// when
		created, err := service.Create(ctx, d)

		// then
		require.NoError(t, err)
		assert.NotEmpty(t, created.Uid)
		assert.True(t, created.IsActive)
		assert.Equal(t, "e1@example.com", created.Email)
		assert.Equal(t, clock.Now(), created.CreatedAt)
		stored, err := service.Get(ctx, created.Uid)
		require.NoError(t, err)
		assert.Equal(t, created, stored)
	})

	t.Run("should reject a taken employee code", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		createEmployee(t, "E1")
		d := sampleDetails("E1")
		d.Email = "other@example.com"

		// when
		_, err := service.Create(ctx, d)

		// then
		var duplicateErr *DuplicateError
		require.ErrorAs(t, err, &duplicateErr)
		assert.Equal(t, "employeeCode", duplicateErr.Field)
		assert.ErrorIs(t, err, ErrDuplicateEmployee)
	})

	t.Run("should reject a taken email but allow several employees without one", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		createEmployee(t, "E1")
		d := sampleDetails("E2")
		d.Email = "E1@example.com"

		// when
		_, err := service.Create(ctx, d)

		// then
		var duplicateErr *DuplicateError
		require.ErrorAs(t, err, &duplicateErr)
		assert.Equal(t, "email", duplicateErr.Field)

		for _, code := range []string{"E3", "E4"} {
			noEmail := sampleDetails(code)
			noEmail.Email = ""
			_, err := service.Create(ctx, noEmail)
			assert.NoError(t, err)
		}
	})

	t.Run("should validate the details", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		d := sampleDetails("E1")
		d.Company = "Unknown"

		_, err := service.Create(ctx, d)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "company", validationErr.Field)
	})
}

func TestServiceImpl_ListAndSearch(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	// given
	first := createEmployee(t, "E1")
	second := createEmployee(t, "E2")
	manager := sampleDetails("M1")
	manager.Name = "Maria Lopez"
	manager.Role = TeamManagerRole
	manager.Department = "Sales"
	third, err := service.Create(ctx, manager)
	require.NoError(t, err)

	// when
	all, err := service.List(ctx)
	require.NoError(t, err)
	byRole, err := service.Search(ctx, "team manager")
	require.NoError(t, err)
	byDepartment, err := service.Search(ctx, "engineering")
	require.NoError(t, err)
	_, emptyErr := service.Search(ctx, "  ")

	// then
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.Uid, second.Uid, first.Uid}, []string{all[0].Uid, all[1].Uid, all[2].Uid})
	require.Len(t, byRole, 1)
	assert.Equal(t, third.Uid, byRole[0].Uid)
	assert.Len(t, byDepartment, 2)
	var validationErr *ValidationError
	require.ErrorAs(t, emptyErr, &validationErr)
	assert.Equal(t, "query", validationErr.Field)
}

func TestServiceImpl_Update(t *testing.T) {
	t.Run("should replace the details and keep the creation time", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		created := createEmployee(t, "E1")
		d := created.Details
		d.Department = "Finance"
		d.EmploymentType = "Contract"

		// when
		updated, err := service.Update(ctx, created.Uid, d)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Finance", updated.Department)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("should allow keeping its own code and email", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		created := createEmployee(t, "E1")

		_, err := service.Update(ctx, created.Uid, created.Details)

		assert.NoError(t, err)
	})

	t.Run("should reject a code of another employee", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// given
		createEmployee(t, "E1")
		second := createEmployee(t, "E2")
		d := second.Details
		d.EmployeeCode = "E1"

		// when
		_, err := service.Update(ctx, second.Uid, d)

		// then
		assert.ErrorIs(t, err, ErrDuplicateEmployee)
	})

	t.Run("should fail for an unknown employee", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Update(ctx, "missing", sampleDetails("E1"))

		assert.ErrorIs(t, err, ErrEmployeeNotFound)
	})
}

func TestServiceImpl_InactiveEmployees(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	// given
	created := createEmployee(t, "E1")
	created.IsActive = false
	_, err := repoStub.Update(ctx, created)
	require.NoError(t, err)

	// when
	_, getErr := service.Get(ctx, created.Uid)
	_, updateErr := service.Update(ctx, created.Uid, created.Details)
	all, err := service.List(ctx)
	require.NoError(t, err)

	// then
	assert.ErrorIs(t, getErr, ErrEmployeeNotFound)
	assert.ErrorIs(t, updateErr, ErrEmployeeNotFound)
	assert.Empty(t, all)
}

func TestServiceImpl_Delete(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	// given
	created := createEmployee(t, "E1")

	// when
	err := service.Delete(ctx, created.Uid)

	// then
	require.NoError(t, err)
	_, err = service.Get(ctx, created.Uid)
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
	assert.ErrorIs(t, service.Delete(ctx, created.Uid), ErrEmployeeNotFound)
}
