// Integration tests for all-or-nothing saves: a failure while persisting a
// later set must leave the database untouched and the context dirty enough
// to retry.
// Implements: prd001-context-core R10; prd002-sqlite-store R6.
package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicity_ForeignKeyViolationRollsBackEverything(t *testing.T) {
	cfg := orgConfig(t)
	ensureSchema(t, cfg)

	ctx := newOrgContext(t)
	attachOrg(t, ctx, cfg)

	departments, ok := ctx.Set(setDepartments)
	require.True(t, ok)
	assignments, ok := ctx.Set(setAssignments)
	require.True(t, ok)

	rnd := &Department{Name: "R&D"}
	require.NoError(t, departments.Add(rnd))
	// References rows that do not exist; the store enforces foreign keys.
	bad := &Assignment{EmployeeID: 999, ProjectID: 999}
	require.NoError(t, assignments.Add(bad))

	err := ctx.SaveChanges()
	require.Error(t, err, "foreign key violation must surface")

	t.Run("tracking stays dirty after the failed save", func(t *testing.T) {
		assert.Len(t, departments.Tracker().Added(), 1)
		assert.Len(t, assignments.Tracker().Added(), 1)
	})

	t.Run("nothing reached the database", func(t *testing.T) {
		probe := newOrgContext(t)
		attachOrg(t, probe, cfg)
		fresh, ok := probe.Set(setDepartments)
		require.True(t, ok)
		assert.Equal(t, 0, fresh.Len())
		require.NoError(t, probe.Detach())
	})

	// Dropping the offending entity makes the retry succeed with the rest
	// of the pending work intact.
	removed, err := assignments.Remove(bad)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, ctx.SaveChanges())
	assert.NotZero(t, rnd.ID)
	require.NoError(t, ctx.Detach())

	reload := newOrgContext(t)
	attachOrg(t, reload, cfg)
	departments2, ok := reload.Set(setDepartments)
	require.True(t, ok)
	assert.Equal(t, 1, departments2.Len())
}

func TestAtomicity_RemoveThenMutatePersistsOnlyTheDelete(t *testing.T) {
	cfg := orgConfig(t)
	ensureSchema(t, cfg)

	ctx := newOrgContext(t)
	attachOrg(t, ctx, cfg)

	employees, ok := ctx.Set(setEmployees)
	require.True(t, ok)
	ann := &Employee{FirstName: "Ann", LastName: "Harte", Salary: 3200}
	ben := &Employee{FirstName: "Ben", LastName: "Okoye", Salary: 2800}
	require.NoError(t, employees.Add(ann))
	require.NoError(t, employees.Add(ben))
	require.NoError(t, ctx.SaveChanges())

	removed, err := employees.Remove(ann)
	require.NoError(t, err)
	require.True(t, removed)
	ann.Salary = 1 // mutation after removal must not become an update
	require.NoError(t, ctx.SaveChanges())
	require.NoError(t, ctx.Detach())

	reload := newOrgContext(t)
	attachOrg(t, reload, cfg)
	employees2, ok := reload.Set(setEmployees)
	require.True(t, ok)
	require.Equal(t, 1, employees2.Len())
	left := employees2.Entities()[0].(*Employee)
	assert.Equal(t, "Ben", left.FirstName)
	assert.Equal(t, 2800.0, left.Salary)
}
