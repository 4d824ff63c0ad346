// Integration test for rule-gated saves: invalid entities stop the save
// before any transaction, with per-set counts in the error.
// Implements: prd004-validation-rules (context wiring).
package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mirror/pkg/orm"
	"github.com/mesh-intelligence/mirror/pkg/rules"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

func orgRules(t *testing.T) *rules.Engine {
	t.Helper()
	engine := rules.New()
	require.NoError(t, engine.Add(setEmployees, `FirstName != ""`))
	require.NoError(t, engine.Add(setEmployees, `Salary >= 0.0`))
	require.NoError(t, engine.Add(setDepartments, `Name != ""`))
	return engine
}

func TestValidation_InvalidEntitiesBlockTheWholeSave(t *testing.T) {
	cfg := orgConfig(t)
	ensureSchema(t, cfg)

	ctx := newOrgContext(t, orm.WithValidator(orgRules(t)))
	attachOrg(t, ctx, cfg)

	departments, ok := ctx.Set(setDepartments)
	require.True(t, ok)
	employees, ok := ctx.Set(setEmployees)
	require.True(t, ok)

	require.NoError(t, departments.Add(&Department{Name: "R&D"}))
	nameless := &Employee{LastName: "Harte", Salary: 3200}
	underpaid := &Employee{FirstName: "Ben", LastName: "Okoye", Salary: -1}
	require.NoError(t, employees.Add(nameless))
	require.NoError(t, employees.Add(underpaid))

	err := ctx.SaveChanges()
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Invalid[setEmployees])

	t.Run("the valid department was held back too", func(t *testing.T) {
		probe := newOrgContext(t)
		attachOrg(t, probe, cfg)
		fresh, ok := probe.Set(setDepartments)
		require.True(t, ok)
		assert.Equal(t, 0, fresh.Len())
	})

	// Repairing the entities makes the same pending work save cleanly.
	nameless.FirstName = "Ann"
	underpaid.Salary = 2800
	require.NoError(t, ctx.SaveChanges())
}

func TestValidation_CleanModelSavesUnderRules(t *testing.T) {
	cfg := orgConfig(t)
	ensureSchema(t, cfg)

	ctx := newOrgContext(t, orm.WithValidator(orgRules(t)))
	attachOrg(t, ctx, cfg)

	employees, ok := ctx.Set(setEmployees)
	require.True(t, ok)
	require.NoError(t, employees.Add(&Employee{FirstName: "Ann", LastName: "Harte", Salary: 3200}))
	require.NoError(t, ctx.SaveChanges())
}
