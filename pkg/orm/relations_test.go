package orm

import (
	"errors"
	"testing"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// attachFixture seeds the fake store with one department aggregate and
// attaches a full-model context over it.
func attachFixture(t *testing.T) (*Context, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.rows["departments"] = []map[string]any{
		deptRow(1, "R&D"),
		deptRow(2, "Sales"),
	}
	store.rows["employees"] = []map[string]any{
		empRow(10, "Ann", 3200, int64(1)),
		empRow(11, "Ben", 2800, int64(1)),
		empRow(12, "Cyn", 3000, nil),
	}
	store.rows["projects"] = []map[string]any{
		{"ID": int64(20), "Name": "Apollo"},
	}
	store.rows["assignments"] = []map[string]any{
		{"EmpID": int64(10), "ProjID": int64(20)},
	}

	c := newTestContext(store)
	if err := c.Attach(testConfig); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return c, store
}

func TestResolve_ScalarNavigation(t *testing.T) {
	c, _ := attachFixture(t)

	employees, _ := c.Set("employees")
	byFirst := make(map[string]*emp)
	for _, item := range employees.Entities() {
		e := item.(*emp)
		byFirst[e.First] = e
	}

	if byFirst["Ann"].Dept == nil || byFirst["Ann"].Dept.Name != "R&D" {
		t.Errorf("Ann.Dept = %+v, want R&D", byFirst["Ann"].Dept)
	}
	if byFirst["Cyn"].Dept != nil {
		t.Error("null foreign key must resolve to an explicit nil principal")
	}
}

func TestResolve_CollectionNavigation(t *testing.T) {
	c, _ := attachFixture(t)

	departments, _ := c.Set("departments")
	var rnd, sales *dept
	for _, item := range departments.Entities() {
		d := item.(*dept)
		switch d.Name {
		case "R&D":
			rnd = d
		case "Sales":
			sales = d
		}
	}

	if len(rnd.Emps) != 2 {
		t.Errorf("R&D has %d employees, want 2", len(rnd.Emps))
	}
	if len(sales.Emps) != 0 {
		t.Errorf("Sales has %d employees, want a fresh empty collection", len(sales.Emps))
	}
}

func TestResolve_JoinNavigationThroughLinkSet(t *testing.T) {
	c, _ := attachFixture(t)

	employees, _ := c.Set("employees")
	projects, _ := c.Set("projects")

	var ann *emp
	for _, item := range employees.Entities() {
		if e := item.(*emp); e.First == "Ann" {
			ann = e
		}
	}
	apollo := projects.Entities()[0].(*proj)

	if len(ann.Projects) != 1 || ann.Projects[0] != apollo {
		t.Errorf("Ann.Projects = %v, want [Apollo]", ann.Projects)
	}
	if len(apollo.Members) != 1 || apollo.Members[0] != ann {
		t.Errorf("Apollo.Members = %v, want [Ann]", apollo.Members)
	}
}

func TestResolve_IsIdempotentAndDeterministic(t *testing.T) {
	c, _ := attachFixture(t)

	departments, _ := c.Set("departments")
	first := make(map[*dept][]*emp)
	for _, item := range departments.Entities() {
		d := item.(*dept)
		first[d] = d.Emps
	}

	if err := c.resolve(); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	for _, item := range departments.Entities() {
		d := item.(*dept)
		before := first[d]
		if len(before) != len(d.Emps) {
			t.Fatalf("department %q collection size changed across resolves", d.Name)
		}
		for i := range before {
			if before[i] != d.Emps[i] {
				t.Errorf("department %q element %d changed identity", d.Name, i)
			}
		}
	}
}

func TestAttach_MissingPrincipalIsConfigurationError(t *testing.T) {
	store := newFakeStore()
	store.rows["employees"] = []map[string]any{
		empRow(10, "Ann", 3200, int64(77)), // no department 77
	}

	c := newTestContext(store)
	err := c.Attach(testConfig)
	if !errors.Is(err, types.ErrMissingPrincipal) {
		t.Fatalf("expected ErrMissingPrincipal, got %v", err)
	}
	if store.attached {
		t.Error("store left attached after failed Attach")
	}
}

func TestAttach_UnregisteredNavigationTarget(t *testing.T) {
	store := newFakeStore()
	c := NewContext(store)
	c.MustRegister(empEntity()) // departments and assignments never registered

	err := c.Attach(testConfig)
	if !errors.Is(err, types.ErrSetNotRegistered) {
		t.Fatalf("expected ErrSetNotRegistered, got %v", err)
	}
}

func TestAttach_CollectionSourcingLinkSetIsRejected(t *testing.T) {
	store := newFakeStore()
	c := NewContext(store)

	bad := projEntity()
	bad.Joins = nil
	bad.Collections = []schema.Collection{{
		Name: "Rows", Source: "assignments", ForeignKey: "ProjID",
		Assign: func(any, []any) {},
	}}

	c.MustRegister(deptEntity())
	c.MustRegister(empEntity())
	c.MustRegister(bad)
	c.MustRegister(asgEntity())

	err := c.Attach(testConfig)
	if !errors.Is(err, schema.ErrLinkShape) {
		t.Fatalf("expected ErrLinkShape, got %v", err)
	}
}
