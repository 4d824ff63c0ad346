// Package integration exercises the full stack end to end: a declared
// entity model, a context over the SQLite store, and real transactions
// on a temp-dir database.
// Implements: prd001-context-core, prd002-sqlite-store (end-to-end).
package integration

import (
	"testing"

	"github.com/mesh-intelligence/mirror/internal/sqlite"
	"github.com/mesh-intelligence/mirror/pkg/orm"
	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Department is the principal of the one-to-many employee relationship.
type Department struct {
	ID   int64
	Name string

	Employees []*Employee
}

// Employee carries a nullable department foreign key and a many-to-many
// project membership through Assignment.
type Employee struct {
	ID           int64
	FirstName    string
	LastName     string
	Salary       float64
	DepartmentID *int64

	Department *Department
	Projects   []*Project
}

// Project sits on the far side of the Assignment link.
type Project struct {
	ID   int64
	Name string

	Members []*Employee
}

// Assignment links employees to projects. Composite key, no payload.
type Assignment struct {
	EmployeeID int64
	ProjectID  int64
}

const (
	setDepartments = "departments"
	setEmployees   = "employees"
	setProjects    = "projects"
	setAssignments = "assignments"
)

const orgDDL = `
CREATE TABLE IF NOT EXISTS departments (
	ID   INTEGER PRIMARY KEY,
	Name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS employees (
	ID           INTEGER PRIMARY KEY,
	FirstName    TEXT NOT NULL,
	LastName     TEXT NOT NULL,
	Salary       REAL NOT NULL DEFAULT 0,
	DepartmentID INTEGER REFERENCES departments(ID)
);
CREATE TABLE IF NOT EXISTS projects (
	ID   INTEGER PRIMARY KEY,
	Name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS assignments (
	EmployeeID INTEGER NOT NULL REFERENCES employees(ID),
	ProjectID  INTEGER NOT NULL REFERENCES projects(ID),
	PRIMARY KEY (EmployeeID, ProjectID)
);
`

func departmentEntity() *schema.Entity {
	return &schema.Entity{
		Name: setDepartments,
		New:  func() any { return &Department{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*Department).ID },
				Set: func(e any, v any) { e.(*Department).ID = v.(int64) },
			},
			{
				Name: "Name", Type: schema.TypeText,
				Get: func(e any) any { return e.(*Department).Name },
				Set: func(e any, v any) { e.(*Department).Name = v.(string) },
			},
		},
		Key: []string{"ID"},
		Collections: []schema.Collection{
			{
				Name:       "Employees",
				Source:     setEmployees,
				ForeignKey: "DepartmentID",
				Assign: func(principal any, dependents []any) {
					d := principal.(*Department)
					d.Employees = make([]*Employee, 0, len(dependents))
					for _, dep := range dependents {
						d.Employees = append(d.Employees, dep.(*Employee))
					}
				},
			},
		},
	}
}

func employeeEntity() *schema.Entity {
	return &schema.Entity{
		Name: setEmployees,
		New:  func() any { return &Employee{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*Employee).ID },
				Set: func(e any, v any) { e.(*Employee).ID = v.(int64) },
			},
			{
				Name: "FirstName", Type: schema.TypeText,
				Get: func(e any) any { return e.(*Employee).FirstName },
				Set: func(e any, v any) { e.(*Employee).FirstName = v.(string) },
			},
			{
				Name: "LastName", Type: schema.TypeText,
				Get: func(e any) any { return e.(*Employee).LastName },
				Set: func(e any, v any) { e.(*Employee).LastName = v.(string) },
			},
			{
				Name: "Salary", Type: schema.TypeFloat,
				Get: func(e any) any { return e.(*Employee).Salary },
				Set: func(e any, v any) { e.(*Employee).Salary = v.(float64) },
			},
			{
				Name: "DepartmentID", Type: schema.TypeInt64, Nullable: true,
				Get: func(e any) any {
					if id := e.(*Employee).DepartmentID; id != nil {
						return *id
					}
					return nil
				},
				Set: func(e any, v any) {
					if v == nil {
						e.(*Employee).DepartmentID = nil
						return
					}
					id := v.(int64)
					e.(*Employee).DepartmentID = &id
				},
			},
		},
		Key: []string{"ID"},
		ForeignKeys: []schema.ForeignKey{
			{
				Column: "DepartmentID",
				Name:   "Department",
				Target: setDepartments,
				Assign: func(dependent, principal any) {
					if principal == nil {
						dependent.(*Employee).Department = nil
						return
					}
					dependent.(*Employee).Department = principal.(*Department)
				},
			},
		},
		Joins: []schema.Join{
			{
				Name:    "Projects",
				Via:     setAssignments,
				NearKey: "EmployeeID",
				FarKey:  "ProjectID",
				Assign: func(principal any, far []any) {
					e := principal.(*Employee)
					e.Projects = make([]*Project, 0, len(far))
					for _, p := range far {
						e.Projects = append(e.Projects, p.(*Project))
					}
				},
			},
		},
	}
}

func projectEntity() *schema.Entity {
	return &schema.Entity{
		Name: setProjects,
		New:  func() any { return &Project{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*Project).ID },
				Set: func(e any, v any) { e.(*Project).ID = v.(int64) },
			},
			{
				Name: "Name", Type: schema.TypeText,
				Get: func(e any) any { return e.(*Project).Name },
				Set: func(e any, v any) { e.(*Project).Name = v.(string) },
			},
		},
		Key: []string{"ID"},
		Joins: []schema.Join{
			{
				Name:    "Members",
				Via:     setAssignments,
				NearKey: "ProjectID",
				FarKey:  "EmployeeID",
				Assign: func(principal any, far []any) {
					p := principal.(*Project)
					p.Members = make([]*Employee, 0, len(far))
					for _, e := range far {
						p.Members = append(p.Members, e.(*Employee))
					}
				},
			},
		},
	}
}

func assignmentEntity() *schema.Entity {
	return &schema.Entity{
		Name: setAssignments,
		Link: true,
		New:  func() any { return &Assignment{} },
		Columns: []schema.Column{
			{
				Name: "EmployeeID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*Assignment).EmployeeID },
				Set: func(e any, v any) { e.(*Assignment).EmployeeID = v.(int64) },
			},
			{
				Name: "ProjectID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*Assignment).ProjectID },
				Set: func(e any, v any) { e.(*Assignment).ProjectID = v.(int64) },
			},
		},
		Key: []string{"EmployeeID", "ProjectID"},
		ForeignKeys: []schema.ForeignKey{
			{
				Column: "EmployeeID",
				Name:   "Employee",
				Target: setEmployees,
				Assign: func(any, any) {},
			},
			{
				Column: "ProjectID",
				Name:   "Project",
				Target: setProjects,
				Assign: func(any, any) {},
			},
		},
	}
}

// orgConfig returns a config rooted at a fresh temp directory.
func orgConfig(t *testing.T) types.Config {
	t.Helper()
	return types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
}

// ensureSchema applies the org DDL through a short-lived store attachment.
func ensureSchema(t *testing.T, cfg types.Config) {
	t.Helper()
	store := sqlite.NewStore()
	if err := store.Attach(cfg); err != nil {
		t.Fatalf("attach store for schema: %v", err)
	}
	defer store.Detach()
	if err := store.Exec(orgDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

// newOrgContext builds a context over a fresh SQLite store with the full
// org model registered.
func newOrgContext(t *testing.T, opts ...orm.Option) *orm.Context {
	t.Helper()
	ctx := orm.NewContext(sqlite.NewStore(), opts...)
	ctx.MustRegister(departmentEntity())
	ctx.MustRegister(employeeEntity())
	ctx.MustRegister(projectEntity())
	ctx.MustRegister(assignmentEntity())
	return ctx
}

// attachOrg attaches ctx over cfg and registers detach cleanup.
func attachOrg(t *testing.T, ctx *orm.Context, cfg types.Config) {
	t.Helper()
	if err := ctx.Attach(cfg); err != nil {
		t.Fatalf("attach context: %v", err)
	}
	t.Cleanup(func() { ctx.Detach() })
}
