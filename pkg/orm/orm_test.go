// Shared test fixtures for the engine: a departments/employees/projects
// model and an in-memory fake store that records batch operations and can
// fail on demand.
package orm

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

var errBoom = errors.New("backend exploded")

type dept struct {
	ID   int64
	Name string
	Emps []*emp
}

type emp struct {
	ID     int64
	First  string
	Salary float64
	DeptID *int64

	Dept     *dept
	Projects []*proj
}

type proj struct {
	ID      int64
	Name    string
	Members []*emp
}

type asg struct {
	EmpID  int64
	ProjID int64
}

func deptEntity() *schema.Entity {
	return &schema.Entity{
		Name: "departments",
		New:  func() any { return &dept{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*dept).ID },
				Set: func(e any, v any) { e.(*dept).ID = v.(int64) },
			},
			{
				Name: "Name", Type: schema.TypeText,
				Get: func(e any) any { return e.(*dept).Name },
				Set: func(e any, v any) { e.(*dept).Name = v.(string) },
			},
		},
		Key: []string{"ID"},
		Collections: []schema.Collection{
			{
				Name: "Emps", Source: "employees", ForeignKey: "DeptID",
				Assign: func(principal any, dependents []any) {
					d := principal.(*dept)
					d.Emps = make([]*emp, 0, len(dependents))
					for _, e := range dependents {
						d.Emps = append(d.Emps, e.(*emp))
					}
				},
			},
		},
	}
}

func empEntity() *schema.Entity {
	return &schema.Entity{
		Name: "employees",
		New:  func() any { return &emp{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*emp).ID },
				Set: func(e any, v any) { e.(*emp).ID = v.(int64) },
			},
			{
				Name: "First", Type: schema.TypeText,
				Get: func(e any) any { return e.(*emp).First },
				Set: func(e any, v any) { e.(*emp).First = v.(string) },
			},
			{
				Name: "Salary", Type: schema.TypeFloat,
				Get: func(e any) any { return e.(*emp).Salary },
				Set: func(e any, v any) { e.(*emp).Salary = v.(float64) },
			},
			{
				Name: "DeptID", Type: schema.TypeInt64, Nullable: true,
				Get: func(e any) any {
					if id := e.(*emp).DeptID; id != nil {
						return *id
					}
					return nil
				},
				Set: func(e any, v any) {
					if v == nil {
						e.(*emp).DeptID = nil
						return
					}
					id := v.(int64)
					e.(*emp).DeptID = &id
				},
			},
		},
		Key: []string{"ID"},
		ForeignKeys: []schema.ForeignKey{
			{
				Column: "DeptID", Name: "Dept", Target: "departments",
				Assign: func(dependent, principal any) {
					if principal == nil {
						dependent.(*emp).Dept = nil
						return
					}
					dependent.(*emp).Dept = principal.(*dept)
				},
			},
		},
		Joins: []schema.Join{
			{
				Name: "Projects", Via: "assignments", NearKey: "EmpID", FarKey: "ProjID",
				Assign: func(principal any, far []any) {
					e := principal.(*emp)
					e.Projects = make([]*proj, 0, len(far))
					for _, p := range far {
						e.Projects = append(e.Projects, p.(*proj))
					}
				},
			},
		},
	}
}

func projEntity() *schema.Entity {
	return &schema.Entity{
		Name: "projects",
		New:  func() any { return &proj{} },
		Columns: []schema.Column{
			{
				Name: "ID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*proj).ID },
				Set: func(e any, v any) { e.(*proj).ID = v.(int64) },
			},
			{
				Name: "Name", Type: schema.TypeText,
				Get: func(e any) any { return e.(*proj).Name },
				Set: func(e any, v any) { e.(*proj).Name = v.(string) },
			},
		},
		Key: []string{"ID"},
		Joins: []schema.Join{
			{
				Name: "Members", Via: "assignments", NearKey: "ProjID", FarKey: "EmpID",
				Assign: func(principal any, far []any) {
					p := principal.(*proj)
					p.Members = make([]*emp, 0, len(far))
					for _, e := range far {
						p.Members = append(p.Members, e.(*emp))
					}
				},
			},
		},
	}
}

func asgEntity() *schema.Entity {
	return &schema.Entity{
		Name: "assignments",
		Link: true,
		New:  func() any { return &asg{} },
		Columns: []schema.Column{
			{
				Name: "EmpID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*asg).EmpID },
				Set: func(e any, v any) { e.(*asg).EmpID = v.(int64) },
			},
			{
				Name: "ProjID", Type: schema.TypeInt64,
				Get: func(e any) any { return e.(*asg).ProjID },
				Set: func(e any, v any) { e.(*asg).ProjID = v.(int64) },
			},
		},
		Key: []string{"EmpID", "ProjID"},
		ForeignKeys: []schema.ForeignKey{
			{Column: "EmpID", Name: "Emp", Target: "employees", Assign: func(any, any) {}},
			{Column: "ProjID", Name: "Proj", Target: "projects", Assign: func(any, any) {}},
		},
	}
}

// fakeStore is an in-memory types.Store. Rows seed FetchAll; ops records
// every batch call as "op:set"; failOn makes the named op (or "begin" /
// "commit") return errBoom.
type fakeStore struct {
	attached   bool
	columns    map[string][]string
	rows       map[string][]map[string]any
	ops        []string
	failOn     string
	nextID     int64
	begun      int
	committed  int
	rolledBack int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		columns: map[string][]string{
			"departments": {"ID", "Name"},
			"employees":   {"ID", "First", "Salary", "DeptID"},
			"projects":    {"ID", "Name"},
			"assignments": {"EmpID", "ProjID"},
		},
		rows:   make(map[string][]map[string]any),
		nextID: 100,
	}
}

func (f *fakeStore) Attach(types.Config) error {
	if f.attached {
		return types.ErrAlreadyAttached
	}
	f.attached = true
	return nil
}

func (f *fakeStore) Detach() error {
	f.attached = false
	return nil
}

func (f *fakeStore) ColumnNames(table string) ([]string, error) {
	if !f.attached {
		return nil, types.ErrNotAttached
	}
	cols, ok := f.columns[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return cols, nil
}

func (f *fakeStore) FetchAll(entity *schema.Entity, columns []string) ([]any, error) {
	if !f.attached {
		return nil, types.ErrNotAttached
	}
	out := make([]any, 0, len(f.rows[entity.TableName()]))
	for _, row := range f.rows[entity.TableName()] {
		item := entity.New()
		for _, name := range columns {
			col, _ := entity.Column(name)
			col.Set(item, row[name])
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeStore) Begin() (types.Tx, error) {
	if f.failOn == "begin" {
		return nil, errBoom
	}
	f.begun++
	return &fakeTx{f: f}, nil
}

type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) record(op string, entity *schema.Entity) error {
	key := op + ":" + entity.Name
	t.f.ops = append(t.f.ops, key)
	if t.f.failOn == key {
		return errBoom
	}
	return nil
}

func (t *fakeTx) Insert(entity *schema.Entity, entities []any, columns []string) error {
	if err := t.record("insert", entity); err != nil {
		return err
	}
	// Backend-assigned identity for an unassigned single int64 key.
	if len(entity.Key) == 1 {
		col, ok := entity.Column(entity.Key[0])
		if ok && col.Type == schema.TypeInt64 {
			for _, item := range entities {
				if v := col.Get(item); v == nil || v.(int64) == 0 {
					t.f.nextID++
					col.Set(item, t.f.nextID)
				}
			}
		}
	}
	return nil
}

func (t *fakeTx) Update(entity *schema.Entity, entities []any, columns []string) error {
	return t.record("update", entity)
}

func (t *fakeTx) Delete(entity *schema.Entity, entities []any, columns []string) error {
	return t.record("delete", entity)
}

func (t *fakeTx) Commit() error {
	if t.f.failOn == "commit" {
		return errBoom
	}
	t.f.committed++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.f.rolledBack++
	return nil
}

// testConfig is a valid attach config for the fake store.
var testConfig = types.Config{Backend: types.BackendSQLite, DataDir: "unused"}

// deptRow and empRow build seed rows for the fake store.
func deptRow(id int64, name string) map[string]any {
	return map[string]any{"ID": id, "Name": name}
}

func empRow(id int64, first string, salary float64, deptID any) map[string]any {
	return map[string]any{"ID": id, "First": first, "Salary": salary, "DeptID": deptID}
}

// newTestContext builds a Context over the store with the full test model
// registered in principal-first order.
func newTestContext(store types.Store, opts ...Option) *Context {
	c := NewContext(store, opts...)
	c.MustRegister(deptEntity())
	c.MustRegister(empEntity())
	c.MustRegister(projEntity())
	c.MustRegister(asgEntity())
	return c
}
