// Demo entity model: a small departments/employees/projects aggregate with
// one-to-many and many-to-many navigation, declared the way any caller of
// pkg/orm declares a model.
package cli

import "github.com/mesh-intelligence/mirror/pkg/schema"

// Department is the principal of the one-to-many employee relationship.
type Department struct {
	ID   int64
	Name string

	// Employees is assigned by the relationship mapper.
	Employees []*Employee
}

// Employee holds a nullable foreign key to its department and a
// many-to-many project membership through Assignment.
type Employee struct {
	ID           int64
	FirstName    string
	LastName     string
	Salary       float64
	DepartmentID *int64

	// Department and Projects are assigned by the relationship mapper.
	Department *Department
	Projects   []*Project
}

// Project sits on the far side of the Assignment link.
type Project struct {
	ID   int64
	Name string

	// Members is assigned by the relationship mapper.
	Members []*Employee
}

// Assignment is the explicit many-to-many link entity between employees and
// projects. Composite key, two foreign keys, no payload.
type Assignment struct {
	EmployeeID int64
	ProjectID  int64
}

// Set names used on the demo context.
const (
	setDepartments = "departments"
	setEmployees   = "employees"
	setProjects    = "projects"
	setAssignments = "assignments"
)

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
				Assign: func(any, any) {}, // link rows carry no navigation state
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
