// Implements: prd005-cli R5 (demo command).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mirror/internal/sqlite"
	"github.com/mesh-intelligence/mirror/pkg/orm"
	"github.com/mesh-intelligence/mirror/pkg/rules"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// demoDDL creates the demo tables on first run.
const demoDDL = `
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

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the departments/employees showcase",
		Long: "Seed a small departments/employees/projects aggregate on first run,\n" +
			"then load it, apply a change, and save it back in one transaction.",
		RunE: runDemo,
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitError(exitUserError, fmt.Sprintf("load config: %s", err))
	}

	if err := ensureDemoSchema(cfg); err != nil {
		return exitError(exitSysError, fmt.Sprintf("create demo schema: %s", err))
	}

	ctx, err := newDemoContext()
	if err != nil {
		return exitError(exitSysError, fmt.Sprintf("build context: %s", err))
	}
	if err := ctx.Attach(cfg); err != nil {
		return exitError(exitSysError, fmt.Sprintf("attach: %s", err))
	}
	defer ctx.Detach()

	departments, _ := ctx.Set(setDepartments)
	if departments.Len() == 0 {
		if err := seedDemo(ctx); err != nil {
			return exitError(exitSysError, fmt.Sprintf("seed: %s", err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Seeded demo data.")
	}

	printMirror(cmd, ctx)

	// One tracked change: a raise for the first employee, saved atomically
	// with whatever else is pending.
	employees, _ := ctx.Set(setEmployees)
	if employees.Len() > 0 {
		first := employees.Entities()[0].(*Employee)
		first.Salary += 100
		if err := ctx.SaveChanges(); err != nil {
			return exitError(exitSysError, fmt.Sprintf("save: %s", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nGave %s %s a raise; new salary %.2f (saved).\n",
			first.FirstName, first.LastName, first.Salary)
	}

	return nil
}

// ensureDemoSchema creates the demo tables through a short-lived store
// attachment; the context attaches separately afterwards.
func ensureDemoSchema(cfg types.Config) error {
	store := sqlite.NewStore()
	if err := store.Attach(cfg); err != nil {
		return err
	}
	defer store.Detach()
	return store.Exec(demoDDL)
}

// newDemoContext wires the demo model and its validation rules.
func newDemoContext() (*orm.Context, error) {
	engine := rules.New()
	ruleSet := map[string][]string{
		setDepartments: {`Name != ""`},
		setEmployees:   {`FirstName != ""`, `Salary >= 0.0`},
		setProjects:    {`Name != ""`},
	}
	for set, exprs := range ruleSet {
		for _, expression := range exprs {
			if err := engine.Add(set, expression); err != nil {
				return nil, err
			}
		}
	}

	ctx := orm.NewContext(sqlite.NewStore(), orm.WithValidator(engine))
	if _, err := ctx.Register(departmentEntity()); err != nil {
		return nil, err
	}
	if _, err := ctx.Register(employeeEntity()); err != nil {
		return nil, err
	}
	if _, err := ctx.Register(projectEntity()); err != nil {
		return nil, err
	}
	if _, err := ctx.Register(assignmentEntity()); err != nil {
		return nil, err
	}
	return ctx, nil
}

// seedDemo adds the initial aggregate and saves twice: the first save
// assigns employee and project identifiers, the second persists the link
// rows that need them.
func seedDemo(ctx *orm.Context) error {
	departments, _ := ctx.Set(setDepartments)
	employees, _ := ctx.Set(setEmployees)
	projects, _ := ctx.Set(setProjects)
	assignments, _ := ctx.Set(setAssignments)

	rnd := &Department{Name: "R&D"}
	sales := &Department{Name: "Sales"}
	if err := departments.Add(rnd); err != nil {
		return err
	}
	if err := departments.Add(sales); err != nil {
		return err
	}
	if err := ctx.SaveChanges(); err != nil {
		return err
	}

	ann := &Employee{FirstName: "Ann", LastName: "Harte", Salary: 3200, DepartmentID: &rnd.ID}
	ben := &Employee{FirstName: "Ben", LastName: "Okoye", Salary: 2800, DepartmentID: &sales.ID}
	apollo := &Project{Name: "Apollo"}
	for _, err := range []error{employees.Add(ann), employees.Add(ben), projects.Add(apollo)} {
		if err != nil {
			return err
		}
	}
	if err := ctx.SaveChanges(); err != nil {
		return err
	}

	if err := assignments.Add(&Assignment{EmployeeID: ann.ID, ProjectID: apollo.ID}); err != nil {
		return err
	}
	return ctx.SaveChanges()
}

// printMirror renders the loaded aggregate with its resolved navigation.
func printMirror(cmd *cobra.Command, ctx *orm.Context) {
	departments, _ := ctx.Set(setDepartments)
	projects, _ := ctx.Set(setProjects)

	for _, item := range departments.Entities() {
		d := item.(*Department)
		fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", d.Name)
		for _, e := range d.Employees {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s (salary %.2f, %d projects)\n",
				e.FirstName, e.LastName, e.Salary, len(e.Projects))
		}
	}
	for _, item := range projects.Entities() {
		p := item.(*Project)
		fmt.Fprintf(cmd.OutOrStdout(), "project %s: %d members\n", p.Name, len(p.Members))
	}
}
