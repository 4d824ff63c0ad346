// Package rules implements a types.Validator on top of compiled
// expr-lang/expr boolean expressions. Rules are declared per set name and
// evaluated with the entity as the expression environment; an entity is
// valid iff every rule for its set yields true.
// Implements: prd004-validation-rules;
//
//	docs/ARCHITECTURE § Validation.
package rules

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Compile-time interface check: Engine must implement Validator.
var _ types.Validator = (*Engine)(nil)

// compiledRule pairs a rule expression with its compiled program.
type compiledRule struct {
	expression string
	program    *exprvm.Program
}

// Engine holds compiled rules keyed by set name. The zero value is unusable;
// call New.
type Engine struct {
	rules map[string][]compiledRule
}

// New creates an Engine with no rules. With no rules every entity is valid.
func New() *Engine {
	return &Engine{rules: make(map[string][]compiledRule)}
}

// Add compiles expression as a boolean rule for the named set. Expressions
// read entity fields directly, e.g. `FirstName != "" && Salary >= 0.0`.
// Compilation happens once, here; evaluation reuses the program.
func (e *Engine) Add(set, expression string) error {
	if expression == "" {
		return fmt.Errorf("rule for set %q: expression must not be empty", set)
	}
	program, err := exprlang.Compile(expression, exprlang.AsBool(), exprlang.AllowUndefinedVariables())
	if err != nil {
		return fmt.Errorf("rule for set %q: compile %q: %w", set, expression, err)
	}
	e.rules[set] = append(e.rules[set], compiledRule{expression: expression, program: program})
	return nil
}

// Valid runs every rule declared for the set against the entity. A rule that
// fails to evaluate counts as false: a predicate that cannot run cannot
// vouch for the entity.
func (e *Engine) Valid(set string, entity any) bool {
	for _, rule := range e.rules[set] {
		result, err := exprlang.Run(rule.program, entity)
		if err != nil {
			return false
		}
		ok, isBool := result.(bool)
		if !isBool || !ok {
			return false
		}
	}
	return true
}
