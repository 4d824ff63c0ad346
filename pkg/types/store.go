package types

import "github.com/mesh-intelligence/mirror/pkg/schema"

// Store is the storage backend consumed by the Context. A Store is attached
// once, serves full-table loads and column discovery, and hands out one Tx
// per SaveChanges call. Implementations are free to keep the underlying
// connection open between calls; the Context never assumes otherwise.
// Implements prd001-context-core R2.
type Store interface {
	// Attach connects the Store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, all other operations return ErrNotAttached.
	Detach() error

	// ColumnNames returns the backing table's column names in declaration
	// order. The Context intersects this list (case-insensitively) with the
	// entity's mapped columns before every load and save.
	ColumnNames(table string) ([]string, error)

	// FetchAll loads every row of the entity's table, one entity instance
	// per row, with the named columns assigned through the entity's column
	// accessors. Row order follows the backend's natural order.
	FetchAll(entity *schema.Entity, columns []string) ([]any, error)

	// Begin opens the transaction for one SaveChanges call.
	Begin() (Tx, error)
}

// Tx is the per-save transaction handle. Each batch operation either fully
// succeeds or returns an error the Context treats as fatal to the whole
// save. Implementations must reflect backend-assigned key values (generated
// identifiers) onto the in-memory entities during Insert.
type Tx interface {
	// Insert persists the given entities as new rows.
	Insert(entity *schema.Entity, entities []any, columns []string) error

	// Update rewrites the named columns of the given entities, addressed by
	// primary key.
	Update(entity *schema.Entity, entities []any, columns []string) error

	// Delete removes the rows addressed by the given entities' primary keys.
	Delete(entity *schema.Entity, entities []any, columns []string) error

	// Commit makes the transaction durable.
	Commit() error

	// Rollback discards the transaction. Safe to call after a failed
	// operation; the original operation error is what callers surface.
	Rollback() error
}

// Validator is the black-box validity predicate run over every live entity
// before a save opens its transaction. The set name is the name the entity's
// collection was registered under, so failures can be grouped per set.
type Validator interface {
	Valid(set string, entity any) bool
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(set string, entity any) bool

// Valid calls f.
func (f ValidatorFunc) Valid(set string, entity any) bool {
	return f(set, entity)
}

// AcceptAll is the default Validator: every entity is valid.
var AcceptAll Validator = ValidatorFunc(func(string, any) bool { return true })
