package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Compile-time interface check: storeTx must implement types.Tx.
var _ types.Tx = (*storeTx)(nil)

// storeTx wraps one *sql.Tx for the duration of a save. Batch operations
// run row by row; the first failure aborts and surfaces unchanged so the
// engine can roll back the whole save.
type storeTx struct {
	tx *sql.Tx
}

// Insert persists the entities as new rows. Key generation follows the key
// column's type: an unassigned single integer key is left to SQLite and the
// assigned rowid is reflected back onto the entity; an empty single text or
// uuid key gets a generated UUID v7 before the write.
func (t *storeTx) Insert(entity *schema.Entity, entities []any, columns []string) error {
	for _, item := range entities {
		if err := t.insertOne(entity, item, columns); err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) insertOne(entity *schema.Entity, item any, columns []string) error {
	autoKey := pendingAutoKey(entity, item)

	if autoKey != nil && isStringType(autoKey.Type) {
		autoKey.Set(item, generateUUID())
		autoKey = nil
	}

	names := make([]string, 0, len(columns))
	values := make([]any, 0, len(columns))
	for _, name := range columns {
		if autoKey != nil && strings.EqualFold(name, autoKey.Name) {
			continue
		}
		col, ok := entity.Column(name)
		if !ok {
			return fmt.Errorf("insert %q column %q: %w", entity.TableName(), name, schema.ErrUnknownColumn)
		}
		names = append(names, name)
		values = append(values, bindValue(col.Type, col.Get(item)))
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		entity.TableName(), quoteAll(names), placeholders(len(names)))
	result, err := t.tx.Exec(query, values...)
	if err != nil {
		return err
	}

	if autoKey != nil {
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		if autoKey.Type == schema.TypeInt {
			autoKey.Set(item, int(id))
		} else {
			autoKey.Set(item, id)
		}
	}
	return nil
}

// Update rewrites the non-key mapped columns of each entity, addressed by
// primary key. Entities with no non-key columns (pure link rows) are
// skipped; there is nothing to set.
func (t *storeTx) Update(entity *schema.Entity, entities []any, columns []string) error {
	assignable := make([]string, 0, len(columns))
	for _, name := range columns {
		if !isKeyColumn(entity, name) {
			assignable = append(assignable, name)
		}
	}
	if len(assignable) == 0 {
		return nil
	}

	for _, item := range entities {
		sets := make([]string, 0, len(assignable))
		values := make([]any, 0, len(assignable)+len(entity.Key))
		for _, name := range assignable {
			col, _ := entity.Column(name)
			sets = append(sets, fmt.Sprintf("%q = ?", name))
			values = append(values, bindValue(col.Type, col.Get(item)))
		}
		where, keyValues := keyPredicate(entity, item)
		values = append(values, keyValues...)

		query := fmt.Sprintf("UPDATE %q SET %s WHERE %s",
			entity.TableName(), strings.Join(sets, ", "), where)
		if _, err := t.tx.Exec(query, values...); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the rows addressed by each entity's primary key.
func (t *storeTx) Delete(entity *schema.Entity, entities []any, _ []string) error {
	for _, item := range entities {
		where, keyValues := keyPredicate(entity, item)
		query := fmt.Sprintf("DELETE FROM %q WHERE %s", entity.TableName(), where)
		if _, err := t.tx.Exec(query, keyValues...); err != nil {
			return err
		}
	}
	return nil
}

// Commit makes the transaction durable.
func (t *storeTx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction.
func (t *storeTx) Rollback() error {
	return t.tx.Rollback()
}

// pendingAutoKey returns the single key column whose value is still
// unassigned on item, or nil when the key is composite or already set.
func pendingAutoKey(entity *schema.Entity, item any) *schema.Column {
	if len(entity.Key) != 1 {
		return nil
	}
	col, ok := entity.Column(entity.Key[0])
	if !ok {
		return nil
	}
	if !isUnassignedKey(col.Type, col.Get(item)) {
		return nil
	}
	return col
}

// isUnassignedKey reports whether a key value still has its zero value.
func isUnassignedKey(t schema.Type, value any) bool {
	if value == nil {
		return true
	}
	switch t {
	case schema.TypeInt:
		v, ok := value.(int)
		return ok && v == 0
	case schema.TypeInt64:
		v, ok := value.(int64)
		return ok && v == 0
	case schema.TypeText, schema.TypeUUID:
		v, ok := value.(string)
		return ok && v == ""
	default:
		return false
	}
}

// isStringType reports whether the type stores as a string key.
func isStringType(t schema.Type) bool {
	return t == schema.TypeText || t == schema.TypeUUID
}

// isKeyColumn reports whether name is one of the entity's key columns.
func isKeyColumn(entity *schema.Entity, name string) bool {
	for _, k := range entity.Key {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// keyPredicate builds the WHERE clause and bind values addressing item by
// its primary key, in declared key order.
func keyPredicate(entity *schema.Entity, item any) (string, []any) {
	parts := make([]string, 0, len(entity.Key))
	values := make([]any, 0, len(entity.Key))
	for _, name := range entity.Key {
		col, _ := entity.Column(name)
		parts = append(parts, fmt.Sprintf("%q = ?", name))
		values = append(values, bindValue(col.Type, col.Get(item)))
	}
	return strings.Join(parts, " AND "), values
}

// placeholders renders n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
