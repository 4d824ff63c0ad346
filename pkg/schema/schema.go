// Package schema declares the per-entity metadata the mirror Context maps,
// tracks, and persists against: table name, mapped scalar columns, primary
// key, and relationship declarations. Metadata is declared statically at
// registration and validated once; it is immutable afterward.
// Implements: prd003-entity-schema;
//
//	docs/ARCHITECTURE § Entity Metadata.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies the storage type of a mapped scalar column. Only types on
// this allow-list participate in mapping; anything else on an entity is
// invisible to the engine. Extend deliberately, never infer.
type Type string

// The supported column value kinds (prd003-entity-schema R2).
const (
	TypeText    Type = "text"    // string
	TypeBool    Type = "bool"    // bool
	TypeInt     Type = "int"     // int
	TypeInt64   Type = "int64"   // int64
	TypeFloat   Type = "float"   // float64
	TypeDecimal Type = "decimal" // string-encoded decimal
	TypeTime    Type = "time"    // time.Time
	TypeBlob    Type = "blob"    // []byte
	TypeUUID    Type = "uuid"    // string, RFC 4122 text form
)

// mappableTypes is the allow-list of column types the engine maps.
var mappableTypes = map[Type]bool{
	TypeText:    true,
	TypeBool:    true,
	TypeInt:     true,
	TypeInt64:   true,
	TypeFloat:   true,
	TypeDecimal: true,
	TypeTime:    true,
	TypeBlob:    true,
	TypeUUID:    true,
}

// Mappable reports whether t is on the allow-list.
func (t Type) Mappable() bool {
	return mappableTypes[t]
}

// Column describes one mapped scalar column. Get and Set are the only paths
// the engine uses to read and write the column value on an entity instance;
// nullable columns report and accept nil.
type Column struct {
	Name     string
	Type     Type
	Nullable bool

	// Excluded removes an otherwise-mappable column from mapping.
	Excluded bool

	Get func(entity any) any
	Set func(entity any, value any)
}

// ForeignKey declares a scalar foreign-key column on the dependent entity
// together with the navigation reference it stands in for. Assign is the
// mapper-only mutation path for the navigation reference; it receives nil
// when the foreign-key value is null.
type ForeignKey struct {
	// Column is the foreign-key scalar column declared on this entity.
	Column string

	// Name is the navigation property name, used in diagnostics.
	Name string

	// Target is the set name the principal entity type is registered under.
	Target string

	Assign func(dependent, principal any)
}

// Collection declares a one-to-many navigation collection on the principal
// entity. Assign replaces the collection wholesale with a fresh slice of the
// dependents whose foreign key equals this entity's primary key.
type Collection struct {
	// Name is the navigation property name, used in diagnostics.
	Name string

	// Source is the set name of the dependent entity type.
	Source string

	// ForeignKey is the column on the dependent pointing back here.
	ForeignKey string

	Assign func(principal any, dependents []any)
}

// Join declares a many-to-many navigation collection resolved through an
// explicit link entity. The link set must be registered with Link=true and
// declare exactly two foreign keys; NearKey is the link column pointing at
// this entity, FarKey the link column pointing at the far side. Link
// entities are never inferred from shape.
type Join struct {
	// Name is the navigation property name, used in diagnostics.
	Name string

	// Via is the set name of the link entity.
	Via string

	NearKey string
	FarKey  string

	Assign func(principal any, far []any)
}

// Entity is the full metadata record for one entity type. Name doubles as
// the table name unless Table overrides it. Built once at registration,
// immutable afterward.
type Entity struct {
	// Name is the set name the entity registers under on the Context.
	Name string

	// Table overrides the backing table name. Empty means Name is used.
	Table string

	// Link marks a many-to-many link entity. Link entities must declare
	// exactly two foreign keys and cannot be the source of a plain
	// Collection.
	Link bool

	// New constructs a zero-valued entity instance for row hydration.
	New func() any

	Columns []Column

	// Key lists the primary-key column names in comparison order.
	// Composite keys are compared as an ordered tuple.
	Key []string

	ForeignKeys []ForeignKey
	Collections []Collection
	Joins       []Join
}

// Declaration errors (prd003-entity-schema R5). All are configuration
// errors: fatal, raised at registration, never retried.
var (
	ErrNoName            = errors.New("entity must declare a set name")
	ErrNoFactory         = errors.New("entity must declare a New factory")
	ErrNoPrimaryKey      = errors.New("entity must declare at least one primary-key column")
	ErrUnknownColumn     = errors.New("declaration names a column the entity does not map")
	ErrUnknownNavigation = errors.New("foreign key names no navigation assign func")
	ErrColumnAccessor    = errors.New("mapped column must declare Get and Set accessors")
	ErrLinkShape         = errors.New("link entity must declare exactly two foreign keys")
)

// TableName resolves the backing table name: the explicit Table override if
// present, else the set name.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

// Column returns the declared column with the given name. The match is
// case-insensitive, mirroring the backing-table name match used for mapping.
func (e *Entity) Column(name string) (*Column, bool) {
	for i := range e.Columns {
		if strings.EqualFold(e.Columns[i].Name, name) {
			return &e.Columns[i], true
		}
	}
	return nil, false
}

// Mapped returns the columns eligible for mapping: type on the allow-list
// and not excluded. The backing-table intersection happens per load/save
// against the store's column list.
func (e *Entity) Mapped() []Column {
	out := make([]Column, 0, len(e.Columns))
	for _, c := range e.Columns {
		if c.Type.Mappable() && !c.Excluded {
			out = append(out, c)
		}
	}
	return out
}

// MappedIn intersects the mapped columns with the backing table's column
// names, case-insensitively, preserving declaration order. A mapped column
// absent from the backing table silently drops out of the round trip.
func (e *Entity) MappedIn(backing []string) []Column {
	out := make([]Column, 0, len(e.Columns))
	for _, c := range e.Mapped() {
		for _, name := range backing {
			if strings.EqualFold(c.Name, name) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Validate checks the declaration for internal consistency. Cross-set facts
// (whether Target, Source, and Via name registered sets) are checked by the
// Context at registration and resolution time.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return ErrNoName
	}
	if e.New == nil {
		return fmt.Errorf("entity %q: %w", e.Name, ErrNoFactory)
	}
	for _, c := range e.Columns {
		if !c.Type.Mappable() || c.Excluded {
			continue
		}
		if c.Get == nil || c.Set == nil {
			return fmt.Errorf("entity %q column %q: %w", e.Name, c.Name, ErrColumnAccessor)
		}
	}
	if len(e.Key) == 0 {
		return fmt.Errorf("entity %q: %w", e.Name, ErrNoPrimaryKey)
	}
	for _, k := range e.Key {
		if !e.mapsColumn(k) {
			return fmt.Errorf("entity %q key %q: %w", e.Name, k, ErrUnknownColumn)
		}
	}
	for _, fk := range e.ForeignKeys {
		if !e.mapsColumn(fk.Column) {
			return fmt.Errorf("entity %q foreign key %q: %w", e.Name, fk.Column, ErrUnknownColumn)
		}
		if fk.Assign == nil {
			return fmt.Errorf("entity %q foreign key %q: %w", e.Name, fk.Column, ErrUnknownNavigation)
		}
	}
	if e.Link && len(e.ForeignKeys) != 2 {
		return fmt.Errorf("entity %q: %w", e.Name, ErrLinkShape)
	}
	return nil
}

// mapsColumn reports whether name is a mapped column of e.
func (e *Entity) mapsColumn(name string) bool {
	for _, c := range e.Mapped() {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// KeyOf reads the entity's primary-key tuple in declared key order.
func (e *Entity) KeyOf(entity any) Key {
	key := make(Key, 0, len(e.Key))
	for _, name := range e.Key {
		c, _ := e.Column(name)
		key = append(key, c.Get(entity))
	}
	return key
}

// Snapshot captures the entity's mapped scalar column values as a frozen
// map, the comparison anchor for change detection. Navigation state is never
// captured. Blob values are copied so the snapshot never aliases a slice the
// caller can mutate in place.
func (e *Entity) Snapshot(entity any) map[string]any {
	snap := make(map[string]any, len(e.Columns))
	for _, c := range e.Mapped() {
		value := c.Get(entity)
		if b, ok := value.([]byte); ok {
			value = append([]byte(nil), b...)
		}
		snap[c.Name] = value
	}
	return snap
}

// KeyFromSnapshot reads the primary-key tuple out of a Snapshot map.
func (e *Entity) KeyFromSnapshot(snap map[string]any) Key {
	key := make(Key, 0, len(e.Key))
	for _, name := range e.Key {
		c, _ := e.Column(name)
		key = append(key, snap[c.Name])
	}
	return key
}
