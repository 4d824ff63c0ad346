package orm

import (
	"fmt"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Context is the unit-of-work root: it owns one Set per registered entity
// type, loads them all from the Store on Attach, resolves relationships in
// memory, and replays tracked changes inside one transaction per
// SaveChanges call.
//
// A Context is single-writer. Nothing here locks; concurrent callers need
// their own mutual exclusion around Add/Remove and SaveChanges.
type Context struct {
	store     types.Store
	validator types.Validator
	attached  bool
	sets      []*Set
	byName    map[string]*Set
}

// Option configures a Context at construction.
type Option func(*Context)

// WithValidator wires the validity predicate run before every save. The
// default accepts every entity.
func WithValidator(v types.Validator) Option {
	return func(c *Context) {
		if v != nil {
			c.validator = v
		}
	}
}

// NewContext creates a detached Context over the given Store. Register entity
// declarations, then Attach to load.
func NewContext(store types.Store, opts ...Option) *Context {
	c := &Context{
		store:     store,
		validator: types.AcceptAll,
		byName:    make(map[string]*Set),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register declares an entity type and creates its Set. Registration order
// is the persistence order during SaveChanges, so principals should register
// before their dependents. Fails with a configuration error on an invalid
// declaration, a duplicate name, or after Attach.
func (c *Context) Register(entity *schema.Entity) (*Set, error) {
	if c.attached {
		return nil, types.ErrAlreadyAttached
	}
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	if _, exists := c.byName[entity.Name]; exists {
		return nil, fmt.Errorf("set %q: %w", entity.Name, types.ErrDuplicateSet)
	}
	s := newSet(entity)
	c.sets = append(c.sets, s)
	c.byName[entity.Name] = s
	return s, nil
}

// MustRegister is Register, panicking on configuration errors. Declaration
// mistakes are programmer errors, so demo and test wiring uses this form.
func (c *Context) MustRegister(entity *schema.Entity) *Set {
	s, err := c.Register(entity)
	if err != nil {
		panic(err)
	}
	return s
}

// Set returns the registered set with the given name.
func (c *Context) Set(name string) (*Set, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Sets returns the registered sets in registration order.
func (c *Context) Sets() []*Set {
	out := make([]*Set, len(c.sets))
	copy(out, c.sets)
	return out
}

// Attach validates cross-set declarations, attaches the Store, performs the
// full-table load for every set, and resolves relationships in memory.
// Returns ErrAlreadyAttached when called twice. On any failure the Store is
// detached again and the Context stays detached.
func (c *Context) Attach(config types.Config) error {
	if c.attached {
		return types.ErrAlreadyAttached
	}
	if err := c.validateRegistrations(); err != nil {
		return err
	}
	if err := c.store.Attach(config); err != nil {
		return err
	}
	if err := c.loadAll(); err != nil {
		_ = c.store.Detach()
		return err
	}
	c.attached = true
	if err := c.resolve(); err != nil {
		c.attached = false
		_ = c.store.Detach()
		return err
	}
	return nil
}

// Detach releases the Store. Idempotent.
func (c *Context) Detach() error {
	if !c.attached {
		return nil
	}
	if err := c.store.Detach(); err != nil {
		return err
	}
	c.attached = false
	return nil
}

// validateRegistrations checks cross-set declaration facts: navigation
// targets, collection sources, and join links must name registered sets, a
// collection may not source from a link set, and a join must go via one.
func (c *Context) validateRegistrations() error {
	for _, s := range c.sets {
		for _, fk := range s.entity.ForeignKeys {
			if _, ok := c.byName[fk.Target]; !ok {
				return fmt.Errorf("set %q navigation %q targets %q: %w",
					s.entity.Name, fk.Name, fk.Target, types.ErrSetNotRegistered)
			}
		}
		for _, coll := range s.entity.Collections {
			source, ok := c.byName[coll.Source]
			if !ok {
				return fmt.Errorf("set %q collection %q sources %q: %w",
					s.entity.Name, coll.Name, coll.Source, types.ErrSetNotRegistered)
			}
			if source.entity.Link {
				return fmt.Errorf("set %q collection %q sources link set %q: %w",
					s.entity.Name, coll.Name, coll.Source, schema.ErrLinkShape)
			}
		}
		for _, join := range s.entity.Joins {
			via, ok := c.byName[join.Via]
			if !ok {
				return fmt.Errorf("set %q join %q via %q: %w",
					s.entity.Name, join.Name, join.Via, types.ErrSetNotRegistered)
			}
			if !via.entity.Link {
				return fmt.Errorf("set %q join %q: %q is not a link set: %w",
					s.entity.Name, join.Name, join.Via, schema.ErrLinkShape)
			}
		}
	}
	return nil
}

// loadAll performs the initial full-table load for every set: backing column
// discovery, then row hydration, then baseline seeding.
func (c *Context) loadAll() error {
	for _, s := range c.sets {
		columns, err := c.mappedColumns(s)
		if err != nil {
			return err
		}
		items, err := c.store.FetchAll(s.entity, columns)
		if err != nil {
			return fmt.Errorf("load set %q: %w", s.entity.Name, err)
		}
		s.seed(items)
	}
	return nil
}

// mappedColumns fetches the backing table's real column list and intersects
// it with the set's mapped columns.
func (c *Context) mappedColumns(s *Set) ([]string, error) {
	backing, err := c.store.ColumnNames(s.entity.TableName())
	if err != nil {
		return nil, fmt.Errorf("columns of table %q: %w", s.entity.TableName(), err)
	}
	mapped := s.entity.MappedIn(backing)
	names := make([]string, 0, len(mapped))
	for _, col := range mapped {
		names = append(names, col.Name)
	}
	return names, nil
}

// SaveChanges validates every live entity, then persists each set's added,
// modified, and removed entities in registration order inside one
// transaction. Any persistence failure rolls the whole save back and
// re-raises the original error. On success every tracker is rebased on the
// current live lists (after backend-assigned keys were reflected onto the
// inserted entities) and relationships are re-resolved so new entities gain
// navigation state.
func (c *Context) SaveChanges() error {
	if !c.attached {
		return types.ErrNotAttached
	}

	if err := c.validateAll(); err != nil {
		return err
	}

	tx, err := c.store.Begin()
	if err != nil {
		return err
	}

	for _, s := range c.sets {
		if err := c.persistSet(tx, s); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	// Commit is the last irrevocable step: on failure the local tracking
	// state stays dirty so a corrected retry remains possible.
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, s := range c.sets {
		s.tracker.rebase(s.items)
	}
	return c.resolve()
}

// validateAll runs the validity predicate over every live entity in every
// set. Invalid entities fail the save before any transaction is opened.
func (c *Context) validateAll() error {
	invalid := make(map[string]int)
	for _, s := range c.sets {
		for _, entity := range s.items {
			if !c.validator.Valid(s.entity.Name, entity) {
				invalid[s.entity.Name]++
			}
		}
	}
	if len(invalid) > 0 {
		return &types.ValidationError{Invalid: invalid}
	}
	return nil
}

// persistSet replays one set's pending changes on the transaction: inserts,
// then updates, then deletes. Errors come back unwrapped where they are the
// backend's own persistence failures.
func (c *Context) persistSet(tx types.Tx, s *Set) error {
	columns, err := c.mappedColumns(s)
	if err != nil {
		return err
	}

	if added := s.tracker.Added(); len(added) > 0 {
		if err := tx.Insert(s.entity, added, columns); err != nil {
			return err
		}
	}

	modified, err := s.tracker.Modified(s.items)
	if err != nil {
		return err
	}
	if len(modified) > 0 {
		if err := tx.Update(s.entity, modified, columns); err != nil {
			return err
		}
	}

	if removed := s.tracker.Removed(); len(removed) > 0 {
		if err := tx.Delete(s.entity, removed, columns); err != nil {
			return err
		}
	}
	return nil
}
