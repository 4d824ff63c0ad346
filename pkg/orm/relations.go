package orm

import (
	"fmt"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// resolve wires navigation state for every registered set, purely by
// in-memory key matching; no store round-trips. Three passes per set, in
// registration order: scalar foreign keys, one-to-many collections, then
// many-to-many joins through declared link sets. Re-running is idempotent:
// every pass fully recomputes and replaces what it assigns.
func (c *Context) resolve() error {
	for _, s := range c.sets {
		if err := c.resolveForeignKeys(s); err != nil {
			return err
		}
		if err := c.resolveCollections(s); err != nil {
			return err
		}
		if err := c.resolveJoins(s); err != nil {
			return err
		}
	}
	return nil
}

// resolveForeignKeys assigns the principal reference for each declared
// foreign key on each dependent in s. A null foreign-key value assigns an
// explicit nil principal, never a stale reference. Loaded data is assumed
// referentially consistent: a non-null value with no matching principal is a
// configuration error, not a normal miss.
func (c *Context) resolveForeignKeys(s *Set) error {
	for _, fk := range s.entity.ForeignKeys {
		target, ok := c.byName[fk.Target]
		if !ok {
			return fmt.Errorf("set %q navigation %q targets %q: %w",
				s.entity.Name, fk.Name, fk.Target, types.ErrSetNotRegistered)
		}
		col, _ := s.entity.Column(fk.Column)
		for _, dependent := range s.items {
			value := col.Get(dependent)
			if value == nil {
				fk.Assign(dependent, nil)
				continue
			}
			principal, found := findByKey(target, schema.Key{value})
			if !found {
				return fmt.Errorf("set %q navigation %q: %s=%v: %w",
					s.entity.Name, fk.Name, fk.Column, value, types.ErrMissingPrincipal)
			}
			fk.Assign(dependent, principal)
		}
	}
	return nil
}

// resolveCollections assigns, per principal in s, the fresh ordered subset
// of the dependent set whose foreign key equals the principal's primary key.
// Link sets cannot be collection sources; registration rejects that shape so
// join tables never ride the one-to-many pass.
func (c *Context) resolveCollections(s *Set) error {
	for _, coll := range s.entity.Collections {
		source, ok := c.byName[coll.Source]
		if !ok {
			return fmt.Errorf("set %q collection %q sources %q: %w",
				s.entity.Name, coll.Name, coll.Source, types.ErrSetNotRegistered)
		}
		fkCol, ok := source.entity.Column(coll.ForeignKey)
		if !ok {
			return fmt.Errorf("set %q collection %q foreign key %q: %w",
				s.entity.Name, coll.Name, coll.ForeignKey, schema.ErrUnknownColumn)
		}
		for _, principal := range s.items {
			key := s.entity.KeyOf(principal)
			dependents := make([]any, 0)
			for _, dependent := range source.items {
				if (schema.Key{fkCol.Get(dependent)}).Equal(key) {
					dependents = append(dependents, dependent)
				}
			}
			coll.Assign(principal, dependents)
		}
	}
	return nil
}

// resolveJoins assigns many-to-many navigation collections by walking the
// declared link set: rows whose near key matches the principal contribute
// the far principal their far key points at.
func (c *Context) resolveJoins(s *Set) error {
	for _, join := range s.entity.Joins {
		via, ok := c.byName[join.Via]
		if !ok {
			return fmt.Errorf("set %q join %q via %q: %w",
				s.entity.Name, join.Name, join.Via, types.ErrSetNotRegistered)
		}
		nearCol, ok := via.entity.Column(join.NearKey)
		if !ok {
			return fmt.Errorf("set %q join %q near key %q: %w",
				s.entity.Name, join.Name, join.NearKey, schema.ErrUnknownColumn)
		}
		farCol, ok := via.entity.Column(join.FarKey)
		if !ok {
			return fmt.Errorf("set %q join %q far key %q: %w",
				s.entity.Name, join.Name, join.FarKey, schema.ErrUnknownColumn)
		}

		// The far side is whichever link foreign key declares the far column.
		farSet, err := c.joinFarSet(s, via, join)
		if err != nil {
			return err
		}

		for _, principal := range s.items {
			key := s.entity.KeyOf(principal)
			far := make([]any, 0)
			for _, link := range via.items {
				if !(schema.Key{nearCol.Get(link)}).Equal(key) {
					continue
				}
				value := farCol.Get(link)
				if value == nil {
					continue
				}
				other, found := findByKey(farSet, schema.Key{value})
				if !found {
					return fmt.Errorf("set %q join %q: %s=%v: %w",
						s.entity.Name, join.Name, join.FarKey, value, types.ErrMissingPrincipal)
				}
				far = append(far, other)
			}
			join.Assign(principal, far)
		}
	}
	return nil
}

// joinFarSet resolves the far principal set of a join: the target of the
// link entity's foreign key declared on the join's far column.
func (c *Context) joinFarSet(s *Set, via *Set, join schema.Join) (*Set, error) {
	for _, fk := range via.entity.ForeignKeys {
		if fk.Column == join.FarKey {
			farSet, ok := c.byName[fk.Target]
			if !ok {
				return nil, fmt.Errorf("set %q join %q far target %q: %w",
					s.entity.Name, join.Name, fk.Target, types.ErrSetNotRegistered)
			}
			return farSet, nil
		}
	}
	return nil, fmt.Errorf("set %q join %q: link %q declares no foreign key on %q: %w",
		s.entity.Name, join.Name, join.Via, join.FarKey, schema.ErrUnknownNavigation)
}

// findByKey scans the set's live list for the entity with the given primary
// key tuple.
func findByKey(s *Set, key schema.Key) (any, bool) {
	for _, entity := range s.items {
		if s.entity.KeyOf(entity).Equal(key) {
			return entity, true
		}
	}
	return nil, false
}
