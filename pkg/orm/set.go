// Package orm implements the mirror mapping engine: entity Sets with
// snapshot-based change tracking, in-memory relationship resolution, and the
// Context unit of work that replays tracked changes against a Store inside
// one transaction.
// Implements: prd001-context-core R3-R6;
//
//	docs/ARCHITECTURE § Engine.
package orm

import (
	"fmt"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Set is the ordered, mutable, in-memory view over one entity type's rows.
// The live list is the single source of truth for what currently exists
// locally; every structural mutation mirrors into the owned Tracker
// synchronously.
type Set struct {
	entity  *schema.Entity
	items   []any
	tracker *Tracker
}

// newSet creates an empty Set for the given entity declaration.
func newSet(entity *schema.Entity) *Set {
	return &Set{
		entity:  entity,
		tracker: newTracker(entity),
	}
}

// Entity returns the set's entity declaration.
func (s *Set) Entity() *schema.Entity {
	return s.entity
}

// Tracker returns the set's change tracker.
func (s *Set) Tracker() *Tracker {
	return s.tracker
}

// Add appends the entity to the live list and registers it as pending-added.
// Returns ErrNilEntity for nil.
func (s *Set) Add(entity any) error {
	if entity == nil {
		return fmt.Errorf("set %q: %w", s.entity.Name, types.ErrNilEntity)
	}
	s.items = append(s.items, entity)
	s.tracker.recordAdd(entity)
	return nil
}

// Remove takes the entity off the live list. It reports whether the entity
// was present; removing an absent entity is a no-op, not an error. On actual
// removal the entity is registered as pending-removed (unless it was itself
// pending-added, in which case the add and remove cancel out).
func (s *Set) Remove(entity any) (bool, error) {
	if entity == nil {
		return false, fmt.Errorf("set %q: %w", s.entity.Name, types.ErrNilEntity)
	}
	for i, item := range s.items {
		if item == entity {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.tracker.recordRemove(entity)
			return true, nil
		}
	}
	return false, nil
}

// Clear removes every live entity through Remove, so each one transits
// through the tracker.
func (s *Set) Clear() {
	for len(s.items) > 0 {
		// Remove always succeeds for an entity taken from the live list.
		_, _ = s.Remove(s.items[len(s.items)-1])
	}
}

// Entities returns a copy of the live list in order.
func (s *Set) Entities() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of live entities.
func (s *Set) Len() int {
	return len(s.items)
}

// Contains reports whether the entity is on the live list.
func (s *Set) Contains(entity any) bool {
	for _, item := range s.items {
		if item == entity {
			return true
		}
	}
	return false
}

// seed replaces the live list with freshly loaded entities and rebases the
// tracker on them. Used by Context.Attach after a full-table load.
func (s *Set) seed(items []any) {
	s.items = items
	s.tracker.rebase(items)
}
