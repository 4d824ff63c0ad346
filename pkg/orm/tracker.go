package orm

import (
	"fmt"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// Tracker owns the read-only baseline snapshot of one Set's entities as
// loaded, plus the pending-added and pending-removed sets. The baseline is
// never mutated after creation; it is rebuilt wholesale after a successful
// save. An entity is in at most one of {added, removed} at a time.
type Tracker struct {
	entity   *schema.Entity
	baseline []map[string]any
	added    []any
	removed  []any
}

// newTracker creates a Tracker with an empty baseline.
func newTracker(entity *schema.Entity) *Tracker {
	return &Tracker{entity: entity}
}

// Added returns a copy of the pending-added entities.
func (t *Tracker) Added() []any {
	out := make([]any, len(t.added))
	copy(out, t.added)
	return out
}

// Removed returns a copy of the pending-removed entities.
func (t *Tracker) Removed() []any {
	out := make([]any, len(t.removed))
	copy(out, t.removed)
	return out
}

// Baseline returns the baseline snapshots, one frozen map of mapped scalar
// values per entity present at the last load or save. Callers must not
// mutate the maps.
func (t *Tracker) Baseline() []map[string]any {
	out := make([]map[string]any, len(t.baseline))
	copy(out, t.baseline)
	return out
}

// recordAdd registers an entity as pending insertion.
func (t *Tracker) recordAdd(entity any) {
	t.added = append(t.added, entity)
}

// recordRemove registers an entity as pending deletion. If the entity was
// pending-added, the add and the remove cancel out and neither set keeps it.
func (t *Tracker) recordRemove(entity any) {
	for i, a := range t.added {
		if a == entity {
			t.added = append(t.added[:i], t.added[i+1:]...)
			return
		}
	}
	for _, r := range t.removed {
		if r == entity {
			return
		}
	}
	t.removed = append(t.removed, entity)
}

// Modified computes the live entities whose mapped scalar values differ from
// their baseline snapshot, matched by primary-key tuple. Baseline rows whose
// entity is pending removal are skipped (a removal is never also an update).
// A baseline key matching zero or more than one live entity is a tracking
// invariant violation.
//
// The scan is O(baseline x live); mirror table sizes keep that acceptable.
// TODO: index live entities by primary key so large sets stop paying the
// quadratic scan.
func (t *Tracker) Modified(live []any) ([]any, error) {
	removedKeys := make([]schema.Key, 0, len(t.removed))
	for _, r := range t.removed {
		removedKeys = append(removedKeys, t.entity.KeyOf(r))
	}

	var out []any
	seen := make(map[any]bool, len(t.baseline))

	for _, snap := range t.baseline {
		key := t.entity.KeyFromSnapshot(snap)

		if keyIn(removedKeys, key) {
			continue
		}

		var match any
		matches := 0
		for _, entity := range live {
			if t.entity.KeyOf(entity).Equal(key) {
				match = entity
				matches++
			}
		}
		if matches != 1 {
			return nil, fmt.Errorf("set %q: key %v matched %d live entities: %w",
				t.entity.Name, key, matches, types.ErrTrackingInvariant)
		}

		if seen[match] {
			continue
		}
		if t.differs(snap, match) {
			seen[match] = true
			out = append(out, match)
		}
	}
	return out, nil
}

// differs reports whether any mapped scalar column value differs between the
// snapshot and the live entity. Navigation state never participates.
func (t *Tracker) differs(snap map[string]any, entity any) bool {
	for _, c := range t.entity.Mapped() {
		if !schema.Equal(snap[c.Name], c.Get(entity)) {
			return true
		}
	}
	return false
}

// rebase replaces the baseline with fresh snapshots of the given live
// entities and clears the pending sets. Called after a successful save, once
// backend-assigned key values have been reflected onto the entities.
func (t *Tracker) rebase(live []any) {
	baseline := make([]map[string]any, 0, len(live))
	for _, entity := range live {
		baseline = append(baseline, t.entity.Snapshot(entity))
	}
	t.baseline = baseline
	t.added = nil
	t.removed = nil
}

// keyIn reports whether key occurs in keys.
func keyIn(keys []schema.Key, key schema.Key) bool {
	for _, k := range keys {
		if k.Equal(key) {
			return true
		}
	}
	return false
}
