package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Lifecycle errors (prd001-context-core R7.1).
var (
	ErrNotAttached     = errors.New("context is not attached")
	ErrAlreadyAttached = errors.New("context is already attached")
)

// Registration and resolution errors. All are configuration errors: they
// indicate a bad or incomplete entity declaration, are raised during
// Register, Attach, or the first resolution pass, and are never retried.
// Implements prd001-context-core R7.2.
var (
	ErrDuplicateSet     = errors.New("set name already registered")
	ErrSetNotRegistered = errors.New("no set registered for navigation target")
	ErrMissingPrincipal = errors.New("no principal entity matches foreign key value")
)

// Set operation errors (prd001-context-core R7.3).
var (
	ErrNilEntity = errors.New("entity must not be nil")
)

// ErrTrackingInvariant reports that a baseline primary key matched zero or
// more than one live entity. Primary keys must be unique and stable for the
// lifetime of the tracker; a hit here means the caller mutated or duplicated
// a key. Fatal, never retried.
var ErrTrackingInvariant = errors.New("baseline primary key does not match exactly one live entity")

// ValidationError aggregates the entities that failed the validity predicate,
// grouped by the owning set. It is returned by SaveChanges before any
// transaction is opened; the caller can fix the entities and retry.
type ValidationError struct {
	// Invalid maps set name to the number of invalid entities in that set.
	Invalid map[string]int
}

// Error lists per-set invalid counts in set-name order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Invalid))
	for name := range e.Invalid {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%d invalid in set %q", e.Invalid[name], name))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
