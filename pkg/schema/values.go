package schema

import (
	"bytes"
	"time"
)

// Key is an ordered primary-key tuple. Composite keys compare element-wise
// in declaration order.
type Key []any

// Equal reports whether two key tuples have the same length and structurally
// equal elements.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if !Equal(k[i], other[i]) {
			return false
		}
	}
	return true
}

// Equal compares two mapped scalar values structurally: byte slices by
// content, times by time.Equal (so equal instants in different locations
// compare equal), everything else by ==. nil only equals nil.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}
