package core

import (
	"fmt"
	"strings"
)

// IdentityKey uniquely identifies one domain object within one identity
// scope. Class is the base-most mapped type of the object's hierarchy, PK
// the ordered primary-key values, Token an opaque per-scope discriminator.
// Immutable once assigned to an object.
type IdentityKey struct {
	Class string
	PK    []any
	Token string
}

// String renders the key for error messages.
func (k IdentityKey) String() string {
	parts := make([]string, len(k.PK))
	for i, v := range k.PK {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%s(%s)", k.Class, strings.Join(parts, ", "))
}

// Hash returns a canonical encoding of the key usable as a map key. PK
// values are encoded with their dynamic type so that e.g. int64(1) and
// "1" hash differently.
func (k IdentityKey) Hash() string {
	var b strings.Builder
	b.WriteString(k.Class)
	b.WriteByte('\x1f')
	b.WriteString(k.Token)
	for _, v := range k.PK {
		b.WriteByte('\x1f')
		fmt.Fprintf(&b, "%T=%v", v, v)
	}
	return b.String()
}

// AnyNil reports whether any primary-key component is nil.
func (k IdentityKey) AnyNil() bool {
	for _, v := range k.PK {
		if v == nil {
			return true
		}
	}
	return false
}

// AllNil reports whether every primary-key component is nil.
func (k IdentityKey) AllNil() bool {
	for _, v := range k.PK {
		if v != nil {
			return false
		}
	}
	return true
}

// IdentityMap is the hydration engine's view of the per-unit-of-work
// identity scope. The engine only reads and inserts; removal belongs to the
// scope's owner.
type IdentityMap interface {
	// Get returns the live object for a key, if present.
	Get(key IdentityKey) (*Instance, bool)

	// AddUnpresent records a freshly materialized object under its key.
	// The key is assumed absent; the engine checks with Get first.
	AddUnpresent(state *InstanceState, key IdentityKey)
}

// TypeInfo is the minimal view of a mapped type needed where the full
// mapper cannot be imported: post-load subtype filters and diagnostics.
type TypeInfo interface {
	TypeName() string

	// IsSubtypeOf reports whether the receiver's type is other's type or a
	// descendant of it.
	IsSubtypeOf(other TypeInfo) bool
}
