package hydrate

import (
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// StaleDataError reports a version column mismatch on an already-loaded
// object during re-validation. It aborts the current batch; no attribute
// on the object is mutated.
type StaleDataError struct {
	Key    core.IdentityKey
	Have   any
	Loaded any
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("instance %s has version id %v which does not match database-loaded version id %v",
		e.Key, e.Have, e.Loaded)
}

// InvalidRowError reports a semantically contradictory row: a non-NULL
// primary key combined with a NULL polymorphic discriminator.
type InvalidRowError struct {
	Key           core.IdentityKey
	Discriminator core.ColumnRef
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("row with identity key %s can't be loaded into an object; the polymorphic discriminator column %q is NULL",
		e.Key, e.Discriminator.Label())
}

// NoSuchDiscriminatorError reports a discriminator value with no matching
// subtype mapper. This is mapper misconfiguration, not bad data.
type NoSuchDiscriminatorError struct {
	Value  any
	Mapper string
}

func (e *NoSuchDiscriminatorError) Error() string {
	return fmt.Sprintf("no polymorphic identity %v is defined on mapper %q", e.Value, e.Mapper)
}

// DetachedInstanceError reports an attribute refresh requested on an object
// not associated with any identity scope.
type DetachedInstanceError struct {
	Type string
}

func (e *DetachedInstanceError) Error() string {
	return fmt.Sprintf("instance of %q is not bound to an identity scope; attribute refresh operation cannot proceed", e.Type)
}

// ObjectDeletedError reports a refresh-by-identity that expected a row but
// found none: the object was concurrently deleted.
type ObjectDeletedError struct {
	Key core.IdentityKey
}

func (e *ObjectDeletedError) Error() string {
	return fmt.Sprintf("instance %s has been deleted, or its row is otherwise not present", e.Key)
}

// IncompleteIdentityError reports a refresh or load using a primary key
// with absent components on a type that disallows partial keys.
type IncompleteIdentityError struct {
	Type string
}

func (e *IncompleteIdentityError) Error() string {
	return fmt.Sprintf("instance of %q cannot be refreshed: it does not contain a full primary key", e.Type)
}
