// Package core defines the shared language of the leaporm runtime.
//
// This package contains:
//   - Row-level types (Row, ColumnRef, ColumnAdapter, ResultMeta)
//   - Object identity types (IdentityKey, Instance, InstanceState, LoadPath)
//   - Populator bucket types consumed by the hydration engine
//   - Service interfaces (RowSource, IdentityMap)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
