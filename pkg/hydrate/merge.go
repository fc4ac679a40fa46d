package hydrate

import (
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Merger is the slice of the unit-of-work the engine needs to merge
// already-loaded objects: given a foreign instance, return the scope-local
// equivalent.
type Merger interface {
	Merge(inst *core.Instance, load bool) (*core.Instance, error)
}

// MergeResult merges a completed result into a unit of work. Items are
// either instances (single-entity results) or keyed tuples;
// mappedPositions names the tuple positions holding mapped instances and
// is ignored for single-entity items. Nil entries pass through untouched.
func MergeResult(m Merger, items []any, mappedPositions []int, load bool) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			out = append(out, nil)
		case *core.Instance:
			merged, err := m.Merge(v, load)
			if err != nil {
				return nil, fmt.Errorf("failed to merge instance: %w", err)
			}
			out = append(out, merged)
		case core.KeyedTuple:
			values := make([]any, v.Len())
			copy(values, v.Values())
			for _, i := range mappedPositions {
				inst, ok := values[i].(*core.Instance)
				if !ok || inst == nil {
					continue
				}
				merged, err := m.Merge(inst, load)
				if err != nil {
					return nil, fmt.Errorf("failed to merge instance at position %d: %w", i, err)
				}
				values[i] = merged
			}
			out = append(out, core.NewKeyedTupleFactory(v.Labels()).New(values))
		default:
			out = append(out, item)
		}
	}
	return out, nil
}
