package hydrate

import (
	"context"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// subclassInPostLoad wraps a mapper's subclass loader as a post-load
// operation: once per batch, the accumulated objects' primary keys are
// handed to a secondary IN-list load that recurses into the pipeline.
func subclassInPostLoad(loader mapping.SubclassInLoader) PostLoadFunc {
	return func(ctx context.Context, rc *RunContext, _ core.LoadPath, states []PostLoadState, _ []string) error {
		pks := make([][]any, 0, len(states))
		for _, entry := range states {
			if entry.State.Key != nil {
				pks = append(pks, entry.State.Key.PK)
			}
		}
		if len(pks) == 0 {
			return nil
		}
		return loader.LoadSubclassRows(ctx, pks, rc.PopulateExisting)
	}
}
