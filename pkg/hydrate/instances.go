package hydrate

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Entity is one column of the hydrated result: either a mapped entity
// backed by an InstanceProcessor, or a plain value column.
type Entity struct {
	// Label names the entity in keyed-tuple results.
	Label string

	// Process converts one row into this entity's value.
	Process func(row core.Row) (any, error)

	// Mapped marks an entity whose values are identity-tracked objects;
	// row uniquing compares them by reference.
	Mapped bool
}

// EntityFromProcessor wraps an InstanceProcessor as a mapped result entity.
func EntityFromProcessor(label string, p *InstanceProcessor) Entity {
	return Entity{
		Label: label,
		Process: func(row core.Row) (any, error) {
			inst, err := p.ProcessRow(row)
			if err != nil {
				return nil, err
			}
			if inst == nil {
				// Typed nil would defeat the == nil checks downstream.
				return nil, nil
			}
			return inst, nil
		},
		Mapped: true,
	}
}

// ValueEntity wraps a plain column read as a result entity.
func ValueEntity(label string, get core.Getter) Entity {
	return Entity{
		Label: label,
		Process: func(row core.Row) (any, error) {
			v, _ := get(row)
			return v, nil
		},
	}
}

// InstancesConfig configures one streaming load.
type InstancesConfig struct {
	// Entities describes the result columns in order. Required.
	Entities []Entity

	// YieldPer pulls rows in batches of the given size instead of
	// draining the source up front. Post-load operations fire at each
	// batch boundary either way.
	YieldPer int

	// ForceTuples wraps even single-entity results in keyed tuples.
	ForceTuples bool

	// NoUnique disables the per-batch duplicate-row filter that normally
	// applies when mapped entities are present.
	NoUnique bool
}

// Instances runs the row stream through the processors and returns a
// lazily-consumed result. Rows are pulled batch-wise; after each batch the
// pending post-load operations fire before rows are yielded. On any error
// the row source is closed before the error is surfaced.
func Instances(ctx context.Context, rc *RunContext, src core.RowSource, cfg InstancesConfig) *Result {
	single := len(cfg.Entities) == 1 && cfg.Entities[0].Mapped && !cfg.ForceTuples

	filtered := false
	for _, e := range cfg.Entities {
		if e.Mapped {
			filtered = true
			break
		}
	}

	r := &Result{
		ctx:      ctx,
		rc:       rc,
		src:      src,
		cfg:      cfg,
		single:   single,
		filtered: filtered && !cfg.NoUnique,
	}
	if !single {
		labels := make([]string, len(cfg.Entities))
		for i, e := range cfg.Entities {
			labels[i] = e.Label
		}
		r.factory = core.NewKeyedTupleFactory(labels)
	}
	return r
}

// Result streams hydrated rows. Single-entity loads yield instances
// directly; multi-entity loads yield keyed tuples. Iterate with Next,
// then read Value/Instance/Tuple; check Err afterwards.
type Result struct {
	ctx      context.Context
	rc       *RunContext
	src      core.RowSource
	cfg      InstancesConfig
	single   bool
	filtered bool
	factory  *core.KeyedTupleFactory

	buf  []any
	pos  int
	cur  any
	err  error
	done bool
}

// Next advances to the next result row. It returns false at end-of-stream
// or on error; check Err to distinguish.
func (r *Result) Next() bool {
	for r.pos >= len(r.buf) {
		if r.done || r.err != nil {
			return false
		}
		r.fillBatch()
	}
	r.cur = r.buf[r.pos]
	r.pos++
	return true
}

// Value returns the current result row: an *core.Instance for
// single-entity loads, a core.KeyedTuple otherwise. Nil for rows that
// denote no entity.
func (r *Result) Value() any {
	return r.cur
}

// Instance returns the current row as an instance; nil when the row
// denotes no entity or the load is not single-entity.
func (r *Result) Instance() *core.Instance {
	inst, _ := r.cur.(*core.Instance)
	return inst
}

// Tuple returns the current row as a keyed tuple.
func (r *Result) Tuple() core.KeyedTuple {
	t, _ := r.cur.(core.KeyedTuple)
	return t
}

// Err returns the first error encountered while streaming.
func (r *Result) Err() error {
	return r.err
}

// Close releases the underlying row source. Walking off the end of the
// stream does not close it; cancellation is achieved by ceasing to call
// Next and closing.
func (r *Result) Close() error {
	return r.src.Close()
}

// All drains the result, closes the source, and returns every row.
func (r *Result) All() ([]any, error) {
	defer func() { _ = r.Close() }()
	var out []any
	for r.Next() {
		out = append(out, r.Value())
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// fillBatch pulls and processes one batch of rows.
func (r *Result) fillBatch() {
	r.buf = nil
	r.pos = 0

	r.rc.resetPartials()

	var (
		fetch []core.Row
		err   error
	)
	if r.cfg.YieldPer > 0 {
		fetch, err = r.src.FetchBatch(r.cfg.YieldPer)
	} else {
		fetch, err = r.src.FetchAll()
	}
	if err != nil {
		r.fail(fmt.Errorf("failed to fetch rows: %w", err))
		return
	}
	if len(fetch) == 0 {
		r.done = true
		return
	}

	out := make([]any, 0, len(fetch))
	if r.single {
		process := r.cfg.Entities[0].Process
		for _, row := range fetch {
			v, err := process(row)
			if err != nil {
				r.fail(err)
				return
			}
			out = append(out, v)
		}
	} else {
		for _, row := range fetch {
			values := make([]any, len(r.cfg.Entities))
			for i, e := range r.cfg.Entities {
				v, err := e.Process(row)
				if err != nil {
					r.fail(err)
					return
				}
				values[i] = v
			}
			out = append(out, r.factory.New(values))
		}
	}

	if err := r.rc.invokePostLoads(r.ctx); err != nil {
		r.fail(err)
		return
	}

	if r.filtered {
		out = uniqueRows(out, r.cfg.Entities, r.single)
	}

	r.buf = out
	if r.cfg.YieldPer == 0 {
		r.done = true
	}
}

// fail records the error, closing the row source first so no cursor is
// leaked when the error propagates.
func (r *Result) fail(err error) {
	_ = r.src.Close()
	r.err = err
	r.done = true
}

// uniqueRows drops duplicate rows within one batch, preserving order.
// Mapped entities compare by object identity, plain values by value.
func uniqueRows(rows []any, entities []Entity, single bool) []any {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		var key string
		if single {
			key = identityOf(row)
		} else {
			t := row.(core.KeyedTuple)
			for i, e := range entities {
				if e.Mapped {
					key += identityOf(t.At(i))
				} else {
					key += fmt.Sprintf("%T=%v", t.At(i), t.At(i))
				}
				key += "\x1f"
			}
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

func identityOf(v any) string {
	if inst, ok := v.(*core.Instance); ok && inst != nil {
		return fmt.Sprintf("%p", inst)
	}
	return "<nil>"
}
