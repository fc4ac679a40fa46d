// Package event provides fire-and-forget lifecycle notifications for the
// hydration engine: load, refresh and loaded-as-persistent.
package event

import "github.com/leapstack-labs/leaporm/pkg/core"

// LoadFunc observes a freshly loaded object.
type LoadFunc func(inst *core.Instance)

// RefreshFunc observes a re-populated object. keys holds the restricted
// attribute set when only part of the object was refreshed, nil otherwise.
type RefreshFunc func(inst *core.Instance, keys []string)

// Dispatcher fans lifecycle notifications out to registered listeners.
// Listener checks are O(1) so the engine can skip payload construction
// entirely on the row hot path. A nil *Dispatcher is valid and has no
// listeners. Registration is not safe concurrently with dispatch.
type Dispatcher struct {
	load    []LoadFunc
	refresh []RefreshFunc
	persist []LoadFunc
}

// OnLoad registers a listener for first-time loads.
func (d *Dispatcher) OnLoad(fn LoadFunc) {
	d.load = append(d.load, fn)
}

// OnRefresh registers a listener for re-populations.
func (d *Dispatcher) OnRefresh(fn RefreshFunc) {
	d.refresh = append(d.refresh, fn)
}

// OnLoadedAsPersistent registers a listener for objects entering the
// identity scope as persistent.
func (d *Dispatcher) OnLoadedAsPersistent(fn LoadFunc) {
	d.persist = append(d.persist, fn)
}

// HasLoad reports whether any load listener is registered.
func (d *Dispatcher) HasLoad() bool {
	return d != nil && len(d.load) > 0
}

// HasRefresh reports whether any refresh listener is registered.
func (d *Dispatcher) HasRefresh() bool {
	return d != nil && len(d.refresh) > 0
}

// HasLoadedAsPersistent reports whether any persistent listener is
// registered.
func (d *Dispatcher) HasLoadedAsPersistent() bool {
	return d != nil && len(d.persist) > 0
}

// FireLoad notifies load listeners.
func (d *Dispatcher) FireLoad(inst *core.Instance) {
	if d == nil {
		return
	}
	for _, fn := range d.load {
		fn(inst)
	}
}

// FireRefresh notifies refresh listeners.
func (d *Dispatcher) FireRefresh(inst *core.Instance, keys []string) {
	if d == nil {
		return
	}
	for _, fn := range d.refresh {
		fn(inst, keys)
	}
}

// FireLoadedAsPersistent notifies persistent listeners.
func (d *Dispatcher) FireLoadedAsPersistent(inst *core.Instance) {
	if d == nil {
		return
	}
	for _, fn := range d.persist {
		fn(inst)
	}
}
