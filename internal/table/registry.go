package table

import (
	"errors"
	"sync"
)

// ErrEmptySpecName is returned when a column spec is registered without a name.
var ErrEmptySpecName = errors.New("column spec requires a non-empty name")

// ColumnSpec is a declarative rename/reorder/select directive for one output
// column. JSON field names match the public API payloads.
type ColumnSpec struct {
	// Name is the target column name. It also serves as the identity key
	// within a Registry: upserting a spec with an existing name replaces it.
	Name string `json:"name"`

	// SourceColumn is the zero-based index of the source column to project.
	// When nil it defaults to the spec's position in the registry.
	SourceColumn *int `json:"column,omitempty"`

	// Order is the target position of the column in the output table.
	// When nil it defaults to the spec's resolution order.
	Order *int `json:"change_order,omitempty"`
}

// Registry is an ordered, process-wide collection of column specs.
// Mutation is serialized by an internal mutex so that List returns a
// consistent snapshot even while a concurrent BulkUpsert is in progress.
type Registry struct {
	mu    sync.Mutex
	specs []ColumnSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Upsert adds spec to the registry, or replaces the existing spec with the
// same Name in place. The only validation is a non-empty Name; source column
// and order are resolved at transform time.
func (r *Registry) Upsert(spec ColumnSpec) error {
	if spec.Name == "" {
		return ErrEmptySpecName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(spec)
	return nil
}

// BulkUpsert applies every spec in order under a single lock acquisition, so
// a concurrent List observes either none or all of the batch. The batch is
// validated up front; an invalid entry rejects the whole batch unapplied.
func (r *Registry) BulkUpsert(specs []ColumnSpec) error {
	for _, spec := range specs {
		if spec.Name == "" {
			return ErrEmptySpecName
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		r.upsertLocked(spec)
	}
	return nil
}

func (r *Registry) upsertLocked(spec ColumnSpec) {
	for i := range r.specs {
		if r.specs[i].Name == spec.Name {
			r.specs[i] = spec
			return
		}
	}
	r.specs = append(r.specs, spec)
}

// List returns a snapshot of the registered specs in insertion order.
// The returned slice is a copy; later registry mutation does not affect it.
func (r *Registry) List() []ColumnSpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ColumnSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Clear removes all specs.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = nil
}

// Len returns the number of registered specs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.specs)
}
