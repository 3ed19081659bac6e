package write

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/soqlkit/internal/ir"
)

// State is the persistence state of an Object.
type State string

const (
	StateNew       State = "new"
	StatePersisted State = "persisted"
)

// Object is one record tracked for saving.
type Object struct {
	sobject string
	state   State
	values  ir.IRObject
	changed []string
}

// NewObject starts tracking a record that does not exist remotely yet.
func NewObject(sobject string) *Object {
	return &Object{sobject: sobject, state: StateNew, values: ir.IRObject{}}
}

// Load tracks an existing record. It starts with no changes.
func Load(rec ir.Record) *Object {
	return &Object{
		sobject: rec.Attributes.Type,
		state:   StatePersisted,
		values:  maps.Clone(rec.Fields),
	}
}

// SObject returns the remote type name.
func (o *Object) SObject() string { return o.sobject }

// State returns the persistence state.
func (o *Object) State() State { return o.state }

// IsNew reports whether the record has not been created yet.
func (o *Object) IsNew() bool { return o.state == StateNew }

// ID returns the identity, or "" before creation.
func (o *Object) ID() string {
	if s, ok := o.values[ir.IdentityField].(ir.IRString); ok {
		return string(s)
	}
	return ""
}

// Get returns a field value, IRNull when unset.
func (o *Object) Get(name string) ir.IRValue {
	if v, ok := o.values[name]; ok {
		return v
	}
	return ir.IRNull{}
}

// Set assigns a field from a Go value. Assigning the current value is not
// a change. The identity field cannot be set.
func (o *Object) Set(name string, value any) error {
	if name == ir.IdentityField {
		return fmt.Errorf("set %s: identity is assigned by the remote system", name)
	}
	v, err := ir.FromGo(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	if cur, ok := o.values[name]; ok && sameValue(cur, v) {
		return nil
	}
	o.values[name] = v
	if !slices.Contains(o.changed, name) {
		o.changed = append(o.changed, name)
	}
	return nil
}

// Changed returns the changed field names in the order they were first set.
func (o *Object) Changed() []string {
	return slices.Clone(o.changed)
}

// Changes returns the changed fields and their current values.
func (o *Object) Changes() ir.IRObject {
	out := make(ir.IRObject, len(o.changed))
	for _, name := range o.changed {
		out[name] = o.values[name]
	}
	return out
}

func (o *Object) markPersisted(id string) {
	o.values[ir.IdentityField] = ir.IRString(id)
	o.state = StatePersisted
	o.clearChanges()
}

func (o *Object) clearChanges() {
	o.changed = nil
}

func sameValue(a, b ir.IRValue) bool {
	ka, errA := ir.CanonicalKey(a)
	kb, errB := ir.CanonicalKey(b)
	return errA == nil && errB == nil && ka == kb
}
