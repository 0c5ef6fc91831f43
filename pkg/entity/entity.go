// Package entity provides the mutable, schema-validated row representation
// shared by every provider.
//
// An Entity is owned by the data context that created it. Column access is
// validated against the column metadata supplied at construction; a tracked
// write marks the column dirty and promotes an Unchanged entity to Modified,
// while a silent write (used to materialize query results) never touches the
// tracked state.
package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapentity/pkg/core"
)

// State is the lifecycle state of an entity.
type State int

const (
	Unchanged State = iota
	// Added entities were created locally and are inserted on submit.
	Added
	Modified
	Deleted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Added:
		return "new"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// ErrDeleted is returned when writing to an entity marked for deletion.
var ErrDeleted = errors.New("entity is deleted")

// ChangeHook is called after every tracked write, outside the entity lock.
type ChangeHook func(e *Entity)

// Entity is one row of one table.
type Entity struct {
	id    uuid.UUID
	owner string
	table string
	cols  []core.Column
	index map[string]int
	fold  map[string]int

	mu        sync.RWMutex
	values    []any
	original  []any
	dirty     []bool
	state     State
	version   uint64
	persisted bool // delete reached the backend, or entity was never stored
	hook      ChangeHook

	transit atomic.Int32
}

// New creates an entity for table with the given columns. owner is the id of
// the data context that creates it.
func New(owner, table string, cols []core.Column, state State) *Entity {
	e := &Entity{
		id:       uuid.New(),
		owner:    owner,
		table:    table,
		cols:     append([]core.Column(nil), cols...),
		index:    make(map[string]int, len(cols)),
		fold:     make(map[string]int, len(cols)),
		values:   make([]any, len(cols)),
		original: make([]any, len(cols)),
		dirty:    make([]bool, len(cols)),
		state:    state,
	}
	for i, c := range e.cols {
		e.index[c.Name] = i
		e.fold[strings.ToLower(c.Name)] = i
	}
	return e
}

// ID returns the instance id used in logs and telemetry.
func (e *Entity) ID() uuid.UUID { return e.id }

// Owner returns the id of the owning data context.
func (e *Entity) Owner() string { return e.owner }

// Table returns the full name of the entity's table.
func (e *Entity) Table() string { return e.table }

// Columns returns the column metadata in declaration order.
func (e *Entity) Columns() []core.Column {
	return append([]core.Column(nil), e.cols...)
}

// Column returns the metadata for name.
func (e *Entity) Column(name string) (core.Column, bool) {
	i, ok := e.lookup(name)
	if !ok {
		return core.Column{}, false
	}
	return e.cols[i], true
}

func (e *Entity) lookup(name string) (int, bool) {
	if i, ok := e.index[name]; ok {
		return i, true
	}
	i, ok := e.fold[strings.ToLower(name)]
	return i, ok
}

func (e *Entity) resolve(name string) (int, core.Column, error) {
	i, ok := e.lookup(name)
	if !ok {
		return 0, core.Column{}, &core.SchemaError{Table: e.table, Column: name}
	}
	return i, e.cols[i], nil
}

// Get returns the current value of a column. Absent values are nil.
func (e *Entity) Get(name string) (any, error) {
	i, _, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[i], nil
}

// Original returns the value last read from or written to the backend.
func (e *Entity) Original(name string) (any, error) {
	i, _, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.original[i], nil
}

// Set performs a tracked write. Computed columns are read-only, and
// autonumber columns accept an explicit value only while the entity is new.
func (e *Entity) Set(name string, value any) error {
	e.transit.Add(1)
	defer e.transit.Add(-1)

	i, col, err := e.resolve(name)
	if err != nil {
		return err
	}
	v, err := Coerce(e.table, col, value)
	if err != nil {
		return err
	}
	if col.Computed {
		return &TypeError{Table: e.table, Column: col.Name, Type: col.Mapping.Portable, Value: value, Reason: "column is computed"}
	}
	if v == nil && !col.Nullable && !col.AutoNumber && !col.HasDefault {
		return &TypeError{Table: e.table, Column: col.Name, Type: col.Mapping.Portable, Value: value, Reason: "column is not nullable"}
	}

	e.mu.Lock()
	if e.state == Deleted {
		e.mu.Unlock()
		return ErrDeleted
	}
	// a generated key can be supplied on insert but never changed afterwards
	if col.AutoNumber && e.state != Added {
		e.mu.Unlock()
		return &TypeError{Table: e.table, Column: col.Name, Type: col.Mapping.Portable, Value: value, Reason: "autonumber column can only be set on a new entity"}
	}
	e.values[i] = v
	e.dirty[i] = true
	e.version++
	if e.state == Unchanged {
		e.state = Modified
	}
	hook := e.hook
	e.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return nil
}

// SetSilent stores a value without touching the tracked state. Backend null
// sentinels normalize to nil.
func (e *Entity) SetSilent(name string, value any) error {
	i, col, err := e.resolve(name)
	if err != nil {
		return err
	}
	v, err := Coerce(e.table, col, value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.values[i] = v
	e.original[i] = v
	e.mu.Unlock()
	return nil
}

// Values returns a copy of the current values keyed by column name.
func (e *Entity) Values() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.cols))
	for i, c := range e.cols {
		out[c.Name] = e.values[i]
	}
	return out
}

// State returns the lifecycle state.
func (e *Entity) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Dirty returns the names of the columns written since the last accept.
func (e *Entity) Dirty() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var names []string
	for i, d := range e.dirty {
		if d {
			names = append(names, e.cols[i].Name)
		}
	}
	return names
}

// IsDirty reports whether name was written since the last accept.
func (e *Entity) IsDirty(name string) bool {
	i, ok := e.lookup(name)
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty[i]
}

// MarkDeleted moves the entity to Deleted. An Added entity has nothing to delete
// in the backend and is resolved immediately.
func (e *Entity) MarkDeleted() {
	e.mu.Lock()
	if e.state == Added {
		e.persisted = true
	}
	e.state = Deleted
	e.version++
	hook := e.hook
	e.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

// PersistedDelete reports whether the entity is Deleted and needs no further
// backend work.
func (e *Entity) PersistedDelete() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == Deleted && e.persisted
}

// Attach installs the change hook. Entities without a hook are untracked.
func (e *Entity) Attach(hook ChangeHook) {
	e.mu.Lock()
	e.hook = hook
	e.mu.Unlock()
}

// Attached reports whether a change hook is installed.
func (e *Entity) Attached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hook != nil
}

// Hold marks the entity as mid-transition until the returned func is called.
func (e *Entity) Hold() func() {
	e.transit.Add(1)
	return func() { e.transit.Add(-1) }
}

// InTransition reports whether a tracked write or persistence step is running.
func (e *Entity) InTransition() bool {
	return e.transit.Load() > 0
}

// Snapshot is a consistent copy of an entity's persistence-relevant state.
type Snapshot struct {
	State    State
	Version  uint64
	Columns  []core.Column
	Values   []any
	Original []any
	Dirty    []bool
}

// Snapshot captures the entity for a persistence step.
func (e *Entity) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		State:    e.state,
		Version:  e.version,
		Columns:  e.cols,
		Values:   append([]any(nil), e.values...),
		Original: append([]any(nil), e.original...),
		Dirty:    append([]bool(nil), e.dirty...),
	}
}

// Accept records that s reached the backend. Writes made after the snapshot
// was taken keep the entity Modified so they are persisted by a later submit.
func (e *Entity) Accept(s Snapshot, generated map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.State == Deleted {
		e.persisted = true
		return
	}

	for name, v := range generated {
		if i, ok := e.lookup(name); ok {
			s.Values[i] = v
			if e.version == s.Version || !e.dirty[i] {
				e.values[i] = v
			}
		}
	}
	copy(e.original, s.Values)

	if e.version == s.Version {
		for i := range e.dirty {
			e.dirty[i] = false
		}
		e.state = Unchanged
		return
	}

	changed := false
	for i := range e.dirty {
		e.dirty[i] = e.dirty[i] && !reflect.DeepEqual(e.values[i], s.Values[i])
		changed = changed || e.dirty[i]
	}
	if e.state != Deleted {
		if changed {
			e.state = Modified
		} else {
			e.state = Unchanged
		}
	}
}

// AcceptChanges marks the current values as persisted.
func (e *Entity) AcceptChanges() {
	e.Accept(e.Snapshot(), nil)
}

// String implements fmt.Stringer.
func (e *Entity) String() string {
	return fmt.Sprintf("%s[%s](%s)", e.table, e.id, e.State())
}
