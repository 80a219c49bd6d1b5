// Package privates implements per-object-kind private storage.
//
// Every object kind (core, display, screen, window) owns one Table. A plugin
// asks the table for an index while it activates and from then on stores its
// own per-object data in the cell with that index on every live object of the
// kind. Tables are not safe for concurrent use: indices are only allocated and
// freed at plugin activation boundaries on the control goroutine.
package privates

import (
	"errors"
	"fmt"
)

// DefaultMaxSlots bounds the number of indices a table hands out.
const DefaultMaxSlots = 1024

// ErrSlotsExhausted is returned when a table cannot grow any further.
var ErrSlotsExhausted = errors.New("private slots exhausted")

// Cell is one private storage slot of an object.
type Cell struct {
	gen   uint32
	value any
}

// Store is the private storage array of a single object.
type Store struct {
	table *Table
	cells []Cell
}

// Len returns the number of cells the store currently covers.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.cells)
}

// Table tracks which indices of one object kind are in use and which objects
// of that kind are alive.
type Table struct {
	name     string
	maxSlots int
	used     []bool
	gens     []uint32
	live     []*Store

	// OnGrow is called after every live store has been extended to cover a
	// brand-new index. It is mostly useful for tests and tracing.
	OnGrow func(index int, live int)
}

// NewTable returns an empty table for the named object kind.
func NewTable(name string) *Table {
	return &Table{name: name, maxSlots: DefaultMaxSlots}
}

// SetMaxSlots changes the growth limit. Indices already granted stay valid.
func (t *Table) SetMaxSlots(n int) {
	if n < 0 {
		n = 0
	}
	t.maxSlots = n
}

// Name returns the object kind name the table was created for.
func (t *Table) Name() string { return t.name }

// Allocate returns the lowest free index. When the index is new every live
// store is extended to cover it. On failure it returns -1 and
// ErrSlotsExhausted.
func (t *Table) Allocate() (int, error) {
	for i, inUse := range t.used {
		if !inUse {
			t.used[i] = true
			t.gens[i]++
			return i, nil
		}
	}

	index := len(t.used)
	if index >= t.maxSlots {
		return -1, fmt.Errorf("%s table: %w (limit %d)", t.name, ErrSlotsExhausted, t.maxSlots)
	}

	t.used = append(t.used, true)
	t.gens = append(t.gens, 1)
	for _, s := range t.live {
		s.grow(index + 1)
	}
	if t.OnGrow != nil {
		t.OnGrow(index, len(t.live))
	}
	return index, nil
}

// Free marks index as reusable. Storage is neither shrunk nor cleared; the
// owner must release whatever it kept in the cells before freeing.
func (t *Table) Free(index int) {
	if index < 0 || index >= len(t.used) {
		panic(fmt.Sprintf("privates: %s table: free of unknown index %d", t.name, index))
	}
	if !t.used[index] {
		panic(fmt.Sprintf("privates: %s table: double free of index %d", t.name, index))
	}
	t.used[index] = false
}

// InUse reports whether index is currently allocated.
func (t *Table) InUse(index int) bool {
	return index >= 0 && index < len(t.used) && t.used[index]
}

// Size returns the number of indices the table has ever handed out.
func (t *Table) Size() int { return len(t.used) }

// Attach registers a new live object and returns its storage, already sized
// to cover every index handed out so far.
func (t *Table) Attach() *Store {
	s := &Store{table: t, cells: make([]Cell, len(t.used))}
	t.live = append(t.live, s)
	return s
}

// Detach removes a store from the live set. Detaching twice is a no-op.
func (t *Table) Detach(s *Store) {
	for i, live := range t.live {
		if live == s {
			t.live = append(t.live[:i], t.live[i+1:]...)
			return
		}
	}
}

// Live returns the number of attached stores.
func (t *Table) Live() int { return len(t.live) }

func (s *Store) grow(n int) {
	if len(s.cells) >= n {
		return
	}
	cells := make([]Cell, n, n+n/2)
	copy(cells, s.cells)
	s.cells = cells
}

// Key is a typed handle to one private index of a table.
type Key[T any] struct {
	table *Table
	index int
	gen   uint32
}

// NewKey allocates an index from table and returns a typed handle for it.
func NewKey[T any](table *Table) (Key[T], error) {
	index, err := table.Allocate()
	if err != nil {
		return Key[T]{index: -1}, err
	}
	return Key[T]{table: table, index: index, gen: table.gens[index]}, nil
}

// Index returns the raw slot index, or -1 for a zero or released key.
func (k Key[T]) Index() int {
	if k.table == nil {
		return -1
	}
	return k.index
}

// Valid reports whether the key still owns its index.
func (k Key[T]) Valid() bool {
	return k.table != nil && k.table.InUse(k.index) && k.table.gens[k.index] == k.gen
}

// Get returns the value stored for this key on s.
func (k Key[T]) Get(s *Store) (T, bool) {
	var zero T
	if !k.owns(s) || !k.Valid() {
		return zero, false
	}
	cell := s.cells[k.index]
	if cell.gen != k.gen {
		return zero, false
	}
	v, ok := cell.value.(T)
	return v, ok
}

// Set stores v for this key on s.
func (k Key[T]) Set(s *Store, v T) {
	if !k.owns(s) {
		panic(fmt.Sprintf("privates: key %d does not belong to this store", k.index))
	}
	if !k.Valid() {
		panic(fmt.Sprintf("privates: %s table: set through released key %d", k.table.name, k.index))
	}
	s.cells[k.index] = Cell{gen: k.gen, value: v}
}

// Delete drops the value stored for this key on s.
func (k Key[T]) Delete(s *Store) {
	if !k.owns(s) {
		return
	}
	if s.cells[k.index].gen == k.gen {
		s.cells[k.index] = Cell{}
	}
}

// Release frees the key's index. The key is unusable afterwards.
func (k *Key[T]) Release() {
	if k.table == nil {
		return
	}
	k.table.Free(k.index)
	k.table = nil
	k.index = -1
}

func (k Key[T]) owns(s *Store) bool {
	return k.table != nil && s != nil && s.table == k.table && k.index < len(s.cells)
}
