package privates

import (
	"errors"
	"math/rand"
	"testing"
)

func TestAllocate_LowestFreeIndexIsReused(t *testing.T) {
	table := NewTable("window")

	for want := 0; want < 3; want++ {
		got, err := table.Allocate()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if got != want {
			t.Fatalf("allocate = %d, want %d", got, want)
		}
	}

	table.Free(1)
	got, err := table.Allocate()
	if err != nil {
		t.Fatalf("allocate after free: %v", err)
	}
	if got != 1 {
		t.Fatalf("allocate after free = %d, want 1", got)
	}
	if table.Size() != 3 {
		t.Fatalf("table size = %d, want 3 (free must not shrink)", table.Size())
	}
}

func TestAllocate_GrowsEveryLiveStore(t *testing.T) {
	table := NewTable("screen")
	a := table.Attach()
	b := table.Attach()

	var grown []int
	table.OnGrow = func(index int, live int) {
		grown = append(grown, index)
		if live != 2 {
			t.Errorf("OnGrow live = %d, want 2", live)
		}
	}

	if _, err := table.Allocate(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := table.Allocate(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.Len() != 2 || b.Len() != 2 {
		t.Fatalf("store lengths = %d,%d, want 2,2", a.Len(), b.Len())
	}
	if len(grown) != 2 {
		t.Fatalf("OnGrow called %d times, want 2", len(grown))
	}

	// Reusing a freed index must not grow again.
	table.Free(0)
	if _, err := table.Allocate(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(grown) != 2 {
		t.Fatalf("OnGrow called for reused index")
	}

	// Late attachments are sized to the table.
	c := table.Attach()
	if c.Len() != 2 {
		t.Fatalf("late store length = %d, want 2", c.Len())
	}
}

func TestAllocate_ExhaustionReturnsSentinel(t *testing.T) {
	table := NewTable("display")
	table.SetMaxSlots(2)

	for i := 0; i < 2; i++ {
		if _, err := table.Allocate(); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	got, err := table.Allocate()
	if got != -1 {
		t.Fatalf("allocate = %d, want -1", got)
	}
	if !errors.Is(err, ErrSlotsExhausted) {
		t.Fatalf("expected ErrSlotsExhausted, got %v", err)
	}
}

func TestFree_DisciplineViolationsPanic(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Table)
	}{
		{"unknown index", func(tb *Table) { tb.Free(7) }},
		{"double free", func(tb *Table) {
			i, _ := tb.Allocate()
			tb.Free(i)
			tb.Free(i)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			tt.run(NewTable("core"))
		})
	}
}

func TestInterleavedAllocateFree_NeverHandsOutLiveIndexTwice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	table := NewTable("window")
	stores := []*Store{table.Attach(), table.Attach()}
	live := map[int]bool{}

	for step := 0; step < 2000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for idx := range live {
				table.Free(idx)
				delete(live, idx)
				break
			}
			continue
		}
		idx, err := table.Allocate()
		if err != nil {
			t.Fatalf("step %d: allocate: %v", step, err)
		}
		if live[idx] {
			t.Fatalf("step %d: index %d handed out twice", step, idx)
		}
		live[idx] = true
		for _, s := range stores {
			if s.Len() <= idx {
				t.Fatalf("step %d: store does not cover index %d", step, idx)
			}
		}
	}
}

func TestKey_TypedAccessAndGenerations(t *testing.T) {
	table := NewTable("window")
	store := table.Attach()

	type fadeState struct{ opacity int }
	key, err := NewKey[*fadeState](table)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if _, ok := key.Get(store); ok {
		t.Fatalf("expected empty cell")
	}

	key.Set(store, &fadeState{opacity: 50})
	got, ok := key.Get(store)
	if !ok || got.opacity != 50 {
		t.Fatalf("get = %#v,%v", got, ok)
	}

	stale := key
	key.Release()
	if key.Valid() || key.Index() != -1 {
		t.Fatalf("released key still valid")
	}

	// The next owner of the same index must not see the previous value even
	// though the cell was never cleared.
	next, err := NewKey[*fadeState](table)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if next.Index() != stale.Index() {
		t.Fatalf("expected index reuse, got %d want %d", next.Index(), stale.Index())
	}
	if _, ok := next.Get(store); ok {
		t.Fatalf("new key observed previous generation's value")
	}
	if _, ok := stale.Get(store); ok {
		t.Fatalf("stale key observed a value after release")
	}
}

func TestKey_ForeignStorePanicsOnSet(t *testing.T) {
	a := NewTable("screen")
	b := NewTable("window")
	key, err := NewKey[int](a)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for foreign store")
		}
	}()
	key.Set(b.Attach(), 1)
}

func TestDetach(t *testing.T) {
	table := NewTable("window")
	s := table.Attach()
	table.Detach(s)
	table.Detach(s)
	if table.Live() != 0 {
		t.Fatalf("live = %d, want 0", table.Live())
	}
	if _, err := table.Allocate(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("detached store grew")
	}
}
