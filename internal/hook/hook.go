// Package hook implements wrappable function slots.
//
// A Chain holds the active implementation of one operation on one object.
// Plugins wrap the chain to install their own implementation and receive a
// Record holding the implementation they replaced. A wrapping implementation
// forwards to Record.Previous() to keep the rest of the chain running; a link
// that does not forward cuts off every link that was wrapped before it.
//
// Records form a strict stack: Unwrap must be called in reverse order of Wrap,
// exactly once per record. Violations are programming errors in a plugin and
// panic with a *DisciplineError.
package hook

import (
	"fmt"
)

// DisciplineError describes a broken wrap/unwrap or reentrancy contract.
type DisciplineError struct {
	Chain string
	Owner string
	Msg   string
}

func (e *DisciplineError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("hook %s: %s (owner %s)", e.Chain, e.Msg, e.Owner)
	}
	return fmt.Sprintf("hook %s: %s", e.Chain, e.Msg)
}

// Guard counts hook invocations in progress. Structural changes (wrapping,
// plugin activation) are only legal while no invocation is running.
type Guard struct {
	depth int
}

// Enter marks the start of a hook invocation and returns the matching leave
// function.
func (g *Guard) Enter() func() {
	if g == nil {
		return func() {}
	}
	g.depth++
	return func() { g.depth-- }
}

// Active reports whether a hook invocation is on the call stack.
func (g *Guard) Active() bool {
	return g != nil && g.depth > 0
}

// Depth returns the current invocation nesting depth.
func (g *Guard) Depth() int {
	if g == nil {
		return 0
	}
	return g.depth
}

// Check panics when called from inside a hook invocation. op names the
// structural operation for the panic message.
func (g *Guard) Check(op string) {
	if g.Active() {
		panic(&DisciplineError{Chain: op, Msg: fmt.Sprintf("called while %d hook invocation(s) are running", g.depth)})
	}
}

// Record is the proof of one Wrap call.
type Record[F any] struct {
	chain    *Chain[F]
	owner    string
	previous F
	depth    int
	unwound  bool
}

// Previous returns the implementation that was active before this record's
// implementation was installed.
func (r *Record[F]) Previous() F { return r.previous }

// Owner returns the name passed to Wrap.
func (r *Record[F]) Owner() string { return r.owner }

// Chain is one wrappable operation slot.
type Chain[F any] struct {
	name     string
	original F
	active   F
	records  []*Record[F]
	guard    *Guard
}

// NewChain creates a chain whose original implementation is original.
func NewChain[F any](name string, original F, guard *Guard) *Chain[F] {
	return &Chain[F]{
		name:     name,
		original: original,
		active:   original,
		guard:    guard,
	}
}

// Name returns the operation name of the chain.
func (c *Chain[F]) Name() string { return c.name }

// Active returns the implementation invocations currently reach first.
func (c *Chain[F]) Active() F { return c.active }

// Original returns the core-supplied implementation.
func (c *Chain[F]) Original() F { return c.original }

// Depth returns the number of wraps currently installed.
func (c *Chain[F]) Depth() int { return len(c.records) }

// IsOriginal reports whether no wrap is installed.
func (c *Chain[F]) IsOriginal() bool { return len(c.records) == 0 }

// Owners lists the wrap owners from the oldest to the most recent wrap.
func (c *Chain[F]) Owners() []string {
	owners := make([]string, 0, len(c.records))
	for _, r := range c.records {
		owners = append(owners, r.owner)
	}
	return owners
}

// Wrap installs impl as the active implementation and returns the record the
// caller must later pass to Unwrap.
func (c *Chain[F]) Wrap(owner string, impl F) *Record[F] {
	c.guard.Check("wrap " + c.name)
	r := &Record[F]{
		chain:    c,
		owner:    owner,
		previous: c.active,
		depth:    len(c.records),
	}
	c.records = append(c.records, r)
	c.active = impl
	return r
}

// Unwrap removes the most recent wrap. rec must be that wrap's record.
func (c *Chain[F]) Unwrap(rec *Record[F]) {
	c.guard.Check("unwrap " + c.name)
	if rec == nil {
		panic(&DisciplineError{Chain: c.name, Msg: "unwrap of nil record"})
	}
	if rec.chain != c {
		panic(&DisciplineError{Chain: c.name, Owner: rec.owner, Msg: "record belongs to chain " + rec.chain.name})
	}
	if rec.unwound {
		panic(&DisciplineError{Chain: c.name, Owner: rec.owner, Msg: "record already unwrapped"})
	}
	top := len(c.records) - 1
	if top < 0 || c.records[top] != rec {
		current := ""
		if top >= 0 {
			current = c.records[top].owner
		}
		panic(&DisciplineError{
			Chain: c.name,
			Owner: rec.owner,
			Msg:   fmt.Sprintf("out of order unwrap at depth %d, top is %q at depth %d", rec.depth, current, top),
		})
	}

	c.records[top] = nil
	c.records = c.records[:top]
	rec.unwound = true
	if top == 0 {
		c.active = c.original
		return
	}
	c.active = rec.previous
}
