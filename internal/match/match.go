// Package match implements the window match expression language.
//
// An expression is a sequence of terms combined left to right:
//
//	type=Dock | type=Toolbar
//	!type=Dock & (state=fullscreen | state=shaded)
//
// A term is an atom (prefix=value, or a bare window type name) or a
// parenthesised group, optionally negated with '!'. Terms are OR-combined
// unless preceded by '&'. The characters ( ) ! & | and a backslash must be
// escaped with a backslash to appear literally in a value; trailing spaces of
// a value are dropped unless escaped.
package match

import (
	"strings"
)

// Flags modify how an op combines with the result accumulated before it.
type Flags uint8

const (
	// FlagNot negates the op's own value.
	FlagNot Flags = 1 << iota
	// FlagAnd combines the op with AND instead of the default OR.
	FlagAnd
)

// Op is one term of an expression: an *Exp or a *Group.
type Op interface {
	OpFlags() Flags
	clone() Op
}

// Exp is an atom.
type Exp struct {
	Flags Flags
	Value string

	eval Evaluator
}

// OpFlags returns the op's combinator flags.
func (e *Exp) OpFlags() Flags { return e.Flags }

func (e *Exp) clone() Op { return &Exp{Flags: e.Flags, Value: e.Value} }

// Group is a parenthesised sub-expression.
type Group struct {
	Flags Flags
	Ops   []Op
}

// OpFlags returns the op's combinator flags.
func (g *Group) OpFlags() Flags { return g.Flags }

func (g *Group) clone() Op {
	return &Group{Flags: g.Flags, Ops: cloneOps(g.Ops)}
}

func cloneOps(ops []Op) []Op {
	if ops == nil {
		return nil
	}
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[i] = op.clone()
	}
	return out
}

// Expr is a parsed match expression. The zero value matches nothing.
type Expr struct {
	ops      []Op
	engine   *Engine
	compiled bool
}

// Parse builds an expression from its textual form. Parsing never fails:
// malformed input yields the most literal op list that can be recovered.
func Parse(s string) *Expr {
	return &Expr{ops: parseOps(s)}
}

// Ops returns the expression's top-level ops.
func (e *Expr) Ops() []Op { return e.ops }

// Empty reports whether the expression has no ops.
func (e *Expr) Empty() bool { return e == nil || len(e.ops) == 0 }

// Clone returns an uncompiled deep copy of e.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return &Expr{}
	}
	return &Expr{ops: cloneOps(e.ops)}
}

// Equal reports whether two expressions have the same op structure.
func (e *Expr) Equal(other *Expr) bool {
	var a, b []Op
	if e != nil {
		a = e.ops
	}
	if other != nil {
		b = other.ops
	}
	return opsEqual(a, b)
}

func opsEqual(a, b []Op) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		switch x := a[i].(type) {
		case *Exp:
			y, ok := b[i].(*Exp)
			if !ok || x.Flags != y.Flags || x.Value != y.Value {
				return false
			}
		case *Group:
			y, ok := b[i].(*Group)
			if !ok || x.Flags != y.Flags || !opsEqual(x.Ops, y.Ops) {
				return false
			}
		}
	}
	return true
}

// nextIndex skips over escape sequences starting at i.
func nextIndex(s string, i int) int {
	for i < len(s) && s[i] == '\\' {
		i++
		if i < len(s) {
			i++
		}
	}
	return i
}

// unescapeValue strips escapes and drops unescaped trailing spaces.
func unescapeValue(raw string) string {
	trailing := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] != ' ' {
			trailing = 0
			if raw[i] == '\\' {
				i++
			}
		} else {
			trailing++
		}
	}
	raw = raw[:len(raw)-trailing]

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' {
			i++
			if i >= len(raw) {
				break
			}
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func parseOps(s string) []Op {
	var ops []Op
	var flags Flags
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i < len(s) && s[i] == '!' {
			flags |= FlagNot
			i++
			for i < len(s) && s[i] == ' ' {
				i++
			}
		}

		var j int
		if i < len(s) && s[i] == '(' {
			level := 1
			i++
			j = nextIndex(s, i)
			for j < len(s) {
				if s[j] == '(' {
					level++
				} else if s[j] == ')' {
					level--
					if level == 0 {
						break
					}
				}
				j = nextIndex(s, j+1)
			}
			ops = append(ops, &Group{Flags: flags, Ops: parseOps(s[i:j])})
			for j < len(s) && s[j] != '|' && s[j] != '&' {
				j++
			}
		} else {
			j = nextIndex(s, i)
			for j < len(s) && s[j] != '|' && s[j] != '&' {
				j = nextIndex(s, j+1)
			}
			if value := unescapeValue(s[i:j]); value != "" {
				ops = append(ops, &Exp{Flags: flags, Value: value})
			}
		}

		flags = 0
		i = j
		if i < len(s) {
			if s[i] == '&' {
				flags = FlagAnd
			}
			i++
		}
	}

	if len(ops) > 0 {
		switch op := ops[0].(type) {
		case *Exp:
			op.Flags &^= FlagAnd
		case *Group:
			op.Flags &^= FlagAnd
		}
	}
	return ops
}

const specialChars = "\\()!&|"

func escapeValue(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	// Leading and trailing spaces would be eaten by the parser.
	lead := len(v) - len(strings.TrimLeft(v, " "))
	trail := len(v) - len(strings.TrimRight(v, " "))
	if lead == len(v) {
		trail = 0
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if strings.IndexByte(specialChars, c) >= 0 || (c == ' ' && (i < lead || i >= len(v)-trail)) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func opsString(b *strings.Builder, ops []Op) {
	for i, op := range ops {
		flags := op.OpFlags()
		if i > 0 {
			if flags&FlagAnd != 0 {
				b.WriteString(" & ")
			} else {
				b.WriteString(" | ")
			}
		}
		if flags&FlagNot != 0 {
			b.WriteByte('!')
		}
		switch op := op.(type) {
		case *Exp:
			b.WriteString(escapeValue(op.Value))
		case *Group:
			b.WriteByte('(')
			opsString(b, op.Ops)
			b.WriteByte(')')
		}
	}
}

// String renders the expression so that parsing the result yields an equal
// op list.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	opsString(&b, e.ops)
	return b.String()
}
