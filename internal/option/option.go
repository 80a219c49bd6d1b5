// Package option implements typed, validated configuration cells.
//
// An Option is declared once with its name, descriptions, type, default and
// restriction. Afterwards only its value changes, and only through the
// setters, which validate against the restriction and report whether the
// stored value actually changed. Invalid input never produces an error from a
// setter: it is refused (or, for restricted strings, substituted) and the
// setter returns false.
package option

import (
	"math"

	"github.com/1broseidon/compwm/internal/match"
)

// IntRestriction bounds an int option.
type IntRestriction struct {
	Min int
	Max int
}

// FloatRestriction bounds a float option and sets its step.
type FloatRestriction struct {
	Min       float64
	Max       float64
	Precision float64
}

// StringRestriction limits a string option to a set of values. An empty
// Allowed list accepts anything.
type StringRestriction struct {
	Allowed []string
}

// Restriction holds the restriction for the option's (element) type.
type Restriction struct {
	Int    IntRestriction
	Float  FloatRestriction
	String StringRestriction
}

// Option is a named, typed configuration cell.
type Option struct {
	name      string
	shortDesc string
	longDesc  string
	typ       Type
	value     Value
	def       Value
	rest      Restriction
	engine    *match.Engine
}

func declare(name, short string, typ Type, rest Restriction, def Value) *Option {
	o := &Option{name: name, shortDesc: short, typ: typ, rest: rest}
	o.value = zeroValue(typ, def.List.Type)
	o.Set(def)
	o.def = o.value.clone()
	return o
}

func zeroValue(typ, elem Type) Value {
	v := Value{Type: typ}
	switch typ {
	case TypeMatch:
		v.Match = &match.Expr{}
	case TypeList:
		v.List.Type = elem
	}
	return v
}

// NewBool declares a bool option.
func NewBool(name, short string, def bool) *Option {
	return declare(name, short, TypeBool, Restriction{}, BoolValue(def))
}

// NewInt declares an int option restricted to [min, max].
func NewInt(name, short string, def, min, max int) *Option {
	return declare(name, short, TypeInt, Restriction{Int: IntRestriction{Min: min, Max: max}}, IntValue(def))
}

// NewFloat declares a float option restricted to [min, max] in steps of
// precision.
func NewFloat(name, short string, def, min, max, precision float64) *Option {
	rest := Restriction{Float: FloatRestriction{Min: min, Max: max, Precision: precision}}
	return declare(name, short, TypeFloat, rest, FloatValue(def))
}

// NewString declares a string option. When allowed is non-empty the value is
// always one of its entries.
func NewString(name, short, def string, allowed ...string) *Option {
	rest := Restriction{String: StringRestriction{Allowed: allowed}}
	return declare(name, short, TypeString, rest, StringValue(def))
}

// NewColor declares a color option.
func NewColor(name, short string, def Color) *Option {
	return declare(name, short, TypeColor, Restriction{}, ColorValue(def))
}

// NewAction declares an action option.
func NewAction(name, short string, def Action) *Option {
	return declare(name, short, TypeAction, Restriction{}, ActionValue(def))
}

// NewMatch declares a match option with a default expression.
func NewMatch(name, short, def string) *Option {
	return declare(name, short, TypeMatch, Restriction{}, MatchValue(match.Parse(def)))
}

// NewList declares a list option. rest applies to every element.
func NewList(name, short string, elem Type, rest Restriction, defs ...Value) *Option {
	return declare(name, short, TypeList, rest, ListValue(elem, defs...))
}

// WithDescription sets the long description. It is meant to be chained on a
// declaration and returns o.
func (o *Option) WithDescription(long string) *Option {
	o.longDesc = long
	return o
}

// Name returns the option name.
func (o *Option) Name() string { return o.name }

// ShortDesc returns the one-line description.
func (o *Option) ShortDesc() string { return o.shortDesc }

// LongDesc returns the long description.
func (o *Option) LongDesc() string { return o.longDesc }

// Type returns the option type.
func (o *Option) Type() Type { return o.typ }

// ElementType returns the element type of a list option.
func (o *Option) ElementType() Type { return o.value.List.Type }

// Restriction returns the declared restriction.
func (o *Option) Restriction() Restriction { return o.rest }

// Value returns the current value. Callers must not modify it.
func (o *Option) Value() Value { return o.value }

// Default returns the value the option was declared with.
func (o *Option) Default() Value { return o.def }

// Reset restores the declared default.
func (o *Option) Reset() bool { return o.Set(o.def.clone()) }

// BindEngine sets the engine match values are compiled against and compiles
// the current value.
func (o *Option) BindEngine(e *match.Engine) {
	o.engine = e
	o.Recompile()
}

// Recompile recompiles any match expressions held by the option.
func (o *Option) Recompile() {
	switch o.typ {
	case TypeMatch:
		o.value.Match.Update(o.engine)
	case TypeList:
		if o.value.List.Type == TypeMatch {
			for _, v := range o.value.List.Values {
				v.Match.Update(o.engine)
			}
		}
	}
}

// Set stores v through the setter of the option's type. A value of the wrong
// type is refused.
func (o *Option) Set(v Value) bool {
	if v.Type != o.typ {
		return false
	}
	switch o.typ {
	case TypeBool:
		return o.SetBool(v.Bool)
	case TypeInt:
		return o.SetInt(v.Int)
	case TypeFloat:
		return o.SetFloat(v.Float)
	case TypeString:
		return o.SetString(v.String)
	case TypeColor:
		return o.SetColor(v.Color)
	case TypeAction:
		return o.SetAction(v.Action)
	case TypeMatch:
		return o.SetMatch(v.Match)
	case TypeList:
		if v.List.Type != o.value.List.Type {
			return false
		}
		return o.SetList(v.List.Values)
	}
	return false
}

// SetBool stores b.
func (o *Option) SetBool(b bool) bool {
	if o.typ != TypeBool {
		return false
	}
	return setBool(&o.value, b)
}

// SetInt stores i when it lies within the restriction.
func (o *Option) SetInt(i int) bool {
	if o.typ != TypeInt {
		return false
	}
	return setInt(&o.value, o.rest.Int, i)
}

// SetFloat quantizes f to the option's precision and stores it when the
// result lies within the restriction.
func (o *Option) SetFloat(f float64) bool {
	if o.typ != TypeFloat {
		return false
	}
	return setFloat(&o.value, o.rest.Float, f)
}

// SetString stores s, substituting the first allowed value when s is not
// allowed.
func (o *Option) SetString(s string) bool {
	if o.typ != TypeString {
		return false
	}
	return setString(&o.value, o.rest.String, s)
}

// SetColor stores c.
func (o *Option) SetColor(c Color) bool {
	if o.typ != TypeColor {
		return false
	}
	return setColor(&o.value, c)
}

// SetAction stores a.
func (o *Option) SetAction(a Action) bool {
	if o.typ != TypeAction {
		return false
	}
	return setAction(&o.value, a)
}

// SetMatch stores a copy of m compiled against the bound engine.
func (o *Option) SetMatch(m *match.Expr) bool {
	if o.typ != TypeMatch {
		return false
	}
	return setMatch(&o.value, o.engine, m)
}

// SetList resizes the list to len(values) and applies the element setter to
// each position. Positions added by the resize start from the element type's
// zero value, so an element refused by its setter stays zero.
func (o *Option) SetList(values []Value) bool {
	if o.typ != TypeList {
		return false
	}
	list := &o.value.List
	changed := false
	if len(values) != len(list.Values) {
		resized := make([]Value, len(values))
		n := copy(resized, list.Values)
		for i := n; i < len(resized); i++ {
			resized[i] = zeroValue(list.Type, 0)
		}
		list.Values = resized
		changed = true
	}
	for i, v := range values {
		if v.Type != list.Type {
			continue
		}
		if o.setElement(&list.Values[i], v) {
			changed = true
		}
	}
	return changed
}

func (o *Option) setElement(cur *Value, v Value) bool {
	switch cur.Type {
	case TypeBool:
		return setBool(cur, v.Bool)
	case TypeInt:
		return setInt(cur, o.rest.Int, v.Int)
	case TypeFloat:
		return setFloat(cur, o.rest.Float, v.Float)
	case TypeString:
		return setString(cur, o.rest.String, v.String)
	case TypeColor:
		return setColor(cur, v.Color)
	case TypeAction:
		return setAction(cur, v.Action)
	case TypeMatch:
		return setMatch(cur, o.engine, v.Match)
	}
	return false
}

func setBool(cur *Value, b bool) bool {
	if cur.Bool == b {
		return false
	}
	cur.Bool = b
	return true
}

func setInt(cur *Value, r IntRestriction, i int) bool {
	if i < r.Min || i > r.Max || i == cur.Int {
		return false
	}
	cur.Int = i
	return true
}

const floatEpsilon = 1e-6

// Quantize rounds f to the nearest multiple of precision, halves up. A
// non-positive precision leaves f unchanged.
func Quantize(f, precision float64) float64 {
	if precision <= 0 {
		return f
	}
	p := 1 / precision
	return math.Floor(f*p+0.5) / p
}

func setFloat(cur *Value, r FloatRestriction, f float64) bool {
	v := Quantize(f, r.Precision)
	if v < r.Min-floatEpsilon || v > r.Max+floatEpsilon || v == cur.Float {
		return false
	}
	cur.Float = v
	return true
}

func setString(cur *Value, r StringRestriction, s string) bool {
	if len(r.Allowed) > 0 {
		allowed := false
		for _, a := range r.Allowed {
			if a == s {
				allowed = true
				break
			}
		}
		if !allowed {
			s = r.Allowed[0]
		}
	}
	if cur.String == s {
		return false
	}
	cur.String = s
	return true
}

func setColor(cur *Value, c Color) bool {
	if cur.Color == c {
		return false
	}
	cur.Color = c
	return true
}

func setAction(cur *Value, a Action) bool {
	if cur.Action.Equal(a) {
		return false
	}
	cur.Action = a
	return true
}

func setMatch(cur *Value, e *match.Engine, m *match.Expr) bool {
	if cur.Match.Equal(m) {
		return false
	}
	cur.Match = m.Clone()
	cur.Match.Update(e)
	return true
}
