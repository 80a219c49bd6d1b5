package option

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/compwm/internal/match"
)

// Type identifies the kind of value an option holds.
type Type int

const (
	TypeBool Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeColor
	TypeAction
	TypeMatch
	TypeList
)

var typeNames = []string{"bool", "int", "float", "string", "color", "action", "match", "list"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// ParseType maps a type name back to its Type.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// Color is an RGBA color with 16 bits per channel.
type Color [4]uint16

// ParseColor reads "#rrggbb" or "#rrggbbaa". Each 8-bit channel is widened by
// repeating the byte, so "#ff0000" becomes {0xffff, 0, 0, 0xffff}.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 9) {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb or #rrggbbaa", s)
	}
	c := Color{0, 0, 0, 0xffff}
	for i := 0; i < (len(s)-1)/2; i++ {
		v, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		c[i] = uint16(v<<8 | v)
	}
	return c, nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c[0]>>8, c[1]>>8, c[2]>>8, c[3]>>8)
}

// Value is a tagged union holding one option value. Only the field matching
// Type is meaningful.
type Value struct {
	Type   Type
	Bool   bool
	Int    int
	Float  float64
	String string
	Color  Color
	Action Action
	Match  *match.Expr
	List   List
}

// List is the payload of a list value.
type List struct {
	Type   Type
	Values []Value
}

func BoolValue(b bool) Value        { return Value{Type: TypeBool, Bool: b} }
func IntValue(i int) Value          { return Value{Type: TypeInt, Int: i} }
func FloatValue(f float64) Value    { return Value{Type: TypeFloat, Float: f} }
func StringValue(s string) Value    { return Value{Type: TypeString, String: s} }
func ColorValue(c Color) Value      { return Value{Type: TypeColor, Color: c} }
func ActionValue(a Action) Value    { return Value{Type: TypeAction, Action: a} }
func MatchValue(m *match.Expr) Value { return Value{Type: TypeMatch, Match: m} }

// ListValue builds a list of elem values.
func ListValue(elem Type, values ...Value) Value {
	return Value{Type: TypeList, List: List{Type: elem, Values: values}}
}

// StringList is shorthand for a list of strings.
func StringList(items ...string) Value {
	values := make([]Value, len(items))
	for i, s := range items {
		values[i] = StringValue(s)
	}
	return ListValue(TypeString, values...)
}

// Equal reports whether two values hold the same data.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeBool:
		return v.Bool == o.Bool
	case TypeInt:
		return v.Int == o.Int
	case TypeFloat:
		return v.Float == o.Float
	case TypeString:
		return v.String == o.String
	case TypeColor:
		return v.Color == o.Color
	case TypeAction:
		return v.Action.Equal(o.Action)
	case TypeMatch:
		return v.Match.Equal(o.Match)
	case TypeList:
		if v.List.Type != o.List.Type || len(v.List.Values) != len(o.List.Values) {
			return false
		}
		for i := range v.List.Values {
			if !v.List.Values[i].Equal(o.List.Values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Text renders the value in the form accepted by FromAny.
func (v Value) Text() string {
	switch v.Type {
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeInt:
		return strconv.Itoa(v.Int)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case TypeString:
		return v.String
	case TypeColor:
		return v.Color.String()
	case TypeAction:
		return v.Action.String()
	case TypeMatch:
		return v.Match.String()
	case TypeList:
		parts := make([]string, len(v.List.Values))
		for i, e := range v.List.Values {
			parts[i] = e.Text()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// Native converts the value into plain Go data suitable for JSON or YAML
// encoding.
func (v Value) Native() any {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeList:
		out := make([]any, len(v.List.Values))
		for i, e := range v.List.Values {
			out[i] = e.Native()
		}
		return out
	default:
		return v.Text()
	}
}

func (v Value) clone() Value {
	switch v.Type {
	case TypeMatch:
		v.Match = v.Match.Clone()
	case TypeList:
		values := make([]Value, len(v.List.Values))
		for i, e := range v.List.Values {
			values[i] = e.clone()
		}
		v.List.Values = values
	}
	return v
}
