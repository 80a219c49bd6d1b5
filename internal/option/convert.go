package option

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/1broseidon/compwm/internal/match"
)

// Find returns the option named name, or nil.
func Find(opts []*Option, name string) *Option {
	for _, o := range opts {
		if o.name == name {
			return o
		}
	}
	return nil
}

// FromAny converts decoded YAML or JSON data, or command line text, into a
// value of opt's type. Restrictions are not applied here; pass the result to
// Set.
func FromAny(opt *Option, raw any) (Value, error) {
	if opt.typ == TypeList {
		values, err := listFromAny(opt.value.List.Type, raw)
		if err != nil {
			return Value{}, fmt.Errorf("option %s: %w", opt.name, err)
		}
		return ListValue(opt.value.List.Type, values...), nil
	}
	v, err := scalarFromAny(opt.typ, raw)
	if err != nil {
		return Value{}, fmt.Errorf("option %s: %w", opt.name, err)
	}
	return v, nil
}

func listFromAny(elem Type, raw any) ([]Value, error) {
	var items []any
	switch r := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = r
	case []string:
		for _, s := range r {
			items = append(items, s)
		}
	case string:
		// Comma separated text from the command line.
		if strings.TrimSpace(r) == "" {
			return nil, nil
		}
		for _, part := range strings.Split(r, ",") {
			items = append(items, strings.TrimSpace(part))
		}
	default:
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	values := make([]Value, 0, len(items))
	for i, item := range items {
		v, err := scalarFromAny(elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func scalarFromAny(typ Type, raw any) (Value, error) {
	switch typ {
	case TypeBool:
		switch r := raw.(type) {
		case bool:
			return BoolValue(r), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(r))
			if err != nil {
				return Value{}, fmt.Errorf("invalid bool %q", r)
			}
			return BoolValue(b), nil
		}
	case TypeInt:
		switch r := raw.(type) {
		case int:
			return IntValue(r), nil
		case int64:
			return IntValue(int(r)), nil
		case float64:
			if r != math.Trunc(r) {
				return Value{}, fmt.Errorf("invalid int %v", r)
			}
			return IntValue(int(r)), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(r))
			if err != nil {
				return Value{}, fmt.Errorf("invalid int %q", r)
			}
			return IntValue(i), nil
		}
	case TypeFloat:
		switch r := raw.(type) {
		case float64:
			return FloatValue(r), nil
		case int:
			return FloatValue(float64(r)), nil
		case int64:
			return FloatValue(float64(r)), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
			if err != nil {
				return Value{}, fmt.Errorf("invalid float %q", r)
			}
			return FloatValue(f), nil
		}
	case TypeString:
		switch r := raw.(type) {
		case string:
			return StringValue(r), nil
		case int, int64, float64, bool:
			return StringValue(fmt.Sprint(r)), nil
		}
	case TypeColor:
		if s, ok := raw.(string); ok {
			c, err := ParseColor(s)
			if err != nil {
				return Value{}, err
			}
			return ColorValue(c), nil
		}
	case TypeAction:
		if s, ok := raw.(string); ok {
			a, err := ParseAction(s)
			if err != nil {
				return Value{}, err
			}
			return ActionValue(a), nil
		}
	case TypeMatch:
		if s, ok := raw.(string); ok {
			return MatchValue(match.Parse(s)), nil
		}
	}
	return Value{}, fmt.Errorf("cannot use %T as %s", raw, typ)
}
