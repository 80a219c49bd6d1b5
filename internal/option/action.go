package option

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// BindingKind selects which trigger of an Action is meaningful.
type BindingKind int

const (
	BindingNone BindingKind = iota
	BindingKey
	BindingButton
	BindingEdge
	BindingBell
)

func (k BindingKind) String() string {
	switch k {
	case BindingKey:
		return "key"
	case BindingButton:
		return "button"
	case BindingEdge:
		return "edge"
	case BindingBell:
		return "bell"
	default:
		return "none"
	}
}

// Edge is a bitmask of screen edges and corners.
type Edge uint32

const (
	EdgeLeft Edge = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
	EdgeTopLeft
	EdgeTopRight
	EdgeBottomLeft
	EdgeBottomRight
)

var edgeNames = []struct {
	name string
	edge Edge
}{
	{"Left", EdgeLeft},
	{"Right", EdgeRight},
	{"Top", EdgeTop},
	{"Bottom", EdgeBottom},
	{"TopLeft", EdgeTopLeft},
	{"TopRight", EdgeTopRight},
	{"BottomLeft", EdgeBottomLeft},
	{"BottomRight", EdgeBottomRight},
}

// ParseEdges reads a '|' separated edge list such as "Left|TopLeft".
func ParseEdges(s string) (Edge, error) {
	var mask Edge
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, e := range edgeNames {
			if strings.EqualFold(e.name, part) {
				mask |= e.edge
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown screen edge %q", part)
		}
	}
	return mask, nil
}

func (e Edge) String() string {
	var names []string
	for _, n := range edgeNames {
		if e&n.edge != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

var modifierNames = []struct {
	name string
	mask uint16
}{
	{"Shift", xproto.ModMaskShift},
	{"Lock", xproto.ModMaskLock},
	{"Control", xproto.ModMaskControl},
	{"Mod1", xproto.ModMask1},
	{"Mod2", xproto.ModMask2},
	{"Mod3", xproto.ModMask3},
	{"Mod4", xproto.ModMask4},
	{"Mod5", xproto.ModMask5},
}

var modifierAliases = map[string]uint16{
	"ctrl":  xproto.ModMaskControl,
	"alt":   xproto.ModMask1,
	"super": xproto.ModMask4,
}

func parseModifier(s string) (uint16, bool) {
	for _, m := range modifierNames {
		if strings.EqualFold(m.name, s) {
			return m.mask, true
		}
	}
	mask, ok := modifierAliases[strings.ToLower(s)]
	return mask, ok
}

func formatModifiers(mods uint16) []string {
	var parts []string
	for _, m := range modifierNames {
		if mods&m.mask != 0 {
			parts = append(parts, m.name)
		}
	}
	return parts
}

// splitBinding separates "Mod4-Mod1-t" into modifiers and the final token.
func splitBinding(s string) (uint16, string, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	last := parts[len(parts)-1]
	// A trailing '-' means the key itself is the minus sign.
	if last == "" && len(parts) > 1 {
		parts = parts[:len(parts)-1]
		parts[len(parts)-1] = "minus"
		last = "minus"
	}
	var mods uint16
	for _, p := range parts[:len(parts)-1] {
		m, ok := parseModifier(p)
		if !ok {
			return 0, "", fmt.Errorf("unknown modifier %q in %q", p, s)
		}
		mods |= m
	}
	return mods, last, nil
}

// KeyBinding is a keysym with modifiers, written "Mod4-Mod1-t".
type KeyBinding struct {
	Modifiers uint16
	Keysym    string
}

// ParseKey reads a key binding. "" and "Disabled" yield the zero binding.
func ParseKey(s string) (KeyBinding, error) {
	if isDisabled(s) {
		return KeyBinding{}, nil
	}
	mods, sym, err := splitBinding(s)
	if err != nil {
		return KeyBinding{}, err
	}
	if sym == "" {
		return KeyBinding{}, fmt.Errorf("key binding %q has no key", s)
	}
	return KeyBinding{Modifiers: mods, Keysym: sym}, nil
}

func (k KeyBinding) String() string {
	if k.Keysym == "" {
		return "Disabled"
	}
	return strings.Join(append(formatModifiers(k.Modifiers), k.Keysym), "-")
}

// ButtonBinding is a pointer button with modifiers, written "Mod4-Button1".
type ButtonBinding struct {
	Modifiers uint16
	Button    int
}

// ParseButton reads a button binding. "" and "Disabled" yield the zero
// binding.
func ParseButton(s string) (ButtonBinding, error) {
	if isDisabled(s) {
		return ButtonBinding{}, nil
	}
	mods, last, err := splitBinding(s)
	if err != nil {
		return ButtonBinding{}, err
	}
	if len(last) < 7 || !strings.EqualFold(last[:6], "button") {
		return ButtonBinding{}, fmt.Errorf("invalid button %q in %q", last, s)
	}
	n, err := strconv.Atoi(last[6:])
	if err != nil || n < 1 {
		return ButtonBinding{}, fmt.Errorf("invalid button %q in %q", last, s)
	}
	return ButtonBinding{Modifiers: mods, Button: n}, nil
}

func (b ButtonBinding) String() string {
	if b.Button == 0 {
		return "Disabled"
	}
	return strings.Join(append(formatModifiers(b.Modifiers), "Button"+strconv.Itoa(b.Button)), "-")
}

func isDisabled(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "disabled")
}

// Action is a bindable trigger. Kind selects which of the trigger fields the
// option stores; the others are carried but not compared.
type Action struct {
	Kind        BindingKind
	Key         KeyBinding
	Button      ButtonBinding
	EdgeMask    Edge
	EdgeButton  int
	Bell        bool
	IgnoreGrabs bool
}

// KeyAction is a key-bound action.
func KeyAction(k KeyBinding) Action { return Action{Kind: BindingKey, Key: k} }

// ButtonAction is a button-bound action.
func ButtonAction(b ButtonBinding) Action { return Action{Kind: BindingButton, Button: b} }

// EdgeAction is an edge-triggered action.
func EdgeAction(mask Edge) Action { return Action{Kind: BindingEdge, EdgeMask: mask} }

// BellAction is a bell-triggered action.
func BellAction(on bool) Action { return Action{Kind: BindingBell, Bell: on} }

// Equal compares two actions the way their binding kind defines: keys by
// keysym and modifiers, buttons by button and modifiers, edges by mask and
// bells by flag. Actions of different kinds are never equal.
func (a Action) Equal(o Action) bool {
	if a.Kind != o.Kind {
		return false
	}
	switch a.Kind {
	case BindingKey:
		return a.Key == o.Key
	case BindingButton:
		return a.Button == o.Button
	case BindingEdge:
		return a.EdgeMask == o.EdgeMask
	case BindingBell:
		return a.Bell == o.Bell
	}
	return true
}

// ParseAction reads "key:Mod4-t", "button:Mod4-Button1", "edge:Left|Top",
// "bell:true" or "none". A bare binding without a kind prefix is read as a
// key, or as a button when it names one.
func ParseAction(s string) (Action, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		rest = kind
		kind = "key"
		if _, last, err := splitBinding(rest); err == nil && strings.HasPrefix(strings.ToLower(last), "button") {
			kind = "button"
		}
	}
	switch strings.ToLower(kind) {
	case "none":
		return Action{}, nil
	case "key":
		k, err := ParseKey(rest)
		if err != nil {
			return Action{}, err
		}
		return KeyAction(k), nil
	case "button":
		b, err := ParseButton(rest)
		if err != nil {
			return Action{}, err
		}
		return ButtonAction(b), nil
	case "edge":
		mask, err := ParseEdges(rest)
		if err != nil {
			return Action{}, err
		}
		return EdgeAction(mask), nil
	case "bell":
		on, err := strconv.ParseBool(strings.TrimSpace(rest))
		if err != nil {
			return Action{}, fmt.Errorf("invalid bell flag %q: %w", rest, err)
		}
		return BellAction(on), nil
	}
	return Action{}, fmt.Errorf("unknown action kind %q", kind)
}

func (a Action) String() string {
	switch a.Kind {
	case BindingKey:
		return "key:" + a.Key.String()
	case BindingButton:
		return "button:" + a.Button.String()
	case BindingEdge:
		return "edge:" + a.EdgeMask.String()
	case BindingBell:
		return "bell:" + strconv.FormatBool(a.Bell)
	}
	return "none"
}
