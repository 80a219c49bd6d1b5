package match

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/compwm/internal/object"
)

func window(typ object.WindowType, state object.WindowState) *object.Window {
	w := object.NewWindow(0x1a00003)
	w.Type = typ
	w.State = state
	return w
}

func sampleWindows() []*object.Window {
	var out []*object.Window
	types := []object.WindowType{object.WindowTypeNormal, object.WindowTypeDock, object.WindowTypeToolbar, object.WindowTypeDialog}
	states := []object.WindowState{0, object.WindowStateShaded, object.WindowStateFullscreen, object.WindowStateShaded | object.WindowStateAbove}
	id := uint32(1)
	for _, typ := range types {
		for _, st := range states {
			for _, or := range []bool{false, true} {
				w := window(typ, st)
				w.ID = id
				w.OverrideRedirect = or
				w.Alpha = id%3 == 0
				id++
				out = append(out, w)
			}
		}
	}
	return out
}

func TestEval_Expressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		win  *object.Window
		want bool
	}{
		{"or matches second", "type=dock | type=toolbar", window(object.WindowTypeToolbar, 0), true},
		{"or matches none", "type=dock | type=toolbar", window(object.WindowTypeNormal, 0), false},
		{"negated and group dock shaded", "!type=dock & (state=fullscreen | state=shaded)", window(object.WindowTypeDock, object.WindowStateShaded), false},
		{"negated and group normal shaded", "!type=dock & (state=fullscreen | state=shaded)", window(object.WindowTypeNormal, object.WindowStateShaded), true},
		{"negated and group normal plain", "!type=dock & (state=fullscreen | state=shaded)", window(object.WindowTypeNormal, 0), false},
		{"bare type name", "Dock", window(object.WindowTypeDock, 0), true},
		{"type case insensitive", "type=DOCK", window(object.WindowTypeDock, 0), true},
		{"type any", "type=any", window(object.WindowTypeSplash, 0), true},
		{"unknown type", "type=panel", window(object.WindowTypeDock, 0), false},
		{"unknown prefix", "title=Firefox", window(object.WindowTypeNormal, 0), false},
		{"xid hex", "xid=0x1a00003", window(object.WindowTypeNormal, 0), true},
		{"xid decimal", "xid=27262979", window(object.WindowTypeNormal, 0), true},
		{"xid trailing junk", "xid=27262979abc", window(object.WindowTypeNormal, 0), true},
		{"override redirect 0", "override_redirect=0", window(object.WindowTypeNormal, 0), true},
		{"override redirect 1", "override_redirect=1", window(object.WindowTypeNormal, 0), false},
		{"rgba 0", "rgba=0", window(object.WindowTypeNormal, 0), true},
		{"empty", "", window(object.WindowTypeNormal, 0), false},
		{"missing separator joins terms", "type=dock type=normal", window(object.WindowTypeNormal, 0), false},
		{"leading and ignored", "& type=normal", window(object.WindowTypeNormal, 0), true},
		{"unterminated group", "!(type=dock", window(object.WindowTypeNormal, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.expr).Eval(tt.win); got != tt.want {
				t.Fatalf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_SkipsInsteadOfReturning(t *testing.T) {
	// "a | b & c": a is true so b is skipped, then c is still ANDed in.
	w := window(object.WindowTypeNormal, 0)
	if Parse("type=normal | type=dock & state=shaded").Eval(w) {
		t.Fatalf("trailing AND term must still apply after a skipped OR term")
	}
	w.State = object.WindowStateShaded
	if !Parse("type=normal | type=dock & state=shaded").Eval(w) {
		t.Fatalf("expected match once the AND term holds")
	}
}

func TestEval_ShortCircuitDoesNotCallEvaluator(t *testing.T) {
	e := NewEngine(nil, nil)
	calls := 0
	if err := e.RegisterPrefix("test", "probe", func(*object.Display, string) (Evaluator, error) {
		return func(*object.Window) bool { calls++; return true }, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	w := window(object.WindowTypeDock, 0)

	e.Parse("type=dock | probe=x").Eval(w)
	e.Parse("type=normal & probe=x").Eval(w)
	if calls != 0 {
		t.Fatalf("probe evaluated %d times, want 0", calls)
	}
	e.Parse("type=normal | probe=x").Eval(w)
	if calls != 1 {
		t.Fatalf("probe evaluated %d times, want 1", calls)
	}
}

func TestParse_Structure(t *testing.T) {
	type flat struct {
		Kind  string
		Flags Flags
		Value string
		Depth int
	}
	var walk func(ops []Op, depth int) []flat
	walk = func(ops []Op, depth int) []flat {
		var out []flat
		for _, op := range ops {
			switch op := op.(type) {
			case *Exp:
				out = append(out, flat{"exp", op.Flags, op.Value, depth})
			case *Group:
				out = append(out, flat{"group", op.Flags, "", depth})
				out = append(out, walk(op.Ops, depth+1)...)
			}
		}
		return out
	}

	tests := []struct {
		in   string
		want []flat
	}{
		{
			in: "!type=dock & (state=fullscreen | state=shaded)",
			want: []flat{
				{"exp", FlagNot, "type=dock", 0},
				{"group", FlagAnd, "", 0},
				{"exp", 0, "state=fullscreen", 1},
				{"exp", 0, "state=shaded", 1},
			},
		},
		{
			in: `title=a\(b\)   & class=x\ `,
			want: []flat{
				{"exp", 0, "title=a(b)", 0},
				{"exp", FlagAnd, "class=x ", 0},
			},
		},
		{
			in: `( & type=dock) junk | name=\|pipe`,
			want: []flat{
				{"group", 0, "", 0},
				{"exp", 0, "type=dock", 1},
				{"exp", 0, "name=|pipe", 0},
			},
		},
		{
			in:   "a=1 & ",
			want: []flat{{"exp", 0, "a=1", 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := walk(Parse(tt.in).Ops(), 0)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ops mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	inputs := []string{
		"a=1 & b=2",
		"type=dock | type=toolbar",
		"!type=dock & (state=fullscreen | state=shaded)",
		"type=normal | type=dock & !(state=shaded & !(xid=0x5 | rgba=1))",
		`title=a\(b\) & class=\ lead\ `,
		`name=\!\&\|\\`,
		"(((type=dock",
		"override_redirect=1 & !rgba=0",
	}
	windows := sampleWindows()
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first := Parse(in)
			text := first.String()
			second := Parse(text)
			if !first.Equal(second) {
				t.Fatalf("round trip changed structure: %q -> %q", in, text)
			}
			for _, w := range windows {
				if first.Eval(w) != second.Eval(w) {
					t.Fatalf("round trip changed result for window %#x: %q -> %q", w.ID, in, text)
				}
			}
		})
	}
}

func TestString_Normalises(t *testing.T) {
	got := Parse("  type=dock   type=normal&state=shaded ").String()
	want := "type=dock   type=normal & state=shaded"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestEngine_RegistryAndRecompile(t *testing.T) {
	e := NewEngine(nil, nil)
	changes := 0
	e.OnHandlersChanged(func() { changes++ })

	expr := e.Parse("class=xterm")
	w := window(object.WindowTypeNormal, 0)
	w.Class = "XTerm"
	if expr.Eval(w) {
		t.Fatalf("unregistered prefix matched")
	}

	classFactory := func(_ *object.Display, v string) (Evaluator, error) {
		return func(w *object.Window) bool { return strings.EqualFold(w.Class, v) }, nil
	}
	if err := e.RegisterPrefix("regex", "class", classFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if changes != 1 {
		t.Fatalf("handlers changed %d times, want 1", changes)
	}
	expr.Update(e)
	if !expr.Eval(w) {
		t.Fatalf("expected match after recompiling")
	}

	if err := e.RegisterPrefix("other", "class", classFactory); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
	if err := e.RegisterPrefix("other", "type", classFactory); err == nil {
		t.Fatalf("builtin prefix accepted")
	}
	if diff := cmp.Diff(map[string]string{"class": "regex"}, e.Prefixes()); diff != "" {
		t.Fatalf("prefixes (-want +got):\n%s", diff)
	}

	e.UnregisterPrefix("class")
	e.UnregisterPrefix("class")
	if changes != 2 {
		t.Fatalf("handlers changed %d times, want 2", changes)
	}
	expr.Update(e)
	if expr.Eval(w) {
		t.Fatalf("match survived unregistration")
	}
}

func TestEngine_FactoryErrorEvaluatesFalse(t *testing.T) {
	e := NewEngine(nil, nil)
	if err := e.RegisterPrefix("regex", "title", func(*object.Display, string) (Evaluator, error) {
		return nil, errors.New("missing argument to repetition operator")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	w := window(object.WindowTypeNormal, 0)
	if e.Parse("title=*").Eval(w) {
		t.Fatalf("failed atom matched")
	}
	if !e.Parse("!title=*").Eval(w) {
		t.Fatalf("negated failed atom did not match")
	}
}

func TestParseLong(t *testing.T) {
	tests := map[string]int64{
		"0":     0,
		"12":    12,
		"0x1F":  31,
		"010":   8,
		"-3":    -3,
		"7z":    7,
		"junk":  0,
		"0x":    0,
		" 42":   42,
		"09":    0,
		"+0x10": 16,
	}
	for in, want := range tests {
		if got := parseLong(in); got != want {
			t.Errorf("parseLong(%q) = %d, want %d", in, got, want)
		}
	}
}
