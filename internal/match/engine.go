package match

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/compwm/internal/object"
)

// Evaluator is a compiled atom.
type Evaluator func(w *object.Window) bool

// Factory compiles the value of a prefixed atom (the text after "prefix=")
// against a display.
type Factory func(d *object.Display, value string) (Evaluator, error)

func never(*object.Window) bool { return false }

// Engine compiles expressions against one display and owns the registry of
// extension prefixes.
type Engine struct {
	display   *object.Display
	logger    *slog.Logger
	factories map[string]Factory
	owners    map[string]string
	listeners []func()
}

// NewEngine creates an engine bound to d. A nil logger discards messages.
func NewEngine(d *object.Display, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		display:   d,
		logger:    logger,
		factories: make(map[string]Factory),
		owners:    make(map[string]string),
	}
}

// Display returns the display expressions are compiled against.
func (e *Engine) Display() *object.Display { return e.display }

// SetDisplay rebinds the engine. Every expression compiled earlier must be
// recompiled; listeners are notified.
func (e *Engine) SetDisplay(d *object.Display) {
	if e.display == d {
		return
	}
	e.display = d
	e.notify()
}

var builtinPrefixes = map[string]bool{
	"type":              true,
	"state":             true,
	"xid":               true,
	"override_redirect": true,
	"rgba":              true,
}

// RegisterPrefix adds an extension atom "prefix=value". owner names the
// registering plugin for introspection.
func (e *Engine) RegisterPrefix(owner, prefix string, f Factory) error {
	if prefix == "" || strings.ContainsAny(prefix, "=()!&| \\") {
		return fmt.Errorf("invalid match prefix %q", prefix)
	}
	if builtinPrefixes[prefix] {
		return fmt.Errorf("match prefix %q is builtin", prefix)
	}
	if cur, ok := e.owners[prefix]; ok {
		return fmt.Errorf("match prefix %q already registered by %s", prefix, cur)
	}
	e.factories[prefix] = f
	e.owners[prefix] = owner
	e.logger.Debug("match prefix registered", "prefix", prefix, "plugin", owner)
	e.notify()
	return nil
}

// UnregisterPrefix removes an extension prefix. Unknown prefixes are ignored.
func (e *Engine) UnregisterPrefix(prefix string) {
	if _, ok := e.factories[prefix]; !ok {
		return
	}
	delete(e.factories, prefix)
	delete(e.owners, prefix)
	e.logger.Debug("match prefix unregistered", "prefix", prefix)
	e.notify()
}

// Prefixes lists the registered extension prefixes with their owners.
func (e *Engine) Prefixes() map[string]string {
	out := make(map[string]string, len(e.owners))
	for p, o := range e.owners {
		out[p] = o
	}
	return out
}

// PrefixNames returns every prefix the engine understands, builtins first.
func (e *Engine) PrefixNames() []string {
	names := []string{"type", "state", "xid", "override_redirect", "rgba"}
	ext := make([]string, 0, len(e.factories))
	for p := range e.factories {
		ext = append(ext, p)
	}
	sort.Strings(ext)
	return append(names, ext...)
}

// OnHandlersChanged registers fn to run whenever the prefix registry or the
// bound display changes.
func (e *Engine) OnHandlersChanged(fn func()) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) notify() {
	for _, fn := range e.listeners {
		fn()
	}
}

// Parse parses s and compiles it against the engine.
func (e *Engine) Parse(s string) *Expr {
	expr := Parse(s)
	expr.Update(e)
	return expr
}

// Update compiles every atom of the expression against engine. A nil engine
// compiles builtins only.
func (e *Expr) Update(engine *Engine) {
	if e == nil {
		return
	}
	e.engine = engine
	compileOps(engine, e.ops)
	e.compiled = true
}

// Engine returns the engine the expression was last compiled against.
func (e *Expr) Engine() *Engine { return e.engine }

func compileOps(engine *Engine, ops []Op) {
	for _, op := range ops {
		switch op := op.(type) {
		case *Exp:
			op.eval = engine.compile(op.Value)
		case *Group:
			compileOps(engine, op.Ops)
		}
	}
}

func (e *Engine) compile(value string) Evaluator {
	prefix, arg, hasPrefix := strings.Cut(value, "=")
	if e != nil && hasPrefix {
		if f, ok := e.factories[prefix]; ok {
			eval, err := f(e.display, arg)
			if err != nil {
				e.logger.Warn("match atom failed to compile", "atom", value, "error", err)
				return never
			}
			if eval == nil {
				return never
			}
			return eval
		}
	}
	if !hasPrefix {
		return typeEvaluator(value)
	}
	switch prefix {
	case "type":
		return typeEvaluator(arg)
	case "state":
		return stateEvaluator(arg)
	case "xid":
		id := parseLong(arg)
		return func(w *object.Window) bool { return int64(w.ID) == id }
	case "override_redirect":
		v := parseLong(arg)
		return func(w *object.Window) bool {
			return (v == 1 && w.OverrideRedirect) || (v == 0 && !w.OverrideRedirect)
		}
	case "rgba":
		v := parseLong(arg)
		return func(w *object.Window) bool {
			return (v != 0 && w.Alpha) || (v == 0 && !w.Alpha)
		}
	}
	if e != nil {
		e.logger.Debug("unknown match prefix", "atom", value)
	}
	return never
}

func typeEvaluator(name string) Evaluator {
	mask, _ := object.ParseWindowType(name)
	return func(w *object.Window) bool { return w.Type&mask != 0 }
}

func stateEvaluator(name string) Evaluator {
	mask, _ := object.ParseWindowState(name)
	return func(w *object.Window) bool { return w.State&mask != 0 }
}

// parseLong reads a leading integer in C notation (decimal, 0x hex, 0 octal)
// and ignores anything after it. Unparsable input reads as 0.
func parseLong(s string) int64 {
	s = strings.TrimLeft(s, " \t")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	switch {
	case len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') && isDigit(s[2], 16):
		base, s = 16, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	end := 0
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	v, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		return 0
	}
	if neg {
		v = -v
	}
	return v
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return int(c-'0') < base
	case c >= 'a' && c <= 'f':
		return base == 16
	case c >= 'A' && c <= 'F':
		return base == 16
	}
	return false
}

// Eval reports whether w matches. Ops are folded left to right; an AND op is
// not evaluated while the result is false and an OR op is not evaluated while
// it is true. An expression never compiled is compiled with builtins only.
func (e *Expr) Eval(w *object.Window) bool {
	if e == nil || w == nil {
		return false
	}
	if !e.compiled {
		e.Update(e.engine)
	}
	return evalOps(e.ops, w)
}

func evalOps(ops []Op, w *object.Window) bool {
	result := false
	for _, op := range ops {
		flags := op.OpFlags()
		if flags&FlagAnd != 0 {
			if !result {
				continue
			}
		} else if result {
			continue
		}

		var value bool
		switch op := op.(type) {
		case *Exp:
			if op.eval != nil {
				value = op.eval(w)
			}
		case *Group:
			value = evalOps(op.Ops, w)
		}
		if flags&FlagNot != 0 {
			value = !value
		}
		if flags&FlagAnd != 0 {
			result = result && value
		} else {
			result = result || value
		}
	}
	return result
}
