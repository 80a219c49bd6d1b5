// Package object defines the four long-lived object kinds the runtime manages:
// the core singleton, the display, per-monitor screens and windows.
//
// Every object embeds Object, which carries its kind tag, its private storage
// and a non-owning parent link. Cross-cutting operations (private index
// allocation, child enumeration, naming and lookup) are routed through a fixed
// per-kind dispatch table rather than type-specific code.
package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/compwm/internal/privates"
)

// Kind tags an object with its type.
type Kind int

const (
	KindCore Kind = iota
	KindDisplay
	KindScreen
	KindWindow

	numKinds
)

var kindNames = [numKinds]string{"core", "display", "screen", "window"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every object kind from the root down.
func Kinds() []Kind {
	return []Kind{KindCore, KindDisplay, KindScreen, KindWindow}
}

// ParseKind maps a kind name back to its tag.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), true
		}
	}
	return 0, false
}

// Object is the part shared by every object kind.
type Object struct {
	kind     Kind
	privates *privates.Store
	parent   *Object
	core     *Core
	self     any
}

func (o *Object) init(core *Core, kind Kind, parent *Object, self any) {
	o.kind = kind
	o.parent = parent
	o.core = core
	o.self = self
	o.privates = core.tables[kind].Attach()
}

func (o *Object) release() {
	if o.privates == nil {
		return
	}
	o.core.tables[o.kind].Detach(o.privates)
	o.privates = nil
}

// Kind returns the object's kind tag.
func (o *Object) Kind() Kind { return o.kind }

// Parent returns the enclosing object, or nil for the core.
func (o *Object) Parent() *Object { return o.parent }

// Privates returns the object's private storage. It is nil once the object
// has been removed from its parent.
func (o *Object) Privates() *privates.Store { return o.privates }

// Core returns the core the object belongs to.
func (o *Object) Core() *Core { return o.core }

// AsCore returns the concrete core, if the object is one.
func (o *Object) AsCore() (*Core, bool) {
	c, ok := o.self.(*Core)
	return c, ok
}

// AsDisplay returns the concrete display, if the object is one.
func (o *Object) AsDisplay() (*Display, bool) {
	d, ok := o.self.(*Display)
	return d, ok
}

// AsScreen returns the concrete screen, if the object is one.
func (o *Object) AsScreen() (*Screen, bool) {
	s, ok := o.self.(*Screen)
	return s, ok
}

// AsWindow returns the concrete window, if the object is one.
func (o *Object) AsWindow() (*Window, bool) {
	w, ok := o.self.(*Window)
	return w, ok
}

type kindOps struct {
	allocPrivateIndex func(c *Core) (int, error)
	freePrivateIndex  func(c *Core, index int)
	forEachChild      func(o *Object, fn func(*Object) bool) bool
	nameOf            func(o *Object) string
	findByName        func(parent *Object, name string) *Object
}

var dispatch [numKinds]kindOps

func init() {
	dispatch = [numKinds]kindOps{
		KindCore: {
			allocPrivateIndex: tableAlloc(KindCore),
			freePrivateIndex:  tableFree(KindCore),
			forEachChild: func(o *Object, fn func(*Object) bool) bool {
				c, _ := o.AsCore()
				if c.display == nil {
					return true
				}
				return fn(&c.display.Object)
			},
			nameOf: func(*Object) string { return "core" },
			findByName: func(parent *Object, name string) *Object {
				if parent == nil || name != "core" {
					return nil
				}
				if _, ok := parent.AsCore(); ok {
					return parent
				}
				return nil
			},
		},
		KindDisplay: {
			allocPrivateIndex: tableAlloc(KindDisplay),
			freePrivateIndex:  tableFree(KindDisplay),
			forEachChild: func(o *Object, fn func(*Object) bool) bool {
				d, _ := o.AsDisplay()
				for _, s := range d.Screens() {
					if !fn(&s.Object) {
						return false
					}
				}
				return true
			},
			nameOf: func(o *Object) string {
				d, _ := o.AsDisplay()
				return d.name
			},
			findByName: func(parent *Object, name string) *Object {
				c, ok := parent.AsCore()
				if !ok || c.display == nil {
					return nil
				}
				if name != "" && name != c.display.name {
					return nil
				}
				return &c.display.Object
			},
		},
		KindScreen: {
			allocPrivateIndex: tableAlloc(KindScreen),
			freePrivateIndex:  tableFree(KindScreen),
			forEachChild: func(o *Object, fn func(*Object) bool) bool {
				s, _ := o.AsScreen()
				for _, w := range s.Windows() {
					if !fn(&w.Object) {
						return false
					}
				}
				return true
			},
			nameOf: func(o *Object) string {
				s, _ := o.AsScreen()
				return strconv.Itoa(s.index)
			},
			findByName: func(parent *Object, name string) *Object {
				d, ok := parent.AsDisplay()
				if !ok {
					return nil
				}
				index, err := strconv.Atoi(name)
				if err != nil {
					return nil
				}
				if s := d.Screen(index); s != nil {
					return &s.Object
				}
				return nil
			},
		},
		KindWindow: {
			allocPrivateIndex: tableAlloc(KindWindow),
			freePrivateIndex:  tableFree(KindWindow),
			forEachChild:      func(*Object, func(*Object) bool) bool { return true },
			nameOf: func(o *Object) string {
				w, _ := o.AsWindow()
				return FormatXID(w.ID)
			},
			findByName: func(parent *Object, name string) *Object {
				s, ok := parent.AsScreen()
				if !ok {
					return nil
				}
				id, err := ParseXID(name)
				if err != nil {
					return nil
				}
				if w := s.FindWindow(id); w != nil {
					return &w.Object
				}
				return nil
			},
		},
	}
}

func tableAlloc(kind Kind) func(*Core) (int, error) {
	return func(c *Core) (int, error) { return c.tables[kind].Allocate() }
}

func tableFree(kind Kind) func(*Core, int) {
	return func(c *Core, index int) { c.tables[kind].Free(index) }
}

// AllocPrivateIndex reserves a private index for objects of kind.
func AllocPrivateIndex(c *Core, kind Kind) (int, error) {
	return dispatch[kind].allocPrivateIndex(c)
}

// FreePrivateIndex returns index to the pool of kind.
func FreePrivateIndex(c *Core, kind Kind, index int) {
	dispatch[kind].freePrivateIndex(c, index)
}

// ForEachChild calls fn for every direct child of o until fn returns false.
// It reports whether the walk ran to completion.
func ForEachChild(o *Object, fn func(*Object) bool) bool {
	return dispatch[o.kind].forEachChild(o, fn)
}

// NameOf returns the object's name: "core", the display name, the screen
// index or the window XID in hex.
func NameOf(o *Object) string {
	return dispatch[o.kind].nameOf(o)
}

// FindByName looks up a direct child of parent with the given kind and name.
// The core has no parent; it resolves itself when passed as parent with the
// name "core". An empty display name matches the only display.
func FindByName(parent *Object, kind Kind, name string) *Object {
	if kind < 0 || kind >= numKinds || parent == nil {
		return nil
	}
	return dispatch[kind].findByName(parent, name)
}

// Path returns the slash separated names from the core down to o, for
// example "core/:0/1/0x1a00003".
func Path(o *Object) string {
	var parts []string
	for cur := o; cur != nil; cur = cur.parent {
		parts = append(parts, NameOf(cur))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// FormatXID renders a window id the way X tools print it.
func FormatXID(id uint32) string {
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// ParseXID accepts decimal, 0x-prefixed hex or 0-prefixed octal ids. Other
// Go literal forms (0b, 0o, digit separators) are rejected.
func ParseXID(s string) (uint32, error) {
	digits := strings.TrimSpace(s)
	base := 10
	switch {
	case len(digits) > 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X'):
		base, digits = 16, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return uint32(v), nil
}
