package object

import (
	"errors"

	"github.com/1broseidon/compwm/internal/hook"
	"github.com/1broseidon/compwm/internal/privates"
)

// ErrDisplayOpen is returned when a second display is added to a core.
var ErrDisplayOpen = errors.New("display already open")

// ObjectAddFunc is called after obj has been inserted under parent and every
// active plugin has initialised it.
type ObjectAddFunc func(parent, obj *Object)

// ObjectRemoveFunc is called before obj is finalised and removed from parent.
type ObjectRemoveFunc func(parent, obj *Object)

// CoreHooks are the wrappable operations of the core.
type CoreHooks struct {
	ObjectAdd    *hook.Chain[ObjectAddFunc]
	ObjectRemove *hook.Chain[ObjectRemoveFunc]
}

// Core is the process-wide root object. It owns the private slot tables of
// every kind and the invocation guard shared by every hook chain.
type Core struct {
	Object

	Hooks CoreHooks

	tables  [numKinds]*privates.Table
	guard   hook.Guard
	display *Display
}

// NewCore creates a core with empty slot tables.
func NewCore() *Core {
	c := &Core{}
	for _, k := range Kinds() {
		c.tables[k] = privates.NewTable(k.String())
	}
	c.Object.init(c, KindCore, nil, c)
	c.Hooks = CoreHooks{
		ObjectAdd:    hook.NewChain[ObjectAddFunc]("objectAdd", func(*Object, *Object) {}, &c.guard),
		ObjectRemove: hook.NewChain[ObjectRemoveFunc]("objectRemove", func(*Object, *Object) {}, &c.guard),
	}
	return c
}

// Table returns the private slot table of kind.
func (c *Core) Table(kind Kind) *privates.Table { return c.tables[kind] }

// Guard returns the hook invocation guard shared by every chain under c.
func (c *Core) Guard() *hook.Guard { return &c.guard }

// Display returns the open display, or nil.
func (c *Core) Display() *Display { return c.display }

// ObjectAdd invokes the active objectAdd implementation.
func (c *Core) ObjectAdd(parent, obj *Object) {
	defer c.guard.Enter()()
	c.Hooks.ObjectAdd.Active()(parent, obj)
}

// ObjectRemove invokes the active objectRemove implementation.
func (c *Core) ObjectRemove(parent, obj *Object) {
	defer c.guard.Enter()()
	c.Hooks.ObjectRemove.Active()(parent, obj)
}

// OpenDisplay creates the display object. Plugins are not initialised for it;
// that is the caller's job.
func (c *Core) OpenDisplay(name string) (*Display, error) {
	if c.display != nil {
		return nil, ErrDisplayOpen
	}
	d := newDisplay(c, name)
	c.display = d
	return d, nil
}

// CloseDisplay removes the display together with its screens and windows.
func (c *Core) CloseDisplay() {
	d := c.display
	if d == nil {
		return
	}
	for _, s := range d.Screens() {
		d.RemoveScreen(s)
	}
	d.release()
	c.display = nil
}
