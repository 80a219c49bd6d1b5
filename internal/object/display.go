package object

import (
	"sort"

	"github.com/1broseidon/compwm/internal/hook"
)

// EventKind classifies display events delivered to HandleEvent.
type EventKind int

const (
	EventMap EventKind = iota
	EventUnmap
	EventDestroy
	EventConfigure
	EventProperty
	EventKeyPress
)

func (k EventKind) String() string {
	switch k {
	case EventMap:
		return "map"
	case EventUnmap:
		return "unmap"
	case EventDestroy:
		return "destroy"
	case EventConfigure:
		return "configure"
	case EventProperty:
		return "property"
	case EventKeyPress:
		return "keypress"
	default:
		return "unknown"
	}
}

// Event is a backend-neutral display event.
type Event struct {
	Kind     EventKind
	Window   uint32
	Property string
	Detail   string
}

// Properties whose change alters what match expressions see.
var matchProperties = map[string]bool{
	"_NET_WM_WINDOW_TYPE": true,
	"_NET_WM_STATE":       true,
	"_NET_WM_NAME":        true,
	"WM_NAME":             true,
	"WM_CLASS":            true,
	"WM_WINDOW_ROLE":      true,
}

// HandleEventFunc processes one display event.
type HandleEventFunc func(d *Display, ev Event)

// MatchPropertyChangedFunc is called when a window property that match
// expressions may read has changed.
type MatchPropertyChangedFunc func(d *Display, w *Window)

// DisplayHooks are the wrappable operations of a display.
type DisplayHooks struct {
	HandleEvent          *hook.Chain[HandleEventFunc]
	MatchPropertyChanged *hook.Chain[MatchPropertyChangedFunc]
}

// Display is the connection-wide object. It owns one screen per monitor.
type Display struct {
	Object

	Hooks DisplayHooks

	name    string
	screens []*Screen
}

func newDisplay(c *Core, name string) *Display {
	d := &Display{name: name}
	d.Object.init(c, KindDisplay, &c.Object, d)
	d.Hooks = DisplayHooks{
		HandleEvent:          hook.NewChain[HandleEventFunc]("handleEvent", coreHandleEvent, &c.guard),
		MatchPropertyChanged: hook.NewChain[MatchPropertyChangedFunc]("matchPropertyChanged", func(*Display, *Window) {}, &c.guard),
	}
	return d
}

// coreHandleEvent forwards property changes of managed windows to the
// matchPropertyChanged chain.
func coreHandleEvent(d *Display, ev Event) {
	if ev.Kind != EventProperty || !matchProperties[ev.Property] {
		return
	}
	if w := d.FindWindow(ev.Window); w != nil {
		d.MatchPropertyChanged(w)
	}
}

// Name returns the X display name the display was opened with.
func (d *Display) Name() string { return d.name }

// HandleEvent invokes the active handleEvent implementation.
func (d *Display) HandleEvent(ev Event) {
	defer d.core.guard.Enter()()
	d.Hooks.HandleEvent.Active()(d, ev)
}

// MatchPropertyChanged invokes the active matchPropertyChanged implementation.
func (d *Display) MatchPropertyChanged(w *Window) {
	defer d.core.guard.Enter()()
	d.Hooks.MatchPropertyChanged.Active()(d, w)
}

// Screens returns the screens ordered by index.
func (d *Display) Screens() []*Screen {
	out := make([]*Screen, len(d.screens))
	copy(out, d.screens)
	return out
}

// Screen returns the screen with the given index, or nil.
func (d *Display) Screen(index int) *Screen {
	for _, s := range d.screens {
		if s.index == index {
			return s
		}
	}
	return nil
}

// AddScreen creates a screen object. An existing screen with the same index
// is returned unchanged.
func (d *Display) AddScreen(index int, geom Rect) *Screen {
	if s := d.Screen(index); s != nil {
		return s
	}
	s := newScreen(d, index, geom)
	d.screens = append(d.screens, s)
	sort.Slice(d.screens, func(i, j int) bool { return d.screens[i].index < d.screens[j].index })
	return s
}

// RemoveScreen removes s and every window on it.
func (d *Display) RemoveScreen(s *Screen) {
	for i, cur := range d.screens {
		if cur != s {
			continue
		}
		for _, w := range s.Windows() {
			s.RemoveWindow(w)
		}
		s.release()
		d.screens = append(d.screens[:i], d.screens[i+1:]...)
		return
	}
}

// FindWindow searches every screen for a window id.
func (d *Display) FindWindow(id uint32) *Window {
	for _, s := range d.screens {
		if w := s.FindWindow(id); w != nil {
			return w
		}
	}
	return nil
}

// Windows returns every window of every screen, screen by screen in stacking
// order.
func (d *Display) Windows() []*Window {
	var out []*Window
	for _, s := range d.screens {
		out = append(out, s.windows...)
	}
	return out
}
