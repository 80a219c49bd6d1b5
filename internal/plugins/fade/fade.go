// Package fade fades windows in when they are mapped and eases opacity
// changes. It must sit below cube in the stack.
package fade

import (
	"fmt"

	"github.com/1broseidon/compwm/internal/hook"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/plugin"
	"github.com/1broseidon/compwm/internal/privates"
)

// Name is the plugin name.
const Name = "fade"

const (
	OptFadeSpeed       = "fade_speed"
	OptWindowMatch     = "window_match"
	OptDimUnresponsive = "dim_unresponsive"
)

const (
	opaque = 0xffff
	// minSteps keeps very short frames moving.
	minSteps = 12

	dimBrightness = 0xa8a8
)

// Plugin is the fade plugin.
type Plugin struct {
	plugin.Base

	opts []*option.Option

	screens privates.Key[*screenState]
	windows privates.Key[*windowState]

	events *hook.Record[object.HandleEventFunc]
	props  *hook.Record[object.MatchPropertyChangedFunc]
}

type screenState struct {
	prepare *hook.Record[object.PreparePaintScreenFunc]
	paint   *hook.Record[object.PaintWindowFunc]
	done    *hook.Record[object.DonePaintScreenFunc]
}

type windowState struct {
	opacity uint16
	fading  bool
}

// New returns a fresh fade plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{PluginName: Name}}
}

// Deps places fade below cube.
func (p *Plugin) Deps() []plugin.Dep {
	return []plugin.Dep{{Rule: plugin.Before, Plugin: "cube"}}
}

// Init allocates private indices and declares options.
func (p *Plugin) Init(h plugin.Host) error {
	var err error
	if p.screens, err = privates.NewKey[*screenState](h.Core().Table(object.KindScreen)); err != nil {
		return fmt.Errorf("screen private: %w", err)
	}
	if p.windows, err = privates.NewKey[*windowState](h.Core().Table(object.KindWindow)); err != nil {
		p.screens.Release()
		return fmt.Errorf("window private: %w", err)
	}
	p.opts = []*option.Option{
		option.NewFloat(OptFadeSpeed, "Fade speed", 5, 0.1, 10, 0.1).
			WithDescription("Fades per second"),
		option.NewMatch(OptWindowMatch, "Fade windows", "Normal | Dialog | ModalDialog | Utility | Notification | Tooltip"),
		option.NewBool(OptDimUnresponsive, "Dim unresponsive windows", true),
	}
	for _, o := range p.opts {
		o.BindEngine(h.Matcher())
	}
	return nil
}

// Fini releases the private indices.
func (p *Plugin) Fini(plugin.Host) {
	p.windows.Release()
	p.screens.Release()
}

// InitDisplay restarts the fade of remapped windows and tracks match changes.
func (p *Plugin) InitDisplay(d *object.Display) error {
	p.events = d.Hooks.HandleEvent.Wrap(Name, p.handleEvent)
	p.props = d.Hooks.MatchPropertyChanged.Wrap(Name, p.matchPropertyChanged)
	return nil
}

// FiniDisplay unwraps the display hooks.
func (p *Plugin) FiniDisplay(d *object.Display) {
	d.Hooks.MatchPropertyChanged.Unwrap(p.props)
	d.Hooks.HandleEvent.Unwrap(p.events)
	p.props, p.events = nil, nil
}

func (p *Plugin) handleEvent(d *object.Display, ev object.Event) {
	if ev.Kind == object.EventMap {
		if w := d.FindWindow(ev.Window); w != nil {
			if ws, ok := p.windows.Get(w.Privates()); ok && ws.fading {
				ws.opacity = 0
				w.Damage()
			}
		}
	}
	p.events.Previous()(d, ev)
}

func (p *Plugin) matchPropertyChanged(d *object.Display, w *object.Window) {
	if ws, ok := p.windows.Get(w.Privates()); ok {
		ws.fading = p.matches(w)
		if !ws.fading {
			ws.opacity = w.Opacity
		}
	}
	p.props.Previous()(d, w)
}

// InitScreen wraps the screen paint hooks.
func (p *Plugin) InitScreen(s *object.Screen) error {
	st := &screenState{}
	st.prepare = s.Hooks.PreparePaintScreen.Wrap(Name, func(s *object.Screen, ms int) {
		p.preparePaintScreen(s, ms)
		st.prepare.Previous()(s, ms)
	})
	st.paint = s.Hooks.PaintWindow.Wrap(Name, func(w *object.Window, attrib object.WindowPaintAttrib, mask uint32) bool {
		attrib, mask = p.paintAttrib(w, attrib, mask)
		return st.paint.Previous()(w, attrib, mask)
	})
	st.done = s.Hooks.DonePaintScreen.Wrap(Name, func(s *object.Screen) {
		st.done.Previous()(s)
		p.damageFading(s)
	})
	p.screens.Set(s.Privates(), st)
	return nil
}

// FiniScreen unwraps the screen hooks in reverse order.
func (p *Plugin) FiniScreen(s *object.Screen) {
	st, ok := p.screens.Get(s.Privates())
	if !ok {
		return
	}
	s.Hooks.DonePaintScreen.Unwrap(st.done)
	s.Hooks.PaintWindow.Unwrap(st.paint)
	s.Hooks.PreparePaintScreen.Unwrap(st.prepare)
	p.screens.Delete(s.Privates())
}

// InitWindow starts a fade in for matching windows.
func (p *Plugin) InitWindow(w *object.Window) error {
	ws := &windowState{opacity: w.Opacity, fading: p.matches(w)}
	if ws.fading && w.Mapped {
		ws.opacity = 0
	}
	p.windows.Set(w.Privates(), ws)
	return nil
}

// FiniWindow drops the fade state.
func (p *Plugin) FiniWindow(w *object.Window) { p.windows.Delete(w.Privates()) }

func (p *Plugin) matches(w *object.Window) bool {
	return option.Find(p.opts, OptWindowMatch).Value().Match.Eval(w)
}

// steps converts elapsed time to an opacity delta.
func (p *Plugin) steps(ms int) int {
	fadeTime := 1000 / option.Find(p.opts, OptFadeSpeed).Value().Float
	steps := int(float64(ms) * opaque / fadeTime)
	if steps < minSteps {
		steps = minSteps
	}
	return steps
}

func (p *Plugin) preparePaintScreen(s *object.Screen, ms int) {
	steps := p.steps(ms)
	for _, w := range s.Windows() {
		ws, ok := p.windows.Get(w.Privates())
		if !ok || ws.opacity == w.Opacity {
			continue
		}
		if !ws.fading {
			ws.opacity = w.Opacity
			continue
		}
		ws.opacity = approach(ws.opacity, w.Opacity, steps)
	}
}

func approach(cur, target uint16, steps int) uint16 {
	c, t := int(cur), int(target)
	if c < t {
		c = min(c+steps, t)
	} else {
		c = max(c-steps, t)
	}
	return uint16(c)
}

func (p *Plugin) paintAttrib(w *object.Window, attrib object.WindowPaintAttrib, mask uint32) (object.WindowPaintAttrib, uint32) {
	ws, ok := p.windows.Get(w.Privates())
	if !ok {
		return attrib, mask
	}
	if ws.fading && ws.opacity != w.Opacity {
		attrib.Opacity = uint16(uint32(attrib.Opacity) * uint32(ws.opacity) / opaque)
		mask |= object.PaintWindowTranslucentMask
	}
	if w.Unresponsive && option.Find(p.opts, OptDimUnresponsive).Value().Bool {
		attrib.Brightness = dimBrightness
		attrib.Saturation = 0
	}
	return attrib, mask
}

func (p *Plugin) damageFading(s *object.Screen) {
	for _, w := range s.Windows() {
		if ws, ok := p.windows.Get(w.Privates()); ok && ws.opacity != w.Opacity {
			w.Damage()
		}
	}
}

// Opacity returns the opacity w is currently painted with.
func (p *Plugin) Opacity(w *object.Window) (uint16, bool) {
	ws, ok := p.windows.Get(w.Privates())
	if !ok {
		return 0, false
	}
	return ws.opacity, true
}

// DisplayOptions returns the fade options.
func (p *Plugin) DisplayOptions(*object.Display) []*option.Option { return p.opts }

// SetDisplayOption stores v. Changing window_match re-evaluates every window.
func (p *Plugin) SetDisplayOption(d *object.Display, name string, v option.Value) bool {
	o := option.Find(p.opts, name)
	if o == nil || !o.Set(v) {
		return false
	}
	if name == OptWindowMatch {
		for _, w := range d.Windows() {
			if ws, ok := p.windows.Get(w.Privates()); ok {
				ws.fading = p.matches(w)
			}
		}
	}
	return true
}
