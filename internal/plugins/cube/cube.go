// Package cube places each screen on the face of a cube and unfolds it on
// request.
package cube

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/compwm/internal/hook"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/plugin"
	"github.com/1broseidon/compwm/internal/privates"
)

// Name is the plugin name.
const Name = "cube"

const (
	OptTopColor    = "top_color"
	OptBottomColor = "bottom_color"
	OptIn          = "in"
	OptUnfoldKey   = "unfold_key"
)

// unfoldDistance is the camera offset used while unfolded.
const unfoldDistance = 0.5

// Plugin is the cube plugin.
type Plugin struct {
	plugin.Base

	logger  *slog.Logger
	opts    []*option.Option
	screens privates.Key[*screenState]
}

type screenState struct {
	unfolded    bool
	transformed bool

	paintScreen *hook.Record[object.PaintScreenFunc]
	paintWindow *hook.Record[object.PaintWindowFunc]
}

// New returns a fresh cube plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{PluginName: Name}}
}

// Init allocates the screen private index and declares options.
func (p *Plugin) Init(h plugin.Host) error {
	p.logger = h.Logger().With("plugin", Name)
	var err error
	if p.screens, err = privates.NewKey[*screenState](h.Core().Table(object.KindScreen)); err != nil {
		return fmt.Errorf("screen private: %w", err)
	}
	p.opts = []*option.Option{
		option.NewColor(OptTopColor, "Top cap color", option.Color{0xffff, 0xffff, 0xffff, 0xffff}),
		option.NewColor(OptBottomColor, "Bottom cap color", option.Color{0xffff, 0xffff, 0xffff, 0xffff}),
		option.NewBool(OptIn, "Inside cube", false).
			WithDescription("Place the camera inside the cube"),
		option.NewAction(OptUnfoldKey, "Unfold cube", option.KeyAction(option.KeyBinding{
			Modifiers: xproto.ModMaskControl | xproto.ModMask1,
			Keysym:    "Down",
		})),
	}
	return nil
}

// Fini releases the private index.
func (p *Plugin) Fini(plugin.Host) { p.screens.Release() }

// InitScreen wraps paintScreen and paintWindow.
func (p *Plugin) InitScreen(s *object.Screen) error {
	st := &screenState{}
	st.paintScreen = s.Hooks.PaintScreen.Wrap(Name, func(s *object.Screen, attrib object.ScreenPaintAttrib, region object.Rect, mask uint32) bool {
		st.transformed = st.unfolded
		if st.unfolded {
			attrib = p.transform(attrib)
			mask |= object.PaintScreenTransformedMask
		}
		return st.paintScreen.Previous()(s, attrib, region, mask)
	})
	st.paintWindow = s.Hooks.PaintWindow.Wrap(Name, func(w *object.Window, attrib object.WindowPaintAttrib, mask uint32) bool {
		if st.transformed {
			mask |= object.PaintWindowOnTransformedScreenMask
		}
		return st.paintWindow.Previous()(w, attrib, mask)
	})
	p.screens.Set(s.Privates(), st)
	return nil
}

// FiniScreen unwraps the screen hooks.
func (p *Plugin) FiniScreen(s *object.Screen) {
	st, ok := p.screens.Get(s.Privates())
	if !ok {
		return
	}
	s.Hooks.PaintWindow.Unwrap(st.paintWindow)
	s.Hooks.PaintScreen.Unwrap(st.paintScreen)
	p.screens.Delete(s.Privates())
}

func (p *Plugin) transform(attrib object.ScreenPaintAttrib) object.ScreenPaintAttrib {
	attrib.ZTranslate = -unfoldDistance
	if option.Find(p.opts, OptIn).Value().Bool {
		attrib.ZTranslate = unfoldDistance
	}
	attrib.ZCamera = -attrib.ZTranslate
	return attrib
}

// Unfolded reports whether s is unfolded.
func (p *Plugin) Unfolded(s *object.Screen) bool {
	st, ok := p.screens.Get(s.Privates())
	return ok && st.unfolded
}

// Caps returns the top and bottom cap colors.
func (p *Plugin) Caps() (top, bottom option.Color) {
	return option.Find(p.opts, OptTopColor).Value().Color, option.Find(p.opts, OptBottomColor).Value().Color
}

// DisplayOptions returns the cube options.
func (p *Plugin) DisplayOptions(*object.Display) []*option.Option { return p.opts }

// SetDisplayOption stores v and repaints every screen when it changed.
func (p *Plugin) SetDisplayOption(d *object.Display, name string, v option.Value) bool {
	o := option.Find(p.opts, name)
	if o == nil || !o.Set(v) {
		return false
	}
	if name != OptUnfoldKey {
		for _, s := range d.Screens() {
			s.Damage()
		}
	}
	return true
}

// HandleAction toggles the unfolded state of every screen on unfold_key.
func (p *Plugin) HandleAction(d *object.Display, name string) bool {
	if name != OptUnfoldKey {
		return false
	}
	for _, s := range d.Screens() {
		st, ok := p.screens.Get(s.Privates())
		if !ok {
			continue
		}
		st.unfolded = !st.unfolded
		s.Damage()
		p.logger.Debug("cube toggled", "screen", s.Index(), "unfolded", st.unfolded)
	}
	return true
}
