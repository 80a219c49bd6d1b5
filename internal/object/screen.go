package object

import (
	"github.com/1broseidon/compwm/internal/hook"
)

// Rect is an output or window rectangle in root coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// ScreenPaintAttrib is the transform applied to a whole screen paint.
type ScreenPaintAttrib struct {
	XRotate    float32
	YRotate    float32
	VRotate    float32
	XTranslate float32
	YTranslate float32
	ZTranslate float32
	ZCamera    float32
}

// WindowPaintAttrib describes how one window is painted.
type WindowPaintAttrib struct {
	Opacity    uint16
	Brightness uint16
	Saturation uint16
	XScale     float32
	YScale     float32
}

// DefaultWindowPaintAttrib is fully opaque, unscaled and unmodified.
var DefaultWindowPaintAttrib = WindowPaintAttrib{
	Opacity:    0xffff,
	Brightness: 0xffff,
	Saturation: 0xffff,
	XScale:     1,
	YScale:     1,
}

// Paint mask bits passed down the paint chains.
const (
	PaintScreenRegionMask uint32 = 1 << iota
	PaintScreenFullMask
	PaintScreenTransformedMask
	PaintWindowOnTransformedScreenMask
	PaintWindowTranslucentMask
)

type (
	PreparePaintScreenFunc func(s *Screen, msSinceLastPaint int)
	PaintScreenFunc        func(s *Screen, attrib ScreenPaintAttrib, region Rect, mask uint32) bool
	DonePaintScreenFunc    func(s *Screen)
	PaintWindowFunc        func(w *Window, attrib WindowPaintAttrib, mask uint32) bool
	DamageWindowRectFunc   func(w *Window, initial bool, rect Rect) bool
)

// ScreenHooks are the wrappable operations of a screen.
type ScreenHooks struct {
	PreparePaintScreen *hook.Chain[PreparePaintScreenFunc]
	PaintScreen        *hook.Chain[PaintScreenFunc]
	DonePaintScreen    *hook.Chain[DonePaintScreenFunc]
	PaintWindow        *hook.Chain[PaintWindowFunc]
	DamageWindowRect   *hook.Chain[DamageWindowRectFunc]
}

// Screen is one monitor of the display. Windows are kept in stacking order,
// bottom first.
type Screen struct {
	Object

	Hooks ScreenHooks

	display  *Display
	index    int
	geometry Rect
	windows  []*Window
	damaged  bool
}

func newScreen(d *Display, index int, geom Rect) *Screen {
	s := &Screen{display: d, index: index, geometry: geom}
	g := &d.core.guard
	s.Object.init(d.core, KindScreen, &d.Object, s)
	s.Hooks = ScreenHooks{
		PreparePaintScreen: hook.NewChain[PreparePaintScreenFunc]("preparePaintScreen", func(*Screen, int) {}, g),
		PaintScreen:        hook.NewChain[PaintScreenFunc]("paintScreen", corePaintScreen, g),
		DonePaintScreen:    hook.NewChain[DonePaintScreenFunc]("donePaintScreen", func(s *Screen) { s.damaged = false }, g),
		PaintWindow:        hook.NewChain[PaintWindowFunc]("paintWindow", corePaintWindow, g),
		DamageWindowRect:   hook.NewChain[DamageWindowRectFunc]("damageWindowRect", coreDamageWindowRect, g),
	}
	return s
}

// corePaintScreen paints every visible window bottom to top.
func corePaintScreen(s *Screen, attrib ScreenPaintAttrib, _ Rect, mask uint32) bool {
	if mask&PaintScreenTransformedMask != 0 {
		mask |= PaintWindowOnTransformedScreenMask
	}
	for _, w := range s.Windows() {
		if !w.Mapped {
			continue
		}
		a := DefaultWindowPaintAttrib
		a.Opacity = w.Opacity
		wmask := mask
		if a.Opacity != 0xffff {
			wmask |= PaintWindowTranslucentMask
		}
		s.PaintWindow(w, a, wmask)
	}
	return true
}

func corePaintWindow(w *Window, attrib WindowPaintAttrib, _ uint32) bool {
	return w.Mapped && attrib.Opacity > 0
}

func coreDamageWindowRect(w *Window, _ bool, _ Rect) bool {
	if s := w.screen; s != nil {
		s.damaged = true
	}
	return false
}

// Display returns the owning display.
func (s *Screen) Display() *Display { return s.display }

// Index returns the screen number.
func (s *Screen) Index() int { return s.index }

// Geometry returns the monitor rectangle.
func (s *Screen) Geometry() Rect { return s.geometry }

// SetGeometry updates the monitor rectangle after a RandR change.
func (s *Screen) SetGeometry(r Rect) { s.geometry = r }

// Damaged reports whether anything was damaged since the last completed
// paint.
func (s *Screen) Damaged() bool { return s.damaged }

// Damage marks the whole screen for repaint.
func (s *Screen) Damage() { s.damaged = true }

// Windows returns the screen's windows bottom to top.
func (s *Screen) Windows() []*Window {
	out := make([]*Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// FindWindow returns the window with id, or nil.
func (s *Screen) FindWindow(id uint32) *Window {
	for _, w := range s.windows {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// InsertWindow attaches w on top of the stack.
func (s *Screen) InsertWindow(w *Window) {
	if w.screen != nil {
		panic("object: window " + FormatXID(w.ID) + " is already on a screen")
	}
	w.screen = s
	w.Object.init(s.core, KindWindow, &s.Object, w)
	s.windows = append(s.windows, w)
}

// RemoveWindow detaches w from the screen and drops its private storage.
func (s *Screen) RemoveWindow(w *Window) {
	for i, cur := range s.windows {
		if cur == w {
			s.windows = append(s.windows[:i], s.windows[i+1:]...)
			w.release()
			w.screen = nil
			s.damaged = true
			return
		}
	}
}

// Restack reorders the windows to follow ids, bottom first. Unknown ids are
// ignored and windows missing from ids keep their relative order at the
// bottom.
func (s *Screen) Restack(ids []uint32) {
	pos := make(map[uint32]int, len(ids))
	for i, id := range ids {
		pos[id] = i + 1
	}
	var unlisted, listed []*Window
	for _, w := range s.windows {
		if pos[w.ID] == 0 {
			unlisted = append(unlisted, w)
		} else {
			listed = append(listed, w)
		}
	}
	for i := 1; i < len(listed); i++ {
		for j := i; j > 0 && pos[listed[j].ID] < pos[listed[j-1].ID]; j-- {
			listed[j], listed[j-1] = listed[j-1], listed[j]
		}
	}
	s.windows = append(unlisted, listed...)
}

// PreparePaintScreen invokes the active preparePaintScreen implementation.
func (s *Screen) PreparePaintScreen(msSinceLastPaint int) {
	defer s.core.guard.Enter()()
	s.Hooks.PreparePaintScreen.Active()(s, msSinceLastPaint)
}

// PaintScreen invokes the active paintScreen implementation.
func (s *Screen) PaintScreen(attrib ScreenPaintAttrib, region Rect, mask uint32) bool {
	defer s.core.guard.Enter()()
	return s.Hooks.PaintScreen.Active()(s, attrib, region, mask)
}

// DonePaintScreen invokes the active donePaintScreen implementation.
func (s *Screen) DonePaintScreen() {
	defer s.core.guard.Enter()()
	s.Hooks.DonePaintScreen.Active()(s)
}

// PaintWindow invokes the active paintWindow implementation.
func (s *Screen) PaintWindow(w *Window, attrib WindowPaintAttrib, mask uint32) bool {
	defer s.core.guard.Enter()()
	return s.Hooks.PaintWindow.Active()(w, attrib, mask)
}

// DamageWindowRect invokes the active damageWindowRect implementation.
func (s *Screen) DamageWindowRect(w *Window, initial bool, rect Rect) bool {
	defer s.core.guard.Enter()()
	return s.Hooks.DamageWindowRect.Active()(w, initial, rect)
}

// PaintFrame runs one prepare/paint/done cycle over the whole screen.
func (s *Screen) PaintFrame(msSinceLastPaint int) bool {
	s.PreparePaintScreen(msSinceLastPaint)
	painted := s.PaintScreen(ScreenPaintAttrib{}, s.geometry, PaintScreenRegionMask)
	s.DonePaintScreen()
	return painted
}
