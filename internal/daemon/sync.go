package daemon

import (
	"log/slog"

	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/platform"
	"github.com/1broseidon/compwm/internal/wm"
)

var windowTypeAtoms = map[string]object.WindowType{
	"_NET_WM_WINDOW_TYPE_DESKTOP":       object.WindowTypeDesktop,
	"_NET_WM_WINDOW_TYPE_DOCK":          object.WindowTypeDock,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":       object.WindowTypeToolbar,
	"_NET_WM_WINDOW_TYPE_MENU":          object.WindowTypeMenu,
	"_NET_WM_WINDOW_TYPE_UTILITY":       object.WindowTypeUtility,
	"_NET_WM_WINDOW_TYPE_SPLASH":        object.WindowTypeSplash,
	"_NET_WM_WINDOW_TYPE_DIALOG":        object.WindowTypeDialog,
	"_NET_WM_WINDOW_TYPE_NORMAL":        object.WindowTypeNormal,
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU": object.WindowTypeDropdownMenu,
	"_NET_WM_WINDOW_TYPE_POPUP_MENU":    object.WindowTypePopupMenu,
	"_NET_WM_WINDOW_TYPE_TOOLTIP":       object.WindowTypeTooltip,
	"_NET_WM_WINDOW_TYPE_NOTIFICATION":  object.WindowTypeNotification,
	"_NET_WM_WINDOW_TYPE_COMBO":         object.WindowTypeCombo,
	"_NET_WM_WINDOW_TYPE_DND":           object.WindowTypeDnd,
}

var windowStateAtoms = map[string]object.WindowState{
	"_NET_WM_STATE_MODAL":             object.WindowStateModal,
	"_NET_WM_STATE_STICKY":            object.WindowStateSticky,
	"_NET_WM_STATE_MAXIMIZED_VERT":    object.WindowStateMaximizedVert,
	"_NET_WM_STATE_MAXIMIZED_HORZ":    object.WindowStateMaximizedHorz,
	"_NET_WM_STATE_SHADED":            object.WindowStateShaded,
	"_NET_WM_STATE_SKIP_TASKBAR":      object.WindowStateSkipTaskbar,
	"_NET_WM_STATE_SKIP_PAGER":        object.WindowStateSkipPager,
	"_NET_WM_STATE_HIDDEN":            object.WindowStateHidden,
	"_NET_WM_STATE_FULLSCREEN":        object.WindowStateFullscreen,
	"_NET_WM_STATE_ABOVE":             object.WindowStateAbove,
	"_NET_WM_STATE_BELOW":             object.WindowStateBelow,
	"_NET_WM_STATE_DEMANDS_ATTENTION": object.WindowStateDemandsAttention,
}

// windowState folds _NET_WM_STATE atoms into a state mask.
func windowState(atoms []string) object.WindowState {
	var s object.WindowState
	for _, a := range atoms {
		s |= windowStateAtoms[a]
	}
	return s
}

// windowType picks the first known _NET_WM_WINDOW_TYPE atom. Managed
// windows without one are Normal, modal ones ModalDialog, and fullscreen
// Normal windows Fullscreen.
func windowType(w platform.Window, state object.WindowState) object.WindowType {
	typ := object.WindowTypeUnknown
	for _, a := range w.Types {
		if t, ok := windowTypeAtoms[a]; ok {
			typ = t
			break
		}
	}
	if typ == object.WindowTypeUnknown && !w.OverrideRedirect {
		typ = object.WindowTypeNormal
	}
	switch {
	case typ == object.WindowTypeDialog && state&object.WindowStateModal != 0:
		typ = object.WindowTypeModalDialog
	case typ == object.WindowTypeNormal && state&object.WindowStateFullscreen != 0:
		typ = object.WindowTypeFullscreen
	}
	return typ
}

func toRect(r platform.Rect) object.Rect {
	return object.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// SyncStats counts what one synchronisation pass changed.
type SyncStats struct {
	ScreensAdded    int
	ScreensRemoved  int
	WindowsAdded    int
	WindowsRemoved  int
	WindowsFailed   int
	PropertyChanges int
}

// Changed reports whether the pass altered the object tree.
func (s SyncStats) Changed() bool {
	return s != SyncStats{}
}

// StateSynchronizer mirrors backend snapshots into the runtime's object
// tree. It must only be used on the control loop.
type StateSynchronizer struct {
	runtime *wm.Runtime
	logger  *slog.Logger

	// OnScreenAdded runs after a new screen has been initialised.
	OnScreenAdded func(s *object.Screen)
}

// NewStateSynchronizer creates a synchronizer for r.
func NewStateSynchronizer(r *wm.Runtime, logger *slog.Logger) *StateSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSynchronizer{runtime: r, logger: logger}
}

// SyncScreens adds, resizes and removes screens to match the backend.
func (s *StateSynchronizer) SyncScreens(screens []platform.Screen, stats *SyncStats) {
	d := s.runtime.Display()
	want := make(map[int]bool, len(screens))
	for _, ps := range screens {
		want[ps.Index] = true
		geom := toRect(ps.Bounds)
		if cur := d.Screen(ps.Index); cur != nil {
			if cur.Geometry() != geom {
				cur.SetGeometry(geom)
				cur.Damage()
			}
			continue
		}
		scr, err := s.runtime.AddScreen(ps.Index, geom)
		if err != nil {
			s.logger.Error("failed to add screen", "screen", ps.Index, "error", err)
			continue
		}
		stats.ScreensAdded++
		s.logger.Info("screen added", "screen", ps.Index, "name", ps.Name, "geometry", geom)
		if s.OnScreenAdded != nil {
			s.OnScreenAdded(scr)
		}
	}
	for _, cur := range d.Screens() {
		if want[cur.Index()] {
			continue
		}
		s.runtime.RemoveScreen(cur)
		stats.ScreensRemoved++
		s.logger.Info("screen removed", "screen", cur.Index())
	}
}

// SyncWindows adds, updates and removes windows to match the backend list,
// which is ordered bottom to top.
func (s *StateSynchronizer) SyncWindows(windows []platform.Window, stats *SyncStats) {
	d := s.runtime.Display()
	seen := make(map[uint32]bool, len(windows))
	order := make(map[int][]uint32)

	for _, pw := range windows {
		id := uint32(pw.ID)
		scr := d.Screen(pw.Screen)
		if scr == nil {
			continue
		}
		seen[id] = true
		order[pw.Screen] = append(order[pw.Screen], id)

		w := d.FindWindow(id)
		if w != nil && w.Screen() != scr {
			// Moved to another screen: re-create it there.
			s.removeWindow(w)
			stats.WindowsRemoved++
			w = nil
		}
		if w == nil {
			if s.addWindow(scr, pw) {
				stats.WindowsAdded++
			} else {
				stats.WindowsFailed++
			}
			continue
		}
		stats.PropertyChanges += s.updateWindow(w, pw)
	}

	for _, w := range d.Windows() {
		if !seen[w.ID] {
			s.removeWindow(w)
			stats.WindowsRemoved++
		}
	}
	for _, scr := range d.Screens() {
		scr.Restack(order[scr.Index()])
	}
}

func (s *StateSynchronizer) addWindow(scr *object.Screen, pw platform.Window) bool {
	w := object.NewWindow(uint32(pw.ID))
	state := windowState(pw.States)
	w.Type = windowType(pw, state)
	w.State = state
	w.OverrideRedirect = pw.OverrideRedirect
	w.Alpha = pw.Alpha
	w.Title = pw.Title
	w.Class = pw.Class
	w.Instance = pw.Instance
	w.Role = pw.Role
	w.Geometry = toRect(pw.Bounds)
	w.Mapped = pw.Mapped

	if err := s.runtime.AddWindow(scr, w); err != nil {
		s.logger.Warn("failed to add window", "window", object.FormatXID(w.ID), "error", err)
		return false
	}
	s.logger.Debug("window added", "window", object.FormatXID(w.ID), "screen", scr.Index(), "type", w.Type.String(), "class", w.Class)
	if w.Mapped {
		d := s.runtime.Display()
		d.HandleEvent(object.Event{Kind: object.EventMap, Window: w.ID})
	}
	return true
}

func (s *StateSynchronizer) removeWindow(w *object.Window) {
	id := w.ID
	s.runtime.Display().HandleEvent(object.Event{Kind: object.EventDestroy, Window: id})
	s.runtime.RemoveWindow(w)
	s.logger.Debug("window removed", "window", object.FormatXID(id))
}

// updateWindow copies changed properties into w and emits the matching
// display events. It returns the number of property events sent, counting an
// override-redirect or alpha change as one.
func (s *StateSynchronizer) updateWindow(w *object.Window, pw platform.Window) int {
	d := s.runtime.Display()
	var props []string

	state := windowState(pw.States)
	typ := windowType(pw, state)
	if state != w.State {
		w.State = state
		props = append(props, "_NET_WM_STATE")
	}
	if typ != w.Type {
		w.Type = typ
		props = append(props, "_NET_WM_WINDOW_TYPE")
	}
	if pw.Title != w.Title {
		w.Title = pw.Title
		props = append(props, "_NET_WM_NAME")
	}
	if pw.Class != w.Class || pw.Instance != w.Instance {
		w.Class, w.Instance = pw.Class, pw.Instance
		props = append(props, "WM_CLASS")
	}
	if pw.Role != w.Role {
		w.Role = pw.Role
		props = append(props, "WM_WINDOW_ROLE")
	}
	// Attributes without a property atom go straight to the match chain.
	attrs := pw.OverrideRedirect != w.OverrideRedirect || pw.Alpha != w.Alpha
	w.OverrideRedirect = pw.OverrideRedirect
	w.Alpha = pw.Alpha

	for _, p := range props {
		d.HandleEvent(object.Event{Kind: object.EventProperty, Window: w.ID, Property: p})
	}
	if attrs {
		d.MatchPropertyChanged(w)
	}

	if geom := toRect(pw.Bounds); geom != w.Geometry {
		w.Damage()
		w.Geometry = geom
		w.Damage()
		d.HandleEvent(object.Event{Kind: object.EventConfigure, Window: w.ID})
	}
	if pw.Mapped != w.Mapped {
		w.Mapped = pw.Mapped
		kind := object.EventUnmap
		if w.Mapped {
			kind = object.EventMap
		}
		w.Damage()
		d.HandleEvent(object.Event{Kind: kind, Window: w.ID})
	}
	if attrs {
		return len(props) + 1
	}
	return len(props)
}
