package object

import (
	"strings"
)

// WindowType is a bitmask of EWMH window types.
type WindowType uint32

const (
	WindowTypeDesktop WindowType = 1 << iota
	WindowTypeDock
	WindowTypeToolbar
	WindowTypeMenu
	WindowTypeUtility
	WindowTypeSplash
	WindowTypeDialog
	WindowTypeNormal
	WindowTypeDropdownMenu
	WindowTypePopupMenu
	WindowTypeTooltip
	WindowTypeNotification
	WindowTypeCombo
	WindowTypeDnd
	WindowTypeModalDialog
	WindowTypeFullscreen
	WindowTypeUnknown

	WindowTypeAny WindowType = ^WindowType(0)
)

var windowTypeNames = []struct {
	name string
	typ  WindowType
}{
	{"Desktop", WindowTypeDesktop},
	{"Dock", WindowTypeDock},
	{"Toolbar", WindowTypeToolbar},
	{"Menu", WindowTypeMenu},
	{"Utility", WindowTypeUtility},
	{"Splash", WindowTypeSplash},
	{"Dialog", WindowTypeDialog},
	{"Normal", WindowTypeNormal},
	{"DropdownMenu", WindowTypeDropdownMenu},
	{"PopupMenu", WindowTypePopupMenu},
	{"Tooltip", WindowTypeTooltip},
	{"Notification", WindowTypeNotification},
	{"Combo", WindowTypeCombo},
	{"Dnd", WindowTypeDnd},
	{"ModalDialog", WindowTypeModalDialog},
	{"Fullscreen", WindowTypeFullscreen},
	{"Unknown", WindowTypeUnknown},
}

// ParseWindowType maps a type name to its bit, ignoring case. "any" maps to
// every bit.
func ParseWindowType(name string) (WindowType, bool) {
	if strings.EqualFold(name, "any") {
		return WindowTypeAny, true
	}
	for _, t := range windowTypeNames {
		if strings.EqualFold(t.name, name) {
			return t.typ, true
		}
	}
	return 0, false
}

func (t WindowType) String() string {
	if t == WindowTypeAny {
		return "any"
	}
	var names []string
	for _, n := range windowTypeNames {
		if t&n.typ != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// WindowState is a bitmask of EWMH window states.
type WindowState uint32

const (
	WindowStateModal WindowState = 1 << iota
	WindowStateSticky
	WindowStateMaximizedVert
	WindowStateMaximizedHorz
	WindowStateShaded
	WindowStateSkipTaskbar
	WindowStateSkipPager
	WindowStateHidden
	WindowStateFullscreen
	WindowStateAbove
	WindowStateBelow
	WindowStateDemandsAttention
)

var windowStateNames = []struct {
	name  string
	state WindowState
}{
	{"modal", WindowStateModal},
	{"sticky", WindowStateSticky},
	{"maxvert", WindowStateMaximizedVert},
	{"maxhorz", WindowStateMaximizedHorz},
	{"shaded", WindowStateShaded},
	{"skiptaskbar", WindowStateSkipTaskbar},
	{"skippager", WindowStateSkipPager},
	{"hidden", WindowStateHidden},
	{"fullscreen", WindowStateFullscreen},
	{"above", WindowStateAbove},
	{"below", WindowStateBelow},
	{"demandsattention", WindowStateDemandsAttention},
}

// ParseWindowState maps a state name to its bit, ignoring case.
func ParseWindowState(name string) (WindowState, bool) {
	for _, s := range windowStateNames {
		if strings.EqualFold(s.name, name) {
			return s.state, true
		}
	}
	return 0, false
}

func (s WindowState) String() string {
	var names []string
	for _, n := range windowStateNames {
		if s&n.state != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Window is a managed top-level client. The exported fields are the state
// match expressions read; backends update them and then fire
// Display.MatchPropertyChanged.
type Window struct {
	Object

	ID               uint32
	Type             WindowType
	State            WindowState
	OverrideRedirect bool
	Alpha            bool
	Title            string
	Class            string
	Instance         string
	Role             string
	Geometry         Rect
	Opacity          uint16
	Mapped           bool

	// Unresponsive is set while the client fails to answer pings.
	Unresponsive bool

	screen *Screen
}

// NewWindow returns an unattached window with default paint state.
func NewWindow(id uint32) *Window {
	return &Window{
		ID:      id,
		Type:    WindowTypeUnknown,
		Opacity: 0xffff,
		Mapped:  true,
	}
}

// Screen returns the screen the window is on, or nil once removed.
func (w *Window) Screen() *Screen { return w.screen }

// Damage reports the whole window as damaged through the screen's
// damageWindowRect chain.
func (w *Window) Damage() {
	if w.screen == nil {
		return
	}
	w.screen.DamageWindowRect(w, false, w.Geometry)
}
