package platform

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Screen describes one physical output.
type Screen struct {
	Index  int
	Name   string
	Bounds Rect
}

// Window is a snapshot of a top-level window as the window system reports
// it. Types and States hold EWMH atom names.
type Window struct {
	ID               WindowID
	Screen           int
	Types            []string
	States           []string
	OverrideRedirect bool
	Mapped           bool
	Alpha            bool
	Title            string
	Class            string
	Instance         string
	Role             string
	Bounds           Rect
}

// Backend abstracts window-system discovery for the runtime.
type Backend interface {
	Name() string
	Screens() ([]Screen, error)
	// Windows lists top-level windows bottom to top.
	Windows() ([]Window, error)
	ActiveWindow() (WindowID, error)
	Close(windowID WindowID) error
}
