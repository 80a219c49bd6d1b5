package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

// WindowInfo is a snapshot of the properties the compositor tracks for one
// top-level window.
type WindowInfo struct {
	ID               xproto.Window
	Types            []string // _NET_WM_WINDOW_TYPE atom names
	States           []string // _NET_WM_STATE atom names
	OverrideRedirect bool
	Mapped           bool
	Depth            byte
	Title            string
	Class            string
	Instance         string
	Role             string
	X                int
	Y                int
	Width            int
	Height           int
}

// ListWindows returns the top-level windows bottom to top: managed clients
// in stacking order followed by override-redirect windows such as menus and
// tooltips.
func (c *Connection) ListWindows() ([]WindowInfo, error) {
	clients, err := ewmh.ClientListStackingGet(c.XUtil)
	if err != nil {
		clients, err = ewmh.ClientListGet(c.XUtil)
		if err != nil {
			return nil, fmt.Errorf("failed to get client list: %w", err)
		}
	}

	seen := make(map[xproto.Window]bool, len(clients))
	out := make([]WindowInfo, 0, len(clients))
	for _, win := range clients {
		info, ok := c.DescribeWindow(win)
		if !ok {
			continue
		}
		seen[win] = true
		out = append(out, info)
	}

	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return out, nil
	}
	for _, win := range tree.Children {
		if seen[win] {
			continue
		}
		info, ok := c.DescribeWindow(win)
		if !ok || !info.OverrideRedirect || !info.Mapped {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// DescribeWindow reads one window. It reports false for windows that are
// gone or input-only.
func (c *Connection) DescribeWindow(win xproto.Window) (WindowInfo, bool) {
	conn := c.XUtil.Conn()
	attrs, err := xproto.GetWindowAttributes(conn, win).Reply()
	if err != nil || attrs.Class == xproto.WindowClassInputOnly {
		return WindowInfo{}, false
	}
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return WindowInfo{}, false
	}

	info := WindowInfo{
		ID:               win,
		OverrideRedirect: attrs.OverrideRedirect,
		Mapped:           attrs.MapState == xproto.MapStateViewable,
		Depth:            geom.Depth,
		Width:            int(geom.Width),
		Height:           int(geom.Height),
		X:                int(geom.X),
		Y:                int(geom.Y),
	}
	if tr, err := xproto.TranslateCoordinates(conn, win, c.Root, 0, 0).Reply(); err == nil {
		info.X, info.Y = int(tr.DstX), int(tr.DstY)
	}

	info.Types, _ = ewmh.WmWindowTypeGet(c.XUtil, win)
	info.States, _ = ewmh.WmStateGet(c.XUtil, win)
	info.Title = c.windowTitle(win)
	if class, err := icccm.WmClassGet(c.XUtil, win); err == nil {
		info.Class = strings.TrimSpace(class.Class)
		info.Instance = strings.TrimSpace(class.Instance)
	}
	if role, err := xprop.PropValStr(xprop.GetProperty(c.XUtil, win, "WM_WINDOW_ROLE")); err == nil {
		info.Role = role
	}
	return info, true
}

func (c *Connection) windowTitle(win xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, win); err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title, err := icccm.WmNameGet(c.XUtil, win); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// GetActiveWindow returns _NET_ACTIVE_WINDOW.
func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// CloseWindow asks the client to close through WM_DELETE_WINDOW.
func (c *Connection) CloseWindow(win xproto.Window) error {
	protocols, err := xprop.Atm(c.XUtil, "WM_PROTOCOLS")
	if err != nil {
		return err
	}
	del, err := xprop.Atm(c.XUtil, "WM_DELETE_WINDOW")
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   protocols,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(del), 0, 0, 0, 0}),
	}
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		win,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}
