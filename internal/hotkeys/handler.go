package hotkeys

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/platform"
	"github.com/1broseidon/compwm/internal/wm"
)

// Trigger runs a plugin action. It is called from the X event goroutine and
// must hand the work to the control loop.
type Trigger func(plugin, action string)

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
}

// Grab is one key sequence bound to a plugin action.
type Grab struct {
	Plugin   string
	Option   string
	Sequence string
}

// Grabs selects the key-bound actions among bindings. Disabled bindings and
// other binding kinds are skipped.
func Grabs(bindings []wm.Binding) []Grab {
	var out []Grab
	for _, b := range bindings {
		if b.Action.Kind != option.BindingKey || b.Action.Key.Keysym == "" {
			continue
		}
		out = append(out, Grab{Plugin: b.Plugin, Option: b.Option, Sequence: b.Action.Key.String()})
	}
	return out
}

// Handler grabs the key bindings of action options on the root window.
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	trigger Trigger
	logger  *slog.Logger

	mu      sync.Mutex
	current []Grab
}

var ignoreModsOnce sync.Once

// NewHandler creates a handler for backends that expose an X connection. It
// returns nil for other backends.
func NewHandler(backend platform.Backend, trigger Trigger, logger *slog.Logger) *Handler {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:      xu,
		root:    xu.RootWin(),
		trigger: trigger,
		logger:  logger,
	}
}

// Rebind replaces every grab with the key bindings in bindings. Unchanged
// sets are left alone.
func (h *Handler) Rebind(bindings []wm.Binding) {
	if h == nil {
		return
	}
	grabs := Grabs(bindings)

	h.mu.Lock()
	defer h.mu.Unlock()
	if sameGrabs(h.current, grabs) {
		return
	}

	keybind.Detach(h.xu, h.root)
	h.current = h.current[:0]
	for _, g := range grabs {
		g := g
		err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			h.logger.Debug("hotkey triggered", "plugin", g.Plugin, "action", g.Option, "keys", g.Sequence)
			h.trigger(g.Plugin, g.Option)
		}).Connect(h.xu, h.root, g.Sequence, true)
		if err != nil {
			h.logger.Warn("failed to grab key binding", "plugin", g.Plugin, "action", g.Option, "keys", g.Sequence, "error", err)
			continue
		}
		h.current = append(h.current, g)
		h.logger.Info("key binding registered", "plugin", g.Plugin, "action", g.Option, "keys", g.Sequence)
	}
}

func sameGrabs(a, b []Grab) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
