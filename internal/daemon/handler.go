package daemon

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/wm"
)

var _ ipc.Handler = (*Daemon)(nil)

// Status implements ipc.Handler.
func (d *Daemon) Status(ctx context.Context) (*ipc.StatusData, error) {
	var out *ipc.StatusData
	err := d.loop.Call(ctx, func() error {
		out = &ipc.StatusData{
			Display:       d.runtime.Display().Name(),
			ConfigPath:    d.res.Path,
			ActivePlugins: d.runtime.Active(),
			Screens:       len(d.runtime.Display().Screens()),
			Windows:       len(d.runtime.Windows()),
			MatchPrefixes: d.runtime.Matcher().PrefixNames(),
			DaemonRunning: true,
		}
		if !d.started.IsZero() {
			out.UptimeSeconds = int64(time.Since(d.started) / time.Second)
		}
		return nil
	})
	return out, err
}

// ListPlugins implements ipc.Handler. Available plugins that are not on the
// stack are listed with position -1.
func (d *Daemon) ListPlugins(ctx context.Context) (*ipc.PluginsData, error) {
	var out ipc.PluginsData
	err := d.loop.Call(ctx, func() error {
		active := d.runtime.Active()
		for i, name := range active {
			p := d.runtime.Plugin(name)
			info := ipc.PluginInfo{
				Name:         name,
				Active:       true,
				Position:     i,
				Source:       p.Source,
				Capabilities: p.Capabilities(),
			}
			for _, dep := range p.Deps {
				info.Deps = append(info.Deps, dep.String())
			}
			out.Plugins = append(out.Plugins, info)
		}
		available, err := d.runtime.Loader().Available()
		if err != nil {
			d.logger.Warn("failed to list available plugins", "error", err)
		}
		for _, name := range available {
			if slices.Contains(active, name) {
				continue
			}
			out.Plugins = append(out.Plugins, ipc.PluginInfo{Name: name, Position: -1})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOptions implements ipc.Handler.
func (d *Daemon) GetOptions(ctx context.Context, req ipc.OptionsPayload) (*ipc.OptionsData, error) {
	scope, err := wm.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}
	out := &ipc.OptionsData{Plugin: req.Plugin, Scope: scope.String()}
	err = d.loop.Call(ctx, func() error {
		opts, err := d.runtime.Options(scope, req.Plugin)
		if err != nil {
			return err
		}
		for _, opt := range opts {
			out.Options = append(out.Options, DescribeOption(opt))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeOption renders opt for introspection.
func DescribeOption(opt *option.Option) ipc.OptionInfo {
	info := ipc.OptionInfo{
		Name:        opt.Name(),
		Type:        opt.Type().String(),
		Short:       opt.ShortDesc(),
		Long:        opt.LongDesc(),
		Value:       opt.Value().Native(),
		Default:     opt.Default().Native(),
		Text:        opt.Value().Text(),
		Restriction: restrictionText(opt),
	}
	if opt.Type() == option.TypeList {
		info.ElementType = opt.ElementType().String()
	}
	return info
}

func restrictionText(opt *option.Option) string {
	typ := opt.Type()
	if typ == option.TypeList {
		typ = opt.ElementType()
	}
	rest := opt.Restriction()
	switch typ {
	case option.TypeInt:
		return fmt.Sprintf("%d..%d", rest.Int.Min, rest.Int.Max)
	case option.TypeFloat:
		return fmt.Sprintf("%s..%s step %s",
			strconv.FormatFloat(rest.Float.Min, 'f', -1, 64),
			strconv.FormatFloat(rest.Float.Max, 'f', -1, 64),
			strconv.FormatFloat(rest.Float.Precision, 'f', -1, 64))
	case option.TypeString:
		return strings.Join(rest.String.Allowed, "|")
	}
	return ""
}

// SetOption implements ipc.Handler. The value goes through the plugin's
// validating setter; a refused value is reported as unchanged together with
// the stored value.
func (d *Daemon) SetOption(ctx context.Context, req ipc.SetOptionPayload) (*ipc.SetOptionData, error) {
	scope, err := wm.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}
	var out ipc.SetOptionData
	err = d.loop.Call(ctx, func() error {
		opts, err := d.runtime.Options(scope, req.Plugin)
		if err != nil {
			return err
		}
		opt := option.Find(opts, req.Name)
		if opt == nil {
			return fmt.Errorf("%s.%s.%s: %w", req.Plugin, scope, req.Name, wm.ErrUnknownOption)
		}
		v, err := option.FromAny(opt, req.Value)
		if err != nil {
			return err
		}
		changed, err := d.runtime.SetOption(scope, req.Plugin, req.Name, v)
		if err != nil {
			return err
		}
		out.Changed = changed
		// Options of other screens in an "all" scope may differ; report the
		// first one, which is what Options returned.
		out.Value = opt.Value().Text()
		if changed && opt.Type() == option.TypeAction {
			d.bindingsChanged()
		}
		d.logger.Info("option set", "plugin", req.Plugin, "scope", scope.String(), "option", req.Name, "value", out.Value, "changed", changed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Activate implements ipc.Handler. The plugin is pushed on top of the stack
// and its stored options are applied.
func (d *Daemon) Activate(ctx context.Context, name string) (*ipc.StackData, error) {
	var out ipc.StackData
	err := d.loop.Call(ctx, func() error {
		if d.runtime.Plugin(name) != nil {
			return fmt.Errorf("activate %s: %w", name, wm.ErrAlreadyActive)
		}
		if err := d.runtime.UpdatePlugins(append(d.runtime.Active(), name)); err != nil {
			return err
		}
		if err := ApplyPluginOptions(d.runtime, d.res.Config, name, d.logger); err != nil {
			d.logger.Warn("plugin options applied with errors", "plugin", name, "error", err)
		}
		d.bindingsChanged()
		out.ActivePlugins = d.runtime.Active()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Deactivate implements ipc.Handler. Only the top of the stack can be
// deactivated.
func (d *Daemon) Deactivate(ctx context.Context, name string) (*ipc.StackData, error) {
	var out ipc.StackData
	err := d.loop.Call(ctx, func() error {
		if name == wm.CorePlugin {
			return fmt.Errorf("deactivate %s: the core plugin cannot be removed", name)
		}
		if _, err := d.runtime.Deactivate(name); err != nil {
			return err
		}
		// Records the new stack in core's active_plugins.
		if err := d.runtime.UpdatePlugins(d.runtime.Active()); err != nil {
			return err
		}
		d.bindingsChanged()
		out.ActivePlugins = d.runtime.Active()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWindows implements ipc.Handler.
func (d *Daemon) ListWindows(ctx context.Context) (*ipc.WindowsData, error) {
	var out ipc.WindowsData
	err := d.loop.Call(ctx, func() error {
		for _, w := range d.runtime.Windows() {
			out.Windows = append(out.Windows, DescribeWindow(w))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DescribeWindow renders w for introspection.
func DescribeWindow(w *object.Window) ipc.WindowInfo {
	screen := -1
	if s := w.Screen(); s != nil {
		screen = s.Index()
	}
	return ipc.WindowInfo{
		ID:               object.FormatXID(w.ID),
		Screen:           screen,
		Type:             w.Type.String(),
		State:            w.State.String(),
		Title:            w.Title,
		Class:            w.Class,
		Instance:         w.Instance,
		Role:             w.Role,
		X:                w.Geometry.X,
		Y:                w.Geometry.Y,
		Width:            w.Geometry.Width,
		Height:           w.Geometry.Height,
		Mapped:           w.Mapped,
		OverrideRedirect: w.OverrideRedirect,
		Alpha:            w.Alpha,
		Opacity:          w.Opacity,
	}
}

// EvalMatch implements ipc.Handler. The expression is compiled against the
// live display, so prefixes of active plugins are available.
func (d *Daemon) EvalMatch(ctx context.Context, expr string) (*ipc.EvalMatchData, error) {
	var out ipc.EvalMatchData
	err := d.loop.Call(ctx, func() error {
		x := d.runtime.Matcher().Parse(expr)
		out.Expr = x.String()
		out.Matches = []string{}
		for _, w := range d.runtime.Windows() {
			out.Checked++
			if x.Eval(w) {
				out.Matches = append(out.Matches, object.FormatXID(w.ID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Reload implements ipc.Handler. The file is read and validated off the
// loop; an invalid file leaves the running configuration untouched.
func (d *Daemon) Reload(ctx context.Context) error {
	var path string
	if err := d.loop.Call(ctx, func() error {
		path = d.res.Path
		return nil
	}); err != nil {
		return err
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	return d.loop.Call(ctx, func() error { return d.applyReload(res) })
}
