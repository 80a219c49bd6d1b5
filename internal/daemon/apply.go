package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/wm"
)

// ApplyConfig reconciles the plugin stack with cfg.ActivePlugins and then
// applies the stored option values of every active plugin. Values for
// inactive plugins stay in cfg and are applied when the plugin is activated.
func ApplyConfig(r *wm.Runtime, cfg *config.Config, logger *slog.Logger) error {
	var errs []error
	if err := r.UpdatePlugins(cfg.ActivePlugins); err != nil {
		errs = append(errs, fmt.Errorf("active_plugins: %w", err))
	}
	for _, name := range r.Active() {
		if err := ApplyPluginOptions(r, cfg, name, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyPluginOptions applies the stored display options of one plugin and its
// screen options for every screen that exists. Screens that appear later are
// covered by ApplyScreenOptions.
func ApplyPluginOptions(r *wm.Runtime, cfg *config.Config, pluginName string, logger *slog.Logger) error {
	stored, ok := cfg.Options[pluginName]
	if !ok {
		return nil
	}
	var errs []error
	for _, name := range sortedKeys(stored.Display) {
		if pluginName == wm.CorePlugin && name == "active_plugins" {
			logger.Warn("ignoring options.core.display.active_plugins; use the top-level active_plugins key")
			continue
		}
		if err := setStored(r, wm.DisplayScope(), pluginName, name, stored.Display[name], logger); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range r.Display().Screens() {
		if err := applyScreen(r, stored, pluginName, s.Index(), logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyScreenOptions applies the stored screen options of every active
// plugin to the screen with index. Values under "all" go first so that
// per-screen values win.
func ApplyScreenOptions(r *wm.Runtime, cfg *config.Config, index int, logger *slog.Logger) error {
	var errs []error
	for _, name := range r.Active() {
		stored, ok := cfg.Options[name]
		if !ok {
			continue
		}
		if err := applyScreen(r, stored, name, index, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func applyScreen(r *wm.Runtime, stored config.PluginOptions, pluginName string, index int, logger *slog.Logger) error {
	var errs []error
	scope := wm.ScreenScope(index)
	for _, key := range []string{config.AllScreens, strconv.Itoa(index)} {
		values := stored.Screens[key]
		for _, name := range sortedKeys(values) {
			if err := setStored(r, scope, pluginName, name, values[name], logger); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// setStored converts a raw configured value to the option's type and passes
// it through the validating setter.
func setStored(r *wm.Runtime, scope wm.Scope, pluginName, name string, raw any, logger *slog.Logger) error {
	path := fmt.Sprintf("options.%s.%s.%s", pluginName, scope, name)
	opts, err := r.Options(scope, pluginName)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	opt := option.Find(opts, name)
	if opt == nil {
		return fmt.Errorf("%s: %w", path, wm.ErrUnknownOption)
	}
	v, err := option.FromAny(opt, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	changed, err := r.SetOption(scope, pluginName, name, v)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !changed && !opt.Value().Equal(v) {
		logger.Warn("option value refused", "option", path, "value", v.Text(), "stored", opt.Value().Text())
		return nil
	}
	logger.Debug("option applied", "option", path, "value", opt.Value().Text(), "changed", changed)
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
