// Package regex adds regular expression match prefixes for window strings.
package regex

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/1broseidon/compwm/internal/match"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/plugin"
)

// Name is the plugin name.
const Name = "regex"

var fields = []struct {
	prefix string
	get    func(*object.Window) string
}{
	{"title", func(w *object.Window) string { return w.Title }},
	{"role", func(w *object.Window) string { return w.Role }},
	{"class", func(w *object.Window) string { return w.Class }},
	{"name", func(w *object.Window) string { return w.Instance }},
}

// Plugin registers title=, role=, class= and name= with the match engine.
type Plugin struct {
	plugin.Base

	engine     *match.Engine
	logger     *slog.Logger
	registered []string
}

// New returns a fresh regex plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{PluginName: Name}}
}

// Prefixes lists the prefixes the plugin provides.
func Prefixes() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.prefix
	}
	return out
}

// Init registers the prefixes. Registration is undone if any prefix is taken.
func (p *Plugin) Init(h plugin.Host) error {
	p.engine = h.Matcher()
	p.logger = h.Logger().With("plugin", Name)
	for _, f := range fields {
		if err := p.engine.RegisterPrefix(Name, f.prefix, factory(f.prefix, f.get)); err != nil {
			p.unregister()
			return fmt.Errorf("register %s=: %w", f.prefix, err)
		}
		p.registered = append(p.registered, f.prefix)
	}
	p.logger.Debug("match prefixes registered", "prefixes", p.registered)
	return nil
}

// Fini unregisters the prefixes.
func (p *Plugin) Fini(plugin.Host) { p.unregister() }

func (p *Plugin) unregister() {
	for i := len(p.registered) - 1; i >= 0; i-- {
		p.engine.UnregisterPrefix(p.registered[i])
	}
	p.registered = nil
}

func factory(prefix string, get func(*object.Window) string) match.Factory {
	return func(_ *object.Display, value string) (match.Evaluator, error) {
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("%s=%s: %w", prefix, value, err)
		}
		return func(w *object.Window) bool { return re.MatchString(get(w)) }, nil
	}
}
