// Package plugins registers the plugins compiled into compwm.
package plugins

import (
	"github.com/1broseidon/compwm/internal/plugin"
	"github.com/1broseidon/compwm/internal/plugins/core"
	"github.com/1broseidon/compwm/internal/plugins/cube"
	"github.com/1broseidon/compwm/internal/plugins/fade"
	"github.com/1broseidon/compwm/internal/plugins/regex"
)

// Builtin returns a registry holding core, regex, fade and cube. coreOpts are
// applied to every core instance the registry creates.
func Builtin(coreOpts ...core.Option) *plugin.Registry {
	r := plugin.NewRegistry()
	r.Register(core.Name, func() plugin.VTable { return core.New(coreOpts...) })
	r.Register(regex.Name, func() plugin.VTable { return regex.New() })
	r.Register(fade.Name, func() plugin.VTable { return fade.New() })
	r.Register(cube.Name, func() plugin.VTable { return cube.New() })
	return r
}
