package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/hotkeys"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/platform"
	"github.com/1broseidon/compwm/internal/plugin"
	"github.com/1broseidon/compwm/internal/plugins"
	"github.com/1broseidon/compwm/internal/plugins/core"
	"github.com/1broseidon/compwm/internal/wm"
)

// Options configures a Daemon.
type Options struct {
	Backend platform.Backend
	// Loader resolves plugin names. Nil uses the compiled-in plugins followed
	// by the configured plugin_dir.
	Loader plugin.Loader
	Logger *slog.Logger
	// Watch enables hot reload of the loaded configuration files.
	Watch bool
}

// eventLooper is implemented by backends with their own event dispatch.
type eventLooper interface {
	EventLoop()
	StopEventLoop()
}

// Daemon ties a runtime to a window system backend and the control loop.
type Daemon struct {
	backend    platform.Backend
	runtime    *wm.Runtime
	loop       *Loop
	sync       *StateSynchronizer
	reconciler *Reconciler
	hotkeys    *hotkeys.Handler
	logger     *slog.Logger
	watch      bool
	started    time.Time

	// res is only touched on the loop.
	res *config.LoadResult
}

// New builds the runtime for res.Config. Nothing runs until Run.
func New(res *config.LoadResult, opts Options) (*Daemon, error) {
	if res == nil || res.Config == nil {
		return nil, errors.New("daemon: nil configuration")
	}
	if opts.Backend == nil {
		return nil, errors.New("daemon: nil backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		backend: opts.Backend,
		logger:  logger,
		watch:   opts.Watch,
		res:     res,
	}

	loader := opts.Loader
	if loader == nil {
		loader = plugin.ChainLoader{
			plugins.Builtin(core.WithCloser(d.closeActive)),
			plugin.DirLoader{Dir: res.Config.PluginDir},
		}
	}

	r, err := wm.New(wm.Config{
		DisplayName: opts.Backend.Name(),
		Loader:      loader,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	d.runtime = r
	d.loop = NewLoop(logger)
	d.sync = NewStateSynchronizer(r, logger)
	d.sync.OnScreenAdded = func(s *object.Screen) {
		if err := ApplyScreenOptions(d.runtime, d.res.Config, s.Index(), d.logger); err != nil {
			d.logger.Warn("screen options applied with errors", "screen", s.Index(), "error", err)
		}
	}
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: res.Config.ReconcileInterval(),
		Logger:   logger,
	}, opts.Backend, r, d.sync, d.loop)
	d.hotkeys = hotkeys.NewHandler(opts.Backend, d.trigger, logger)
	return d, nil
}

// Runtime returns the runtime. It may only be used from the loop.
func (d *Daemon) Runtime() *wm.Runtime { return d.runtime }

// Loop returns the control loop.
func (d *Daemon) Loop() *Loop { return d.loop }

// Run applies the configuration, starts reconciliation and blocks until ctx
// is cancelled. The runtime is closed before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	d.started = time.Now()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		d.loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	err := d.loop.Call(ctx, func() error {
		if err := ApplyConfig(d.runtime, d.res.Config, d.logger); err != nil {
			d.logger.Warn("configuration applied with errors", "error", err)
		}
		if _, err := d.reconciler.ReconcileNow(); err != nil {
			return fmt.Errorf("initial reconcile: %w", err)
		}
		d.bindingsChanged()
		return nil
	})
	if err != nil {
		d.shutdown(loopCtx)
		return err
	}
	d.logger.Info("compwm daemon started", "display", d.backend.Name(), "plugins", d.activePlugins(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reconciler.Run(ctx)
	}()

	if d.watch && d.res.Path != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.Watch(ctx, d.res.Path, d.logger, func(res *config.LoadResult, err error) {
				if err != nil {
					d.logger.Error("config reload failed", "error", err)
					return
				}
				if err := d.loop.Call(ctx, func() error { return d.applyReload(res) }); err != nil && ctx.Err() == nil {
					d.logger.Warn("config reloaded with errors", "error", err)
				}
			})
			if err != nil {
				d.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	if el, ok := d.backend.(eventLooper); ok {
		go el.EventLoop()
		defer el.StopEventLoop()
	}

	<-ctx.Done()
	wg.Wait()
	d.shutdown(loopCtx)
	d.logger.Info("compwm daemon stopped")
	return nil
}

func (d *Daemon) shutdown(loopCtx context.Context) {
	err := d.loop.Call(loopCtx, func() error {
		d.runtime.Close()
		return nil
	})
	if err != nil {
		d.logger.Warn("failed to close runtime", "error", err)
	}
}

func (d *Daemon) activePlugins(ctx context.Context) []string {
	var names []string
	_ = d.loop.Call(ctx, func() error {
		names = d.runtime.Active()
		return nil
	})
	return names
}

// applyReload swaps in a freshly loaded configuration. It runs on the loop.
func (d *Daemon) applyReload(res *config.LoadResult) error {
	d.res = res
	d.reconciler.SetInterval(res.Config.ReconcileInterval())
	err := ApplyConfig(d.runtime, res.Config, d.logger)
	d.bindingsChanged()
	d.logger.Info("configuration reloaded", "path", res.Path, "plugins", d.runtime.Active())
	return err
}

// bindingsChanged regrabs action keys. It runs on the loop.
func (d *Daemon) bindingsChanged() {
	d.hotkeys.Rebind(d.runtime.Bindings())
}

// trigger is called from the X event goroutine when a bound key is pressed.
func (d *Daemon) trigger(pluginName, action string) {
	err := d.loop.Post(context.Background(), func() {
		if _, err := d.runtime.TriggerAction(pluginName, action); err != nil {
			d.logger.Warn("action failed", "plugin", pluginName, "action", action, "error", err)
		}
	})
	if err != nil {
		d.logger.Warn("failed to queue action", "plugin", pluginName, "action", action, "error", err)
	}
}

// closeActive backs core's close_window_key.
func (d *Daemon) closeActive() error {
	id, err := d.backend.ActiveWindow()
	if err != nil {
		return fmt.Errorf("active window: %w", err)
	}
	if id == 0 {
		return errors.New("no active window")
	}
	return d.backend.Close(id)
}
