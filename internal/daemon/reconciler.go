package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/compwm/internal/platform"
	"github.com/1broseidon/compwm/internal/wm"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically snapshots the window system and mirrors it into
// the runtime, then runs a paint cycle for damaged screens.
type Reconciler struct {
	interval  time.Duration
	backend   platform.Backend
	runtime   *wm.Runtime
	sync      *StateSynchronizer
	loop      *Loop
	logger    *slog.Logger
	lastPaint time.Time
	reset     chan time.Duration
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, backend platform.Backend, r *wm.Runtime, sync *StateSynchronizer, loop *Loop) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval: interval,
		backend:  backend,
		runtime:  r,
		sync:     sync,
		loop:     loop,
		logger:   logger,
		reset:    make(chan time.Duration, 1),
	}
}

// SetInterval changes the polling period of a running reconciler.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case r.reset <- d:
			return
		default:
		}
		// Drop a pending change that was never picked up.
		select {
		case <-r.reset:
		default:
		}
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case d := <-r.reset:
			r.interval = d
			ticker.Reset(d)
			r.logger.Info("reconciler interval changed", "interval", d)
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick queries the backend off the loop and applies the snapshot on it.
func (r *Reconciler) tick(ctx context.Context) {
	screens, windows, err := r.snapshot()
	if err != nil {
		r.logger.Error("reconciler: failed to query window system", "error", err)
		return
	}
	if err := r.loop.Post(ctx, func() { r.apply(screens, windows) }); err != nil && ctx.Err() == nil {
		r.logger.Warn("reconciler: failed to post pass", "error", err)
	}
}

func (r *Reconciler) snapshot() ([]platform.Screen, []platform.Window, error) {
	screens, err := r.backend.Screens()
	if err != nil {
		return nil, nil, err
	}
	windows, err := r.backend.Windows()
	if err != nil {
		return nil, nil, err
	}
	return screens, windows, nil
}

// apply performs a single reconciliation pass on the control loop.
func (r *Reconciler) apply(screens []platform.Screen, windows []platform.Window) SyncStats {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	var stats SyncStats
	r.sync.SyncScreens(screens, &stats)
	r.sync.SyncWindows(windows, &stats)
	if stats.Changed() {
		r.logger.Debug("reconciler pass",
			"screens_added", stats.ScreensAdded,
			"screens_removed", stats.ScreensRemoved,
			"windows_added", stats.WindowsAdded,
			"windows_removed", stats.WindowsRemoved,
			"windows_failed", stats.WindowsFailed,
			"property_changes", stats.PropertyChanges)
	}

	now := time.Now()
	ms := int(r.interval / time.Millisecond)
	if !r.lastPaint.IsZero() {
		ms = int(now.Sub(r.lastPaint) / time.Millisecond)
	}
	r.lastPaint = now
	r.runtime.Paint(ms, false)
	return stats
}

// ReconcileNow runs a pass immediately on the calling goroutine, which must
// be the control loop.
func (r *Reconciler) ReconcileNow() (SyncStats, error) {
	screens, windows, err := r.snapshot()
	if err != nil {
		return SyncStats{}, err
	}
	return r.apply(screens, windows), nil
}
