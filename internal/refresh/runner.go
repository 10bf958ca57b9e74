package refresh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"timeaudit/internal/config"
	appLog "timeaudit/internal/log"
	"timeaudit/internal/report"
)

// reloadDelay coalesces the burst of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// Runner keeps the most recent report, rebuilding it on a cron schedule
// and whenever the config file changes.
type Runner struct {
	configPath string
	build      BuildFunc

	mu        sync.RWMutex
	cfg       *config.Config
	latest    *report.Report
	lastErr   error
	updatedAt time.Time

	// levelPinned keeps reloads from touching the log level.
	levelPinned bool

	// refreshMu serializes builds.
	refreshMu sync.Mutex

	cron    *cron.Cron
	entryID cron.EntryID
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner constructs a Runner. configPath may be empty, in which case the
// config is never reloaded.
func NewRunner(cfg *config.Config, configPath string, build BuildFunc) *Runner {
	return &Runner{
		configPath: configPath,
		build:      build,
		cfg:        cfg,
		cron:       cron.New(),
	}
}

// PinLogLevel stops config reloads from changing the log level, for a
// level forced on the command line. Call before Start.
func (r *Runner) PinLogLevel() {
	r.levelPinned = true
}

// Config returns the active configuration.
func (r *Runner) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Latest returns the last successful report, when it was built, and the
// error of the most recent attempt if that attempt failed.
func (r *Runner) Latest() (*report.Report, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.updatedAt, r.lastErr
}

// Refresh rebuilds the report now. A failed build keeps the previous
// report available.
func (r *Runner) Refresh(ctx context.Context) (*report.Report, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	cfg := r.Config()
	rep, err := r.build(ctx, cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err != nil {
		appLog.Error("refresh failed", err)
		return nil, err
	}
	r.latest = rep
	r.updatedAt = time.Now()
	return rep, nil
}

// Start performs an initial refresh, schedules periodic refreshes and, if a
// config path was given, watches it for changes. It returns once the
// schedule is in place; background work stops when ctx is canceled or Stop
// is called.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.schedule(r.Config().RefreshCron); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	if r.configPath != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return fmt.Errorf("refresh: config watcher: %w", err)
		}
		// Watch the directory so atomic renames are seen.
		if err := w.Add(filepath.Dir(r.configPath)); err != nil {
			_ = w.Close()
			cancel()
			return fmt.Errorf("refresh: watch %s: %w", r.configPath, err)
		}
		r.watcher = w
		go r.watch(ctx)
	} else {
		close(r.done)
	}

	if _, err := r.Refresh(ctx); err != nil {
		appLog.Warn("initial refresh failed; serving without a report until the next run")
	}

	r.cron.Start()
	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
	return nil
}

// Stop halts the schedule and the config watcher.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.cron.Stop().Done()
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Runner) schedule(spec string) error {
	id, err := r.cron.AddFunc(spec, func() {
		if _, err := r.Refresh(context.Background()); err == nil {
			appLog.Debug("scheduled refresh complete")
		}
	})
	if err != nil {
		return fmt.Errorf("refresh: cron spec %q: %w", spec, err)
	}
	if r.entryID != 0 {
		r.cron.Remove(r.entryID)
	}
	r.entryID = id
	appLog.Info("refresh scheduled", "cron", spec)
	return nil
}

func (r *Runner) watch(ctx context.Context) {
	defer close(r.done)

	target := filepath.Clean(r.configPath)
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if err := r.Reload(ctx); err != nil {
				appLog.Error("config reload failed; keeping previous config", err, "path", r.configPath)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			appLog.Error("config watcher error", err)
		}
	}
}

// Reload re-reads the config file, reschedules if the cron spec changed and
// rebuilds the report. An invalid or missing file leaves the running config
// untouched; a missing file is not an error.
func (r *Runner) Reload(ctx context.Context) error {
	if r.configPath == "" {
		return errors.New("refresh: no config path")
	}
	cfg, err := config.Read(r.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("config file missing; keeping running config", "path", r.configPath)
		return nil
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	prev := r.Config()
	if cfg.RefreshCron != prev.RefreshCron {
		if err := r.schedule(cfg.RefreshCron); err != nil {
			return err
		}
	}
	if cfg.LogLevel != prev.LogLevel && !r.levelPinned {
		if lvl, ok := appLog.ParseLevel(cfg.LogLevel); ok {
			appLog.SetLevel(lvl)
		}
	}

	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	appLog.Info("config reloaded", "path", r.configPath, "sources", len(cfg.Sources))

	_, err = r.Refresh(ctx)
	return err
}
