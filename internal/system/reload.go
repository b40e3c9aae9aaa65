package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/talismans/server/internal/core/event"
	"github.com/talismans/server/internal/talisman"
)

// Reloader rebuilds and publishes the talisman set. *talisman.Registry implements it.
type Reloader interface {
	Reload(ctx context.Context) (talisman.ReloadReport, error)
	Paths() []string
}

// ReloadWatcher runs reloads on the maintenance goroutine, either on an
// explicit Trigger or after talisman documents change on disk. Each
// published snapshot is announced on the bus so the game loop refreshes
// active modifiers in its next dispatch turn.
type ReloadWatcher struct {
	reloader Reloader
	bus      *event.Bus
	debounce time.Duration
	watch    bool
	log      *zap.Logger

	trigger chan struct{}
	// events until this instant are our own reconciliation writes
	ignoreUntil time.Time
}

func NewReloadWatcher(reloader Reloader, bus *event.Bus, debounce time.Duration, watch bool, log *zap.Logger) *ReloadWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &ReloadWatcher{
		reloader: reloader,
		bus:      bus,
		debounce: debounce,
		watch:    watch,
		log:      log,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a reload. Requests made while one is pending coalesce.
func (w *ReloadWatcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run serves reload requests until ctx is done.
func (w *ReloadWatcher) Run(ctx context.Context) error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w.watch {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer fw.Close()
		for _, dir := range w.dirs() {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				w.log.Warn("建立設定目錄失敗", zap.String("dir", dir), zap.Error(err))
				continue
			}
			if err := fw.Add(dir); err != nil {
				w.log.Warn("watch dir failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			w.log.Debug("watching talisman dir", zap.String("dir", dir))
		}
		events, errs = fw.Events, fw.Errors
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.trigger:
			w.reload(ctx)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("talisman file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn("talisman watcher error", zap.Error(err))

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *ReloadWatcher) relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".yml") || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return time.Now().After(w.ignoreUntil)
}

func (w *ReloadWatcher) reload(ctx context.Context) {
	report, err := w.reloader.Reload(ctx)
	if err != nil {
		w.log.Error("talisman reload failed", zap.Error(err))
		return
	}
	if len(report.Changed) > 0 {
		w.ignoreUntil = time.Now().Add(2 * w.debounce)
	}
	for _, id := range report.Fallback {
		w.log.Warn("talisman 使用預設設定", zap.String("talisman", id))
	}
	event.Emit(w.bus, event.TalismansReloaded{Version: report.Version})
}

// dirs lists the distinct strength directories of registered talismans.
func (w *ReloadWatcher) dirs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range w.reloader.Paths() {
		d := filepath.Dir(p)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
