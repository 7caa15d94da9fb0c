// Package watch hot-reloads landsyncd's config file: it watches the file's
// containing directory (so editors that write-via-rename still trigger a
// reload) and invokes a callback with the freshly loaded config whenever the
// file changes.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gmliao/landsync/internal/config"
	"github.com/gmliao/landsync/internal/workerutil"
)

// ConfigWatcher watches one config file path and reports reloads.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(config.Config)
	logger   *slog.Logger
}

// NewConfigWatcher creates a watcher for path. onChange is invoked (from the
// watch goroutine) each time the file is created, written, or renamed into
// place, with the newly loaded config. Parse failures are logged and do not
// invoke onChange, so a transiently invalid file never replaces a good
// config.
func NewConfigWatcher(path string, onChange func(config.Config)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &ConfigWatcher{path: path, watcher: w, onChange: onChange, logger: slog.Default()}, nil
}

// Run launches the watch loop under workerutil.RunWithPanicRecovery, so a
// panic in onChange is logged and the loop restarts with backoff instead of
// silently dying. wg is the caller's shutdown WaitGroup.
func (c *ConfigWatcher) Run(ctx context.Context, wg *sync.WaitGroup) {
	workerutil.RunWithPanicRecovery(ctx, "config-watch", wg, c.loop, workerutil.RecoveryOptions{})
}

func (c *ConfigWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.path) {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}
			cfg, err := config.Load(c.path)
			if err != nil {
				c.logger.Warn("config reload failed, keeping previous config", "path", c.path, "error", err)
				continue
			}
			c.onChange(cfg)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watch.
func (c *ConfigWatcher) Close() error {
	return c.watcher.Close()
}
