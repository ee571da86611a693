package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-loads the configuration whenever the file changes and hands
// the result to the registered callback. Limit changes take effect on
// the next dialogue request; address and database changes require a
// restart and are only logged.
type Watcher struct {
	fsw    *fsnotify.Watcher
	done   chan struct{}
	logger *zap.Logger
}

// Watch starts watching path. onChange runs on the watcher goroutine;
// callers needing serialization must provide it themselves.
func Watch(path string, logger *zap.Logger, onChange func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops
	// a direct file watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{}), logger: logger}
	go w.loop(path, onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func(Config)) {
	target := filepath.Clean(path)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				w.logger.Warn("Config reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("Config reloaded", zap.String("path", path))
			onChange(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
