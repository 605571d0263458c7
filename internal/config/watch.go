package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchImpl backs Watch. fsnotify watches the containing directory (not the
// file itself) so that editors which replace-by-rename on save still fire
// a Write/Create event the caller can react to.
func watchImpl(path string, onChange func(cfg *Config, diff []string)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	prev, err := LoadOrDefault(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				next, loadErr := Load(path)
				if loadErr != nil {
					continue
				}
				changes := Diff(prev, next)
				prev = next
				if len(changes) > 0 {
					onChange(next, changes)
				}
			case <-watcher.Errors:
				continue
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}
