package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// newFSWatcher watches path's containing directory (editors typically
// replace a file via rename-into-place, which fsnotify only sees as an
// event on the directory, not the original inode) and invokes onChange
// whenever path itself is the event's target. The returned func stops the
// watcher and must be called on shutdown.
func newFSWatcher(path string, onChange func()) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w.Close, nil
}
