package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher watches the config file and reports reloaded configs.
type Watcher struct {
	watcher  *fsnotify.Watcher
	file     string
	onChange func(*Config)
	stopCh   chan struct{}
}

// NewWatcher creates a watcher for the given config file. onChange runs on
// the watcher goroutine with the freshly loaded config each time the file is
// rewritten; invalid rewrites are skipped.
func NewWatcher(file string, onChange func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  watcher,
		file:     file,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}

	// Watch the directory (fsnotify works better with directories, and
	// editors often replace the file rather than write it in place)
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return w, nil
}

// Start begins watching for config rewrites
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	targetFile := filepath.Base(w.file)
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != targetFile {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Debounce to avoid reacting to every partial write
			debounceTimer.Reset(100 * time.Millisecond)

		case <-debounceTimer.C:
			if err := viper.ReadInConfig(); err != nil {
				continue
			}
			cfg, err := Load()
			if err != nil {
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			_ = err
		}
	}
}
