package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher calls back when the config file is written, created or replaced.
// It watches the directory so editors that save by renaming are caught.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	sync.Mutex
	callbacks []func(path string)
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher starts watching path's directory
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	w := &Watcher{
		path:    abs,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback. Callbacks run on the watcher's goroutine.
func (w *Watcher) OnChange(cb func(path string)) {
	w.Lock()
	defer w.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	log.Debug().Str("path", w.path).Msg("started config watcher")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Info().Str("path", event.Name).Str("op", event.Op.String()).Msg("config file changed")
			w.notify()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) notify() {
	w.Lock()
	cbs := append([]func(string){}, w.callbacks...)
	w.Unlock()
	for _, cb := range cbs {
		cb(w.path)
	}
}
