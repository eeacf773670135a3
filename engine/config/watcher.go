package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// Watcher reloads a configuration file when it changes. A valid new
// configuration fires EVENT_CODE_CONFIG_RELOADED, followed by
// EVENT_CODE_RESIZED when the window size changed. Invalid files are
// logged and ignored.
type Watcher struct {
	path string
	bus  *core.EventBus

	mutex   sync.RWMutex
	current *Config

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// Watch loads path and starts watching it. The directory is watched rather
// than the file since editors usually replace files on save.
func Watch(path string, bus *core.EventBus) (*Watcher, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		bus:      bus,
		current:  c,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.start()
	return w, nil
}

func (w *Watcher) Current() *Config {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.current
}

func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
		<-w.stopped
	})
	return nil
}

func (w *Watcher) start() {
	defer close(w.stopped)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		core.LogWarn("ignoring configuration change: %s", err)
		return
	}
	w.mutex.Lock()
	prev := w.current
	w.current = c
	w.mutex.Unlock()

	core.SetLogLevel(c.Log.Level)
	core.LogInfo("configuration reloaded from %s", w.path)
	if w.bus == nil {
		return
	}
	ctx := core.EventContext{}
	ctx.Data.C[0] = w.path
	w.bus.Fire(core.EVENT_CODE_CONFIG_RELOADED, w, ctx)

	if prev.Window.Width != c.Window.Width || prev.Window.Height != c.Window.Height {
		resize := core.EventContext{}
		resize.Data.U32[0] = c.Window.Width
		resize.Data.U32[1] = c.Window.Height
		w.bus.Fire(core.EVENT_CODE_RESIZED, w, resize)
	}
}
