package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/framegraph/engine/assets/loaders"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	LastLoaded time.Time
}

// ShaderLibrary indexes the .shadercfg files of a directory tree and
// watches it. Changes to a config or to a .spv file fire
// EVENT_CODE_SHADER_CHANGED with the name of the program.
type ShaderLibrary struct {
	bus    *core.EventBus
	loader loaders.ShaderLoader

	mutex  sync.RWMutex
	assets map[string]AssetInfo

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewShaderLibrary(bus *core.EventBus) (*ShaderLibrary, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ShaderLibrary{
		bus:      bus,
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

func (sl *ShaderLibrary) Initialize(shaderDir string) error {
	if err := sl.watchRecursive(shaderDir); err != nil {
		return err
	}
	go sl.start()
	core.LogInfo("indexed %d shader programs in %s", sl.Len(), shaderDir)
	return nil
}

func (sl *ShaderLibrary) Len() int {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return len(sl.assets)
}

func (sl *ShaderLibrary) Names() []string {
	sl.mutex.RLock()
	names := make([]string, 0, len(sl.assets))
	for name := range sl.assets {
		names = append(names, name)
	}
	sl.mutex.RUnlock()
	sort.Strings(names)
	return names
}

// Load reads the program from disk. Every call reads the current files, so
// a program loaded after EVENT_CODE_SHADER_CHANGED has the new code.
func (sl *ShaderLibrary) Load(name string) (*metadata.ShaderProgram, error) {
	sl.mutex.Lock()
	asset, exists := sl.assets[name]
	if exists {
		asset.LastLoaded = time.Now()
		sl.assets[name] = asset
	}
	sl.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: shader %q", core.ErrAssetNotFound, name)
	}
	return sl.loader.Load(asset.Path)
}

func (sl *ShaderLibrary) Shutdown() error {
	if sl.isClosed {
		return nil
	}
	sl.isClosed = true
	close(sl.done)
	<-sl.stopped
	return nil
}

func (sl *ShaderLibrary) start() {
	defer close(sl.stopped)
	for {
		select {
		case e, ok := <-sl.fsnotify.Events:
			if !ok {
				return
			}
			if s, err := os.Stat(e.Name); err == nil && s.IsDir() && e.Has(fsnotify.Create) {
				if err := sl.watchRecursive(e.Name); err != nil {
					core.LogWarn("failed to watch %s: %s", e.Name, err)
				}
				continue
			}
			if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
				sl.removeAsset(e.Name)
				continue
			}
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
				sl.handleFileEvent(e.Name)
			}

		case err, ok := <-sl.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-sl.done:
			sl.fsnotify.Close()
			return
		}
	}
}

func (sl *ShaderLibrary) watchRecursive(path string) error {
	if sl.isClosed {
		return errors.New("shader library already closed")
	}
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return sl.fsnotify.Add(walkPath)
		}
		sl.indexFile(walkPath)
		return nil
	})
}

func (sl *ShaderLibrary) indexFile(path string) bool {
	if filepath.Ext(path) != ".shadercfg" {
		return false
	}
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	sl.assets[loaders.ProgramOf(path)] = AssetInfo{Path: path}
	return true
}

func (sl *ShaderLibrary) handleFileEvent(path string) {
	switch filepath.Ext(path) {
	case ".shadercfg":
		sl.indexFile(path)
	case ".spv":
	default:
		return
	}
	name := loaders.ProgramOf(path)
	sl.mutex.RLock()
	_, known := sl.assets[name]
	sl.mutex.RUnlock()
	if !known {
		return
	}
	core.LogDebug("shader %q changed (%s)", name, path)
	if sl.bus != nil {
		ctx := core.EventContext{}
		ctx.Data.C[0] = name
		ctx.Data.C[1] = path
		sl.bus.Fire(core.EVENT_CODE_SHADER_CHANGED, sl, ctx)
	}
}

func (sl *ShaderLibrary) removeAsset(path string) {
	if filepath.Ext(path) != ".shadercfg" {
		return
	}
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	delete(sl.assets, loaders.ProgramOf(path))
}
