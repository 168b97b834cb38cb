package dictionary

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sergeivaskov/punto/internal/logging"
)

// Watcher rebuilds the index when either word-list file changes on disk.
// Rebuilds are debounced: a file must be quiet for the debounce interval
// before a reload fires, so editors that write in bursts trigger one rebuild.
type Watcher struct {
	ix           *Index
	latinPath    string
	cyrillicPath string
	debounce     time.Duration
	onReload     func()
	log          *logging.Logger

	fsWatcher *fsnotify.Watcher

	mu    sync.Mutex
	dirty map[string]time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher over the index's word-list files. onReload
// (optional) runs after every completed rebuild.
func NewWatcher(ix *Index, latinPath, cyrillicPath string, debounce time.Duration, onReload func(), log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		ix:           ix,
		latinPath:    latinPath,
		cyrillicPath: cyrillicPath,
		debounce:     debounce,
		onReload:     onReload,
		log:          log,
		fsWatcher:    fsw,
		dirty:        make(map[string]time.Time),
		done:         make(chan struct{}),
	}, nil
}

// Start begins watching. Word lists are watched through their directories
// because editors typically replace files via rename.
func (w *Watcher) Start() error {
	dirs := map[string]bool{}
	for _, p := range []string{w.latinPath, w.cyrillicPath} {
		if p == "" {
			continue
		}
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop shuts the watcher down and waits for its loops to exit.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Name != w.latinPath && event.Name != w.cyrillicPath {
				continue
			}
			w.mu.Lock()
			w.dirty[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("word list watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			if w.takeStable(now) {
				w.log.Info("word list changed, rebuilding index")
				w.ix.Load(w.latinPath, w.cyrillicPath)
				if w.onReload != nil {
					w.onReload()
				}
			}
		}
	}
}

// takeStable reports whether any dirty file has been quiet long enough, and
// clears the dirty set when so. A single rebuild covers all pending changes.
func (w *Watcher) takeStable(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.dirty) == 0 {
		return false
	}
	threshold := now.Add(-w.debounce)
	for _, at := range w.dirty {
		if at.After(threshold) {
			return false
		}
	}
	w.dirty = make(map[string]time.Time)
	return true
}
