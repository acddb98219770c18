// file: internal/watcher/watcher.go
// version: 2.1.0
// guid: b2c3d4e5-f6a7-8901-bcde-f23456789012

package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/audiobook-curator/audiobook-curator/internal/events"
)

// DefaultDebounce is the default quiescence period before a rescan fires.
const DefaultDebounce = 5 * time.Second

// Callback is invoked after the debounce period with the watched root.
type Callback func(rootDir string)

// Watcher monitors a directory tree for audiobook file changes. A burst of
// filesystem events collapses into a single callback once the tree has been
// quiet for the debounce period.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	rootDir    string
	debounce   time.Duration
	callback   Callback
	hub        *events.Hub
	extensions map[string]bool
	stop       chan struct{}
	stopped    chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// New creates a Watcher for the given audio extensions. hub may be nil.
// Pass 0 for debounce to use DefaultDebounce.
func New(callback Callback, debounce time.Duration, hub *events.Hub, extensions []string) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}
	return &Watcher{
		debounce:   debounce,
		callback:   callback,
		hub:        hub,
		extensions: extMap,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start begins watching rootDir recursively. It is safe to call only once.
func (w *Watcher) Start(rootDir string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	w.rootDir = rootDir

	if err := w.addRecursive(rootDir); err != nil {
		fsw.Close()
		return err
	}

	go w.eventLoop()
	log.Printf("[INFO] watcher: watching %s", rootDir)
	return nil
}

// Stop gracefully shuts down the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if d.IsDir() {
			if watchErr := w.fsWatcher.Add(path); watchErr != nil {
				log.Printf("[WARN] watcher: cannot watch %s: %v", path, watchErr)
			}
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[ERROR] watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories join the watch set so nested drops are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}

	relevant := event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
	if !relevant || !w.isAudioFile(event.Name) {
		return
	}

	w.scheduleRescan()
}

// scheduleRescan arms the debounce timer, or pushes it out when already armed.
func (w *Watcher) scheduleRescan() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()

		log.Printf("[INFO] watcher: changes settled, rescanning %s", w.rootDir)
		if w.hub != nil {
			w.hub.Publish(events.TypeWatcherTriggered, map[string]interface{}{"root": w.rootDir})
		}
		if w.callback != nil {
			w.callback(w.rootDir)
		}
	})
}

func (w *Watcher) isAudioFile(name string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(name))]
}
