// Package watch keeps a running program in step with its source files:
// a Watcher reports edits and a Reloader recompiles the project and swaps
// the classes behind a reloading loader.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

// DefaultDebounce is how long a file must stay quiet before its change is
// reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors source directories, including directories created
// after Start, and reports batches of changed files with a given extension.
type Watcher struct {
	Changes <-chan []string // Read-only external channel

	changes  chan []string
	stop     chan struct{}
	done     chan struct{}
	fw       *fsnotify.Watcher
	dirs     []string
	ext      string
	debounce time.Duration
	log      commonlog.Logger
}

// NewWatcher creates a watcher for files ending in ext under dirs.
func NewWatcher(dirs []string, ext string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan []string, 4)
	return &Watcher{
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		fw:       fw,
		dirs:     dirs,
		ext:      ext,
		debounce: DefaultDebounce,
		log:      commonlog.GetLogger("kiln.watch"),
	}, nil
}

// Start begins watching. Directories that do not exist yet are skipped.
func (w *Watcher) Start() error {
	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			w.fw.Close()
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fw.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		w.log.Debugf("watching %s", path)
		return w.fw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warningf("cannot watch %s: %v", event.Name, err)
					}
					// The directory may already hold files.
					pending[event.Name] = time.Now()
					continue
				}
			}
			if filepath.Ext(event.Name) != w.ext {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			var batch []string
			for file, t := range pending {
				if now.Sub(t) >= w.debounce {
					batch = append(batch, file)
					delete(pending, file)
				}
			}
			if len(batch) == 0 {
				continue
			}
			sort.Strings(batch)
			select {
			case w.changes <- batch:
			case <-w.stop:
				return
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warningf("watch error: %v", err)
		}
	}
}
