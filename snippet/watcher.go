package snippet

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/xxh3"
)

// Event reports a change to one managed match file.
type Event struct {
	File string `json:"file"` // relative to the match dir
	Op   string `json:"op"`   // "write" or "remove"
}

// Watcher watches a match directory and reports YAML file changes. Events
// are deduplicated by content fingerprint, so the editor's own atomic saves
// (temp write + rename) and no-op touches produce at most one event each.
type Watcher struct {
	dir    string
	fsw    *fsnotify.Watcher
	events chan Event

	mu     sync.Mutex
	prints map[string]uint64
}

// NewWatcher starts watching dir and its subdirectories.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:    filepath.Clean(dir),
		fsw:    fsw,
		events: make(chan Event, 16),
		prints: map[string]uint64{},
	}
	if err := w.addDirs(); err != nil {
		fsw.Close()
		return nil, err
	}
	w.seed()
	go w.run()
	return w, nil
}

// Events delivers change notifications. The channel closes when the watcher
// is closed.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

func (w *Watcher) addDirs() error {
	return filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// seed records the current fingerprint of every YAML file so that startup
// state produces no events.
func (w *Watcher) seed() {
	filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isYAML(path) {
			return nil
		}
		if data, err := os.ReadFile(path); err == nil {
			w.prints[path] = xxh3.Hash(data)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.events)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// New subdirectories need their own watch.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				log.Printf("watcher add %s: %v", ev.Name, err)
			}
			return
		}
	}
	if !isYAML(ev.Name) {
		return
	}

	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		_, known := w.prints[ev.Name]
		delete(w.prints, ev.Name)
		w.mu.Unlock()
		if known {
			w.emit(Event{File: rel, Op: "remove"})
		}
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		data, err := os.ReadFile(ev.Name)
		if err != nil {
			return
		}
		print := xxh3.Hash(data)
		w.mu.Lock()
		changed := w.prints[ev.Name] != print
		w.prints[ev.Name] = print
		w.mu.Unlock()
		if changed {
			w.emit(Event{File: rel, Op: "write"})
		}
	}
}

// emit drops events nobody is draining rather than blocking the run loop.
func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}
