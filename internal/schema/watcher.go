package schema

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Watcher holds the current schema Set for a source file and reloads it
// when the file changes on disk.
//
// Reload is polled at cycle boundaries rather than driven by filesystem
// events: a schema swap mid-cycle would split one cycle's readings
// across two table shapes. Failed reloads keep the previous Set, so a
// botched hand edit degrades to a logged warning instead of an outage.
type Watcher struct {
	path string
	log  Logger

	mu      sync.RWMutex
	set     *Set
	modTime time.Time
}

// NewWatcher loads the schema source at path and returns a Watcher
// holding it. The initial load is fatal on error; there is nothing to
// fall back to yet.
func NewWatcher(path string, log Logger) (*Watcher, error) {
	if log == nil {
		log = noopLogger{}
	}

	set, err := LoadFile(path, log)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat schema source: %w", err)
	}

	return &Watcher{
		path:    path,
		log:     log,
		set:     set,
		modTime: info.ModTime(),
	}, nil
}

// Current returns the schema Set as of the last successful load.
func (w *Watcher) Current() *Set {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.set
}

// Reload re-reads the schema source if its modification time advanced.
// It reports whether a new Set was installed. On load failure the
// previous Set stays current and the error is returned for logging.
func (w *Watcher) Reload() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, fmt.Errorf("stat schema source: %w", err)
	}

	w.mu.RLock()
	unchanged := !info.ModTime().After(w.modTime)
	w.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	set, err := LoadFile(w.path, w.log)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.set = set
	w.modTime = info.ModTime()
	w.mu.Unlock()

	w.log.Info("schema source reloaded", "path", w.path, "types", len(set.schemas))
	return true, nil
}
