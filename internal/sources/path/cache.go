package path

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/logging"
)

// DefaultMaxDirs is the number of directory listings kept by default.
const DefaultMaxDirs = 64

// Entry is one directory entry.
type Entry struct {
	Name  string
	IsDir bool
}

// Hidden reports whether the entry is a dot file.
func (e Entry) Hidden() bool {
	return len(e.Name) > 0 && e.Name[0] == '.'
}

// Stats reports cache activity.
type Stats struct {
	Dirs          int
	Hits          int64
	Misses        int64
	Invalidations int64
}

// Cache keeps directory listings and drops them when fsnotify reports a
// change inside the directory. Without a watcher every lookup reads the
// directory.
type Cache struct {
	mu      sync.Mutex
	dirs    map[string][]Entry
	maxDirs int
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64

	// gen counts watcher events; a listing read across an event is not
	// stored.
	gen uint64

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewCache creates a cache holding up to maxDirs listings. If the
// platform watcher cannot be created the cache still works uncached.
func NewCache(maxDirs int, log *zap.SugaredLogger) *Cache {
	if maxDirs <= 0 {
		maxDirs = DefaultMaxDirs
	}
	c := &Cache{
		dirs:    make(map[string][]Entry),
		maxDirs: maxDirs,
		log:     logging.OrNop(log),
		closeCh: make(chan struct{}),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Warnw("directory watcher unavailable, listings are not cached", "error", err)
		return c
	}
	c.watcher = w
	c.wg.Add(1)
	go c.processLoop()
	return c
}

// List returns the entries of dir sorted by name.
func (c *Cache) List(dir string) ([]Entry, error) {
	dir = filepath.Clean(dir)

	c.mu.Lock()
	entries, ok := c.dirs[dir]
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
		return entries, nil
	}
	c.misses.Add(1)

	if c.watcher == nil {
		return readDir(dir)
	}

	c.mu.Lock()
	if len(c.dirs) >= c.maxDirs {
		c.evictLocked()
	}
	watchErr := c.watcher.Add(dir)
	gen := c.gen
	c.mu.Unlock()

	entries, err := readDir(dir)
	if watchErr != nil {
		c.log.Debugw("not caching directory", "dir", dir, "error", watchErr)
		return entries, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || c.gen != gen {
		c.unwatchLocked(dir)
		return entries, err
	}
	c.dirs[dir] = entries
	return entries, nil
}

// unwatchLocked removes the watch on dir unless a listing depends on it.
func (c *Cache) unwatchLocked(dir string) {
	if _, ok := c.dirs[dir]; ok {
		return
	}
	_ = c.watcher.Remove(dir)
}

// Invalidate drops the listing of dir.
func (c *Cache) Invalidate(dir string) {
	dir = filepath.Clean(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.dropLocked(dir)
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.dirs)
	c.mu.Unlock()
	return Stats{
		Dirs:          n,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Close stops the watcher.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if c.watcher != nil {
			err = c.watcher.Close()
		}
		c.wg.Wait()
	})
	return err
}

func (c *Cache) processLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.closeCh:
			return

		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(ev)

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warnw("directory watcher error", "error", err)
		}
	}
}

// handleEvent drops the listing of the directory containing the changed
// entry. Content writes do not change a listing.
func (c *Cache) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Clean(ev.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.dropLocked(filepath.Dir(name))
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		c.dropLocked(name)
	}
}

func (c *Cache) dropLocked(dir string) {
	if _, ok := c.dirs[dir]; !ok {
		return
	}
	delete(c.dirs, dir)
	c.invalidations.Add(1)
	if c.watcher != nil {
		_ = c.watcher.Remove(dir)
	}
}

// evictLocked drops every listing.
func (c *Cache) evictLocked() {
	for dir := range c.dirs {
		delete(c.dirs, dir)
		if c.watcher != nil {
			_ = c.watcher.Remove(dir)
		}
	}
}

func readDir(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		isDir := de.IsDir()
		if de.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, de.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		entries = append(entries, Entry{Name: de.Name(), IsDir: isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
