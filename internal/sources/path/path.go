// Package path provides a completion source for file system paths typed in
// the buffer. Directory listings are cached and invalidated by fsnotify.
package path

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/config"
)

// Name is the source name and config section.
const Name = "path"

// Item icons.
const (
	iconDir  = "d"
	iconFile = "f"
)

// fragmentStops end a path fragment when scanning back from the cursor.
const fragmentStops = " \t\"'`()[]{}<>=,;"

// Config is the [sources.path] section.
type Config struct {
	// ShowHidden offers dot files even when the fragment does not start
	// with a dot.
	ShowHidden bool `toml:"show_hidden"`

	// MaxEntries caps the number of entries returned (0 = unlimited).
	MaxEntries int `toml:"max_entries"`
}

// DefaultConfig returns the defaults for Config.
func DefaultConfig() Config {
	return Config{MaxEntries: 1000}
}

// Validate implements source.Validator.
func (c *Config) Validate(path string) error {
	var errs config.BadConfigErrors
	if c.MaxEntries < 0 {
		errs.AddWithValue(config.JoinPath(path, "max_entries"), "must not be negative", c.MaxEntries)
	}
	return errs.AsError()
}

// Source completes file names relative to the document's directory.
type Source struct {
	cache *Cache
	home  string
}

// New creates the path source with its own listing cache.
func New(log *zap.SugaredLogger) *Source {
	home, _ := os.UserHomeDir()
	return &Source{
		cache: NewCache(DefaultMaxDirs, log),
		home:  home,
	}
}

// Cache returns the listing cache.
func (s *Source) Cache() *Cache {
	return s.cache
}

// Close releases the watcher.
func (s *Source) Close() error {
	return s.cache.Close()
}

// Name implements source.Source.
func (*Source) Name() string {
	return Name
}

// Enable serves every document.
func (*Source) Enable(_ context.Context, _ *completion.Document, _ *Config) (bool, error) {
	return true, nil
}

// Complete lists the directory named by the path fragment before the
// cursor. Fragments without a separator produce nothing.
func (s *Source) Complete(ctx context.Context, req *completion.Request, cfg *Config) (completion.List, error) {
	frag := Fragment(req.Position)
	slash := strings.LastIndexByte(frag, '/')
	if slash < 0 {
		return nil, nil
	}
	dirPart, base := frag[:slash+1], frag[slash+1:]
	dir := s.resolve(dirPart, req.Document.Path)

	entries, err := s.cache.List(dir)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	showHidden := cfg.ShowHidden || strings.HasPrefix(base, ".")
	var out completion.List
	for _, e := range entries {
		if e.Hidden() && !showHidden {
			continue
		}
		if e.IsDir {
			out = append(out, completion.MustItem(e.Name+"/", completion.WithIcon(iconDir)))
		} else {
			out = append(out, completion.MustItem(e.Name, completion.WithIcon(iconFile)))
		}
		if cfg.MaxEntries > 0 && len(out) >= cfg.MaxEntries {
			break
		}
	}
	return out, nil
}

// ScriptAPI exposes sources.path.invalidate(dir) and sources.path.cached()
// to Lua.
func (s *Source) ScriptAPI() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"invalidate": func(L *lua.LState) int {
			s.cache.Invalidate(L.CheckString(1))
			return 0
		},
		"cached": func(L *lua.LState) int {
			L.Push(lua.LNumber(s.cache.Stats().Dirs))
			return 1
		},
	}
}

// resolve turns the directory part of a fragment into an absolute path.
// Relative paths are taken from the document's directory.
func (s *Source) resolve(dirPart, docPath string) string {
	switch {
	case filepath.IsAbs(dirPart):
		return filepath.Clean(dirPart)
	case strings.HasPrefix(dirPart, "~/"):
		if s.home != "" {
			return filepath.Join(s.home, dirPart[2:])
		}
	}
	base := "."
	if docPath != "" {
		base = filepath.Dir(docPath)
	}
	if abs, err := filepath.Abs(filepath.Join(base, dirPart)); err == nil {
		return abs
	}
	return filepath.Join(base, dirPart)
}

// Fragment returns the path-like text ending at the cursor.
func Fragment(pos completion.Position) string {
	before := pos.BeforeCursor()
	idx := strings.LastIndexAny(before, fragmentStops)
	return before[idx+1:]
}
