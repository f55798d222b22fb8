package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dshills/stormcomplete/internal/fuzzy"
)

// Config is the complete, validated configuration.
type Config struct {
	Completion Completion
	Log        Log
	Lua        Lua

	// Sources holds one raw section per source, keyed by source name.
	// The source registry decodes each into the source's own type.
	Sources map[string]map[string]any

	// Dir is the directory of the loaded file. Relative paths resolve
	// against it.
	Dir string
}

// Completion configures prefix extraction and ranking.
type Completion struct {
	BoundaryChars     string `toml:"boundary_chars"`
	CaseSensitive     bool   `toml:"case_sensitive"`
	SmartCase         bool   `toml:"smart_case"`
	ParallelThreshold int    `toml:"parallel_threshold"`
	ChunkSize         int    `toml:"chunk_size"`
	Workers           int    `toml:"workers"`
	MaxItems          int    `toml:"max_items"`
}

// MatchOptions returns the matcher options for this section.
func (c Completion) MatchOptions() fuzzy.Options {
	opts := fuzzy.DefaultOptions()
	opts.CaseSensitive = c.CaseSensitive
	opts.SmartCase = c.SmartCase
	return opts
}

// SortOptions returns the sorter options for this section.
func (c Completion) SortOptions() fuzzy.SortOptions {
	return fuzzy.SortOptions{
		ParallelThreshold: c.ParallelThreshold,
		ChunkSize:         c.ChunkSize,
		Workers:           c.Workers,
		MaxItems:          c.MaxItems,
	}
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Lua configures the predicate interpreter.
type Lua struct {
	// Init is a Lua file run at startup to define enable predicates.
	Init string `toml:"init"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sortOpts := fuzzy.DefaultSortOptions()
	return &Config{
		Completion: Completion{
			BoundaryChars:     fuzzy.DefaultBoundaryChars,
			SmartCase:         true,
			ParallelThreshold: sortOpts.ParallelThreshold,
			ChunkSize:         sortOpts.ChunkSize,
		},
		Log: Log{
			Level: "info",
		},
		Sources: map[string]map[string]any{},
	}
}

// InitPath returns the Lua init file resolved against Dir, or "".
func (c *Config) InitPath() string {
	if c.Lua.Init == "" {
		return ""
	}
	if filepath.IsAbs(c.Lua.Init) || c.Dir == "" {
		return c.Lua.Init
	}
	return filepath.Join(c.Dir, c.Lua.Init)
}

// Validate checks value ranges. Errors are path-qualified.
func (c *Config) Validate() error {
	var errs BadConfigErrors

	if c.Completion.ParallelThreshold < 0 {
		errs.AddWithValue("completion.parallel_threshold", "must not be negative", c.Completion.ParallelThreshold)
	}
	if c.Completion.ChunkSize <= 0 {
		errs.AddWithValue("completion.chunk_size", "must be positive", c.Completion.ChunkSize)
	}
	if c.Completion.Workers < 0 {
		errs.AddWithValue("completion.workers", "must not be negative", c.Completion.Workers)
	}
	if c.Completion.MaxItems < 0 {
		errs.AddWithValue("completion.max_items", "must not be negative", c.Completion.MaxItems)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs.AddWithValue("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	}

	return errs.AsError()
}

// FileSystem is an abstraction for reading config files.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Format is a config file syntax.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

// Load reads and validates the config file at path.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	return LoadFS(OSFS{}, path)
}

// LoadFS is Load with a custom file system.
func LoadFS(fsys FileSystem, path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	cfg, err := Parse(format, path, data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates config data. name is used in parse errors.
func Parse(format Format, name string, data []byte) (*Config, error) {
	raw, err := parseRaw(format, name, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	var errs BadConfigErrors

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch key {
		case "completion":
			decodeSection(&errs, key, raw[key], &cfg.Completion)
		case "log":
			decodeSection(&errs, key, raw[key], &cfg.Log)
		case "lua":
			decodeSection(&errs, key, raw[key], &cfg.Lua)
		case "sources":
			sources, ok := asSection(raw[key])
			if !ok {
				errs.AddWithValue(key, "must be a table of source sections", raw[key])
				continue
			}
			for name, v := range sources {
				section, ok := asSection(v)
				if !ok {
					errs.AddWithValue(JoinPath(key, name), "must be a table", v)
					continue
				}
				cfg.Sources[name] = section
			}
		default:
			errs.Add(key, "unknown section")
		}
	}

	if err := cfg.Validate(); err != nil {
		errs.Merge("", err)
	}
	if err := errs.AsError(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeSection(errs *BadConfigErrors, path string, v any, out any) {
	section, ok := asSection(v)
	if !ok {
		errs.AddWithValue(path, "must be a table", v)
		return
	}
	errs.Merge(path, DecodeStrict(path, section, out))
}

func parseRaw(format Format, name string, data []byte) (map[string]any, error) {
	var raw map[string]any
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			pe := &ParseError{Path: name, Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				pe.Line, pe.Column = de.Position()
			}
			return nil, pe
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ParseError{Path: name, Err: err}
		}
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%s", name)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
