package app

import (
	"github.com/dshills/stormcomplete/internal/config"
	"github.com/dshills/stormcomplete/internal/core"
	"github.com/dshills/stormcomplete/internal/host"
	hostlua "github.com/dshills/stormcomplete/internal/host/lua"
	"github.com/dshills/stormcomplete/internal/logging"
	"github.com/dshills/stormcomplete/internal/source"
	pathsrc "github.com/dshills/stormcomplete/internal/sources/path"
	"github.com/dshills/stormcomplete/internal/sources/words"
)

// Component names, in initialization order.
const (
	componentConfig  = "config"
	componentLogging = "logging"
	componentHost    = "host"
	componentLua     = "lua"
	componentSources = "sources"
	componentCore    = "core"
)

var allComponents = []string{
	componentConfig,
	componentLogging,
	componentHost,
	componentLua,
	componentSources,
	componentCore,
}

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, len(allComponents)),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{componentConfig, b.initConfig},
		{componentLogging, b.initLogging},
		{componentHost, b.initHost},
		{componentLua, b.initLua},
		{componentSources, b.initSources},
		{componentCore, b.initCore},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initConfig() error {
	if b.app.opts.Config != nil {
		b.app.config = b.app.opts.Config
		return nil
	}
	cfg, err := config.Load(b.app.opts.ConfigPath)
	if err != nil {
		return err
	}
	b.app.config = cfg
	return nil
}

func (b *bootstrapper) initLogging() error {
	if b.app.opts.Logger != nil {
		b.app.log = b.app.opts.Logger
		return nil
	}
	cfg := logging.DefaultConfig()
	cfg.Level = b.app.config.Log.Level
	cfg.JSON = b.app.config.Log.JSON
	if b.app.opts.LogLevel != "" {
		cfg.Level = b.app.opts.LogLevel
	}
	if b.app.opts.LogOutput != nil {
		cfg.Output = b.app.opts.LogOutput
	}
	log, err := logging.New(cfg)
	if err != nil {
		return err
	}
	b.app.log = log
	return nil
}

func (b *bootstrapper) initHost() error {
	b.app.host = host.New(b.app.handler(), b.app.log)
	b.app.docs = NewDocumentManager(b.app.host)
	return nil
}

// initLua creates the predicate state and runs the init file, which must
// define every predicate named in the sources sections.
func (b *bootstrapper) initLua() error {
	b.app.lua = hostlua.NewState(hostlua.WithLogger(b.app.log))
	if path := b.app.config.InitPath(); path != "" {
		if err := b.app.lua.DoFile(path); err != nil {
			return &FileError{Op: "run", Path: path, Err: err}
		}
		b.app.log.Debugw("ran lua init file", "path", path)
	}
	return nil
}

func (b *bootstrapper) initSources() error {
	r := source.NewRegistry(source.APIVersion)
	b.app.registry = r

	if err := source.Register[words.Config](r, words.New(), words.DefaultConfig); err != nil {
		return err
	}
	b.app.paths = pathsrc.New(b.app.log.Named(pathsrc.Name))
	if err := source.Register[pathsrc.Config](r, b.app.paths, pathsrc.DefaultConfig); err != nil {
		return err
	}
	if b.app.opts.Register != nil {
		if err := b.app.opts.Register(r); err != nil {
			return err
		}
	}

	bundles, err := r.Build(b.app.config.Sources, b.app.lua)
	if err != nil {
		return err
	}
	b.app.bundles = bundles
	b.app.lua.RegisterSources(bundles)

	for _, bundle := range bundles {
		b.app.log.Debugw("source configured", "source", bundle.Name(), "enable", bundle.Policy())
	}
	return nil
}

func (b *bootstrapper) initCore() error {
	c := b.app.config.Completion
	b.app.core = core.New(b.app.host.Bus(), b.app.bundles, core.Options{
		Match:         c.MatchOptions(),
		Sort:          c.SortOptions(),
		BoundaryChars: c.BoundaryChars,
		Logger:        b.app.log,
	})
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.release(b.initOrder[i])
	}
	// A failing step may have created its component before returning.
	if b.app.paths != nil {
		_ = b.app.paths.Close()
	}
	if b.app.lua != nil {
		_ = b.app.lua.Close()
	}
}

// releaseAll releases every component of a fully bootstrapped application.
func (b *bootstrapper) releaseAll() {
	for i := len(allComponents) - 1; i >= 0; i-- {
		b.release(allComponents[i])
	}
}

func (b *bootstrapper) release(component string) {
	switch component {
	case componentSources:
		if b.app.paths != nil {
			_ = b.app.paths.Close()
		}
	case componentLua:
		if b.app.lua != nil {
			_ = b.app.lua.Close()
		}
	case componentHost:
		if b.app.host != nil {
			b.app.host.Close()
		}
	case componentLogging:
		if b.app.log != nil {
			_ = b.app.log.Sync()
		}
	}
}
