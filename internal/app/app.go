// Package app wires the completion core, the built-in sources, the Lua
// predicate state and a host together, and drives the host's UI thread
// for the command line tools.
//
// An Application is owned by one goroutine, which acts as the UI thread:
// every method except Shutdown must be called from it.
package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/bus"
	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/config"
	"github.com/dshills/stormcomplete/internal/core"
	"github.com/dshills/stormcomplete/internal/host"
	hostlua "github.com/dshills/stormcomplete/internal/host/lua"
	"github.com/dshills/stormcomplete/internal/revision"
	"github.com/dshills/stormcomplete/internal/source"
	pathsrc "github.com/dshills/stormcomplete/internal/sources/path"
)

// DefaultAttachTimeout bounds how long Complete waits for a source to
// accept a document.
const DefaultAttachTimeout = 2 * time.Second

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty uses the defaults.
	ConfigPath string

	// Config is used instead of loading ConfigPath when set.
	Config *config.Config

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives logs. Defaults to os.Stderr.
	LogOutput io.Writer

	// Logger is used instead of building one from the configuration.
	Logger *zap.SugaredLogger

	// Handler observes host events in addition to the application.
	Handler host.Handler

	// Register adds sources after the built-in ones.
	Register func(r *source.Registry) error

	// AttachTimeout overrides DefaultAttachTimeout.
	AttachTimeout time.Duration
}

// Application owns every component of a running completion engine.
type Application struct {
	opts Options

	config   *config.Config
	log      *zap.SugaredLogger
	host     *host.Host
	lua      *hostlua.State
	registry *source.Registry
	bundles  []*source.Bundle
	paths    *pathsrc.Source
	core     *core.Core
	docs     *DocumentManager

	// out receives protocol events while serving.
	out *emitter

	running      atomic.Bool
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// New creates and wires an application. On failure every component
// started so far is released.
func New(opts Options) (*Application, error) {
	if opts.AttachTimeout <= 0 {
		opts.AttachTimeout = DefaultAttachTimeout
	}
	app := &Application{opts: opts}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config { return app.config }

// Logger returns the root logger.
func (app *Application) Logger() *zap.SugaredLogger { return app.log }

// Host returns the UI-side host.
func (app *Application) Host() *host.Host { return app.host }

// Documents returns the open documents.
func (app *Application) Documents() *DocumentManager { return app.docs }

// Bundles returns the configured sources in registration order.
func (app *Application) Bundles() []*source.Bundle { return app.bundles }

// Lua returns the predicate interpreter.
func (app *Application) Lua() *hostlua.State { return app.lua }

// Start runs the core until ctx is done or Shutdown is called.
func (app *Application) Start(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, app.cancel = context.WithCancel(ctx)
	app.core.Start(ctx)
	app.log.Infow("completion core started", "sources", len(app.bundles))
	return nil
}

// Shutdown stops the core and releases every component. Safe to call more
// than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		if app.running.Load() {
			app.cancel()
			<-app.core.Done()
		}
		newBootstrapper(app).releaseAll()
	})
}

// Complete runs one request for doc at row and col and waits until every
// source has replied. It attaches doc first if needed.
func (app *Application) Complete(ctx context.Context, doc *Document, row, col int, kind completion.Kind) (bus.Completions, error) {
	if !app.running.Load() {
		return bus.Completions{}, ErrNotRunning
	}
	if err := app.attach(ctx, doc); err != nil {
		return bus.Completions{}, err
	}

	pos := completion.Position{Row: row, Col: col, Line: doc.Buffer.Line(row)}
	rev, err := app.host.Request(doc.Document, pos, kind)
	if err != nil {
		return bus.Completions{}, err
	}

	var out bus.Completions
	err = app.waitFor(ctx, func() bool {
		c, ok := app.host.Latest()
		if !ok || c.Revision != rev {
			return false
		}
		if _, done := c.Timings.At(revision.StageSourceDone); !done {
			return false
		}
		out = c
		return true
	})
	return out, err
}

func (app *Application) attach(ctx context.Context, doc *Document) error {
	if app.host.Attached(doc.Document) {
		return nil
	}
	if err := app.host.Attach(doc.Document); err != nil {
		return err
	}

	attachCtx, cancel := context.WithTimeout(ctx, app.opts.AttachTimeout)
	defer cancel()
	err := app.waitFor(attachCtx, func() bool { return app.host.Attached(doc.Document) })
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrNotServed, "%s", doc.Document)
	}
	return err
}

// waitFor drains host messages until cond holds, the core fails or ctx
// is done.
func (app *Application) waitFor(ctx context.Context, cond func() bool) error {
	for {
		if cond() {
			return nil
		}
		if err := app.host.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-app.host.Wake():
			app.host.Drain()
		}
	}
}

// handler routes host events to the protocol output and to the caller's
// handler.
func (app *Application) handler() host.Handler {
	user := app.opts.Handler
	return host.Handler{
		Attached: func(doc *completion.Document) {
			app.out.attached(doc)
			if user.Attached != nil {
				user.Attached(doc)
			}
		},
		Completions: func(c bus.Completions) {
			app.out.completions(c)
			if user.Completions != nil {
				user.Completions(c)
			}
		},
		SourceFailed: func(name string, err error) {
			app.out.sourceFailed(name, err)
			if user.SourceFailed != nil {
				user.SourceFailed(name, err)
			}
		},
		Panicked: func(p bus.CorePanicked) {
			app.out.panicked(p)
			if user.Panicked != nil {
				user.Panicked(p)
			}
		},
		Fatal: func(err error) {
			app.out.fatal(err)
			if user.Fatal != nil {
				user.Fatal(err)
			}
		},
	}
}
