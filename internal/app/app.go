// Package app wires the event registry, dispatcher, frame loop, terminal
// host and Lua runtime together and manages the application lifecycle.
package app

import (
	"context"
	"sync/atomic"

	"github.com/Asmageddon/modrun/internal/config"
	"github.com/Asmageddon/modrun/internal/event"
	"github.com/Asmageddon/modrun/internal/host"
	"github.com/Asmageddon/modrun/internal/loop"
	"github.com/Asmageddon/modrun/internal/script"
)

// Application is the central coordinator. It owns the registry, dispatcher,
// limiter and loop, and optionally a terminal host and Lua states.
type Application struct {
	logger *Logger
	cfg    config.Config

	registry   *event.Registry
	dispatcher *event.Dispatcher
	limiter    *loop.Limiter
	loop       *loop.Loop

	terminal *host.Terminal
	states   []*script.State

	running atomic.Bool

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty means
	// defaults only.
	ConfigPath string

	// Scripts are Lua files to load on startup, in order. They run after
	// the config's script list.
	Scripts []string

	// TargetFPS overrides the configured frame rate when non-zero.
	TargetFPS float64

	// LogLevel sets the logging verbosity. Empty defers to the config.
	LogLevel string

	// Headless skips terminal initialization. Used by tests and by
	// embedders that drive their own event source.
	Headless bool

	// Logger overrides the default logger. Nil means a stderr logger.
	Logger *Logger
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}

	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Logger
	app.logger = app.opts.Logger
	if app.logger == nil {
		app.logger = NewLogger(DefaultLoggerConfig())
	}

	// 2. Config. Load errors are non-fatal; defaults apply.
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		app.logger.Warn("config %s: %v, using defaults", app.opts.ConfigPath, err)
		cfg = config.Default()
	}
	app.cfg = cfg

	level := app.cfg.LogLevel
	if app.opts.LogLevel != "" {
		level = app.opts.LogLevel
	}
	app.logger.SetLevel(ParseLogLevel(level))

	// 3. Registry and dispatcher
	app.registry = event.NewRegistry(
		event.WithWarnFunc(app.logger.WithComponent("registry").Warn),
	)
	app.dispatcher = event.NewDispatcher(app.registry)

	if err := loop.RegisterChannels(app.registry); err != nil {
		return &InitError{Component: "registry", Err: err}
	}
	for _, name := range host.InputChannels() {
		if err := app.registry.RegisterType(name); err != nil {
			return &InitError{Component: "registry", Err: err}
		}
	}

	// 4. Frame limiter
	app.limiter = loop.NewLimiter(nil)
	fps := app.cfg.TargetFPS
	if app.opts.TargetFPS > 0 {
		fps = app.opts.TargetFPS
	}
	app.limiter.SetTarget(fps)
	app.limiter.SetExternalSync(app.cfg.VSync)

	// 5. Terminal host
	var (
		src  loop.Source
		gate loop.RenderGate
	)
	if app.opts.Headless {
		src = headlessSource{}
	} else {
		term, err := host.NewTerminal()
		if err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
		app.terminal = term
		src = term
		gate = term
	}

	// 6. Frame loop
	loopOpts := []loop.Option{loop.WithLimiter(app.limiter)}
	if gate != nil {
		loopOpts = append(loopOpts, loop.WithRenderGate(gate))
	}
	app.loop = loop.New(app.dispatcher, src, loopOpts...)

	app.registerDefaultHandlers()

	// 7. Lua scripts. Config scripts first, then explicit ones.
	scripts := append(append([]string(nil), app.cfg.Scripts...), app.opts.Scripts...)
	for _, path := range scripts {
		if err := app.loadScript(path); err != nil {
			return &InitError{Component: "script", Err: err}
		}
	}

	return nil
}

// loadScript runs a Lua file in its own sandboxed state with the modrun
// module installed.
func (app *Application) loadScript(path string) error {
	s := script.NewState()
	script.Install(s, script.Runtime{
		Registry:   app.registry,
		Dispatcher: app.dispatcher,
		Limiter:    app.limiter,
		Loop:       app.loop,
	})

	if err := s.DoFile(path); err != nil {
		s.Close()
		return err
	}

	app.states = append(app.states, s)
	app.logger.Debug("loaded script %s", path)
	return nil
}

// Run starts the frame loop and blocks until quit is dispatched unhandled,
// the context is canceled, or Shutdown is called.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.terminal != nil {
		if err := app.terminal.Init(); err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
		defer app.terminal.Shutdown()
	}

	app.logger.Info("running at %g fps target", app.limiter.Target())
	return app.loop.Run(ctx)
}

// Shutdown stops the frame loop and releases Lua states. Safe to call more
// than once.
func (app *Application) Shutdown() {
	app.loop.Stop()
	if app.terminal != nil {
		app.terminal.Interrupt()
	}

	for _, s := range app.states {
		s.Close()
	}
	app.states = nil
}

// IsRunning returns true if the frame loop is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Registry returns the event registry.
func (app *Application) Registry() *event.Registry {
	return app.registry
}

// Dispatcher returns the dispatcher.
func (app *Application) Dispatcher() *event.Dispatcher {
	return app.dispatcher
}

// Limiter returns the frame limiter.
func (app *Application) Limiter() *loop.Limiter {
	return app.limiter
}

// Loop returns the frame loop.
func (app *Application) Loop() *loop.Loop {
	return app.loop
}

// Terminal returns the terminal host (nil when headless).
func (app *Application) Terminal() *host.Terminal {
	return app.terminal
}

// Config returns the loaded configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// headlessSource is an event source that never produces events. The loop
// still ticks; quit arrives via Shutdown or script dispatch.
type headlessSource struct{}

func (headlessSource) Poll() []event.Occurrence { return nil }
