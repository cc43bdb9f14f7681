package scriptx

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Engine owns one backend interpreter instance. Several engines can exist at
// the same time but they cannot exchange values; inside one engine no
// concurrent use is supported.
type Engine struct {
	name    string
	backend Backend
	stack   *Stack
	logger  *zap.Logger
	debug   bool
	store   *handleStore
	loop    *Loop

	mu        sync.Mutex
	globals   map[*globalRef]struct{}
	destroyed atomic.Bool

	liveLocals atomic.Int64
	calls      atomic.Uint64
	exceptions atomic.Uint64
}

// EngineOptions configure a new engine.
type EngineOptions struct {
	Name    string
	Stack   *Stack
	Logger  *zap.Logger
	Debug   bool
	Context context.Context
}

type EngineOption func(*EngineOptions)

// WithName labels the engine in logs and metrics.
func WithName(name string) EngineOption {
	return func(o *EngineOptions) {
		o.Name = name
	}
}

// WithStack binds the engine to stack instead of DefaultStack().
func WithStack(stack *Stack) EngineOption {
	return func(o *EngineOptions) {
		o.Stack = stack
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(o *EngineOptions) {
		o.Logger = l
	}
}

// WithDebug enables the checks debug builds of embedders rely on, such as
// rejecting narrow references built from null handles.
func WithDebug(debug bool) EngineOption {
	return func(o *EngineOptions) {
		o.Debug = debug
	}
}

// WithContext sets the context passed to the backend's Initialize.
func WithContext(ctx context.Context) EngineOption {
	return func(o *EngineOptions) {
		o.Context = ctx
	}
}

// NewEngine initializes backend and wraps it in an engine.
func NewEngine(backend Backend, opts ...EngineOption) (*Engine, error) {
	options := EngineOptions{
		Name:    backend.Name(),
		Stack:   defaultStack,
		Context: context.Background(),
	}
	for _, fn := range opts {
		fn(&options)
	}
	if options.Logger == nil {
		options.Logger = Logger()
	}

	e := &Engine{
		name:    options.Name,
		backend: backend,
		stack:   options.Stack,
		logger:  options.Logger.With(zap.String("engine", options.Name)),
		debug:   options.Debug,
		store:   newHandleStore(),
		globals: make(map[*globalRef]struct{}),
	}
	e.loop = newLoop(e)

	if err := backend.Initialize(options.Context, trampoline{e}); err != nil {
		return nil, wrapError(KindConstruction, "new engine", err)
	}
	e.logger.Debug("engine created",
		zap.String("backend", backend.Name()),
		zap.String("version", backend.Version()))
	return e, nil
}

// Name returns the engine's label.
func (e *Engine) Name() string { return e.name }

// Backend returns the adapter the engine drives.
func (e *Engine) Backend() Backend { return e.backend }

// Version returns the backend's version string.
func (e *Engine) Version() string { return e.backend.Version() }

// Stack returns the scope stack the engine is bound to.
func (e *Engine) Stack() *Stack { return e.stack }

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// Loop returns the engine's job queue.
func (e *Engine) Loop() *Loop { return e.loop }

// IsDestroyed reports whether Destroy has completed.
func (e *Engine) IsDestroyed() bool { return e.destroyed.Load() }

// GC asks the backend to collect garbage.
func (e *Engine) GC() {
	if !e.destroyed.Load() {
		e.backend.GC()
	}
}

// Destroy releases every Global still registered, finalizes every host
// function capsule and shuts the backend down. It fails while a scope for
// the engine is still active. Destroying twice does nothing.
func (e *Engine) Destroy() error {
	if e.destroyed.Load() {
		return nil
	}
	if e.stack.innermost(e) != nil {
		return newError(KindScopeOrder, "destroy", "engine %q still has an active scope", e.name)
	}

	e.mu.Lock()
	dangling := e.globals
	e.globals = make(map[*globalRef]struct{})
	e.mu.Unlock()
	for g := range dangling {
		e.logger.Warn("global reference still held at engine destroy")
		g.drop()
	}

	e.loop.Stop()
	err := e.backend.Shutdown()
	if n := e.store.Clear(); n > 0 {
		e.logger.Debug("finalized function capsules at destroy", zap.Int("count", n))
	}
	e.destroyed.Store(true)
	e.logger.Debug("engine destroyed")
	if err != nil {
		return wrapError(KindEngineDestroyed, "destroy", err)
	}
	return nil
}

// checkCurrent verifies that e is usable and at the top of its stack.
func (e *Engine) checkCurrent(op string) error {
	if e.destroyed.Load() {
		return newError(KindEngineDestroyed, op, "engine %q was destroyed", e.name)
	}
	top := e.stack.Current()
	if top == nil {
		return newError(KindNoActiveEngine, op, "no engine scope is active")
	}
	if top.engine != e {
		return newError(KindNoActiveEngine, op, "engine %q is not the current engine", e.name)
	}
	return nil
}

func (e *Engine) registerGlobal(h Handle) *globalRef {
	g := &globalRef{engine: e, handle: h}
	e.mu.Lock()
	e.globals[g] = struct{}{}
	e.mu.Unlock()
	return g
}

func (e *Engine) unregisterGlobal(g *globalRef) {
	e.mu.Lock()
	delete(e.globals, g)
	e.mu.Unlock()
}

// Stats is a point-in-time view of an engine's bookkeeping.
type Stats struct {
	Name          string
	Backend       string
	LiveLocals    int64
	LiveGlobals   int
	LiveFunctions int
	Calls         uint64
	Exceptions    uint64
}

// Stats returns the engine's counters. It is safe to call from any
// goroutine.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	globals := len(e.globals)
	e.mu.Unlock()
	return Stats{
		Name:          e.name,
		Backend:       e.backend.Name(),
		LiveLocals:    e.liveLocals.Load(),
		LiveGlobals:   globals,
		LiveFunctions: e.store.Count(),
		Calls:         e.calls.Load(),
		Exceptions:    e.exceptions.Load(),
	}
}

// checkException consumes any pending native error and counts it.
func (e *Engine) checkException(h Handle) (Handle, error) {
	h, err := e.backend.CheckException(h)
	if err != nil {
		e.exceptions.Add(1)
	}
	return h, err
}
