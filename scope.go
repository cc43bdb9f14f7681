package scriptx

import (
	"sync"

	"go.uber.org/zap"
)

// Stack is the engine scope stack of one thread of control. Go has no thread
// identity, so embedders give each goroutine that drives engines its own
// Stack (or use DefaultStack from a single goroutine). The engine at the top
// is the current engine; entering and exiting scopes is the only way to
// change it.
type Stack struct {
	mu      sync.Mutex
	entries []*EngineScope
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

var defaultStack = NewStack()

// DefaultStack returns the stack engines bind to unless WithStack is given.
func DefaultStack() *Stack {
	return defaultStack
}

// CurrentEngine returns the current engine of the default stack.
func CurrentEngine() (*Engine, error) {
	return defaultStack.CurrentEngine()
}

// CurrentEngine returns the engine of the innermost scope.
func (s *Stack) CurrentEngine() (*Engine, error) {
	top := s.Current()
	if top == nil {
		return nil, newError(KindNoActiveEngine, "current engine", "no engine scope is active")
	}
	return top.engine, nil
}

// Current returns the innermost scope, or nil.
func (s *Stack) Current() *EngineScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

// Depth returns the number of active scopes.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// innermost returns the innermost scope of e, or nil.
func (s *Stack) innermost(e *Engine) *EngineScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].engine == e {
			return s.entries[i]
		}
	}
	return nil
}

// EngineScope makes an engine current until Exit. Scopes nest and must be
// exited in reverse order. Locals created while a scope is the innermost one
// of its engine are owned by it and released at Exit.
type EngineScope struct {
	engine *Engine
	stack  *Stack
	parent *EngineScope
	locals []*slot
	exited bool
}

// Enter pushes a new scope for e onto its stack.
func (e *Engine) Enter() (*EngineScope, error) {
	if e.destroyed.Load() {
		return nil, newError(KindEngineDestroyed, "enter", "engine %q was destroyed", e.name)
	}
	sc := &EngineScope{engine: e, stack: e.stack}
	e.stack.mu.Lock()
	if n := len(e.stack.entries); n > 0 {
		sc.parent = e.stack.entries[n-1]
	}
	e.stack.entries = append(e.stack.entries, sc)
	e.stack.mu.Unlock()
	return sc, nil
}

// Run enters a scope, calls fn and exits the scope again.
func (e *Engine) Run(fn func(sc *EngineScope) error) (err error) {
	sc, err := e.Enter()
	if err != nil {
		return err
	}
	defer func() {
		if exitErr := sc.Exit(); err == nil {
			err = exitErr
		}
	}()
	return fn(sc)
}

// Engine returns the scope's engine.
func (sc *EngineScope) Engine() *Engine { return sc.engine }

// Parent returns the scope that was current when sc was entered.
func (sc *EngineScope) Parent() *EngineScope { return sc.parent }

// Exit releases the locals owned by sc and pops it. Exiting a scope that is
// not the innermost one is rejected and leaves the stack unchanged. Exiting
// twice does nothing.
func (sc *EngineScope) Exit() error {
	s := sc.stack
	s.mu.Lock()
	if sc.exited {
		s.mu.Unlock()
		return nil
	}
	n := len(s.entries)
	if n == 0 || s.entries[n-1] != sc {
		s.mu.Unlock()
		sc.engine.logger.Error("engine scope exited out of order", zap.Int("depth", n))
		return newError(KindScopeOrder, "exit", "scope is not the innermost scope")
	}
	s.mu.Unlock()

	for i := len(sc.locals) - 1; i >= 0; i-- {
		sc.locals[i].release()
	}
	sc.locals = nil

	s.mu.Lock()
	s.entries = s.entries[:n-1]
	sc.exited = true
	s.mu.Unlock()
	return nil
}

func (sc *EngineScope) own(sl *slot) {
	sc.locals = append(sc.locals, sl)
}
