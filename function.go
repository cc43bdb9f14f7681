package scriptx

import (
	"go.uber.org/zap"
)

// Callback is a host function callable from script code. Returning an error
// raises it in the script as an exception; a null Value result is the
// script's null (or undefined).
type Callback func(args *Arguments) (Value, error)

// FunctionData is the capsule that keeps a host callback alive for as long
// as the native function object that calls it.
type FunctionData struct {
	id       int32
	callback Callback
	engine   *Engine
}

// Function is a scope-bound reference to a script callable.
type Function struct {
	local
}

func (Function) targetKind() ValueKind   { return KindFunction }
func (Function) rebind(l local) Referent { return Function{l} }

// Copy returns an independent reference to the same function.
func (f Function) Copy() Function { return Function{f.copy()} }

// Move hands the reference over and invalidates f.
func (f *Function) Move() Function {
	out := Function{f.local}
	f.local = local{}
	return out
}

// AsObject widens the function to an Object.
func (f Function) AsObject() Object { return Object{f.copy()} }

// Call invokes f with the given receiver and arguments. A null this calls
// the function unbound.
//
// Arguments are converted one by one and the first failure aborts the call
// before anything is invoked. A script exception raised by the callee is
// returned as an *Exception; no native error stays pending afterwards.
func (f Function) Call(this Referent, args ...Referent) (Value, error) {
	e, err := f.active("call")
	if err != nil {
		return Value{}, err
	}
	fn := f.s.handle
	b := e.backend
	if fn == nil || !b.IsFunction(fn) {
		return Value{}, newError(KindNotCallable, "call", "%s is not a function", kindOf(b, fn))
	}
	thisH, err := e.argument(this)
	if err != nil {
		return Value{}, err
	}

	var ret Handle
	switch len(args) {
	case 0:
		ret = b.Call0(fn, thisH)
	case 1:
		arg, err := e.argument(args[0])
		if err != nil {
			return Value{}, err
		}
		ret = b.Call1(fn, thisH, arg)
	default:
		native := make([]Handle, len(args))
		for i, a := range args {
			h, err := e.argument(a)
			if err != nil {
				return Value{}, err
			}
			native[i] = h
		}
		ret = b.CallN(fn, thisH, native)
	}
	e.calls.Add(1)

	ret, err = e.checkException(ret)
	if err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(ret)}}, nil
}

// argument converts one host reference into a borrowed native handle and
// verifies that the conversion left no native error behind.
func (e *Engine) argument(r Referent) (Handle, error) {
	if r == nil {
		return nil, nil
	}
	l := r.ref()
	if l.isNull() {
		return nil, nil
	}
	if l.s.engine != e {
		return nil, newError(KindConversion, "argument", "value belongs to engine %q", l.s.engine.name)
	}
	h, err := e.backend.ToNative(l.s.handle)
	if _, perr := e.checkException(nil); perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, wrapError(KindConversion, "argument", err)
	}
	return h, nil
}

// NewFunction wraps cb in a script callable.
func (sc *EngineScope) NewFunction(cb Callback) (Function, error) {
	e := sc.engine
	if err := e.checkCurrent("new function"); err != nil {
		return Function{}, err
	}
	if cb == nil {
		return Function{}, newError(KindConstruction, "new function", "callback is nil")
	}
	data := &FunctionData{callback: cb, engine: e}
	id := e.store.Store(data)
	h, err := e.backend.NewFunction(id)
	if err == nil {
		_, err = e.checkException(h)
	}
	if err != nil {
		e.store.Delete(id)
		return Function{}, wrapError(KindConstruction, "new function", err)
	}
	e.logger.Debug("function registered", zap.Int32("id", id))
	return Function{local{e.newSlot(h)}}, nil
}

// =============================================================================
// CALLBACK ARGUMENTS
// =============================================================================

// Arguments is the view a Callback gets of its invocation. Locals are only
// created for the arguments the callback actually reads.
type Arguments struct {
	engine *Engine
	scope  *EngineScope
	this   Handle
	args   []Handle
}

// Engine returns the engine running the callback.
func (a *Arguments) Engine() *Engine { return a.engine }

// Scope returns the scope entered for the callback.
func (a *Arguments) Scope() *EngineScope { return a.scope }

// Len returns the number of arguments passed.
func (a *Arguments) Len() int { return len(a.args) }

// HasThis reports whether the call had a receiver.
func (a *Arguments) HasThis() bool {
	return a.this != nil && !a.engine.backend.IsNull(a.this)
}

// This returns the receiver, or null.
func (a *Arguments) This() Value {
	if a.this == nil {
		return Value{}
	}
	return Value{local{a.engine.newSlot(a.engine.backend.IncRef(a.this))}}
}

// At returns argument i, or null when fewer arguments were passed.
func (a *Arguments) At(i int) Value {
	if i < 0 || i >= len(a.args) || a.args[i] == nil {
		return Value{}
	}
	return Value{local{a.engine.newSlot(a.engine.backend.IncRef(a.args[i]))}}
}

// All returns every argument.
func (a *Arguments) All() []Value {
	out := make([]Value, len(a.args))
	for i := range a.args {
		out[i] = a.At(i)
	}
	return out
}
