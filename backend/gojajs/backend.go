// Package gojajs is a scriptx backend running JavaScript on goja.
//
// Handles are goja.Value; undefined and null both map to the null handle.
// goja values are garbage collected by the Go runtime, so IncRef and DecRef
// do nothing and host function capsules are finalized by a runtime cleanup
// once their function object is unreachable. Byte buffers are ArrayBuffers,
// typed arrays or DataViews and share memory with the host.
package gojajs

import (
	"context"
	"errors"
	"reflect"
	"runtime"

	"github.com/dop251/goja"
	"github.com/goccy/go-json"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/buildinfo"
)

// Backend implements scriptx.Backend on top of a goja.Runtime.
type Backend struct {
	rt      *goja.Runtime
	host    scriptx.FunctionHost
	pending *scriptx.Exception

	bufferTag  *goja.Symbol
	hasFn      goja.Callable
	instanceFn goja.Callable
	viewFn     goja.Callable
}

var _ scriptx.Backend = (*Backend)(nil)

// New returns an uninitialized backend; pass it to scriptx.NewEngine.
func New() *Backend {
	return &Backend{}
}

// Runtime exposes the underlying goja runtime, or nil before Initialize.
func (b *Backend) Runtime() *goja.Runtime {
	return b.rt
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (b *Backend) Name() string { return "gojajs" }

func (b *Backend) Version() string {
	return "goja " + buildinfo.Version("github.com/dop251/goja")
}

func (b *Backend) Initialize(_ context.Context, host scriptx.FunctionHost) error {
	if host == nil {
		return errors.New("gojajs: function host is nil")
	}
	b.host = host
	b.rt = goja.New()
	b.bufferTag = goja.NewSymbol("scriptx.bufferType")

	var err error
	if b.hasFn, err = b.helper("(function (o, k) { return k in o; })"); err != nil {
		return err
	}
	if b.instanceFn, err = b.helper("(function (o, c) { return o instanceof c; })"); err != nil {
		return err
	}
	if b.viewFn, err = b.helper(viewHelper); err != nil {
		return err
	}
	return nil
}

// viewHelper returns the constructor name of a typed array, "DataView" for
// other ArrayBuffer views and undefined for everything else. It reads the
// intrinsic %TypedArray% tag getter captured at startup, so neither spoofed
// tags nor user getters are involved.
const viewHelper = `(function () {
	var isView = ArrayBuffer.isView;
	var apply = Reflect.apply;
	var typedName = Object.getOwnPropertyDescriptor(
		Object.getPrototypeOf(Int8Array.prototype), Symbol.toStringTag).get;
	return function (o) {
		if (!isView(o)) {
			return undefined;
		}
		var name = apply(typedName, o, []);
		return name === undefined ? "DataView" : name;
	};
})()`

func (b *Backend) helper(src string) (goja.Callable, error) {
	v, err := b.rt.RunString(src)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("gojajs: helper is not a function")
	}
	return fn, nil
}

// Shutdown interrupts any running script and drops the runtime.
func (b *Backend) Shutdown() error {
	if b.rt == nil {
		return nil
	}
	b.rt.Interrupt("engine destroyed")
	b.rt = nil
	b.pending = nil
	Logger().Debug("goja runtime shut down")
	return nil
}

// GC runs the Go garbage collector, which also collects goja values.
func (b *Backend) GC() {
	runtime.GC()
}

// =============================================================================
// HANDLES
// =============================================================================

// wrap maps undefined and null to the null handle.
func wrap(v goja.Value) scriptx.Handle {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v
}

func value(h scriptx.Handle) goja.Value {
	v, _ := h.(goja.Value)
	return v
}

// unwrap converts a handle back into a goja value; null becomes JS null.
func unwrap(h scriptx.Handle) goja.Value {
	if v := value(h); v != nil {
		return v
	}
	return goja.Null()
}

func object(h scriptx.Handle) (*goja.Object, bool) {
	o, ok := h.(*goja.Object)
	return o, ok
}

func (b *Backend) IncRef(h scriptx.Handle) scriptx.Handle { return h }

func (b *Backend) DecRef(scriptx.Handle) {}

// =============================================================================
// KIND PREDICATES
// =============================================================================

func exportKind(h scriptx.Handle) reflect.Kind {
	v := value(h)
	if v == nil {
		return reflect.Invalid
	}
	if _, ok := v.(*goja.Object); ok {
		return reflect.Invalid
	}
	t := v.ExportType()
	if t == nil {
		return reflect.Invalid
	}
	return t.Kind()
}

func (b *Backend) IsNull(h scriptx.Handle) bool { return wrap(value(h)) == nil }

func (b *Backend) IsString(h scriptx.Handle) bool { return exportKind(h) == reflect.String }

func (b *Backend) IsNumber(h scriptx.Handle) bool {
	switch exportKind(h) {
	case reflect.Int64, reflect.Float64:
		return true
	}
	return false
}

func (b *Backend) IsBoolean(h scriptx.Handle) bool { return exportKind(h) == reflect.Bool }

func (b *Backend) IsFunction(h scriptx.Handle) bool {
	o, ok := object(h)
	if !ok {
		return false
	}
	_, ok = goja.AssertFunction(o)
	return ok
}

func (b *Backend) IsArray(h scriptx.Handle) bool {
	o, ok := object(h)
	return ok && o.ClassName() == "Array"
}

func (b *Backend) IsByteBuffer(h scriptx.Handle) bool {
	o, ok := object(h)
	if !ok {
		return false
	}
	_, ok = b.bufferKind(o)
	return ok
}

func (b *Backend) IsObject(h scriptx.Handle) bool {
	_, ok := object(h)
	return ok
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

func (b *Backend) CheckException(h scriptx.Handle) (scriptx.Handle, error) {
	if b.pending == nil {
		return h, nil
	}
	exc := b.pending
	b.pending = nil
	return nil, exc
}

func (b *Backend) RethrowException(exc *scriptx.Exception) {
	b.pending = exc
}

func (b *Backend) throw(name, message string) {
	b.pending = &scriptx.Exception{Name: name, Message: message}
}

// fail records err, as returned by goja, as the pending exception.
func (b *Backend) fail(err error) {
	b.pending = b.exception(err)
}

// exception converts a goja error into an Exception. Error objects keep
// their name, message, cause and stack; other thrown values are serialized
// into JSONString.
func (b *Backend) exception(err error) *scriptx.Exception {
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &scriptx.Exception{Name: "SyntaxError", Message: syntax.Error()}
	}
	var jsErr *goja.Exception
	if !errors.As(err, &jsErr) {
		return &scriptx.Exception{Name: "Error", Message: err.Error()}
	}

	exc := &scriptx.Exception{Name: "Error", Stack: jsErr.String()}
	thrown := jsErr.Value()
	if o, ok := thrown.(*goja.Object); ok {
		if name := wrap(o.Get("name")); name != nil {
			exc.Name = name.(goja.Value).String()
			if msg := wrap(o.Get("message")); msg != nil {
				exc.Message = msg.(goja.Value).String()
			}
			if cause := wrap(o.Get("cause")); cause != nil {
				exc.Cause = cause.(goja.Value).String()
			}
			if stack := wrap(o.Get("stack")); stack != nil {
				exc.Stack = stack.(goja.Value).String()
			}
			return exc
		}
	}
	if thrown != nil {
		exc.Message = thrown.String()
		// objects marshal through JSON.stringify, primitives through Export
		var payload any = thrown
		if _, ok := thrown.(*goja.Object); !ok {
			payload = thrown.Export()
		}
		if data, err := json.Marshal(payload); err == nil {
			exc.JSONString = string(data)
		}
	}
	return exc
}

var errorConstructors = map[string]bool{
	"Error":          true,
	"TypeError":      true,
	"RangeError":     true,
	"SyntaxError":    true,
	"ReferenceError": true,
	"EvalError":      true,
	"URIError":       true,
}

// errorValue builds the JS error thrown for a host exception.
func (b *Backend) errorValue(exc *scriptx.Exception) goja.Value {
	name := "Error"
	if errorConstructors[exc.Name] {
		name = exc.Name
	}
	ctor, ok := goja.AssertConstructor(b.rt.Get(name))
	if !ok {
		return b.rt.ToValue(exc.Error())
	}
	obj, err := ctor(nil, b.rt.ToValue(exc.Message))
	if err != nil {
		return b.rt.ToValue(exc.Error())
	}
	if exc.Name != "" && exc.Name != name {
		_ = obj.Set("name", exc.Name)
	}
	if exc.Cause != "" {
		_ = obj.Set("cause", exc.Cause)
	}
	return obj
}

// try runs fn and records a JS exception it throws.
func (b *Backend) try(fn func()) bool {
	if ex := b.rt.Try(fn); ex != nil {
		b.fail(ex)
		return false
	}
	return true
}

// =============================================================================
// INTEROP
// =============================================================================

func (b *Backend) ToNative(h scriptx.Handle) (scriptx.Handle, error) {
	if h == nil {
		return nil, nil
	}
	if _, ok := h.(goja.Value); !ok {
		return nil, errors.New("gojajs: handle belongs to another backend")
	}
	return h, nil
}

func (b *Backend) Equals(x, y scriptx.Handle) bool {
	vx, vy := value(x), value(y)
	if vx == nil || vy == nil {
		return vx == nil && vy == nil
	}
	return vx.StrictEquals(vy)
}

// Describe converts h the way String(h) does in JavaScript.
func (b *Backend) Describe(h scriptx.Handle) (string, error) {
	v := value(h)
	if v == nil {
		return "null", nil
	}
	if _, ok := v.(*goja.Symbol); ok {
		return v.String(), nil
	}
	var s string
	// a throwing toString is left pending for the caller
	if !b.try(func() { s = v.ToString().String() }) {
		return "", nil
	}
	return s, nil
}
