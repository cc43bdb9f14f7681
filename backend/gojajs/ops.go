package gojajs

import (
	"runtime"
	"strconv"
	"weak"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/buke/scriptx-go"
)

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func (b *Backend) NewString(s string) (scriptx.Handle, error) {
	return b.rt.ToValue(s), nil
}

func (b *Backend) NewNumber(f float64) (scriptx.Handle, error) {
	return b.rt.ToValue(f), nil
}

func (b *Backend) NewInt64(v int64) (scriptx.Handle, error) {
	return b.rt.ToValue(v), nil
}

func (b *Backend) NewBoolean(v bool) (scriptx.Handle, error) {
	return b.rt.ToValue(v), nil
}

func (b *Backend) NewObject() (scriptx.Handle, error) {
	return b.rt.NewObject(), nil
}

func (b *Backend) NewArray(size int) (scriptx.Handle, error) {
	return b.rt.NewArray(make([]any, size)...), nil
}

// NewByteBuffer returns an ArrayBuffer backed by data, tagged with t.
func (b *Backend) NewByteBuffer(data []byte, t scriptx.BufferType) (scriptx.Handle, error) {
	if data == nil {
		data = []byte{}
	}
	obj := b.rt.ToValue(b.rt.NewArrayBuffer(data)).ToObject(b.rt)
	if err := obj.SetSymbol(b.bufferTag, int(t)); err != nil {
		return nil, err
	}
	return obj, nil
}

// NewFunction returns a native JS function calling back into the host with
// id. The capsule is finalized once the function object is collected.
func (b *Backend) NewFunction(id int32) (scriptx.Handle, error) {
	host := b.host
	fn := b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		args := make([]scriptx.Handle, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = wrap(a)
		}
		res, err := host.Invoke(id, wrap(call.This), args)
		if err != nil {
			exc := b.pending
			b.pending = nil
			if exc == nil {
				exc = scriptx.AsException(err)
			}
			panic(b.errorValue(exc))
		}
		if res == nil {
			return goja.Undefined()
		}
		return unwrap(res)
	})
	obj := fn.ToObject(b.rt)
	runtime.AddCleanup(obj, host.Finalize, id)
	return obj, nil
}

// =============================================================================
// PRIMITIVES
// =============================================================================

func (b *Backend) ToString(h scriptx.Handle) string {
	s, _ := b.Describe(h)
	return s
}

func (b *Backend) ToFloat64(h scriptx.Handle) float64 {
	var f float64
	b.try(func() { f = unwrap(h).ToFloat() })
	return f
}

func (b *Backend) ToInt64(h scriptx.Handle) int64 {
	var i int64
	b.try(func() { i = unwrap(h).ToInteger() })
	return i
}

func (b *Backend) ToBool(h scriptx.Handle) bool {
	return wrap(value(h)) != nil && value(h).ToBoolean()
}

// =============================================================================
// CALLS AND EVALUATION
// =============================================================================

func (b *Backend) Call0(fn, this scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, nil)
}

func (b *Backend) Call1(fn, this, arg scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, []scriptx.Handle{arg})
}

// CallN calls fn; a null this calls it with undefined as receiver.
func (b *Backend) CallN(fn, this scriptx.Handle, args []scriptx.Handle) scriptx.Handle {
	callable, ok := goja.AssertFunction(value(fn))
	if !ok {
		b.throw("TypeError", "value is not a function")
		return nil
	}
	recv := goja.Undefined()
	if v := value(this); v != nil {
		recv = v
	}
	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = unwrap(a)
	}
	res, err := callable(recv, jsArgs...)
	if err != nil {
		b.fail(err)
		return nil
	}
	return wrap(res)
}

// Eval runs source as a JavaScript script.
func (b *Backend) Eval(source, filename string) scriptx.Handle {
	res, err := b.rt.RunScript(filename, source)
	if err != nil {
		Logger().Debug("script failed", zap.String("file", filename), zap.Error(err))
		b.fail(err)
		return nil
	}
	return wrap(res)
}

func (b *Backend) GlobalObject() scriptx.Handle {
	return b.rt.GlobalObject()
}

// =============================================================================
// OBJECTS
// =============================================================================

func (b *Backend) object(h scriptx.Handle) *goja.Object {
	o, ok := object(h)
	if !ok {
		b.throw("TypeError", "value is not an object")
	}
	return o
}

func (b *Backend) GetProperty(obj scriptx.Handle, key string) scriptx.Handle {
	o := b.object(obj)
	if o == nil {
		return nil
	}
	var v goja.Value
	if !b.try(func() { v = o.Get(key) }) {
		return nil
	}
	return wrap(v)
}

func (b *Backend) SetProperty(obj scriptx.Handle, key string, v scriptx.Handle) {
	if o := b.object(obj); o != nil {
		if err := o.Set(key, unwrap(v)); err != nil {
			b.fail(err)
		}
	}
}

func (b *Backend) HasProperty(obj scriptx.Handle, key string) bool {
	o := b.object(obj)
	if o == nil {
		return false
	}
	res, err := b.hasFn(goja.Undefined(), o, b.rt.ToValue(key))
	if err != nil {
		b.fail(err)
		return false
	}
	return res.ToBoolean()
}

func (b *Backend) DeleteProperty(obj scriptx.Handle, key string) {
	if o := b.object(obj); o != nil {
		if err := o.Delete(key); err != nil {
			b.fail(err)
		}
	}
}

func (b *Backend) Keys(obj scriptx.Handle) []string {
	o := b.object(obj)
	if o == nil {
		return nil
	}
	var keys []string
	b.try(func() { keys = o.Keys() })
	return keys
}

func (b *Backend) InstanceOf(obj, ctor scriptx.Handle) bool {
	res, err := b.instanceFn(goja.Undefined(), unwrap(obj), unwrap(ctor))
	if err != nil {
		b.fail(err)
		return false
	}
	return res.ToBoolean()
}

// =============================================================================
// ARRAYS
// =============================================================================

func (b *Backend) Length(arr scriptx.Handle) int {
	o := b.object(arr)
	if o == nil {
		return 0
	}
	var n int64
	b.try(func() { n = o.Get("length").ToInteger() })
	return int(n)
}

func (b *Backend) Index(arr scriptx.Handle, i int) scriptx.Handle {
	return b.GetProperty(arr, strconv.Itoa(i))
}

func (b *Backend) SetIndex(arr scriptx.Handle, i int, v scriptx.Handle) {
	b.SetProperty(arr, strconv.Itoa(i), v)
}

func (b *Backend) Append(arr scriptx.Handle, v scriptx.Handle) {
	b.SetIndex(arr, b.Length(arr), v)
}

func (b *Backend) Clear(arr scriptx.Handle) {
	if o := b.object(arr); o != nil {
		if err := o.Set("length", 0); err != nil {
			b.fail(err)
		}
	}
}

// =============================================================================
// BYTE BUFFERS
// =============================================================================

var viewTypes = map[string]scriptx.BufferType{
	"DataView":          scriptx.BufferUnknown,
	"Int8Array":         scriptx.BufferInt8,
	"Uint8Array":        scriptx.BufferUint8,
	"Uint8ClampedArray": scriptx.BufferUint8Clamped,
	"Int16Array":        scriptx.BufferInt16,
	"Uint16Array":       scriptx.BufferUint16,
	"Int32Array":        scriptx.BufferInt32,
	"Uint32Array":       scriptx.BufferUint32,
	"BigInt64Array":     scriptx.BufferInt64,
	"BigUint64Array":    scriptx.BufferUint64,
	"Float32Array":      scriptx.BufferFloat32,
	"Float64Array":      scriptx.BufferFloat64,
}

// bufferKind classifies o as an ArrayBuffer or a view of one. The second
// result is false for every other object.
func (b *Backend) bufferKind(o *goja.Object) (scriptx.BufferType, bool) {
	if _, ok := o.Export().(goja.ArrayBuffer); ok {
		if tag := wrap(o.GetSymbol(b.bufferTag)); tag != nil {
			return scriptx.BufferType(tag.(goja.Value).ToInteger()), true
		}
		return scriptx.BufferUnknown, true
	}
	name, err := b.viewFn(goja.Undefined(), o)
	if err != nil || wrap(name) == nil {
		return scriptx.BufferUnknown, false
	}
	t, ok := viewTypes[name.String()]
	return t, ok
}

// SharedBuffers is true: ArrayBuffer memory is the host's memory.
func (b *Backend) SharedBuffers() bool { return true }

func (b *Backend) BufferBytes(buf scriptx.Handle) []byte {
	o, ok := object(buf)
	if !ok {
		b.throw("TypeError", "value is not a byte buffer")
		return nil
	}
	if ab, ok := o.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes()
	}
	var data []byte
	b.try(func() {
		ab, ok := o.Get("buffer").Export().(goja.ArrayBuffer)
		if !ok {
			return
		}
		all := ab.Bytes()
		off := o.Get("byteOffset").ToInteger()
		n := o.Get("byteLength").ToInteger()
		if off+n <= int64(len(all)) {
			data = all[off : off+n]
		}
	})
	return data
}

func (b *Backend) BufferType(buf scriptx.Handle) scriptx.BufferType {
	o, ok := object(buf)
	if !ok {
		return scriptx.BufferUnknown
	}
	t, _ := b.bufferKind(o)
	return t
}

func (b *Backend) WriteBuffer(buf scriptx.Handle, data []byte) {
	copy(b.BufferBytes(buf), data)
}

// =============================================================================
// WEAK REFERENCES
// =============================================================================

// NewWeak holds objects weakly. Primitives are values, so they are held
// as they are and never collected.
func (b *Backend) NewWeak(h scriptx.Handle) any {
	if o, ok := object(h); ok {
		return weak.Make(o)
	}
	return h
}

func (b *Backend) DerefWeak(w any) scriptx.Handle {
	if p, ok := w.(weak.Pointer[goja.Object]); ok {
		if o := p.Value(); o != nil {
			return o
		}
		return nil
	}
	return w
}

func (b *Backend) ReleaseWeak(any) {}
