package scriptx

import (
	"os"
	"unsafe"
)

// =============================================================================
// VALUE CONSTRUCTORS
// =============================================================================

// Null returns the null value of the scope's engine.
func (sc *EngineScope) Null() Value {
	return Value{local{sc.engine.newSlot(nil)}}
}

func (sc *EngineScope) construct(op string, build func(Backend) (Handle, error)) (local, error) {
	e := sc.engine
	if err := e.checkCurrent(op); err != nil {
		return local{}, err
	}
	h, err := build(e.backend)
	if err == nil {
		h, err = e.checkException(h)
	}
	if err != nil {
		return local{}, wrapError(KindConstruction, op, err)
	}
	return local{e.newSlot(h)}, nil
}

// NewString returns a string value.
func (sc *EngineScope) NewString(s string) (String, error) {
	l, err := sc.construct("new string", func(b Backend) (Handle, error) { return b.NewString(s) })
	return String{l}, err
}

// NewNumber returns a number value.
func (sc *EngineScope) NewNumber(f float64) (Number, error) {
	l, err := sc.construct("new number", func(b Backend) (Handle, error) { return b.NewNumber(f) })
	return Number{l}, err
}

// NewInt64 returns a number value that reads back as exactly v.
func (sc *EngineScope) NewInt64(v int64) (Number, error) {
	l, err := sc.construct("new number", func(b Backend) (Handle, error) { return b.NewInt64(v) })
	return Number{l}, err
}

// NewInt32 returns a number value.
func (sc *EngineScope) NewInt32(v int32) (Number, error) {
	return sc.NewInt64(int64(v))
}

// NewBoolean returns a boolean value.
func (sc *EngineScope) NewBoolean(v bool) (Boolean, error) {
	l, err := sc.construct("new boolean", func(b Backend) (Handle, error) { return b.NewBoolean(v) })
	return Boolean{l}, err
}

// NewObject returns an empty object.
func (sc *EngineScope) NewObject() (Object, error) {
	l, err := sc.construct("new object", func(b Backend) (Handle, error) { return b.NewObject() })
	return Object{l}, err
}

// NewArray returns an array of size null elements.
func (sc *EngineScope) NewArray(size int) (Array, error) {
	if size < 0 {
		return Array{}, newError(KindConstruction, "new array", "negative size %d", size)
	}
	l, err := sc.construct("new array", func(b Backend) (Handle, error) { return b.NewArray(size) })
	return Array{l}, err
}

// NewArrayOf returns an array holding values.
func (sc *EngineScope) NewArrayOf(values ...Referent) (Array, error) {
	arr, err := sc.NewArray(0)
	if err != nil {
		return Array{}, err
	}
	for _, v := range values {
		if err := arr.Add(v); err != nil {
			arr.Release()
			return Array{}, err
		}
	}
	return arr, nil
}

// NewByteBuffer returns a byte buffer holding data. Shared backends may keep
// data itself as the buffer's memory.
func (sc *EngineScope) NewByteBuffer(data []byte) (ByteBuffer, error) {
	return sc.newByteBuffer(data, BufferUint8)
}

func (sc *EngineScope) newByteBuffer(data []byte, t BufferType) (ByteBuffer, error) {
	l, err := sc.construct("new bytebuffer", func(b Backend) (Handle, error) { return b.NewByteBuffer(data, t) })
	return ByteBuffer{l}, err
}

// Numeric is the set of element types a typed byte buffer can be built from.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// NewTypedBuffer returns a byte buffer holding the native-endian bytes of
// data, tagged with the matching element type.
func NewTypedBuffer[T Numeric](sc *EngineScope, data []T) (ByteBuffer, error) {
	var zero T
	var t BufferType
	switch any(zero).(type) {
	case int8:
		t = BufferInt8
	case uint8:
		t = BufferUint8
	case int16:
		t = BufferInt16
	case uint16:
		t = BufferUint16
	case int32:
		t = BufferInt32
	case uint32:
		t = BufferUint32
	case int64:
		t = BufferInt64
	case uint64:
		t = BufferUint64
	case float32:
		t = BufferFloat32
	case float64:
		t = BufferFloat64
	}
	var raw []byte
	if n := len(data) * int(unsafe.Sizeof(zero)); n > 0 {
		raw = make([]byte, n)
		copy(raw, unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n))
	}
	return sc.newByteBuffer(raw, t)
}

// =============================================================================
// EVALUATION AND GLOBALS
// =============================================================================

type EvalOptions struct {
	filename string
}

type EvalOption func(*EvalOptions)

// EvalFileName names the source in stack traces and error messages.
func EvalFileName(filename string) EvalOption {
	return func(o *EvalOptions) {
		o.filename = filename
	}
}

// Eval runs source in the engine and returns its result. What source means
// depends on the backend: JavaScript, an expression, or a WebAssembly binary.
func (sc *EngineScope) Eval(source string, opts ...EvalOption) (Value, error) {
	options := EvalOptions{filename: "<input>"}
	for _, fn := range opts {
		fn(&options)
	}
	e := sc.engine
	if err := e.checkCurrent("eval"); err != nil {
		return Value{}, err
	}
	h, err := e.checkException(e.backend.Eval(source, options.filename))
	if err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(h)}}, nil
}

// EvalFile reads filePath and evaluates its contents.
func (sc *EngineScope) EvalFile(filePath string, opts ...EvalOption) (Value, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return Value{}, err
	}
	opts = append(opts, EvalFileName(filePath))
	return sc.Eval(string(b), opts...)
}

// Globals returns the engine's global object.
func (sc *EngineScope) Globals() (Object, error) {
	l, err := sc.construct("globals", func(b Backend) (Handle, error) { return b.GlobalObject(), nil })
	return Object{l}, err
}

// Get returns the global variable name.
func (sc *EngineScope) Get(name string) (Value, error) {
	g, err := sc.Globals()
	if err != nil {
		return Value{}, err
	}
	defer g.Release()
	return g.Get(name)
}

// Set assigns the global variable name.
func (sc *EngineScope) Set(name string, v Referent) error {
	g, err := sc.Globals()
	if err != nil {
		return err
	}
	defer g.Release()
	return g.Set(name, v)
}
