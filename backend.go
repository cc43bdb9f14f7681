package scriptx

import "context"

// Handle is a backend-native value reference. A nil Handle is the null value.
// Backends decide what a Handle is: an arena index, a pointer, or an interface
// value owned by a garbage collector.
type Handle = any

// Backend is the contract every interpreter adapter implements. It is
// composed of small interfaces so that each concern can be documented and
// faked on its own.
//
// Ownership rules: handles returned by constructors, calls, property and
// index reads, Eval and DerefWeak are new references owned by the caller.
// Handles passed in are borrowed. Operations that can fail natively leave a
// pending exception that the core consumes with CheckException.
type Backend interface {
	Lifecycle
	Refcounter
	KindInspector
	ExceptionBridge
	Interop
	Constructors
	Caller
	Evaluator
	PrimitiveOps
	ObjectOps
	ArrayOps
	BufferOps
	WeakOps
}

// FunctionHost is implemented by the engine and handed to the backend at
// initialization. A backend trampoline calls Invoke when script code calls
// a host function and Finalize when the native function object is reclaimed.
type FunctionHost interface {
	// Invoke runs the host callback registered under id. On failure the
	// error has already been made pending through RethrowException and is
	// returned for the backend to signal with its native convention.
	Invoke(id int32, this Handle, args []Handle) (Handle, error)
	// Finalize releases the callback registered under id. Calling it more
	// than once is harmless.
	Finalize(id int32)
}

// Lifecycle covers backend identity and startup/teardown.
type Lifecycle interface {
	Name() string
	Version() string
	Initialize(ctx context.Context, host FunctionHost) error
	Shutdown() error
	GC()
}

// Refcounter adjusts native reference counts. Garbage collected backends
// implement both as no-ops. A nil handle is ignored.
type Refcounter interface {
	IncRef(h Handle) Handle
	DecRef(h Handle)
}

// KindInspector answers native type predicates. Predicates may overlap; the
// core evaluates them in a fixed priority order.
type KindInspector interface {
	IsNull(h Handle) bool
	IsString(h Handle) bool
	IsNumber(h Handle) bool
	IsBoolean(h Handle) bool
	IsFunction(h Handle) bool
	IsArray(h Handle) bool
	IsByteBuffer(h Handle) bool
	IsObject(h Handle) bool
}

// ExceptionBridge moves error state across the native boundary.
type ExceptionBridge interface {
	// CheckException returns h unchanged when no native error is pending.
	// Otherwise it clears the pending error, releases h and returns the
	// error as an *Exception. A pending error wins over any result.
	CheckException(h Handle) (Handle, error)
	// RethrowException makes exc the pending native error.
	RethrowException(exc *Exception)
}

// Interop validates and compares handles.
type Interop interface {
	// ToNative checks that h can be passed into native calls of this
	// backend and returns the borrowed native form.
	ToNative(h Handle) (Handle, error)
	Equals(a, b Handle) bool
	Describe(h Handle) (string, error)
}

// Constructors build new native values.
type Constructors interface {
	NewString(s string) (Handle, error)
	NewNumber(f float64) (Handle, error)
	NewInt64(v int64) (Handle, error)
	NewBoolean(b bool) (Handle, error)
	NewObject() (Handle, error)
	NewArray(size int) (Handle, error)
	NewByteBuffer(data []byte, t BufferType) (Handle, error)
	// NewFunction registers a native callable bound to the host callback id.
	NewFunction(id int32) (Handle, error)
}

// Caller invokes native functions. A nil result with a pending exception
// signals failure.
type Caller interface {
	Call0(fn, this Handle) Handle
	Call1(fn, this, arg Handle) Handle
	CallN(fn, this Handle, args []Handle) Handle
}

// Evaluator runs source code and exposes the global object.
type Evaluator interface {
	Eval(source, filename string) Handle
	GlobalObject() Handle
}

// PrimitiveOps read primitive values.
type PrimitiveOps interface {
	ToString(h Handle) string
	ToFloat64(h Handle) float64
	ToInt64(h Handle) int64
	ToBool(h Handle) bool
}

// ObjectOps access object properties.
type ObjectOps interface {
	GetProperty(obj Handle, key string) Handle
	SetProperty(obj Handle, key string, v Handle)
	HasProperty(obj Handle, key string) bool
	DeleteProperty(obj Handle, key string)
	Keys(obj Handle) []string
	InstanceOf(obj, ctor Handle) bool
}

// ArrayOps access array elements.
type ArrayOps interface {
	Length(arr Handle) int
	Index(arr Handle, i int) Handle
	SetIndex(arr Handle, i int, v Handle)
	Append(arr Handle, v Handle)
	Clear(arr Handle)
}

// BufferOps access byte buffers. When SharedBuffers reports true,
// BufferBytes returns a view of script memory; otherwise it returns a copy
// and WriteBuffer copies host bytes back.
type BufferOps interface {
	SharedBuffers() bool
	BufferBytes(buf Handle) []byte
	BufferType(buf Handle) BufferType
	WriteBuffer(buf Handle, data []byte)
}

// WeakOps manage non-owning references. DerefWeak returns nil once the
// referent has been collected.
type WeakOps interface {
	NewWeak(h Handle) any
	DerefWeak(w any) Handle
	ReleaseWeak(w any)
}
