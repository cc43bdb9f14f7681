// Package scriptx is an engine-neutral embedding core for scripting runtimes.
//
// Host code creates, holds, passes and invokes values that live inside a
// pluggable interpreter without knowing how that interpreter manages memory.
// Values are reached through scope-bound locals (Value, String, Number,
// Boolean, Object, Function, Array, ByteBuffer, Unsupported), long-lived
// Global references and non-owning Weak references. Every operation runs
// against the engine at the top of a Stack; entering and exiting an
// EngineScope is the only way to change it.
//
// Backends implement the Backend contract. This module ships three:
// backend/gojajs (JavaScript, garbage collected handles), backend/exprvm
// (expr-lang expressions, reference counted handles) and backend/wasmvm
// (WebAssembly through wazero, non-shared byte buffers).
package scriptx
