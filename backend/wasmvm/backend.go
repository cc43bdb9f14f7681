// Package wasmvm is a scriptx backend running WebAssembly modules on wazero.
//
// Eval takes a module binary, instantiates it and returns an object of its
// exports: functions become script functions and memories become byte
// buffers. Functions the module imports from "env" are resolved by name
// against the global object each time they are called, so host callbacks
// and exports of other modules can both serve as imports.
//
// Host values live in a reference counted heap like in exprvm. Linear
// memory is owned by wazero, so byte buffers are not shared: Bytes is a copy
// refreshed by Sync and written back by Commit.
package wasmvm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/buildinfo"
	"github.com/buke/scriptx-go/internal/heap"
)

// ImportModule is the module name imports are resolved from.
const ImportModule = "env"

// Backend implements scriptx.Backend on top of wazero.
type Backend struct {
	*heap.Heap
	host scriptx.FunctionHost

	ctx       context.Context
	cache     wazero.CompilationCache
	config    wazero.RuntimeConfig
	instances []*instance
}

// instance is one evaluated module. Each gets its own runtime so that
// every module can have its own "env" host module.
type instance struct {
	name    string
	runtime wazero.Runtime
	module  api.Module
}

var _ scriptx.Backend = (*Backend)(nil)

// New returns an uninitialized backend; pass it to scriptx.NewEngine.
func New() *Backend {
	return &Backend{}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (b *Backend) Name() string { return "wasmvm" }

func (b *Backend) Version() string {
	return "wazero " + buildinfo.Version("github.com/tetratelabs/wazero")
}

// Initialize keeps ctx for compiling, instantiating and calling modules.
func (b *Backend) Initialize(ctx context.Context, host scriptx.FunctionHost) error {
	if host == nil {
		return errors.New("wasmvm: function host is nil")
	}
	b.host = host
	b.ctx = ctx
	b.Heap = heap.New(host, false)
	b.cache = wazero.NewCompilationCache()
	b.config = wazero.NewRuntimeConfig().
		WithCompilationCache(b.cache).
		WithCloseOnContextDone(true)
	return nil
}

// Shutdown frees every value and closes every module runtime.
func (b *Backend) Shutdown() error {
	if b.Heap == nil {
		return nil
	}
	b.Heap.Close()
	var errs []error
	for _, inst := range b.instances {
		if err := inst.runtime.Close(b.ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", inst.name, err))
		}
	}
	b.instances = nil
	if err := b.cache.Close(b.ctx); err != nil {
		errs = append(errs, err)
	}
	Logger().Debug("wasmvm shut down")
	return errors.Join(errs...)
}

// GC does nothing: host values are freed as soon as they are unreferenced
// and module memory lives until shutdown.
func (b *Backend) GC() {}

// Modules returns the names of the modules evaluated so far.
func (b *Backend) Modules() []string {
	names := make([]string, len(b.instances))
	for i, inst := range b.instances {
		names[i] = inst.name
	}
	return names
}

// =============================================================================
// EVALUATION
// =============================================================================

// Eval compiles and instantiates the module binary in source under name
// and returns its exports object.
func (b *Backend) Eval(source, name string) scriptx.Handle {
	ctx := b.ctx
	rt := wazero.NewRuntimeWithConfig(ctx, b.config)

	compiled, err := rt.CompileModule(ctx, []byte(source))
	if err != nil {
		_ = rt.Close(ctx)
		b.RethrowException(&scriptx.Exception{Name: "CompileError", Message: err.Error(), Stack: name})
		return nil
	}
	if err := b.linkImports(ctx, rt, compiled); err != nil {
		_ = rt.Close(ctx)
		b.RethrowException(&scriptx.Exception{Name: "LinkError", Message: err.Error(), Stack: name})
		return nil
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		_ = rt.Close(ctx)
		b.trap(err, name)
		return nil
	}
	b.instances = append(b.instances, &instance{name: name, runtime: rt, module: mod})
	Logger().Debug("module instantiated", zap.String("module", name))
	return b.exports(compiled, mod)
}

// linkImports builds the "env" host module the compiled module imports
// from. Any other import module is an error.
func (b *Backend) linkImports(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule) error {
	imports := compiled.ImportedFunctions()
	if len(imports) == 0 {
		return nil
	}
	builder := rt.NewHostModuleBuilder(ImportModule)
	for _, def := range imports {
		module, name, _ := def.Import()
		if module != ImportModule {
			return fmt.Errorf("unresolved import %s.%s", module, name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(b.importFunc(name, def.ParamTypes(), def.ResultTypes()), def.ParamTypes(), def.ResultTypes()).
			Export(name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}

// exports returns a new object holding the module's exported functions and
// memories.
func (b *Backend) exports(compiled wazero.CompiledModule, mod api.Module) scriptx.Handle {
	obj := heap.NewObjectValue()
	set := func(name string, h scriptx.Handle) {
		obj.Keys = append(obj.Keys, name)
		obj.Props[name] = heap.Ref(h)
	}

	funcs := compiled.ExportedFunctions()
	for _, name := range sortedKeys(funcs) {
		if fn := mod.ExportedFunction(name); fn != nil {
			set(name, b.Insert(&heap.Function{Target: &export{name: name, fn: fn}}))
		}
	}
	mems := compiled.ExportedMemories()
	for _, name := range sortedKeys(mems) {
		if mem := mod.ExportedMemory(name); mem != nil {
			set(name, b.Insert(&heap.Buffer{Type: scriptx.BufferUint8, Mem: memory{mem}}))
		}
	}
	return b.Insert(obj)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// trap makes a failed wasm call or instantiation pending. A host exception
// already pending is what unwound the wasm stack and is kept.
func (b *Backend) trap(err error, where string) {
	if b.Pending() != nil {
		return
	}
	Logger().Debug("wasm trap", zap.String("where", where), zap.Error(err))
	b.RethrowException(&scriptx.Exception{Name: "RuntimeError", Message: err.Error(), Stack: where})
}

// memory exposes a linear memory as heap buffer storage.
type memory struct {
	mem api.Memory
}

func (m memory) Read() []byte {
	data, _ := m.mem.Read(0, m.mem.Size())
	return data
}

func (m memory) Write(data []byte) bool {
	return m.mem.Write(0, data)
}
