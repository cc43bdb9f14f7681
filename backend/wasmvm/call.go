package wasmvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
	"github.com/buke/scriptx-go/internal/heap"
)

// errThrown unwinds the wasm stack after an import left an exception
// pending.
var errThrown = errors.New("wasmvm: script exception")

// export is an exported wasm function.
type export struct {
	name string
	fn   api.Function
}

func (b *Backend) Call0(fn, this scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, nil)
}

func (b *Backend) Call1(fn, this, arg scriptx.Handle) scriptx.Handle {
	return b.CallN(fn, this, []scriptx.Handle{arg})
}

// CallN calls a host function or a wasm export. Wasm exports ignore this,
// need exactly as many arguments as they declare parameters and return
// null, their single result, or an array of their results.
func (b *Backend) CallN(fn, this scriptx.Handle, args []scriptx.Handle) scriptx.Handle {
	f, ok := b.Get(fn).(*heap.Function)
	if !ok {
		b.Throw("TypeError", "value is not a function")
		return nil
	}
	if f.HostID != 0 {
		res, _ := b.host.Invoke(f.HostID, this, args)
		return res
	}

	exp := f.Target.(*export)
	def := exp.fn.Definition()
	params := def.ParamTypes()
	if len(args) != len(params) {
		b.Throw("TypeError", "%s expects %d arguments, got %d", exp.name, len(params), len(args))
		return nil
	}
	stack := make([]uint64, len(params))
	for i, t := range params {
		v, err := b.encode(args[i], t)
		if err != nil {
			b.Throw("TypeError", "%s argument %d: %v", exp.name, i, err)
			return nil
		}
		stack[i] = v
	}

	results, err := exp.fn.Call(b.ctx, stack...)
	if err != nil {
		b.trap(err, exp.name)
		return nil
	}
	types := def.ResultTypes()
	switch len(results) {
	case 0:
		return nil
	case 1:
		return b.Insert(decode(results[0], types[0]))
	}
	arr := &heap.Array{Items: make([]arena.Ref, len(results))}
	for i, r := range results {
		arr.Items[i] = heap.Ref(b.Insert(decode(r, types[i])))
	}
	return b.Insert(arr)
}

// importFunc returns the host side of the import env.name. It looks the
// function up on the global object when called.
func (b *Backend) importFunc(name string, params, results []api.ValueType) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		global := b.Global()
		fn := heap.Handle(global.Props[name])
		if !b.IsFunction(fn) {
			b.Throw("TypeError", "import %s.%s is not a global function", ImportModule, name)
			panic(errThrown)
		}

		args := make([]scriptx.Handle, len(params))
		for i, t := range params {
			args[i] = b.Insert(decode(stack[i], t))
		}
		res := b.CallN(fn, nil, args)
		for _, a := range args {
			b.DecRef(a)
		}
		defer b.DecRef(res)
		if b.Pending() != nil {
			panic(errThrown)
		}

		switch len(results) {
		case 0:
			return
		case 1:
			v, err := b.encode(res, results[0])
			if err != nil {
				b.Throw("TypeError", "import %s.%s result: %v", ImportModule, name, err)
				panic(errThrown)
			}
			stack[0] = v
			return
		}
		for i, t := range results {
			item := b.Index(res, i)
			v, err := b.encode(item, t)
			b.DecRef(item)
			if err != nil || b.Pending() != nil {
				b.Throw("TypeError", "import %s.%s result %d: expected %s", ImportModule, name, i, api.ValueTypeName(t))
				panic(errThrown)
			}
			stack[i] = v
		}
	}
}

// encode converts a host value into a wasm value of type t. Null is zero
// and booleans are 0 or 1.
func (b *Backend) encode(h scriptx.Handle, t api.ValueType) (uint64, error) {
	var n heap.Number
	switch v := b.Get(h).(type) {
	case nil:
		n = heap.Int(0)
	case heap.Number:
		n = v
	case bool:
		if v {
			n = heap.Int(1)
		} else {
			n = heap.Int(0)
		}
	default:
		return 0, fmt.Errorf("cannot convert %T to %s", v, api.ValueTypeName(t))
	}
	switch t {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(n.Int64())), nil
	case api.ValueTypeI64:
		return uint64(n.Int64()), nil
	case api.ValueTypeF32:
		return api.EncodeF32(float32(n.Float64())), nil
	case api.ValueTypeF64:
		return api.EncodeF64(n.Float64()), nil
	}
	return 0, fmt.Errorf("unsupported value type %s", api.ValueTypeName(t))
}

// decode converts a wasm value of type t into a Number; integers stay exact.
func decode(v uint64, t api.ValueType) heap.Number {
	switch t {
	case api.ValueTypeI32:
		return heap.Int(int64(api.DecodeI32(v)))
	case api.ValueTypeI64:
		return heap.Int(int64(v))
	case api.ValueTypeF32:
		return heap.Float(float64(api.DecodeF32(v)))
	case api.ValueTypeF64:
		return heap.Float(api.DecodeF64(v))
	}
	return heap.Int(int64(v))
}
