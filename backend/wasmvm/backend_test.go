package wasmvm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/backend/wasmvm"
)

func newEngine(t *testing.T) (*scriptx.Engine, *wasmvm.Backend) {
	t.Helper()
	b := wasmvm.New()
	e, err := scriptx.NewEngine(b, scriptx.WithStack(scriptx.NewStack()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Destroy()) })
	return e, b
}

func load(t *testing.T, sc *scriptx.EngineScope, source, filename string) scriptx.Object {
	t.Helper()
	v, err := sc.Eval(source, scriptx.EvalFileName(filename))
	require.NoError(t, err)
	exports, err := v.AsObject()
	require.NoError(t, err)
	return exports
}

func export(t *testing.T, exports scriptx.Object, name string) scriptx.Function {
	t.Helper()
	v, err := exports.Get(name)
	require.NoError(t, err)
	fn, err := v.AsFunction()
	require.NoError(t, err)
	return fn
}

func ints(t *testing.T, sc *scriptx.EngineScope, vs ...int64) []scriptx.Referent {
	t.Helper()
	out := make([]scriptx.Referent, len(vs))
	for i, v := range vs {
		n, err := sc.NewInt64(v)
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func TestExports(t *testing.T) {
	e, b := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		exports := load(t, sc, mathModule(), "math.wasm")
		keys, err := exports.KeyNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"add", "boom", "half", "swap"}, keys)
		assert.Equal(t, []string{"math.wasm"}, b.Modules())

		v, err := export(t, exports, "add").Call(nil, ints(t, sc, 2, 3)...)
		require.NoError(t, err)
		n, err := v.AsNumber()
		require.NoError(t, err)
		i, err := n.Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(5), i)

		x, err := sc.NewNumber(3)
		require.NoError(t, err)
		v, err = export(t, exports, "half").Call(nil, x)
		require.NoError(t, err)
		n, err = v.AsNumber()
		require.NoError(t, err)
		f, err := n.Float64()
		require.NoError(t, err)
		assert.InDelta(t, 1.5, f, 1e-9)

		v, err = export(t, exports, "swap").Call(nil, ints(t, sc, 1, 2)...)
		require.NoError(t, err)
		s, err := v.AsArray()
		require.NoError(t, err)
		desc, err := s.DescribeUTF8()
		require.NoError(t, err)
		assert.JSONEq(t, `[2,1]`, desc)
		return nil
	}))
}

func TestArgumentErrors(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		add := export(t, load(t, sc, mathModule(), "math.wasm"), "add")

		_, err := add.Call(nil, ints(t, sc, 1)...)
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "TypeError", exc.Name)
		assert.Contains(t, exc.Message, "add expects 2 arguments")

		s, err := sc.NewString("x")
		require.NoError(t, err)
		one := ints(t, sc, 1)[0]
		_, err = add.Call(nil, one, s)
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "TypeError", exc.Name)

		// null and booleans pass as integers
		yes, err := sc.NewBoolean(true)
		require.NoError(t, err)
		v, err := add.Call(nil, sc.Null(), yes)
		require.NoError(t, err)
		assert.Equal(t, "1", v.String())
		return nil
	}))
}

func TestTrap(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		exports := load(t, sc, mathModule(), "math.wasm")

		_, err := export(t, exports, "boom").Call(nil)
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "RuntimeError", exc.Name)
		assert.Contains(t, exc.Message, "unreachable")
		assert.Equal(t, "boom", exc.Stack)

		// the module survives a trap
		v, err := export(t, exports, "add").Call(nil, ints(t, sc, 1, 1)...)
		require.NoError(t, err)
		assert.Equal(t, "2", v.String())
		return nil
	}))
}

func TestCompileAndLinkErrors(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		_, err := sc.Eval("not a module", scriptx.EvalFileName("junk.wasm"))
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "CompileError", exc.Name)
		assert.Equal(t, "junk.wasm", exc.Stack)

		_, err = sc.Eval(quadModule("wasi"), scriptx.EvalFileName("quad.wasm"))
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "LinkError", exc.Name)
		assert.Contains(t, exc.Message, "wasi.double")
		return nil
	}))
}

func TestHostImport(t *testing.T) {
	e, _ := newEngine(t)
	var calls int
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		double, err := sc.NewFunction(func(args *scriptx.Arguments) (scriptx.Value, error) {
			calls++
			n, err := args.At(0).AsNumber()
			if err != nil {
				return scriptx.Value{}, err
			}
			i, err := n.Int64()
			if err != nil {
				return scriptx.Value{}, err
			}
			out, err := args.Scope().NewInt64(i * 2)
			return out.AsValue(), err
		})
		require.NoError(t, err)
		quad := export(t, load(t, sc, quadModule(wasmvm.ImportModule), "quad.wasm"), "quad")

		// imports resolve when called
		_, err = quad.Call(nil, ints(t, sc, 1)...)
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "TypeError", exc.Name)
		assert.Contains(t, exc.Message, "env.double")

		require.NoError(t, sc.Set("double", double))
		v, err := quad.Call(nil, ints(t, sc, 3)...)
		require.NoError(t, err)
		assert.Equal(t, "12", v.String())
		assert.Equal(t, 2, calls)

		fail, err := sc.NewFunction(func(*scriptx.Arguments) (scriptx.Value, error) {
			return scriptx.Value{}, errors.New("nope")
		})
		require.NoError(t, err)
		require.NoError(t, sc.Set("double", fail))
		_, err = quad.Call(nil, ints(t, sc, 3)...)
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "nope", exc.Message)
		return nil
	}))
}

func TestImportFromAnotherModule(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		double := export(t, load(t, sc, doubleModule(), "double.wasm"), "double")
		require.NoError(t, sc.Set("double", double))

		quad := export(t, load(t, sc, quadModule(wasmvm.ImportModule), "quad.wasm"), "quad")
		v, err := quad.Call(nil, ints(t, sc, 5)...)
		require.NoError(t, err)
		assert.Equal(t, "20", v.String())
		return nil
	}))
}

func TestMemory(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		exports := load(t, sc, memoryModule(), "mem.wasm")
		v, err := exports.Get("memory")
		require.NoError(t, err)
		mem, err := v.AsByteBuffer()
		require.NoError(t, err)
		assert.False(t, mem.IsShared())

		size, err := mem.ByteLength()
		require.NoError(t, err)
		assert.Equal(t, 65536, size)

		_, err = export(t, exports, "store").Call(nil, ints(t, sc, 0, 42)...)
		require.NoError(t, err)
		data, err := mem.Bytes()
		require.NoError(t, err)
		assert.Equal(t, byte(42), data[0])

		data[1] = 7
		v, err = export(t, exports, "load").Call(nil, ints(t, sc, 1)...)
		require.NoError(t, err)
		assert.Equal(t, "0", v.String())

		require.NoError(t, mem.Commit())
		v, err = export(t, exports, "load").Call(nil, ints(t, sc, 1)...)
		require.NoError(t, err)
		assert.Equal(t, "7", v.String())

		_, err = export(t, exports, "store").Call(nil, ints(t, sc, 2, 9)...)
		require.NoError(t, err)
		assert.Equal(t, byte(0), data[2])
		require.NoError(t, mem.Sync())
		assert.Equal(t, byte(9), data[2])
		return nil
	}))
}

func TestHostBuffersAreCopied(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		src := []byte{1, 2, 3}
		buf, err := sc.NewByteBuffer(src)
		require.NoError(t, err)
		src[0] = 9

		data, err := buf.Bytes()
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, data)
		return nil
	}))
}

func TestShutdownReleasesModules(t *testing.T) {
	b := wasmvm.New()
	e, err := scriptx.NewEngine(b, scriptx.WithStack(scriptx.NewStack()))
	require.NoError(t, err)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		load(t, sc, mathModule(), "math.wasm")
		return nil
	}))
	require.NoError(t, e.Destroy())
	assert.Empty(t, b.Modules())
	assert.Zero(t, b.LiveHandles())
	assert.Contains(t, e.Version(), "wazero")
}
