package exprvm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/backend/exprvm"
)

func newEngine(t *testing.T) (*scriptx.Engine, *exprvm.Backend) {
	t.Helper()
	b := exprvm.New()
	e, err := scriptx.NewEngine(b, scriptx.WithStack(scriptx.NewStack()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Destroy()) })
	return e, b
}

func TestEvalArithmetic(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		v, err := sc.Eval("1 + 2 * 3")
		require.NoError(t, err)
		n, err := v.AsNumber()
		require.NoError(t, err)
		i, err := n.Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(7), i)

		v, err = sc.Eval(`"a" + "b"`)
		require.NoError(t, err)
		assert.Equal(t, scriptx.KindString, v.Kind())
		assert.Equal(t, "ab", v.String())
		return nil
	}))
}

func TestEvalGlobals(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		n, err := sc.NewInt64(40)
		require.NoError(t, err)
		require.NoError(t, sc.Set("x", n))

		v, err := sc.Eval("x + 2")
		require.NoError(t, err)
		assert.Equal(t, "42", v.String())

		v, err = sc.Eval(`{"a": 1, "b": [1, 2]}`)
		require.NoError(t, err)
		obj, err := v.AsObject()
		require.NoError(t, err)
		b, err := obj.Get("b")
		require.NoError(t, err)
		arr, err := b.AsArray()
		require.NoError(t, err)
		size, err := arr.Size()
		require.NoError(t, err)
		assert.Equal(t, 2, size)

		s, err := obj.DescribeUTF8()
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":[1,2]}`, s)
		return nil
	}))
}

func TestEvalErrors(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		_, err := sc.Eval("1 +", scriptx.EvalFileName("broken.expr"))
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "SyntaxError", exc.Name)
		assert.Equal(t, "broken.expr", exc.Stack)

		_, err = sc.Eval(`throw("boom")`)
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "Error", exc.Name)
		assert.Equal(t, "boom", exc.Message)
		assert.ErrorIs(t, err, scriptx.ErrException)

		// nothing stays pending
		v, err := sc.Eval("true")
		require.NoError(t, err)
		assert.True(t, v.IsBoolean())
		return nil
	}))
}

func TestHostFunctionFromExpression(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		add, err := sc.NewFunction(func(args *scriptx.Arguments) (scriptx.Value, error) {
			var sum int64
			for _, a := range args.All() {
				n, err := a.AsNumber()
				if err != nil {
					return scriptx.Value{}, err
				}
				i, err := n.Int64()
				if err != nil {
					return scriptx.Value{}, err
				}
				sum += i
			}
			out, err := args.Scope().NewInt64(sum)
			return out.AsValue(), err
		})
		require.NoError(t, err)
		require.NoError(t, sc.Set("add", add))

		v, err := sc.Eval("add(1, 2, 3) * 2")
		require.NoError(t, err)
		assert.Equal(t, "12", v.String())

		_, err = sc.Eval(`add(1, "x")`)
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "TypeError", exc.Name)
		return nil
	}))
}

func TestHostErrorBecomesException(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		fail, err := sc.NewFunction(func(*scriptx.Arguments) (scriptx.Value, error) {
			return scriptx.Value{}, errors.New("nope")
		})
		require.NoError(t, err)
		require.NoError(t, sc.Set("fail", fail))

		_, err = sc.Eval("fail()")
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "Error", exc.Name)
		assert.Equal(t, "nope", exc.Message)

		_, err = fail.Call(nil)
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "nope", exc.Message)
		return nil
	}))
	assert.Equal(t, uint64(2), e.Stats().Exceptions)
}

func TestScriptFunction(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		mul, err := exprvm.NewScriptFunction(sc, []string{"a", "b"}, "a * b")
		require.NoError(t, err)

		six, err := sc.NewInt64(6)
		require.NoError(t, err)
		seven, err := sc.NewInt64(7)
		require.NoError(t, err)
		v, err := mul.Call(nil, six, seven)
		require.NoError(t, err)
		assert.Equal(t, "42", v.String())

		// script functions are callable by name once they are globals
		require.NoError(t, sc.Set("mul", mul))
		v, err = sc.Eval("mul(3, 5)")
		require.NoError(t, err)
		assert.Equal(t, "15", v.String())

		_, err = exprvm.NewScriptFunction(sc, nil, "1 +")
		var exc *scriptx.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "SyntaxError", exc.Name)
		return nil
	}))
}

func TestRefCounts(t *testing.T) {
	e, b := newEngine(t)
	var h scriptx.Handle
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		obj, err := sc.NewObject()
		require.NoError(t, err)
		h = scriptx.NativeHandle(obj)
		assert.Equal(t, 1, b.RefCount(h))

		cp := obj.Copy()
		assert.Equal(t, 2, b.RefCount(h))
		cp.Release()
		cp.Release()
		assert.Equal(t, 1, b.RefCount(h))

		require.NoError(t, sc.Set("o", obj))
		assert.Equal(t, 2, b.RefCount(h))

		g, err := sc.Globals()
		require.NoError(t, err)
		require.NoError(t, g.Remove("o"))
		assert.Equal(t, 1, b.RefCount(h))
		return nil
	}))
	assert.Equal(t, 0, b.RefCount(h))
	assert.Equal(t, 1, b.LiveHandles())
	assert.Equal(t, int64(0), e.Stats().LiveLocals)
}

func TestFunctionFinalizedOnRelease(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		fn, err := sc.NewFunction(func(*scriptx.Arguments) (scriptx.Value, error) {
			return scriptx.Value{}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, e.Stats().LiveFunctions)
		fn.Release()
		assert.Equal(t, 0, e.Stats().LiveFunctions)
		return nil
	}))
}

func TestWeakCollectedOnRelease(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		obj, err := sc.NewObject()
		require.NoError(t, err)
		w, err := scriptx.NewWeak(obj)
		require.NoError(t, err)

		got, err := w.Get()
		require.NoError(t, err)
		assert.True(t, got.Equals(obj))
		got.Release()

		obj.Release()
		_, err = w.Get()
		assert.ErrorIs(t, err, scriptx.ErrCollectedReference)
		assert.False(t, w.IsEmpty())

		v, err := w.GetValue()
		require.NoError(t, err)
		assert.True(t, v.IsNull())
		return nil
	}))
}

func TestArrayOps(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		arr, err := sc.NewArray(0)
		require.NoError(t, err)
		s, err := sc.NewString("x")
		require.NoError(t, err)
		require.NoError(t, arr.Set(2, s))

		size, err := arr.Size()
		require.NoError(t, err)
		assert.Equal(t, 3, size)

		v, err := arr.Get(0)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
		v, err = arr.Get(5)
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		require.NoError(t, arr.Clear())
		size, err = arr.Size()
		require.NoError(t, err)
		assert.Zero(t, size)
		return nil
	}))
}

func TestSharedByteBuffer(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Run(func(sc *scriptx.EngineScope) error {
		data := []byte{1, 2, 3}
		buf, err := sc.NewByteBuffer(data)
		require.NoError(t, err)
		assert.True(t, buf.IsShared())

		raw, err := buf.Bytes()
		require.NoError(t, err)
		raw[0] = 9
		assert.Equal(t, byte(9), data[0])
		return nil
	}))
}

func TestVersion(t *testing.T) {
	e, _ := newEngine(t)
	assert.Contains(t, e.Version(), "expr")
}
