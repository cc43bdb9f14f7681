package scriptx_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/scriptx-go"
)

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip,omitempty"`
}

type person struct {
	Name     string   `js:"name"`
	Age      int      `json:"age"`
	Tags     []string `json:"tags"`
	Home     *address `json:"home"`
	Password string   `json:"-"`
	Nickname string   `json:"nickname,omitempty"`
	secret   string
}

// point marshals itself as a two element array.
type point struct{ X, Y int64 }

func (p point) MarshalScript(sc *scriptx.EngineScope) (scriptx.Value, error) {
	return sc.Marshal([]int64{p.X, p.Y})
}

func (p *point) UnmarshalScript(v scriptx.Value) error {
	var xy []int64
	if err := scriptx.Unmarshal(v, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return errors.New("point needs two coordinates")
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

func describe(t *testing.T, v scriptx.Value) string {
	t.Helper()
	s, err := v.DescribeUTF8()
	require.NoError(t, err)
	return s
}

func TestMarshalScalars(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		var nilPtr *address
		for _, tc := range []struct {
			in   any
			kind scriptx.ValueKind
			want string
		}{
			{nil, scriptx.KindNull, "null"},
			{nilPtr, scriptx.KindNull, "null"},
			{true, scriptx.KindBoolean, "true"},
			{int8(-3), scriptx.KindNumber, "-3"},
			{uint16(9), scriptx.KindNumber, "9"},
			{int64(math.MaxInt64), scriptx.KindNumber, "9223372036854775807"},
			{2.5, scriptx.KindNumber, "2.5"},
			{"text", scriptx.KindString, "text"},
			{[]byte{1, 2}, scriptx.KindByteBuffer, ""},
			{[]int{1, 2}, scriptx.KindArray, "[1,2]"},
			{[2]string{"a", "b"}, scriptx.KindArray, `["a","b"]`},
			{map[string]int{"k": 1}, scriptx.KindObject, `{"k":1}`},
			{point{1, 2}, scriptx.KindArray, "[1,2]"},
		} {
			v, err := sc.Marshal(tc.in)
			require.NoError(t, err, "%#v", tc.in)
			assert.Equal(t, tc.kind, v.Kind(), "%#v", tc.in)
			if tc.want != "" {
				assert.Equal(t, tc.want, describe(t, v), "%#v", tc.in)
			}
		}

		big, err := sc.Marshal(uint64(math.MaxUint64))
		require.NoError(t, err)
		n, err := big.AsNumber()
		require.NoError(t, err)
		f, err := n.Float64()
		require.NoError(t, err)
		assert.Equal(t, float64(math.MaxUint64), f)

		_, err = sc.Marshal(make(chan int))
		assert.ErrorIs(t, err, scriptx.ErrConversion)
	})
}

func TestMarshalStruct(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		v, err := sc.Marshal(&person{
			Name:     "Ada",
			Age:      36,
			Tags:     []string{"math"},
			Home:     &address{City: "London"},
			Password: "hunter2",
			secret:   "hidden",
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Ada","age":36,"tags":["math"],"home":{"city":"London"}}`, describe(t, v))

		var back person
		require.NoError(t, scriptx.Unmarshal(v, &back))
		assert.Equal(t, person{Name: "Ada", Age: 36, Tags: []string{"math"}, Home: &address{City: "London"}}, back)
	})
}

func TestMarshalPassesReferencesThrough(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		obj, err := sc.NewObject()
		require.NoError(t, err)
		v, err := sc.Marshal(obj)
		require.NoError(t, err)
		assert.True(t, v.Equals(obj))

		v, err = sc.Marshal(map[string]any{"inner": obj})
		require.NoError(t, err)
		outer, err := v.AsObject()
		require.NoError(t, err)
		inner, err := outer.Get("inner")
		require.NoError(t, err)
		assert.True(t, inner.Equals(obj))
	})
}

func TestMarshalFunctions(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		v, err := sc.Marshal(func(args *scriptx.Arguments) (scriptx.Value, error) {
			return args.Scope().Marshal("called")
		})
		require.NoError(t, err)
		fn, err := v.AsFunction()
		require.NoError(t, err)
		out, err := fn.Call(nil)
		require.NoError(t, err)
		assert.Equal(t, "called", out.String())

		var cb scriptx.Callback
		v, err = sc.Marshal(cb)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	})
}

func TestUnmarshalScalars(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		eval := func(src string) scriptx.Value {
			v, err := sc.Eval(src)
			require.NoError(t, err)
			return v
		}

		var i int
		require.NoError(t, scriptx.Unmarshal(eval("40 + 2"), &i))
		assert.Equal(t, 42, i)

		var u uint8
		require.NoError(t, scriptx.Unmarshal(eval("255"), &u))
		assert.Equal(t, uint8(255), u)
		assert.ErrorIs(t, scriptx.Unmarshal(eval("256"), &u), scriptx.ErrConversion)
		assert.ErrorIs(t, scriptx.Unmarshal(eval("-1"), &u), scriptx.ErrConversion)

		var small int8
		assert.ErrorIs(t, scriptx.Unmarshal(eval("300"), &small), scriptx.ErrConversion)

		var f float32
		require.NoError(t, scriptx.Unmarshal(eval("1.5"), &f))
		assert.Equal(t, float32(1.5), f)

		var s string
		require.NoError(t, scriptx.Unmarshal(eval(`"str"`), &s))
		assert.Equal(t, "str", s)
		assert.ErrorIs(t, scriptx.Unmarshal(eval(`"str"`), &i), scriptx.ErrConversion)

		var b bool
		require.NoError(t, scriptx.Unmarshal(eval("1 < 2"), &b))
		assert.True(t, b)

		assert.ErrorIs(t, scriptx.Unmarshal(eval("1"), i), scriptx.ErrConversion)
		var ch chan int
		assert.ErrorIs(t, scriptx.Unmarshal(eval("1"), &ch), scriptx.ErrConversion)
	})
}

func TestUnmarshalContainers(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		eval := func(src string) scriptx.Value {
			v, err := sc.Eval(src)
			require.NoError(t, err)
			return v
		}

		var list []int
		require.NoError(t, scriptx.Unmarshal(eval("[3, 2, 1]"), &list))
		assert.Equal(t, []int{3, 2, 1}, list)

		var fixed [2]int
		require.NoError(t, scriptx.Unmarshal(eval("[7, 8, 9]"), &fixed))
		assert.Equal(t, [2]int{7, 8}, fixed)

		list = []int{1}
		require.NoError(t, scriptx.Unmarshal(eval("nil"), &list))
		assert.Nil(t, list)

		var byName map[string]int
		require.NoError(t, scriptx.Unmarshal(eval(`{"a": 1, "b": 2}`), &byName))
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, byName)

		var byIndex map[int]string
		require.NoError(t, scriptx.Unmarshal(eval(`{"1": "one", "x": "skipped"}`), &byIndex))
		assert.Equal(t, map[int]string{1: "one"}, byIndex)

		var addr *address
		require.NoError(t, scriptx.Unmarshal(eval(`{"city": "Oslo"}`), &addr))
		assert.Equal(t, &address{City: "Oslo"}, addr)
		require.NoError(t, scriptx.Unmarshal(eval("nil"), &addr))
		assert.Nil(t, addr)

		err := scriptx.Unmarshal(eval(`["x"]`), &list)
		assert.ErrorIs(t, err, scriptx.ErrConversion)
		assert.Contains(t, err.Error(), "array element 0")

		var p point
		require.NoError(t, scriptx.Unmarshal(eval("[4, 5]"), &p))
		assert.Equal(t, point{4, 5}, p)
		assert.Error(t, scriptx.Unmarshal(eval("[4]"), &p))

		buf, err := sc.NewByteBuffer([]byte{1, 2, 3})
		require.NoError(t, err)
		var data []byte
		require.NoError(t, scriptx.Unmarshal(buf.AsValue(), &data))
		assert.Equal(t, []byte{1, 2, 3}, data)

		var held scriptx.Value
		require.NoError(t, scriptx.Unmarshal(buf.AsValue(), &held))
		assert.True(t, held.Equals(buf))
	})
}

func TestUnmarshalInterface(t *testing.T) {
	e := newEngine(t)
	run(t, e, func(sc *scriptx.EngineScope) {
		v, err := sc.Eval(`{"n": 3, "f": 1.5, "s": "x", "ok": true, "none": nil, "list": [1, "two"]}`)
		require.NoError(t, err)

		var out any
		require.NoError(t, scriptx.Unmarshal(v, &out))
		assert.Equal(t, map[string]any{
			"n":    int64(3),
			"f":    1.5,
			"s":    "x",
			"ok":   true,
			"none": nil,
			"list": []any{int64(1), "two"},
		}, out)

		fn, err := sc.NewFunction(func(*scriptx.Arguments) (scriptx.Value, error) { return scriptx.Value{}, nil })
		require.NoError(t, err)
		err = scriptx.Unmarshal(fn.AsValue(), &out)
		assert.ErrorIs(t, err, scriptx.ErrConversion)
	})
}
