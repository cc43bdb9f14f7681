package heap

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
)

// Number keeps integers exact; Float is used only when a value was built
// from one.
type Number struct {
	Int   int64
	Float float64
	IsInt bool
}

// Int returns an integral Number.
func Int(v int64) Number { return Number{Int: v, IsInt: true} }

// Float returns a floating point Number.
func Float(f float64) Number { return Number{Float: f} }

func (n Number) Float64() float64 {
	if n.IsInt {
		return float64(n.Int)
	}
	return n.Float
}

// Int64 truncates toward zero; NaN is 0.
func (n Number) Int64() int64 {
	if n.IsInt {
		return n.Int
	}
	if math.IsNaN(n.Float) {
		return 0
	}
	return int64(n.Float)
}

func (n Number) Equal(o Number) bool {
	if n.IsInt && o.IsInt {
		return n.Int == o.Int
	}
	return n.Float64() == o.Float64()
}

func (n Number) String() string {
	if n.IsInt {
		return strconv.FormatInt(n.Int, 10)
	}
	switch {
	case math.IsNaN(n.Float):
		return "NaN"
	case math.IsInf(n.Float, 1):
		return "Infinity"
	case math.IsInf(n.Float, -1):
		return "-Infinity"
	}
	return decimal.NewFromFloat(n.Float).String()
}

// Object keeps its keys in insertion order.
type Object struct {
	Keys  []string
	Props map[string]arena.Ref
}

func NewObjectValue() *Object {
	return &Object{Props: make(map[string]arena.Ref)}
}

// Array holds its elements in Items. Named properties other than length
// go to Props, created on the first write like a Function's.
type Array struct {
	Items []arena.Ref
	Props *Object
}

// Memory is external memory a Buffer can stand for, such as a WebAssembly
// linear memory.
type Memory interface {
	Read() []byte
	Write(data []byte) bool
}

// Buffer is a byte buffer. Its bytes are Data, or Mem when set.
type Buffer struct {
	Data []byte
	Type scriptx.BufferType
	Mem  Memory
}

// Function is a callable. HostID is set for host callbacks; Target holds
// whatever the backend calls otherwise. A Target with a Close method is
// closed when the function is freed. Props is created on the first
// property write.
type Function struct {
	HostID int32
	Target any
	Props  *Object
}

// Opaque holds a value no other kind describes.
type Opaque struct {
	V any
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func (hp *Heap) NewString(s string) (scriptx.Handle, error) {
	return hp.table.Insert(s), nil
}

func (hp *Heap) NewNumber(f float64) (scriptx.Handle, error) {
	return hp.table.Insert(Float(f)), nil
}

func (hp *Heap) NewInt64(v int64) (scriptx.Handle, error) {
	return hp.table.Insert(Int(v)), nil
}

func (hp *Heap) NewBoolean(v bool) (scriptx.Handle, error) {
	return hp.table.Insert(v), nil
}

func (hp *Heap) NewObject() (scriptx.Handle, error) {
	return hp.table.Insert(NewObjectValue()), nil
}

func (hp *Heap) NewArray(size int) (scriptx.Handle, error) {
	return hp.table.Insert(&Array{Items: make([]arena.Ref, size)}), nil
}

func (hp *Heap) NewByteBuffer(data []byte, t scriptx.BufferType) (scriptx.Handle, error) {
	if data == nil {
		data = []byte{}
	}
	if !hp.shared {
		data = append([]byte(nil), data...)
	}
	return hp.table.Insert(&Buffer{Data: data, Type: t}), nil
}

func (hp *Heap) NewFunction(id int32) (scriptx.Handle, error) {
	return hp.table.Insert(&Function{HostID: id}), nil
}

// =============================================================================
// PRIMITIVES
// =============================================================================

func (hp *Heap) ToString(h scriptx.Handle) string {
	if s, ok := hp.Get(h).(string); ok {
		return s
	}
	s, _ := hp.describe(hp.Get(h))
	return s
}

func (hp *Heap) ToFloat64(h scriptx.Handle) float64 {
	switch v := hp.Get(h).(type) {
	case Number:
		return v.Float64()
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func (hp *Heap) ToInt64(h scriptx.Handle) int64 {
	switch v := hp.Get(h).(type) {
	case Number:
		return v.Int64()
	case bool, string:
		return cast.ToInt64(v)
	}
	return 0
}

func (hp *Heap) ToBool(h scriptx.Handle) bool {
	switch v := hp.Get(h).(type) {
	case nil:
		return false
	case bool:
		return v
	case Number:
		f := v.Float64()
		return f != 0 && !math.IsNaN(f)
	case string:
		return v != ""
	}
	return true
}

// =============================================================================
// DESCRIBE
// =============================================================================

// describe renders a value the way scripts see it printed. Objects and
// arrays are rendered as JSON.
func (hp *Heap) describe(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case Number:
		return x.String(), nil
	case *Function:
		return "[function]", nil
	case *Buffer:
		return fmt.Sprintf("[ByteBuffer %d]", len(hp.bytes(x))), nil
	case Opaque:
		return fmt.Sprint(x.V), nil
	case *Object, *Array:
		data, err := json.Marshal(hp.plain(v, map[any]bool{}))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return fmt.Sprint(v), nil
}

// plain converts a value into JSON-encodable data.
func (hp *Heap) plain(v any, seen map[any]bool) any {
	switch x := v.(type) {
	case Number:
		if x.IsInt {
			return x.Int
		}
		if math.IsNaN(x.Float) || math.IsInf(x.Float, 0) {
			return nil
		}
		return x.Float
	case *Object:
		if seen[x] {
			return "[circular]"
		}
		seen[x] = true
		defer delete(seen, x)
		out := make(map[string]any, len(x.Props))
		for _, k := range x.Keys {
			child, _ := hp.table.Get(x.Props[k])
			out[k] = hp.plain(child, seen)
		}
		return out
	case *Array:
		if seen[x] {
			return "[circular]"
		}
		seen[x] = true
		defer delete(seen, x)
		out := make([]any, len(x.Items))
		for i, item := range x.Items {
			child, _ := hp.table.Get(item)
			out[i] = hp.plain(child, seen)
		}
		return out
	case *Buffer:
		return hp.bytes(x)
	case *Function:
		return "[function]"
	case Opaque:
		return fmt.Sprint(x.V)
	}
	return v
}
