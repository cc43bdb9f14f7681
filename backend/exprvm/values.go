package exprvm

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
	"github.com/buke/scriptx-go/internal/heap"
)

// fromGo stores an expr value and returns a new reference to it.
func (b *Backend) fromGo(v any) scriptx.Handle {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool:
		return b.Insert(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return b.Insert(heap.Int(cast.ToInt64(x)))
	case uint64:
		if x > math.MaxInt64 {
			return b.Insert(heap.Float(float64(x)))
		}
		return b.Insert(heap.Int(int64(x)))
	case float32, float64:
		return b.Insert(heap.Float(cast.ToFloat64(x)))
	case decimal.Decimal:
		if x.IsInteger() && x.Abs().LessThan(decimal.New(1, 18)) {
			return b.Insert(heap.Int(x.IntPart()))
		}
		f, _ := x.Float64()
		return b.Insert(heap.Float(f))
	case []byte:
		return b.Insert(&heap.Buffer{Data: x, Type: scriptx.BufferUint8})
	case []any:
		arr := &heap.Array{Items: make([]arena.Ref, len(x))}
		for i, item := range x {
			arr.Items[i] = heap.Ref(b.fromGo(item))
		}
		return b.Insert(arr)
	case map[string]any:
		obj := heap.NewObjectValue()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Keys = append(obj.Keys, k)
			obj.Props[k] = heap.Ref(b.fromGo(x[k]))
		}
		return b.Insert(obj)
	}
	return b.Insert(heap.Opaque{V: v})
}

// toGo converts a stored value into the form expr programs operate on.
// Functions become callable Go functions; cycles are cut with nil.
func (b *Backend) toGo(h scriptx.Handle, seen map[arena.Ref]bool) any {
	r := heap.Ref(h)
	switch x := b.Get(h).(type) {
	case heap.Number:
		if x.IsInt {
			return int(x.Int)
		}
		return x.Float
	case *heap.Object:
		if seen[r] {
			return nil
		}
		seen[r] = true
		defer delete(seen, r)
		out := make(map[string]any, len(x.Props))
		for _, k := range x.Keys {
			out[k] = b.toGo(heap.Handle(x.Props[k]), seen)
		}
		return out
	case *heap.Array:
		if seen[r] {
			return nil
		}
		seen[r] = true
		defer delete(seen, r)
		out := make([]any, len(x.Items))
		for i, item := range x.Items {
			out[i] = b.toGo(heap.Handle(item), seen)
		}
		return out
	case *heap.Buffer:
		return x.Data
	case *heap.Function:
		return b.callable(h)
	case heap.Opaque:
		return x.V
	default:
		return x
	}
}
