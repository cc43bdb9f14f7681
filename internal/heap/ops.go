package heap

import (
	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
)

// =============================================================================
// OBJECTS
// =============================================================================

// object returns the property bag of h for writing, creating the bag of a
// function or array on demand. Array length is not a writable property.
func (hp *Heap) object(h scriptx.Handle, op, key string) *Object {
	switch x := hp.Get(h).(type) {
	case *Object:
		return x
	case *Function:
		if x.Props == nil {
			x.Props = NewObjectValue()
		}
		return x.Props
	case *Array:
		if key == "length" {
			hp.Throw("TypeError", "cannot %s on an array", op)
			return nil
		}
		if x.Props == nil {
			x.Props = NewObjectValue()
		}
		return x.Props
	}
	hp.Throw("TypeError", "cannot %s on a non-object", op)
	return nil
}

// noProps stands in for a missing property bag. It is never written.
var noProps = NewObjectValue()

// props returns the property bag of an object, function or array for
// reading.
func props(v any) (*Object, bool) {
	var bag *Object
	switch x := v.(type) {
	case *Object:
		return x, true
	case *Function:
		bag = x.Props
	case *Array:
		bag = x.Props
	default:
		return nil, false
	}
	if bag == nil {
		return noProps, true
	}
	return bag, true
}

// GetProperty returns the property key. An array's length is computed from
// its elements.
func (hp *Heap) GetProperty(obj scriptx.Handle, key string) scriptx.Handle {
	v := hp.Get(obj)
	if x, ok := v.(*Array); ok && key == "length" {
		return hp.table.Insert(Int(int64(len(x.Items))))
	}
	if o, ok := props(v); ok {
		return hp.IncRef(Handle(o.Props[key]))
	}
	hp.Throw("TypeError", "cannot read property %q of a non-object", key)
	return nil
}

func (hp *Heap) SetProperty(obj scriptx.Handle, key string, v scriptx.Handle) {
	o := hp.object(obj, "set property "+key, key)
	if o == nil {
		return
	}
	r := Ref(v)
	hp.table.IncRef(r)
	old, exists := o.Props[key]
	if !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Props[key] = r
	if exists {
		hp.table.DecRef(old)
	}
}

func (hp *Heap) HasProperty(obj scriptx.Handle, key string) bool {
	v := hp.Get(obj)
	if _, ok := v.(*Array); ok && key == "length" {
		return true
	}
	if o, ok := props(v); ok {
		_, has := o.Props[key]
		return has
	}
	hp.Throw("TypeError", "cannot look up property %q of a non-object", key)
	return false
}

func (hp *Heap) DeleteProperty(obj scriptx.Handle, key string) {
	o := hp.object(obj, "delete property "+key, key)
	if o == nil {
		return
	}
	old, ok := o.Props[key]
	if !ok {
		return
	}
	delete(o.Props, key)
	for i, k := range o.Keys {
		if k == key {
			o.Keys = append(o.Keys[:i], o.Keys[i+1:]...)
			break
		}
	}
	hp.table.DecRef(old)
}

// Keys returns property names in insertion order. An array lists its named
// properties only.
func (hp *Heap) Keys(obj scriptx.Handle) []string {
	if o, ok := props(hp.Get(obj)); ok {
		return append([]string{}, o.Keys...)
	}
	hp.Throw("TypeError", "cannot list keys of a non-object")
	return nil
}

// InstanceOf is always false: heap values have no constructors.
func (hp *Heap) InstanceOf(_, _ scriptx.Handle) bool {
	return false
}

// =============================================================================
// ARRAYS
// =============================================================================

func (hp *Heap) array(h scriptx.Handle) *Array {
	arr, ok := hp.Get(h).(*Array)
	if !ok {
		hp.Throw("TypeError", "value is not an array")
	}
	return arr
}

func (hp *Heap) Length(arr scriptx.Handle) int {
	if a := hp.array(arr); a != nil {
		return len(a.Items)
	}
	return 0
}

func (hp *Heap) Index(arr scriptx.Handle, i int) scriptx.Handle {
	a := hp.array(arr)
	if a == nil || i < 0 || i >= len(a.Items) {
		return nil
	}
	return hp.IncRef(Handle(a.Items[i]))
}

// SetIndex stores v at i, padding the array with nulls when i is past the
// end.
func (hp *Heap) SetIndex(arr scriptx.Handle, i int, v scriptx.Handle) {
	a := hp.array(arr)
	if a == nil || i < 0 {
		return
	}
	for len(a.Items) <= i {
		a.Items = append(a.Items, 0)
	}
	r := Ref(v)
	hp.table.IncRef(r)
	old := a.Items[i]
	a.Items[i] = r
	hp.table.DecRef(old)
}

func (hp *Heap) Append(arr scriptx.Handle, v scriptx.Handle) {
	a := hp.array(arr)
	if a == nil {
		return
	}
	r := Ref(v)
	hp.table.IncRef(r)
	a.Items = append(a.Items, r)
}

func (hp *Heap) Clear(arr scriptx.Handle) {
	a := hp.array(arr)
	if a == nil {
		return
	}
	items := a.Items
	a.Items = nil
	for _, r := range items {
		hp.table.DecRef(r)
	}
}

// =============================================================================
// BYTE BUFFERS
// =============================================================================

func (hp *Heap) SharedBuffers() bool { return hp.shared }

func (hp *Heap) bytes(b *Buffer) []byte {
	if b.Mem != nil {
		return b.Mem.Read()
	}
	return b.Data
}

// BufferBytes returns the buffer's memory on shared heaps and a copy
// otherwise.
func (hp *Heap) BufferBytes(buf scriptx.Handle) []byte {
	b, ok := hp.Get(buf).(*Buffer)
	if !ok {
		hp.Throw("TypeError", "value is not a byte buffer")
		return nil
	}
	data := hp.bytes(b)
	if hp.shared {
		return data
	}
	return append([]byte(nil), data...)
}

func (hp *Heap) BufferType(buf scriptx.Handle) scriptx.BufferType {
	if b, ok := hp.Get(buf).(*Buffer); ok {
		return b.Type
	}
	return scriptx.BufferUnknown
}

func (hp *Heap) WriteBuffer(buf scriptx.Handle, data []byte) {
	b, ok := hp.Get(buf).(*Buffer)
	if !ok {
		hp.Throw("TypeError", "value is not a byte buffer")
		return
	}
	if b.Mem != nil {
		if !b.Mem.Write(data) {
			hp.Throw("RangeError", "write of %d bytes is out of memory bounds", len(data))
		}
		return
	}
	copy(b.Data, data)
}

// =============================================================================
// WEAK REFERENCES
// =============================================================================

// NewWeak uses the ref itself as the token; the generation in the ref makes
// it stale once the value is freed.
func (hp *Heap) NewWeak(h scriptx.Handle) any {
	return Ref(h)
}

func (hp *Heap) DerefWeak(w any) scriptx.Handle {
	r, _ := w.(arena.Ref)
	if hp.table == nil || !hp.table.Valid(r) {
		return nil
	}
	return hp.IncRef(Handle(r))
}

func (hp *Heap) ReleaseWeak(any) {}
