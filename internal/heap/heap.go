// Package heap is the host-side value store shared by backends whose
// script values are kept in Go: objects, arrays, strings, numbers and byte
// buffers live in an arena.Table with exact reference counts.
//
// A backend embeds *Heap and adds evaluation and calls on top. Handles are
// arena.Ref; the null handle is nil.
package heap

import (
	"errors"
	"fmt"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/internal/arena"
)

// Heap implements the value half of scriptx.Backend.
type Heap struct {
	table   *arena.Table
	host    scriptx.FunctionHost
	global  arena.Ref
	pending *scriptx.Exception
	shared  bool
}

// New returns a heap holding an empty global object. Freed host functions
// are finalized through host. With shared set, byte buffers expose their
// memory directly; otherwise BufferBytes returns copies.
func New(host scriptx.FunctionHost, shared bool) *Heap {
	hp := &Heap{host: host, shared: shared}
	hp.table = arena.New(hp.free)
	hp.global = hp.table.Insert(NewObjectValue())
	return hp
}

// Close frees every value, finalizing host functions still alive.
func (hp *Heap) Close() {
	if hp.table == nil {
		return
	}
	hp.table.Clear()
	hp.table = nil
	hp.pending = nil
}

// free releases what a dead value referred to.
func (hp *Heap) free(_ arena.Ref, v any) {
	switch x := v.(type) {
	case *Object:
		for _, c := range x.Props {
			hp.table.DecRef(c)
		}
	case *Array:
		for _, c := range x.Items {
			hp.table.DecRef(c)
		}
		if x.Props != nil {
			for _, c := range x.Props.Props {
				hp.table.DecRef(c)
			}
		}
	case *Function:
		if x.Props != nil {
			for _, c := range x.Props.Props {
				hp.table.DecRef(c)
			}
		}
		if x.HostID != 0 {
			hp.host.Finalize(x.HostID)
		}
		if c, ok := x.Target.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// =============================================================================
// HANDLES
// =============================================================================

// Ref returns the arena reference behind h, or 0.
func Ref(h scriptx.Handle) arena.Ref {
	r, _ := h.(arena.Ref)
	return r
}

// Handle returns r as a handle; 0 is the null handle.
func Handle(r arena.Ref) scriptx.Handle {
	if r == 0 {
		return nil
	}
	return r
}

// Insert stores v and returns a new reference to it.
func (hp *Heap) Insert(v any) scriptx.Handle {
	return hp.table.Insert(v)
}

// Get returns the value behind h, or nil for null and freed handles.
func (hp *Heap) Get(h scriptx.Handle) any {
	r := Ref(h)
	if r == 0 || hp.table == nil {
		return nil
	}
	v, _ := hp.table.Get(r)
	return v
}

// Global returns the global object without adding a reference.
func (hp *Heap) Global() *Object {
	v, _ := hp.table.Get(hp.global)
	obj, _ := v.(*Object)
	return obj
}

func (hp *Heap) IncRef(h scriptx.Handle) scriptx.Handle {
	if r := Ref(h); r != 0 && hp.table != nil {
		hp.table.IncRef(r)
	}
	return h
}

func (hp *Heap) DecRef(h scriptx.Handle) {
	if r := Ref(h); r != 0 && hp.table != nil {
		hp.table.DecRef(r)
	}
}

// RefCount returns the reference count behind h, or 0 for null and freed
// handles.
func (hp *Heap) RefCount(h scriptx.Handle) int {
	if hp.table == nil {
		return 0
	}
	return hp.table.RefCount(Ref(h))
}

// LiveHandles returns the number of live values, the global object included.
func (hp *Heap) LiveHandles() int {
	if hp.table == nil {
		return 0
	}
	return hp.table.Len()
}

func (hp *Heap) GlobalObject() scriptx.Handle {
	return hp.IncRef(Handle(hp.global))
}

// =============================================================================
// KIND PREDICATES
// =============================================================================

func (hp *Heap) IsNull(h scriptx.Handle) bool { return hp.Get(h) == nil }

func (hp *Heap) IsString(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(string)
	return ok
}

func (hp *Heap) IsNumber(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(Number)
	return ok
}

func (hp *Heap) IsBoolean(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(bool)
	return ok
}

func (hp *Heap) IsFunction(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(*Function)
	return ok
}

func (hp *Heap) IsArray(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(*Array)
	return ok
}

func (hp *Heap) IsByteBuffer(h scriptx.Handle) bool {
	_, ok := hp.Get(h).(*Buffer)
	return ok
}

// IsObject is true for functions and arrays as well.
func (hp *Heap) IsObject(h scriptx.Handle) bool {
	switch hp.Get(h).(type) {
	case *Object, *Function, *Array:
		return true
	}
	return false
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

func (hp *Heap) CheckException(h scriptx.Handle) (scriptx.Handle, error) {
	if hp.pending == nil {
		return h, nil
	}
	exc := hp.pending
	hp.pending = nil
	hp.DecRef(h)
	return nil, exc
}

func (hp *Heap) RethrowException(exc *scriptx.Exception) {
	hp.pending = exc
}

// Throw makes a new exception pending.
func (hp *Heap) Throw(name, format string, args ...any) {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	hp.pending = &scriptx.Exception{Name: name, Message: format}
}

// Pending returns the pending exception without consuming it.
func (hp *Heap) Pending() *scriptx.Exception {
	return hp.pending
}

// =============================================================================
// INTEROP
// =============================================================================

func (hp *Heap) ToNative(h scriptx.Handle) (scriptx.Handle, error) {
	if h == nil {
		return nil, nil
	}
	r, ok := h.(arena.Ref)
	if !ok {
		return nil, errors.New("heap: handle belongs to another backend")
	}
	if hp.table == nil || !hp.table.Valid(r) {
		return nil, errors.New("heap: handle was freed")
	}
	return h, nil
}

// Equals compares primitives by value and everything else by identity.
func (hp *Heap) Equals(x, y scriptx.Handle) bool {
	vx, vy := hp.Get(x), hp.Get(y)
	switch a := vx.(type) {
	case string:
		s, ok := vy.(string)
		return ok && a == s
	case bool:
		v, ok := vy.(bool)
		return ok && a == v
	case Number:
		n, ok := vy.(Number)
		return ok && a.Equal(n)
	}
	return Ref(x) == Ref(y)
}

func (hp *Heap) Describe(h scriptx.Handle) (string, error) {
	return hp.describe(hp.Get(h))
}
