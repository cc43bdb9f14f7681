package scriptx

import (
	"math"
	"sync"
	"sync/atomic"
)

// handleStore keeps host function capsules alive while a native function
// object refers to them. Backends only ever see the int32 id, which fits the
// smallest native "magic" slot any interpreter offers.
//
// Deletion can be triggered by a garbage collector cleanup running on another
// goroutine, so the store is safe for concurrent use.
type handleStore struct {
	capsules sync.Map     // map[int32]*FunctionData
	nextID   atomic.Int32 // 0 is reserved as invalid
}

func newHandleStore() *handleStore {
	return &handleStore{}
}

// Store registers data and returns its id.
func (hs *handleStore) Store(data *FunctionData) int32 {
	id := hs.nextID.Add(1)
	if id <= 0 || id == math.MaxInt32 {
		panic("scriptx: handle store id overflow, too many functions registered")
	}
	data.id = id
	hs.capsules.Store(id, data)
	return id
}

// Load returns the capsule registered under id.
func (hs *handleStore) Load(id int32) (*FunctionData, bool) {
	v, ok := hs.capsules.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*FunctionData), true
}

// Delete removes the capsule registered under id. It reports whether this
// call did the removal, so finalization runs once however often it is
// requested.
func (hs *handleStore) Delete(id int32) bool {
	_, ok := hs.capsules.LoadAndDelete(id)
	return ok
}

// Clear removes every capsule and returns how many were still registered.
func (hs *handleStore) Clear() int {
	n := 0
	hs.capsules.Range(func(key, _ any) bool {
		if _, ok := hs.capsules.LoadAndDelete(key); ok {
			n++
		}
		return true
	})
	return n
}

// Count returns the number of registered capsules.
func (hs *handleStore) Count() int {
	count := 0
	hs.capsules.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
