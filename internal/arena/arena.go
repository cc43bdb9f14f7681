// Package arena is a reference counted handle table for backends whose
// values live on the host side.
//
// A Ref packs a slot index with the slot's generation, so a Ref that outlived
// its value never resolves to whatever reuses the slot. Ref 0 is invalid.
package arena

import "fmt"

// Ref identifies one live value.
type Ref uint64

func makeRef(index, gen uint32) Ref {
	return Ref(uint64(gen)<<32 | uint64(index))
}

func (r Ref) index() uint32 { return uint32(r) }
func (r Ref) gen() uint32   { return uint32(r >> 32) }

func (r Ref) String() string {
	return fmt.Sprintf("ref(%d#%d)", r.index(), r.gen())
}

type entry struct {
	value any
	refs  int32
	gen   uint32
	live  bool
}

// Table owns values and their reference counts. It is not safe for
// concurrent use.
type Table struct {
	entries []entry
	free    []uint32
	onFree  func(Ref, any)
	live    int
}

// New returns an empty table. onFree, when set, runs for every value whose
// count drops to zero, after the slot has been recycled.
func New(onFree func(Ref, any)) *Table {
	return &Table{
		entries: make([]entry, 1), // index 0 is never handed out
		onFree:  onFree,
	}
}

// Insert stores v with a count of one.
func (t *Table) Insert(v any) Ref {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.entries = append(t.entries, entry{})
		idx = uint32(len(t.entries) - 1)
	}
	e := &t.entries[idx]
	e.gen++
	e.value = v
	e.refs = 1
	e.live = true
	t.live++
	return makeRef(idx, e.gen)
}

func (t *Table) lookup(r Ref) *entry {
	idx := r.index()
	if idx == 0 || int(idx) >= len(t.entries) {
		return nil
	}
	e := &t.entries[idx]
	if !e.live || e.gen != r.gen() {
		return nil
	}
	return e
}

// Get returns the value behind r.
func (t *Table) Get(r Ref) (any, bool) {
	if e := t.lookup(r); e != nil {
		return e.value, true
	}
	return nil, false
}

// Valid reports whether r is live.
func (t *Table) Valid(r Ref) bool {
	return t.lookup(r) != nil
}

// IncRef adds one reference and returns r.
func (t *Table) IncRef(r Ref) Ref {
	if e := t.lookup(r); e != nil {
		e.refs++
	}
	return r
}

// DecRef drops one reference, freeing the value at zero. Stale refs are
// ignored.
func (t *Table) DecRef(r Ref) {
	e := t.lookup(r)
	if e == nil {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	v := e.value
	e.value = nil
	e.live = false
	t.free = append(t.free, r.index())
	t.live--
	if t.onFree != nil {
		t.onFree(r, v)
	}
}

// RefCount returns the count of r, or 0 when r is stale.
func (t *Table) RefCount(r Ref) int {
	if e := t.lookup(r); e != nil {
		return int(e.refs)
	}
	return 0
}

// Len returns the number of live values.
func (t *Table) Len() int {
	return t.live
}

// Clear frees every live value regardless of its count.
func (t *Table) Clear() {
	for i := 1; i < len(t.entries); i++ {
		e := &t.entries[i]
		if !e.live {
			continue
		}
		r := makeRef(uint32(i), e.gen)
		e.refs = 1
		t.DecRef(r)
	}
}
