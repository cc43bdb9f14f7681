package scriptx

// =============================================================================
// REFERENCE CORE
// =============================================================================

// slot is one owned native reference. Every local kind embeds a pointer to a
// slot, so copy, move and release are written once for all of them.
type slot struct {
	engine *Engine
	handle Handle
	dead   bool
	host   []byte // host-side copy of a non-shared byte buffer
}

// release drops the slot's reference exactly once.
func (sl *slot) release() {
	if sl == nil || sl.dead {
		return
	}
	sl.dead = true
	h := sl.handle
	sl.handle = nil
	sl.host = nil
	sl.engine.liveLocals.Add(-1)
	if h != nil && !sl.engine.destroyed.Load() {
		sl.engine.backend.DecRef(h)
	}
}

// newSlot takes ownership of h. The slot is registered with the innermost
// scope of e, whose exit releases it.
func (e *Engine) newSlot(h Handle) *slot {
	sl := &slot{engine: e, handle: h}
	e.liveLocals.Add(1)
	if sc := e.stack.innermost(e); sc != nil {
		sc.own(sl)
	}
	return sl
}

// local is the reference core embedded by Value and every narrow kind.
//
// Assigning a local aliases the same owner; use Copy for an independent
// reference and Move to hand ownership over.
type local struct {
	s *slot
}

// Referent is implemented by Value and every narrow kind. The set is closed.
type Referent interface {
	ref() local
	targetKind() ValueKind
	rebind(l local) Referent
}

func (l local) ref() local { return l }

func (l local) valid() bool { return l.s != nil && !l.s.dead }

func (l local) handle() Handle {
	if !l.valid() {
		return nil
	}
	return l.s.handle
}

func (l local) isNull() bool {
	if !l.valid() || l.s.handle == nil {
		return true
	}
	return l.s.engine.backend.IsNull(l.s.handle)
}

// copy returns a new owner of the same handle.
func (l local) copy() local {
	if !l.valid() {
		return local{}
	}
	e := l.s.engine
	if l.s.handle == nil {
		return local{e.newSlot(nil)}
	}
	return local{e.newSlot(e.backend.IncRef(l.s.handle))}
}

// active resolves the engine for an operation and checks that it is current.
func (l local) active(op string) (*Engine, error) {
	if !l.valid() {
		return nil, newError(KindNullReference, op, "reference is empty or released")
	}
	e := l.s.engine
	if err := e.checkCurrent(op); err != nil {
		return nil, err
	}
	return e, nil
}

// IsValid reports whether the reference still holds a handle. Released,
// moved-from and scope-expired references are invalid.
func (l local) IsValid() bool {
	return l.valid()
}

// Engine returns the engine the reference belongs to, or nil.
func (l local) Engine() *Engine {
	if l.s == nil {
		return nil
	}
	return l.s.engine
}

// Release drops the reference. Releasing twice, or releasing an empty
// reference, does nothing.
func (l local) Release() {
	l.s.release()
}

// Equals reports backend equality. Two nulls are equal; a null is never
// equal to a non-null value. A nil other counts as null.
func (l local) Equals(other Referent) bool {
	if other == nil {
		return l.isNull()
	}
	o := other.ref()
	an, bn := l.isNull(), o.isNull()
	if an || bn {
		return an && bn
	}
	if l.s.engine != o.s.engine {
		return false
	}
	return l.s.engine.backend.Equals(l.s.handle, o.s.handle)
}

// Describe converts the value into a String the way the script would.
func (l local) Describe() (String, error) {
	e, err := l.active("describe")
	if err != nil {
		return String{}, err
	}
	s, err := e.backend.Describe(l.s.handle)
	if _, perr := e.backend.CheckException(nil); perr != nil {
		return String{}, perr
	}
	if err != nil {
		return String{}, wrapError(KindConversion, "describe", err)
	}
	h, err := e.backend.NewString(s)
	if err != nil {
		return String{}, wrapError(KindConstruction, "describe", err)
	}
	return String{local{e.newSlot(h)}}, nil
}

// DescribeUTF8 is Describe returning a Go string.
func (l local) DescribeUTF8() (string, error) {
	e, err := l.active("describe")
	if err != nil {
		return "", err
	}
	s, err := e.backend.Describe(l.s.handle)
	if _, perr := e.backend.CheckException(nil); perr != nil {
		return "", perr
	}
	if err != nil {
		return "", wrapError(KindConversion, "describe", err)
	}
	return s, nil
}

// AsValue widens the reference to a Value holding one more reference.
func (l local) AsValue() Value {
	return Value{l.copy()}
}

// As narrows v to the kind T. It fails with a cast error when v holds a
// different kind; the result holds its own reference.
func As[T Referent](v Value) (T, error) {
	var zero T
	want := zero.targetKind()
	if want == KindNull {
		return zero.rebind(v.copy()).(T), nil
	}
	got := v.Kind()
	if !kindTraits[want].accepts(got) {
		return zero, castError("as", got, want)
	}
	if _, err := v.active("as"); err != nil {
		return zero, err
	}
	return zero.rebind(v.copy()).(T), nil
}

// wrapNarrow adopts h as a narrow kind. Engines in debug mode reject nil.
func wrapNarrow[T Referent](e *Engine, op string, h Handle) (T, error) {
	var zero T
	if h == nil && e.debug {
		return zero, newError(KindNullReference, op, "%s built from a null handle", zero.targetKind())
	}
	return zero.rebind(local{e.newSlot(h)}).(T), nil
}
