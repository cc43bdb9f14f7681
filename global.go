package scriptx

// =============================================================================
// GLOBAL REFERENCES
// =============================================================================

type globalRef struct {
	engine *Engine
	handle Handle
	done   bool
}

// drop releases the strong reference once.
func (g *globalRef) drop() {
	if g.done {
		return
	}
	g.done = true
	if g.handle != nil && !g.engine.destroyed.Load() {
		g.engine.backend.DecRef(g.handle)
	}
	g.handle = nil
}

// Global is a strong reference that is not bound to any scope. Creating and
// reading a Global needs an active scope for its engine; the zero value and
// Reset do not.
//
// A Global built from a null, released or collected reference is empty.
// Globals still held when their engine is destroyed are reset by Destroy.
type Global[T Referent] struct {
	ref *globalRef
}

// NewGlobal promotes l to a Global.
func NewGlobal[T Referent](l T) (*Global[T], error) {
	g := &Global[T]{}
	if err := g.Set(l); err != nil {
		return nil, err
	}
	return g, nil
}

// GlobalFromWeak promotes the referent of w to a Global. A collected or
// empty Weak yields an empty Global.
func GlobalFromWeak[T Referent](w *Weak[T]) (*Global[T], error) {
	g := &Global[T]{}
	if w.IsEmpty() {
		return g, nil
	}
	e := w.ref.engine
	if err := e.checkCurrent("global from weak"); err != nil {
		return nil, err
	}
	h := e.backend.DerefWeak(w.ref.token)
	if h == nil {
		return g, nil
	}
	g.ref = e.registerGlobal(h)
	return g, nil
}

// Set replaces the referent with l.
func (g *Global[T]) Set(l T) error {
	lc := l.ref()
	if lc.isNull() {
		g.Reset()
		return nil
	}
	e := lc.s.engine
	if err := e.checkCurrent("global"); err != nil {
		return err
	}
	h := e.backend.IncRef(lc.s.handle)
	g.Reset()
	g.ref = e.registerGlobal(h)
	return nil
}

// Get returns a scope-bound local for the referent.
func (g *Global[T]) Get() (T, error) {
	var zero T
	if g.IsEmpty() {
		return zero, newError(KindNullReference, "global get", "global reference is empty")
	}
	e := g.ref.engine
	if err := e.checkCurrent("global get"); err != nil {
		return zero, err
	}
	return zero.rebind(local{e.newSlot(e.backend.IncRef(g.ref.handle))}).(T), nil
}

// GetValue returns the referent as a Value; an empty Global yields null.
func (g *Global[T]) GetValue() (Value, error) {
	if g.IsEmpty() {
		return Value{}, nil
	}
	e := g.ref.engine
	if err := e.checkCurrent("global get"); err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(e.backend.IncRef(g.ref.handle))}}, nil
}

// Copy returns a second Global to the same referent.
func (g *Global[T]) Copy() (*Global[T], error) {
	out := &Global[T]{}
	if g.IsEmpty() {
		return out, nil
	}
	e := g.ref.engine
	if err := e.checkCurrent("global copy"); err != nil {
		return nil, err
	}
	out.ref = e.registerGlobal(e.backend.IncRef(g.ref.handle))
	return out, nil
}

// IsEmpty reports whether the Global holds nothing.
func (g *Global[T]) IsEmpty() bool {
	return g == nil || g.ref == nil || g.ref.done
}

// Engine returns the referent's engine, or nil when empty.
func (g *Global[T]) Engine() *Engine {
	if g.IsEmpty() {
		return nil
	}
	return g.ref.engine
}

// Reset releases the referent. It needs no active scope.
func (g *Global[T]) Reset() {
	if g == nil || g.ref == nil {
		return
	}
	r := g.ref
	g.ref = nil
	if r.done {
		return
	}
	r.engine.unregisterGlobal(r)
	r.drop()
}

// =============================================================================
// WEAK REFERENCES
// =============================================================================

type weakRef struct {
	engine *Engine
	token  any
}

// Weak refers to a value without keeping it alive. A Weak stays non-empty
// after its referent is collected; Get then fails with a collected
// reference error and GetValue returns null.
type Weak[T Referent] struct {
	ref *weakRef
}

// NewWeak returns a Weak to the referent of l.
func NewWeak[T Referent](l T) (*Weak[T], error) {
	w := &Weak[T]{}
	if err := w.Set(l); err != nil {
		return nil, err
	}
	return w, nil
}

// WeakFromGlobal returns a Weak to the referent of g.
func WeakFromGlobal[T Referent](g *Global[T]) (*Weak[T], error) {
	w := &Weak[T]{}
	if g.IsEmpty() {
		return w, nil
	}
	e := g.ref.engine
	if err := e.checkCurrent("weak from global"); err != nil {
		return nil, err
	}
	w.ref = &weakRef{engine: e, token: e.backend.NewWeak(g.ref.handle)}
	return w, nil
}

// Set replaces the referent with l.
func (w *Weak[T]) Set(l T) error {
	lc := l.ref()
	if lc.isNull() {
		w.Reset()
		return nil
	}
	e := lc.s.engine
	if err := e.checkCurrent("weak"); err != nil {
		return err
	}
	w.Reset()
	w.ref = &weakRef{engine: e, token: e.backend.NewWeak(lc.s.handle)}
	return nil
}

// Get returns a local for the referent if it is still alive.
func (w *Weak[T]) Get() (T, error) {
	var zero T
	if w.IsEmpty() {
		return zero, newError(KindNullReference, "weak get", "weak reference is empty")
	}
	e := w.ref.engine
	if err := e.checkCurrent("weak get"); err != nil {
		return zero, err
	}
	h := e.backend.DerefWeak(w.ref.token)
	if h == nil {
		return zero, newError(KindCollectedReference, "weak get", "referent was collected")
	}
	return zero.rebind(local{e.newSlot(h)}).(T), nil
}

// GetValue returns the referent as a Value, or null once collected.
func (w *Weak[T]) GetValue() (Value, error) {
	if w.IsEmpty() {
		return Value{}, nil
	}
	e := w.ref.engine
	if err := e.checkCurrent("weak get"); err != nil {
		return Value{}, err
	}
	h := e.backend.DerefWeak(w.ref.token)
	if h == nil {
		return Value{}, nil
	}
	return Value{local{e.newSlot(h)}}, nil
}

// IsEmpty reports whether the Weak was never set or has been reset.
func (w *Weak[T]) IsEmpty() bool {
	return w == nil || w.ref == nil
}

// Reset forgets the referent. It needs no active scope.
func (w *Weak[T]) Reset() {
	if w == nil || w.ref == nil {
		return
	}
	r := w.ref
	w.ref = nil
	if !r.engine.destroyed.Load() {
		r.engine.backend.ReleaseWeak(r.token)
	}
}
