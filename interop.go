package scriptx

// Adopt wraps a native handle produced by the scope's backend in a Value,
// taking over the caller's reference. Backend packages use it to expose
// values the Backend contract has no constructor for.
func (sc *EngineScope) Adopt(h Handle) (Value, error) {
	e := sc.engine
	if err := e.checkCurrent("adopt"); err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(h)}}, nil
}

// NativeHandle returns the borrowed native handle behind r, or nil for null
// and released references.
func NativeHandle(r Referent) Handle {
	if r == nil {
		return nil
	}
	return r.ref().handle()
}

// AdoptAs is Adopt for a handle the caller knows to be of kind T. The kind
// is not checked against the backend.
func AdoptAs[T Referent](sc *EngineScope, h Handle) (T, error) {
	e := sc.engine
	if err := e.checkCurrent("adopt"); err != nil {
		var zero T
		return zero, err
	}
	return wrapNarrow[T](e, "adopt", h)
}
