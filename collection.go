package scriptx

// Array is a scope-bound reference to a script array.
type Array struct {
	local
}

func (Array) targetKind() ValueKind   { return KindArray }
func (Array) rebind(l local) Referent { return Array{l} }

// Copy returns an independent reference to the same array.
func (a Array) Copy() Array { return Array{a.copy()} }

// Move hands the reference over and invalidates a.
func (a *Array) Move() Array {
	out := Array{a.local}
	a.local = local{}
	return out
}

// AsObject widens the array to an Object.
func (a Array) AsObject() Object { return Object{a.copy()} }

// Size returns the number of elements.
func (a Array) Size() (int, error) {
	e, err := a.active("array size")
	if err != nil {
		return 0, err
	}
	n := e.backend.Length(a.s.handle)
	if _, err := e.checkException(nil); err != nil {
		return 0, err
	}
	return n, nil
}

// Get returns the element at index; indexes past the end yield null.
func (a Array) Get(index int) (Value, error) {
	if index < 0 {
		return Value{}, newError(KindConversion, "array get", "negative index %d", index)
	}
	e, err := a.active("array get")
	if err != nil {
		return Value{}, err
	}
	if index >= e.backend.Length(a.s.handle) {
		return Value{}, nil
	}
	h, err := e.checkException(e.backend.Index(a.s.handle, index))
	if err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(h)}}, nil
}

// Set stores v at index, growing the array when index is past the end.
func (a Array) Set(index int, v Referent) error {
	if index < 0 {
		return newError(KindConversion, "array set", "negative index %d", index)
	}
	e, err := a.active("array set")
	if err != nil {
		return err
	}
	h, err := e.argument(v)
	if err != nil {
		return err
	}
	e.backend.SetIndex(a.s.handle, index, h)
	_, err = e.checkException(nil)
	return err
}

// Add appends v.
func (a Array) Add(v Referent) error {
	e, err := a.active("array add")
	if err != nil {
		return err
	}
	h, err := e.argument(v)
	if err != nil {
		return err
	}
	e.backend.Append(a.s.handle, h)
	_, err = e.checkException(nil)
	return err
}

// Clear removes every element.
func (a Array) Clear() error {
	e, err := a.active("array clear")
	if err != nil {
		return err
	}
	e.backend.Clear(a.s.handle)
	_, err = e.checkException(nil)
	return err
}
