package scriptx

// Object is a scope-bound reference to a script object. Functions and arrays
// narrow to Object as well.
type Object struct {
	local
}

func (Object) targetKind() ValueKind   { return KindObject }
func (Object) rebind(l local) Referent { return Object{l} }

// Copy returns an independent reference to the same object.
func (o Object) Copy() Object { return Object{o.copy()} }

// Move hands the reference over and invalidates o.
func (o *Object) Move() Object {
	out := Object{o.local}
	o.local = local{}
	return out
}

// Get returns the property key, or null when it is absent.
func (o Object) Get(key string) (Value, error) {
	e, err := o.active("object get")
	if err != nil {
		return Value{}, err
	}
	h, err := e.checkException(e.backend.GetProperty(o.s.handle, key))
	if err != nil {
		return Value{}, err
	}
	return Value{local{e.newSlot(h)}}, nil
}

// Set assigns v to the property key. A null v stores the null value.
func (o Object) Set(key string, v Referent) error {
	e, err := o.active("object set")
	if err != nil {
		return err
	}
	h, err := e.argument(v)
	if err != nil {
		return err
	}
	e.backend.SetProperty(o.s.handle, key, h)
	_, err = e.checkException(nil)
	return err
}

// Has reports whether the property key exists.
func (o Object) Has(key string) (bool, error) {
	e, err := o.active("object has")
	if err != nil {
		return false, err
	}
	ok := e.backend.HasProperty(o.s.handle, key)
	if _, err := e.checkException(nil); err != nil {
		return false, err
	}
	return ok, nil
}

// Remove deletes the property key. Removing a missing key is not an error.
func (o Object) Remove(key string) error {
	e, err := o.active("object remove")
	if err != nil {
		return err
	}
	e.backend.DeleteProperty(o.s.handle, key)
	_, err = e.checkException(nil)
	return err
}

// KeyNames returns the object's own enumerable property names.
func (o Object) KeyNames() ([]string, error) {
	e, err := o.active("object keys")
	if err != nil {
		return nil, err
	}
	keys := e.backend.Keys(o.s.handle)
	if _, err := e.checkException(nil); err != nil {
		return nil, err
	}
	return keys, nil
}

// Keys returns the object's own enumerable property names as Strings.
func (o Object) Keys() ([]String, error) {
	names, err := o.KeyNames()
	if err != nil {
		return nil, err
	}
	e := o.s.engine
	out := make([]String, 0, len(names))
	for _, name := range names {
		h, err := e.backend.NewString(name)
		if err != nil {
			return nil, wrapError(KindConstruction, "object keys", err)
		}
		out = append(out, String{local{e.newSlot(h)}})
	}
	return out, nil
}

// InstanceOf reports whether o was constructed by ctor.
func (o Object) InstanceOf(ctor Referent) (bool, error) {
	e, err := o.active("instanceof")
	if err != nil {
		return false, err
	}
	c, err := e.argument(ctor)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}
	ok := e.backend.InstanceOf(o.s.handle, c)
	if _, err := e.checkException(nil); err != nil {
		return false, err
	}
	return ok, nil
}
