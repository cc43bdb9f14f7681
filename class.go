package scriptx

import "go.uber.org/zap"

// =============================================================================
// CLASS BUILDER
// =============================================================================

// ClassConstructor builds the Go instance behind a new script object.
type ClassConstructor func(args *Arguments) (any, error)

// ClassMethod runs with the Go instance of the object it was created for.
type ClassMethod func(self any, args *Arguments) (Value, error)

type classMethod struct {
	name string
	fn   ClassMethod
}

type staticMethod struct {
	name string
	fn   Callback
}

type classProperty struct {
	name  string
	value any
}

// ClassBuilder describes a script class backed by Go values.
//
// Backends have no common notion of native classes, so Build returns a
// factory: calling it returns a new object carrying the class properties
// and one function per method, each bound to the Go instance the
// constructor returned. Static members are set on the factory itself.
//
// Example usage:
//
//	point, err := scriptx.NewClassBuilder("Point").
//	    Constructor(newPoint).
//	    Method("norm", pointNorm).
//	    StaticProperty("origin", []int{0, 0}).
//	    Build(sc)
//	if err != nil { return err }
//	sc.Set("Point", point)
type ClassBuilder struct {
	name          string
	constructor   ClassConstructor
	methods       []classMethod
	properties    []classProperty
	staticMethods []staticMethod
	staticProps   []classProperty

	// sync copies instance state between Go and the script object; set by
	// reflection binding.
	sync func(sc *EngineScope, self any, obj Object, toScript bool) error
}

// NewClassBuilder starts a class called name.
func NewClassBuilder(name string) *ClassBuilder {
	return &ClassBuilder{name: name}
}

// Name returns the class name.
func (cb *ClassBuilder) Name() string { return cb.name }

// Constructor sets the function building Go instances.
func (cb *ClassBuilder) Constructor(fn ClassConstructor) *ClassBuilder {
	cb.constructor = fn
	return cb
}

// Method adds an instance method.
func (cb *ClassBuilder) Method(name string, fn ClassMethod) *ClassBuilder {
	cb.methods = append(cb.methods, classMethod{name: name, fn: fn})
	return cb
}

// StaticMethod adds a function to the factory.
func (cb *ClassBuilder) StaticMethod(name string, fn Callback) *ClassBuilder {
	cb.staticMethods = append(cb.staticMethods, staticMethod{name: name, fn: fn})
	return cb
}

// Property adds a property every instance starts with. v is marshaled once
// per instance.
func (cb *ClassBuilder) Property(name string, v any) *ClassBuilder {
	cb.properties = append(cb.properties, classProperty{name: name, value: v})
	return cb
}

// StaticProperty adds a property to the factory.
func (cb *ClassBuilder) StaticProperty(name string, v any) *ClassBuilder {
	cb.staticProps = append(cb.staticProps, classProperty{name: name, value: v})
	return cb
}

func (cb *ClassBuilder) validate() error {
	if cb.name == "" {
		return newError(KindConstruction, "build class", "class name is empty")
	}
	if cb.constructor == nil {
		return newError(KindConstruction, "build class", "class %s has no constructor", cb.name)
	}
	seen := make(map[string]bool, len(cb.methods)+len(cb.properties))
	for _, m := range cb.methods {
		if m.fn == nil {
			return newError(KindConstruction, "build class", "method %s.%s is nil", cb.name, m.name)
		}
		if seen[m.name] {
			return newError(KindConstruction, "build class", "member %s.%s defined twice", cb.name, m.name)
		}
		seen[m.name] = true
	}
	for _, p := range cb.properties {
		if seen[p.name] {
			return newError(KindConstruction, "build class", "member %s.%s defined twice", cb.name, p.name)
		}
		seen[p.name] = true
	}
	return nil
}

// Build returns the class factory.
func (cb *ClassBuilder) Build(sc *EngineScope) (Function, error) {
	if err := cb.validate(); err != nil {
		return Function{}, err
	}
	ctor, err := sc.NewFunction(cb.construct)
	if err != nil {
		return Function{}, err
	}
	statics := ctor.AsObject()
	defer statics.Release()

	for _, m := range cb.staticMethods {
		fn, err := sc.NewFunction(m.fn)
		if err == nil {
			err = statics.Set(m.name, fn)
			fn.Release()
		}
		if err != nil {
			ctor.Release()
			return Function{}, wrapError(KindConstruction, "build class", err)
		}
	}
	for _, p := range cb.staticProps {
		if err := cb.setProperty(sc, statics, p); err != nil {
			ctor.Release()
			return Function{}, err
		}
	}
	sc.engine.logger.Debug("class built", zap.String("class", cb.name))
	return ctor, nil
}

func (cb *ClassBuilder) setProperty(sc *EngineScope, obj Object, p classProperty) error {
	v, err := sc.Marshal(p.value)
	if err != nil {
		return wrapError(KindConstruction, "build class", err)
	}
	defer v.Release()
	return obj.Set(p.name, v)
}

func (cb *ClassBuilder) construct(args *Arguments) (Value, error) {
	self, err := cb.constructor(args)
	if err != nil {
		return Value{}, err
	}
	obj, err := cb.instantiate(args.Scope(), self)
	if err != nil {
		return Value{}, err
	}
	return Value{obj.local}, nil
}

// instantiate returns a new object bound to self.
func (cb *ClassBuilder) instantiate(sc *EngineScope, self any) (Object, error) {
	obj, err := sc.NewObject()
	if err != nil {
		return Object{}, err
	}
	fail := func(err error) (Object, error) {
		obj.Release()
		return Object{}, err
	}

	for _, p := range cb.properties {
		if err := cb.setProperty(sc, obj, p); err != nil {
			return fail(err)
		}
	}
	if cb.sync != nil {
		if err := cb.sync(sc, self, obj, true); err != nil {
			return fail(err)
		}
	}
	for _, m := range cb.methods {
		m := m
		fn, err := sc.NewFunction(func(args *Arguments) (Value, error) {
			return cb.invoke(m, self, args)
		})
		if err != nil {
			return fail(err)
		}
		err = obj.Set(m.name, fn)
		fn.Release()
		if err != nil {
			return fail(err)
		}
	}
	return obj, nil
}

// invoke calls a method. When the call has an object receiver and the class
// syncs state, the receiver's fields are read before the call and written
// back after it.
func (cb *ClassBuilder) invoke(m classMethod, self any, args *Arguments) (Value, error) {
	var this Object
	if cb.sync != nil && args.HasThis() {
		recv := args.This()
		if recv.Kind() == KindObject {
			this, _ = recv.AsObject()
			defer this.Release()
		}
		recv.Release()
	}
	sc := args.Scope()
	if this.IsValid() {
		if err := cb.sync(sc, self, this, false); err != nil {
			return Value{}, err
		}
	}
	ret, err := m.fn(self, args)
	if err != nil {
		return Value{}, err
	}
	if this.IsValid() {
		if err := cb.sync(sc, self, this, true); err != nil {
			ret.Release()
			return Value{}, err
		}
	}
	return ret, nil
}
