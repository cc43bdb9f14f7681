package scriptx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// =============================================================================
// REFLECTION BINDING
// =============================================================================

// ReflectOptions configure BindClass.
type ReflectOptions struct {
	// MethodPrefix keeps only methods whose name starts with it.
	MethodPrefix string

	// IgnoredMethods lists method names to skip.
	IgnoredMethods []string

	// IgnoredFields lists Go field names to skip.
	IgnoredFields []string
}

type ReflectOption func(*ReflectOptions)

// WithMethodPrefix binds only methods whose name starts with prefix.
func WithMethodPrefix(prefix string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.MethodPrefix = prefix
	}
}

// WithIgnoredMethods skips the named methods.
func WithIgnoredMethods(methods ...string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.IgnoredMethods = append(opts.IgnoredMethods, methods...)
	}
}

// WithIgnoredFields skips the named fields.
func WithIgnoredFields(fields ...string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.IgnoredFields = append(opts.IgnoredFields, fields...)
	}
}

// BindClass builds a class from the struct type of prototype. It combines
// BindClassBuilder and Build.
//
//	point, err := scriptx.BindClass(sc, &Point{})
//	if err != nil { return err }
//	sc.Set("Point", point)
func BindClass(sc *EngineScope, prototype any, options ...ReflectOption) (Function, error) {
	cb, err := BindClassBuilder(prototype, options...)
	if err != nil {
		return Function{}, err
	}
	return cb.Build(sc)
}

// BindClassBuilder returns a ClassBuilder for the struct type of prototype,
// open to further customization before Build.
//
// The factory takes either one object of named fields or the exported
// fields in declaration order. Exported fields appear as properties named
// like Marshal names them. Methods with pointer or value receivers are bound
// under their Go names; their arguments are unmarshaled into the parameter
// types and results marshaled back, a trailing error result becoming a
// script exception. Field properties are read into the Go instance before
// each method call made on the object and written back after it.
func BindClassBuilder(prototype any, options ...ReflectOption) (*ClassBuilder, error) {
	opts := &ReflectOptions{}
	for _, option := range options {
		option(opts)
	}

	typ, err := structType(prototype)
	if err != nil {
		return nil, err
	}
	if typ.Name() == "" {
		return nil, errors.New("scriptx: cannot bind an anonymous struct type")
	}

	fields := bindableFields(typ, opts)
	cb := NewClassBuilder(typ.Name()).Constructor(func(args *Arguments) (any, error) {
		ptr := reflect.New(typ)
		if err := initialize(ptr.Elem(), fields, args); err != nil {
			return nil, err
		}
		return ptr.Interface(), nil
	})

	ptrTyp := reflect.PointerTo(typ)
	for i := 0; i < ptrTyp.NumMethod(); i++ {
		method := ptrTyp.Method(i)
		if opts.MethodPrefix != "" && !strings.HasPrefix(method.Name, opts.MethodPrefix) {
			continue
		}
		if contains(opts.IgnoredMethods, method.Name) || isSpecialMethod(method.Name) {
			continue
		}
		cb.Method(method.Name, methodWrapper(method))
	}

	cb.sync = func(sc *EngineScope, self any, obj Object, toScript bool) error {
		rv := reflect.ValueOf(self).Elem()
		if toScript {
			for _, f := range fields {
				if err := sc.setField(obj, f.name, rv.Field(f.index)); err != nil {
					return err
				}
			}
			return nil
		}
		for _, f := range fields {
			if err := readField(obj, f, rv.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
	return cb, nil
}

func structType(prototype any) (reflect.Type, error) {
	if prototype == nil {
		return nil, errors.New("scriptx: cannot bind nil")
	}
	typ, ok := prototype.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(prototype)
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scriptx: cannot bind %v, want a struct", typ)
	}
	return typ, nil
}

type boundField struct {
	index int
	name  string
}

func bindableFields(typ reflect.Type, opts *ReflectOptions) []boundField {
	var fields []boundField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || contains(opts.IgnoredFields, field.Name) {
			continue
		}
		name, _, skip := fieldName(field)
		if skip {
			continue
		}
		fields = append(fields, boundField{index: i, name: name})
	}
	return fields
}

// initialize fills a new instance from constructor arguments: a single
// plain object is read by field name, anything else by position.
func initialize(rv reflect.Value, fields []boundField, args *Arguments) error {
	if args.Len() == 1 {
		arg := args.At(0)
		defer arg.Release()
		if arg.Kind() == KindObject {
			obj, err := arg.AsObject()
			if err != nil {
				return err
			}
			defer obj.Release()
			for _, f := range fields {
				if err := readField(obj, f, rv.Field(f.index)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	for i, f := range fields {
		if i >= args.Len() {
			break
		}
		arg := args.At(i)
		err := unmarshal(arg, rv.Field(f.index))
		arg.Release()
		if err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

// readField unmarshals the property of f into dst when obj has it.
func readField(obj Object, f boundField, dst reflect.Value) error {
	ok, err := obj.Has(f.name)
	if err != nil || !ok {
		return err
	}
	prop, err := obj.Get(f.name)
	if err != nil {
		return err
	}
	defer prop.Release()
	if err := unmarshal(prop, dst); err != nil {
		return fmt.Errorf("field %s: %w", f.name, err)
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// methodWrapper adapts a method of the struct's pointer type.
func methodWrapper(method reflect.Method) ClassMethod {
	mt := method.Type
	params := mt.NumIn() - 1 // receiver
	return func(self any, args *Arguments) (Value, error) {
		in := []reflect.Value{reflect.ValueOf(self)}
		for i := 0; i < params; i++ {
			pt := mt.In(i + 1)
			if mt.IsVariadic() && i == params-1 {
				for j := i; j < args.Len(); j++ {
					pv, err := methodArgument(args, j, pt.Elem())
					if err != nil {
						return Value{}, wrapError(KindConversion, method.Name, err)
					}
					in = append(in, pv)
				}
				break
			}
			pv, err := methodArgument(args, i, pt)
			if err != nil {
				return Value{}, wrapError(KindConversion, method.Name, err)
			}
			in = append(in, pv)
		}
		return methodResult(args.Scope(), method.Func.Call(in))
	}
}

// methodArgument unmarshals argument i into a new value of type t. Missing
// arguments are zero values.
func methodArgument(args *Arguments, i int, t reflect.Type) (reflect.Value, error) {
	pv := reflect.New(t).Elem()
	if i >= args.Len() {
		return pv, nil
	}
	arg := args.At(i)
	defer arg.Release()
	if err := unmarshal(arg, pv); err != nil {
		return pv, fmt.Errorf("argument %d: %w", i, err)
	}
	return pv, nil
}

// methodResult marshals the results of a bound method: none is null, one is
// its value and more become an array.
func methodResult(sc *EngineScope, out []reflect.Value) (Value, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return Value{}, err
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return Value{}, nil
	case 1:
		return sc.marshal(out[0])
	}
	items := make([]any, len(out))
	for i, v := range out {
		items[i] = v.Interface()
	}
	return sc.Marshal(items)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// isSpecialMethod reports methods that belong to Go interfaces rather than
// to the class.
func isSpecialMethod(name string) bool {
	switch name {
	case "String", "Error", "MarshalScript", "UnmarshalScript", "MarshalJSON", "UnmarshalJSON":
		return true
	}
	return false
}
