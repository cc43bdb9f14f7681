package scriptx

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Marshaler is implemented by types that can turn themselves into a script value.
type Marshaler interface {
	MarshalScript(sc *EngineScope) (Value, error)
}

// Unmarshaler is implemented by types that can read themselves from a script value.
type Unmarshaler interface {
	UnmarshalScript(v Value) error
}

var callbackType = reflect.TypeOf(Callback(nil))

// Marshal returns the script value encoding of v.
//
// Marshal uses the following mappings:
//   - nil, nil pointers -> null
//   - Referent (Value, Object, ...) -> the same value
//   - Callback or func(*Arguments) (Value, error) -> Function
//   - bool -> Boolean
//   - signed and unsigned integers -> Number (exact for int64)
//   - float32, float64 -> Number
//   - string -> String
//   - []byte -> ByteBuffer
//   - slice/array -> Array
//   - map, struct -> Object
//
// Struct fields use their name unless a "js" or "json" tag says otherwise;
// "-" skips a field and ",omitempty" skips zero values.
func (sc *EngineScope) Marshal(v any) (Value, error) {
	if v == nil {
		return sc.Null(), nil
	}
	return sc.marshal(reflect.ValueOf(v))
}

func (sc *EngineScope) marshal(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return sc.Null(), nil
		}
		rv = rv.Elem()
	}

	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case Marshaler:
			return x.MarshalScript(sc)
		case Referent:
			return x.ref().AsValue(), nil
		}
		if rv.Type().ConvertibleTo(callbackType) && rv.Kind() == reflect.Func {
			if rv.IsNil() {
				return sc.Null(), nil
			}
			fn, err := sc.NewFunction(rv.Convert(callbackType).Interface().(Callback))
			return Value{fn.local}, err
		}
	}

	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return sc.Null(), nil
		}
		return sc.marshal(rv.Elem())
	}

	var (
		l   Referent
		err error
	)
	switch rv.Kind() {
	case reflect.Bool:
		l, err = sc.NewBoolean(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l, err = sc.NewInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			l, err = sc.NewInt64(int64(u))
		} else {
			l, err = sc.NewNumber(float64(u))
		}
	case reflect.Float32, reflect.Float64:
		l, err = sc.NewNumber(rv.Float())
	case reflect.String:
		l, err = sc.NewString(rv.String())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			l, err = sc.NewByteBuffer(append([]byte(nil), rv.Bytes()...))
			break
		}
		return sc.marshalList(rv)
	case reflect.Array:
		return sc.marshalList(rv)
	case reflect.Map:
		return sc.marshalMap(rv)
	case reflect.Struct:
		return sc.marshalStruct(rv)
	default:
		return Value{}, newError(KindConversion, "marshal", "unsupported type: %v", rv.Type())
	}
	if err != nil {
		return Value{}, err
	}
	return Value{l.ref()}, nil
}

// marshalList marshals a Go slice or array to an Array.
func (sc *EngineScope) marshalList(rv reflect.Value) (Value, error) {
	arr, err := sc.NewArray(0)
	if err != nil {
		return Value{}, err
	}
	for i := 0; i < rv.Len(); i++ {
		elem, err := sc.marshal(rv.Index(i))
		if err == nil {
			err = arr.Add(elem)
			elem.Release()
		}
		if err != nil {
			arr.Release()
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return Value{arr.local}, nil
}

// marshalMap marshals a Go map to an Object.
func (sc *EngineScope) marshalMap(rv reflect.Value) (Value, error) {
	obj, err := sc.NewObject()
	if err != nil {
		return Value{}, err
	}
	iter := rv.MapRange()
	for iter.Next() {
		key := fmt.Sprintf("%v", iter.Key().Interface())
		if err := sc.setField(obj, key, iter.Value()); err != nil {
			obj.Release()
			return Value{}, err
		}
	}
	return Value{obj.local}, nil
}

// marshalStruct marshals a Go struct to an Object.
func (sc *EngineScope) marshalStruct(rv reflect.Value) (Value, error) {
	obj, err := sc.NewObject()
	if err != nil {
		return Value{}, err
	}
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := fieldName(field)
		if skip || (omitEmpty && rv.Field(i).IsZero()) {
			continue
		}
		if err := sc.setField(obj, name, rv.Field(i)); err != nil {
			obj.Release()
			return Value{}, err
		}
	}
	return Value{obj.local}, nil
}

func (sc *EngineScope) setField(obj Object, key string, rv reflect.Value) error {
	val, err := sc.marshal(rv)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	defer val.Release()
	return obj.Set(key, val)
}

// fieldName reads the "js" tag, then the "json" tag.
func fieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("js")
	if tag == "" {
		tag = field.Tag.Get("json")
	}
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// =============================================================================
// UNMARSHAL
// =============================================================================

// Unmarshal stores the Go form of v in the value pointed to by out. It needs
// an active scope for v's engine.
//
// When unmarshaling into an interface, Unmarshal stores one of:
//   - nil for null
//   - bool for Boolean
//   - int64 for integral numbers, float64 otherwise
//   - string for String
//   - []byte for ByteBuffer
//   - []any for Array
//   - map[string]any for Object
func Unmarshal(v Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return newError(KindConversion, "unmarshal", "target must be a non-nil pointer")
	}
	return unmarshal(v, rv.Elem())
}

func unmarshal(v Value, rv reflect.Value) error {
	if rv.CanAddr() {
		if u, ok := rv.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalScript(v)
		}
	}
	if rv.Type() == reflect.TypeOf(Value{}) {
		rv.Set(reflect.ValueOf(v.Copy()))
		return nil
	}

	if rv.Kind() == reflect.Ptr {
		if v.IsNull() {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return unmarshal(v, rv.Elem())
	}

	kind := v.Kind()
	mismatch := func() error {
		return newError(KindConversion, "unmarshal", "cannot unmarshal %s into Go %v", kind, rv.Type())
	}

	switch rv.Kind() {
	case reflect.Bool:
		b, err := As[Boolean](v)
		if err != nil {
			return mismatch()
		}
		defer b.Release()
		x, err := b.Value()
		if err != nil {
			return err
		}
		rv.SetBool(x)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := As[Number](v)
		if err != nil {
			return mismatch()
		}
		defer n.Release()
		x, err := n.Int64()
		if err != nil {
			return err
		}
		if rv.OverflowInt(x) {
			return newError(KindConversion, "unmarshal", "%d overflows Go %v", x, rv.Type())
		}
		rv.SetInt(x)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := As[Number](v)
		if err != nil {
			return mismatch()
		}
		defer n.Release()
		x, err := n.Int64()
		if err != nil {
			return err
		}
		if x < 0 || rv.OverflowUint(uint64(x)) {
			return newError(KindConversion, "unmarshal", "%d overflows Go %v", x, rv.Type())
		}
		rv.SetUint(uint64(x))

	case reflect.Float32, reflect.Float64:
		n, err := As[Number](v)
		if err != nil {
			return mismatch()
		}
		defer n.Release()
		x, err := n.Float64()
		if err != nil {
			return err
		}
		rv.SetFloat(x)

	case reflect.String:
		s, err := As[String](v)
		if err != nil {
			return mismatch()
		}
		defer s.Release()
		x, err := s.Value()
		if err != nil {
			return err
		}
		rv.SetString(x)

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 && kind == KindByteBuffer {
			data, err := bufferBytes(v)
			if err != nil {
				return err
			}
			rv.SetBytes(data)
			return nil
		}
		if kind == KindNull {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		arr, err := As[Array](v)
		if err != nil {
			return mismatch()
		}
		defer arr.Release()
		n, err := arr.Size()
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(rv.Type(), n, n)
		if err := unmarshalElements(arr, slice, n); err != nil {
			return err
		}
		rv.Set(slice)

	case reflect.Array:
		arr, err := As[Array](v)
		if err != nil {
			return mismatch()
		}
		defer arr.Release()
		n, err := arr.Size()
		if err != nil {
			return err
		}
		return unmarshalElements(arr, rv, min(n, rv.Len()))

	case reflect.Map:
		return unmarshalMap(v, rv, mismatch)

	case reflect.Struct:
		return unmarshalStruct(v, rv, mismatch)

	case reflect.Interface:
		x, err := toInterface(v)
		if err != nil {
			return err
		}
		if x == nil {
			rv.Set(reflect.Zero(rv.Type()))
		} else {
			rv.Set(reflect.ValueOf(x))
		}

	default:
		return newError(KindConversion, "unmarshal", "unsupported type: %v", rv.Type())
	}
	return nil
}

func unmarshalElements(arr Array, rv reflect.Value, n int) error {
	for i := 0; i < n; i++ {
		elem, err := arr.Get(i)
		if err != nil {
			return err
		}
		err = unmarshal(elem, rv.Index(i))
		elem.Release()
		if err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return nil
}

func unmarshalMap(v Value, rv reflect.Value, mismatch func() error) error {
	obj, err := As[Object](v)
	if err != nil {
		return mismatch()
	}
	defer obj.Release()
	keys, err := obj.KeyNames()
	if err != nil {
		return err
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMap(rv.Type()))
	}
	keyType := rv.Type().Key()
	valueType := rv.Type().Elem()
	for _, key := range keys {
		keyVal := reflect.New(keyType).Elem()
		switch keyType.Kind() {
		case reflect.String:
			keyVal.SetString(key)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			keyVal.SetInt(i)
		default:
			return newError(KindConversion, "unmarshal", "unsupported map key type: %v", keyType)
		}
		prop, err := obj.Get(key)
		if err != nil {
			return err
		}
		valueVal := reflect.New(valueType).Elem()
		err = unmarshal(prop, valueVal)
		prop.Release()
		if err != nil {
			return fmt.Errorf("map value for key %s: %w", key, err)
		}
		rv.SetMapIndex(keyVal, valueVal)
	}
	return nil
}

func unmarshalStruct(v Value, rv reflect.Value, mismatch func() error) error {
	obj, err := As[Object](v)
	if err != nil {
		return mismatch()
	}
	defer obj.Release()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, skip := fieldName(field)
		if skip {
			continue
		}
		ok, err := obj.Has(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		prop, err := obj.Get(name)
		if err != nil {
			return err
		}
		err = unmarshal(prop, rv.Field(i))
		prop.Release()
		if err != nil {
			return fmt.Errorf("struct field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bufferBytes(v Value) ([]byte, error) {
	buf, err := As[ByteBuffer](v)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	data, err := buf.Bytes()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// toInterface converts v into the dynamic Go form documented on Unmarshal.
func toInterface(v Value) (any, error) {
	switch v.Kind() {
	case KindNull:
		return nil, nil
	case KindBoolean:
		var b bool
		if err := unmarshal(v, reflect.ValueOf(&b).Elem()); err != nil {
			return nil, err
		}
		return b, nil
	case KindString:
		var s string
		if err := unmarshal(v, reflect.ValueOf(&s).Elem()); err != nil {
			return nil, err
		}
		return s, nil
	case KindNumber:
		n, err := As[Number](v)
		if err != nil {
			return nil, err
		}
		defer n.Release()
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
			return n.Int64()
		}
		return f, nil
	case KindByteBuffer:
		return bufferBytes(v)
	case KindArray:
		var out []any
		if err := unmarshal(v, reflect.ValueOf(&out).Elem()); err != nil {
			return nil, err
		}
		return out, nil
	case KindObject:
		out := map[string]any{}
		if err := unmarshal(v, reflect.ValueOf(&out).Elem()); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, newError(KindConversion, "unmarshal", "%s has no Go form", v.Kind())
	}
}
