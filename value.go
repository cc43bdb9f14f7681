package scriptx

// Value is an untyped scope-bound reference. The zero Value is null.
type Value struct {
	local
}

func (Value) targetKind() ValueKind   { return KindNull }
func (Value) rebind(l local) Referent { return Value{l} }

// Copy returns an independent reference to the same value.
func (v Value) Copy() Value {
	return Value{v.copy()}
}

// Move hands the reference over and leaves v null.
func (v *Value) Move() Value {
	out := Value{v.local}
	v.local = local{}
	return out
}

// Reset releases the reference; v becomes null.
func (v *Value) Reset() {
	v.Release()
	v.local = local{}
}

// Kind classifies the value.
func (v Value) Kind() ValueKind {
	if !v.valid() {
		return KindNull
	}
	return kindOf(v.s.engine.backend, v.s.handle)
}

// IsNull reports whether v holds no value. Released references are null.
func (v Value) IsNull() bool { return v.isNull() }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.Kind() == KindString }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.Kind() == KindNumber }

// IsBoolean reports whether v holds a boolean.
func (v Value) IsBoolean() bool { return v.Kind() == KindBoolean }

// IsFunction reports whether v holds a callable.
func (v Value) IsFunction() bool { return v.Kind() == KindFunction }

// IsArray reports whether v holds an array.
func (v Value) IsArray() bool { return v.Kind() == KindArray }

// IsByteBuffer reports whether v holds a byte buffer.
func (v Value) IsByteBuffer() bool { return v.Kind() == KindByteBuffer }

// IsObject reports whether v can be narrowed to an Object. Functions and
// arrays are objects too.
func (v Value) IsObject() bool { return kindTraits[KindObject].accepts(v.Kind()) }

// IsUnsupported reports whether v holds a value no other kind describes.
func (v Value) IsUnsupported() bool { return v.Kind() == KindUnsupported }

// AsString narrows v to a String.
func (v Value) AsString() (String, error) { return As[String](v) }

// AsNumber narrows v to a Number.
func (v Value) AsNumber() (Number, error) { return As[Number](v) }

// AsBoolean narrows v to a Boolean.
func (v Value) AsBoolean() (Boolean, error) { return As[Boolean](v) }

// AsObject narrows v to an Object.
func (v Value) AsObject() (Object, error) { return As[Object](v) }

// AsFunction narrows v to a Function.
func (v Value) AsFunction() (Function, error) { return As[Function](v) }

// AsArray narrows v to an Array.
func (v Value) AsArray() (Array, error) { return As[Array](v) }

// AsByteBuffer narrows v to a ByteBuffer.
func (v Value) AsByteBuffer() (ByteBuffer, error) { return As[ByteBuffer](v) }

// AsUnsupported narrows v to an Unsupported.
func (v Value) AsUnsupported() (Unsupported, error) { return As[Unsupported](v) }

// String implements fmt.Stringer. It never fails; describe errors render
// as the kind name.
func (v Value) String() string {
	if v.IsNull() {
		return "null"
	}
	s, err := v.DescribeUTF8()
	if err != nil {
		return "<" + v.Kind().String() + ">"
	}
	return s
}
