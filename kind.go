package scriptx

// ValueKind is the engine-neutral category of a value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBoolean
	KindObject
	KindFunction
	KindArray
	KindByteBuffer
	KindUnsupported
)

// kindTrait describes one local kind: its display name and the value kinds
// a Value may hold to be narrowed into it.
type kindTrait struct {
	name    string
	accepts func(ValueKind) bool
}

func only(k ValueKind) func(ValueKind) bool {
	return func(got ValueKind) bool { return got == k }
}

var kindTraits = [...]kindTrait{
	KindNull:    {name: "Null", accepts: func(ValueKind) bool { return true }},
	KindString:  {name: "String", accepts: only(KindString)},
	KindNumber:  {name: "Number", accepts: only(KindNumber)},
	KindBoolean: {name: "Boolean", accepts: only(KindBoolean)},
	KindObject: {name: "Object", accepts: func(k ValueKind) bool {
		return k == KindObject || k == KindFunction || k == KindArray
	}},
	KindFunction:    {name: "Function", accepts: only(KindFunction)},
	KindArray:       {name: "Array", accepts: only(KindArray)},
	KindByteBuffer:  {name: "ByteBuffer", accepts: only(KindByteBuffer)},
	KindUnsupported: {name: "Unsupported", accepts: only(KindUnsupported)},
}

// String returns the kind's display name.
func (k ValueKind) String() string {
	if int(k) < len(kindTraits) {
		return kindTraits[k].name
	}
	return "Invalid"
}

// kindOf classifies a handle. Backends may answer true for several
// predicates (a function is usually also an object), so the order here is
// fixed: the first matching predicate wins.
func kindOf(b KindInspector, h Handle) ValueKind {
	switch {
	case h == nil || b.IsNull(h):
		return KindNull
	case b.IsString(h):
		return KindString
	case b.IsNumber(h):
		return KindNumber
	case b.IsBoolean(h):
		return KindBoolean
	case b.IsFunction(h):
		return KindFunction
	case b.IsArray(h):
		return KindArray
	case b.IsByteBuffer(h):
		return KindByteBuffer
	case b.IsObject(h):
		return KindObject
	default:
		return KindUnsupported
	}
}
