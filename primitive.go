package scriptx

import "math"

// =============================================================================
// STRING
// =============================================================================

// String is a scope-bound reference to a script string.
type String struct {
	local
}

func (String) targetKind() ValueKind   { return KindString }
func (String) rebind(l local) Referent { return String{l} }

// Copy returns an independent reference to the same string.
func (s String) Copy() String { return String{s.copy()} }

// Move hands the reference over and invalidates s.
func (s *String) Move() String {
	out := String{s.local}
	s.local = local{}
	return out
}

// Value returns the string contents.
func (s String) Value() (string, error) {
	e, err := s.active("string")
	if err != nil {
		return "", err
	}
	return e.backend.ToString(s.s.handle), nil
}

// String implements fmt.Stringer.
func (s String) String() string {
	v, _ := s.Value()
	return v
}

// =============================================================================
// NUMBER
// =============================================================================

// Number is a scope-bound reference to a script number.
type Number struct {
	local
}

func (Number) targetKind() ValueKind   { return KindNumber }
func (Number) rebind(l local) Referent { return Number{l} }

// Copy returns an independent reference to the same number.
func (n Number) Copy() Number { return Number{n.copy()} }

// Move hands the reference over and invalidates n.
func (n *Number) Move() Number {
	out := Number{n.local}
	n.local = local{}
	return out
}

// Float64 returns the number as a float64.
func (n Number) Float64() (float64, error) {
	e, err := n.active("number")
	if err != nil {
		return 0, err
	}
	return e.backend.ToFloat64(n.s.handle), nil
}

// Float32 returns the number as a float32.
func (n Number) Float32() (float32, error) {
	f, err := n.Float64()
	return float32(f), err
}

// Int64 returns the number as an int64. Numbers built from an int64 round
// trip exactly.
func (n Number) Int64() (int64, error) {
	e, err := n.active("number")
	if err != nil {
		return 0, err
	}
	return e.backend.ToInt64(n.s.handle), nil
}

// Int32 returns the number truncated to an int32.
func (n Number) Int32() (int32, error) {
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return int32(uint32(i)), nil
	}
	return int32(i), nil
}

// =============================================================================
// BOOLEAN
// =============================================================================

// Boolean is a scope-bound reference to a script boolean.
type Boolean struct {
	local
}

func (Boolean) targetKind() ValueKind   { return KindBoolean }
func (Boolean) rebind(l local) Referent { return Boolean{l} }

// Copy returns an independent reference to the same boolean.
func (b Boolean) Copy() Boolean { return Boolean{b.copy()} }

// Move hands the reference over and invalidates b.
func (b *Boolean) Move() Boolean {
	out := Boolean{b.local}
	b.local = local{}
	return out
}

// Value returns the boolean.
func (b Boolean) Value() (bool, error) {
	e, err := b.active("boolean")
	if err != nil {
		return false, err
	}
	return e.backend.ToBool(b.s.handle), nil
}

// =============================================================================
// UNSUPPORTED
// =============================================================================

// Unsupported references a value the taxonomy has no kind for, such as a
// JavaScript symbol. It can be held, compared, described and passed back.
type Unsupported struct {
	local
}

func (Unsupported) targetKind() ValueKind   { return KindUnsupported }
func (Unsupported) rebind(l local) Referent { return Unsupported{l} }

// Copy returns an independent reference to the same value.
func (u Unsupported) Copy() Unsupported { return Unsupported{u.copy()} }

// Move hands the reference over and invalidates u.
func (u *Unsupported) Move() Unsupported {
	out := Unsupported{u.local}
	u.local = local{}
	return out
}
