package scriptx

// BufferType is the element type of a byte buffer.
type BufferType uint8

const (
	BufferUnknown BufferType = iota
	BufferInt8
	BufferUint8
	BufferUint8Clamped
	BufferInt16
	BufferUint16
	BufferInt32
	BufferUint32
	BufferInt64
	BufferUint64
	BufferFloat32
	BufferFloat64
)

var bufferTypeNames = [...]string{
	BufferUnknown:      "unknown",
	BufferInt8:         "int8",
	BufferUint8:        "uint8",
	BufferUint8Clamped: "uint8clamped",
	BufferInt16:        "int16",
	BufferUint16:       "uint16",
	BufferInt32:        "int32",
	BufferUint32:       "uint32",
	BufferInt64:        "int64",
	BufferUint64:       "uint64",
	BufferFloat32:      "float32",
	BufferFloat64:      "float64",
}

func (t BufferType) String() string {
	if int(t) < len(bufferTypeNames) {
		return bufferTypeNames[t]
	}
	return "invalid"
}

// Size returns the element size in bytes. Unknown buffers count bytes.
func (t BufferType) Size() int {
	switch t {
	case BufferInt16, BufferUint16:
		return 2
	case BufferInt32, BufferUint32, BufferFloat32:
		return 4
	case BufferInt64, BufferUint64, BufferFloat64:
		return 8
	default:
		return 1
	}
}

// ByteBuffer is a scope-bound reference to a script byte buffer.
//
// Whether the host sees script memory directly is a property of the backend
// (IsShared). On shared backends Bytes is a live view and Commit and Sync do
// nothing. Otherwise Bytes returns a host copy owned by this reference: Sync
// refreshes it from script memory and Commit writes it back.
type ByteBuffer struct {
	local
}

func (ByteBuffer) targetKind() ValueKind   { return KindByteBuffer }
func (ByteBuffer) rebind(l local) Referent { return ByteBuffer{l} }

// Copy returns an independent reference to the same buffer. The copy has its
// own host-side bytes.
func (b ByteBuffer) Copy() ByteBuffer { return ByteBuffer{b.copy()} }

// Move hands the reference over and invalidates b.
func (b *ByteBuffer) Move() ByteBuffer {
	out := ByteBuffer{b.local}
	b.local = local{}
	return out
}

// IsShared reports whether Bytes is a view of script memory.
func (b ByteBuffer) IsShared() bool {
	if !b.valid() {
		return false
	}
	return b.s.engine.backend.SharedBuffers()
}

// Bytes returns the buffer contents.
func (b ByteBuffer) Bytes() ([]byte, error) {
	e, err := b.active("bytebuffer")
	if err != nil {
		return nil, err
	}
	if e.backend.SharedBuffers() {
		return e.backend.BufferBytes(b.s.handle), nil
	}
	if b.s.host == nil {
		b.s.host = e.backend.BufferBytes(b.s.handle)
	}
	return b.s.host, nil
}

// SharedBytes is Bytes for callers that only read on shared backends.
func (b ByteBuffer) SharedBytes() ([]byte, error) {
	return b.Bytes()
}

// ByteLength returns the size of the buffer in bytes.
func (b ByteBuffer) ByteLength() (int, error) {
	data, err := b.Bytes()
	return len(data), err
}

// Type returns the element type.
func (b ByteBuffer) Type() (BufferType, error) {
	e, err := b.active("bytebuffer")
	if err != nil {
		return BufferUnknown, err
	}
	return e.backend.BufferType(b.s.handle), nil
}

// ElementCount returns ByteLength divided by the element size.
func (b ByteBuffer) ElementCount() (int, error) {
	t, err := b.Type()
	if err != nil {
		return 0, err
	}
	n, err := b.ByteLength()
	return n / t.Size(), err
}

// Sync copies script memory into the host copy.
func (b ByteBuffer) Sync() error {
	e, err := b.active("bytebuffer sync")
	if err != nil {
		return err
	}
	if e.backend.SharedBuffers() {
		return nil
	}
	fresh := e.backend.BufferBytes(b.s.handle)
	if len(fresh) == len(b.s.host) {
		copy(b.s.host, fresh)
		return nil
	}
	b.s.host = fresh
	return nil
}

// Commit copies the host copy back into script memory.
func (b ByteBuffer) Commit() error {
	e, err := b.active("bytebuffer commit")
	if err != nil {
		return err
	}
	if e.backend.SharedBuffers() || b.s.host == nil {
		return nil
	}
	e.backend.WriteBuffer(b.s.handle, b.s.host)
	_, err = e.checkException(nil)
	return err
}
