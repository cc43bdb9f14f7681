package wasmvm_test

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
)

var magicVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Opcodes used by the test modules.
const (
	opUnreachable = 0x00
	opCall        = 0x10
	opLocalGet    = 0x20
	opI32Load8U   = 0x2d
	opI32Store8   = 0x3a
	opF64Const    = 0x44
	opI32Add      = 0x6a
	opF64Mul      = 0xa2
	opEnd         = 0x0b
)

type funcType struct {
	params, results []api.ValueType
}

type importFunc struct {
	module, name string
	typ          funcType
}

type exportFunc struct {
	name string
	typ  funcType
	body []byte
}

// moduleSpec describes a module with function imports, exported functions
// and optionally one exported page of memory.
type moduleSpec struct {
	imports []importFunc
	funcs   []exportFunc
	memory  string
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func valTypes(ts []api.ValueType) []byte {
	out := uleb(uint32(len(ts)))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func (m moduleSpec) encode() []byte {
	wasm := append([]byte{}, magicVersion...)

	// one type per function, imports first
	var types [][]byte
	for _, imp := range m.imports {
		types = append(types, append(append([]byte{0x60}, valTypes(imp.typ.params)...), valTypes(imp.typ.results)...))
	}
	for _, fn := range m.funcs {
		types = append(types, append(append([]byte{0x60}, valTypes(fn.typ.params)...), valTypes(fn.typ.results)...))
	}
	typeSection := uleb(uint32(len(types)))
	for _, t := range types {
		typeSection = append(typeSection, t...)
	}
	wasm = append(wasm, section(0x01, typeSection)...)

	if len(m.imports) > 0 {
		importSection := uleb(uint32(len(m.imports)))
		for i, imp := range m.imports {
			importSection = append(importSection, name(imp.module)...)
			importSection = append(importSection, name(imp.name)...)
			importSection = append(importSection, 0x00)
			importSection = append(importSection, uleb(uint32(i))...)
		}
		wasm = append(wasm, section(0x02, importSection)...)
	}

	funcSection := uleb(uint32(len(m.funcs)))
	for i := range m.funcs {
		funcSection = append(funcSection, uleb(uint32(len(m.imports)+i))...)
	}
	wasm = append(wasm, section(0x03, funcSection)...)

	if m.memory != "" {
		wasm = append(wasm, section(0x05, []byte{0x01, 0x00, 0x01})...)
	}

	exports := len(m.funcs)
	if m.memory != "" {
		exports++
	}
	exportSection := uleb(uint32(exports))
	for i, fn := range m.funcs {
		exportSection = append(exportSection, name(fn.name)...)
		exportSection = append(exportSection, 0x00)
		exportSection = append(exportSection, uleb(uint32(len(m.imports)+i))...)
	}
	if m.memory != "" {
		exportSection = append(exportSection, name(m.memory)...)
		exportSection = append(exportSection, 0x02, 0x00)
	}
	wasm = append(wasm, section(0x07, exportSection)...)

	codeSection := uleb(uint32(len(m.funcs)))
	for _, fn := range m.funcs {
		body := append([]byte{0x00}, fn.body...) // no locals
		body = append(body, opEnd)
		codeSection = append(codeSection, uleb(uint32(len(body)))...)
		codeSection = append(codeSection, body...)
	}
	wasm = append(wasm, section(0x0a, codeSection)...)
	return wasm
}

func f64Const(f float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{opF64Const}, math.Float64bits(f))
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

// mathModule exports add, half, swap and boom.
func mathModule() string {
	half := append([]byte{opLocalGet, 0}, f64Const(0.5)...)
	half = append(half, opF64Mul)
	return string(moduleSpec{funcs: []exportFunc{
		{"add", funcType{[]api.ValueType{i32, i32}, []api.ValueType{i32}}, []byte{opLocalGet, 0, opLocalGet, 1, opI32Add}},
		{"half", funcType{[]api.ValueType{f64}, []api.ValueType{f64}}, half},
		{"swap", funcType{[]api.ValueType{i32, i32}, []api.ValueType{i32, i32}}, []byte{opLocalGet, 1, opLocalGet, 0}},
		{"boom", funcType{}, []byte{opUnreachable}},
	}}.encode())
}

// doubleModule exports double(x) = x + x.
func doubleModule() string {
	return string(moduleSpec{funcs: []exportFunc{
		{"double", funcType{[]api.ValueType{i32}, []api.ValueType{i32}}, []byte{opLocalGet, 0, opLocalGet, 0, opI32Add}},
	}}.encode())
}

// quadModule imports module.double and exports quad(x) = double(double(x)).
func quadModule(module string) string {
	return string(moduleSpec{
		imports: []importFunc{{module, "double", funcType{[]api.ValueType{i32}, []api.ValueType{i32}}}},
		funcs: []exportFunc{
			{"quad", funcType{[]api.ValueType{i32}, []api.ValueType{i32}}, []byte{opLocalGet, 0, opCall, 0, opCall, 0}},
		},
	}.encode())
}

// memoryModule exports its memory with byte load and store helpers.
func memoryModule() string {
	return string(moduleSpec{
		memory: "memory",
		funcs: []exportFunc{
			{"load", funcType{[]api.ValueType{i32}, []api.ValueType{i32}}, []byte{opLocalGet, 0, opI32Load8U, 0, 0}},
			{"store", funcType{[]api.ValueType{i32, i32}, nil}, []byte{opLocalGet, 0, opLocalGet, 1, opI32Store8, 0, 0}},
		},
	}.encode())
}
