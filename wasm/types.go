package wasm

// Module is a decoded WebAssembly module restricted to the core spec.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices of locally defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount mirrors the DataCount section when present; required by
	// bulk memory instructions that reference data segment indices.
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures match exactly.
func (t FuncType) Equal(o FuncType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// ValType is a WebAssembly value type byte.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// Import is an imported function, table, memory, or global.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// ImportDesc describes the imported item. Kind selects which field is set.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32 // for KindFunc
	Kind    byte
}

// TableType describes a table.
type TableType struct {
	ElemType ValType
	Limits   Limits
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits holds table/memory size constraints.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its init expression.
type Global struct {
	Type GlobalType
	Init []Instruction // init expression without the trailing end
}

// Export is an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an element segment. Only function-index forms (flags 0-3)
// are supported by the codec.
type Element struct {
	Offset   []Instruction // active forms only
	FuncIdxs []uint32
	Flags    uint32
	TableIdx uint32
	ElemKind byte
}

// FuncBody holds a function's local declarations and code bytes.
// Code includes the trailing end opcode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// LocalEntry is a run of same-typed locals.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is a data segment (flags 0-2).
type DataSegment struct {
	Offset []Instruction // active forms only
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// CustomSection preserves a custom section verbatim.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedGlobals returns the number of imported globals.
func (m *Module) NumImportedGlobals() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindGlobal {
			n++
		}
	}
	return n
}

// FuncTypeIdx returns the type index of a function in the combined
// import+defined index space, or false when out of range.
func (m *Module) FuncTypeIdx(funcIdx uint32) (uint32, bool) {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if funcIdx == 0 {
			return imp.Desc.TypeIdx, true
		}
		funcIdx--
	}
	if int(funcIdx) >= len(m.Funcs) {
		return 0, false
	}
	return m.Funcs[funcIdx], true
}

// GetFuncType returns the signature of a function by index, nil if unknown.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	typeIdx, ok := m.FuncTypeIdx(funcIdx)
	if !ok || int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// GlobalTypeAt returns the type of a global in the combined import+defined
// index space, nil if out of range.
func (m *Module) GlobalTypeAt(globalIdx uint32) *GlobalType {
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind != KindGlobal {
			continue
		}
		if globalIdx == 0 {
			return m.Imports[i].Desc.Global
		}
		globalIdx--
	}
	if int(globalIdx) >= len(m.Globals) {
		return nil
	}
	return &m.Globals[globalIdx].Type
}

// AddType returns the index of ft in the type section, appending it when new.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}
