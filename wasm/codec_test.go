package wasm

import (
	"bytes"
	"testing"
)

// sampleModule builds a module exercising every section the codec supports.
func sampleModule() *Module {
	m := &Module{}
	t0 := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	t1 := m.AddType(FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})

	m.Imports = []Import{
		{Module: "env", Name: "host", Desc: ImportDesc{Kind: KindFunc, TypeIdx: t0}},
		{Module: "env", Name: "base", Desc: ImportDesc{Kind: KindGlobal, Global: &GlobalType{ValType: ValI32}}},
	}
	m.Funcs = []uint32{t1}
	maxSize := uint32(4)
	m.Tables = []TableType{{ElemType: ValFuncRef, Limits: Limits{Min: 1, Max: &maxSize}}}
	m.Memories = []MemoryType{{Limits: Limits{Min: 1}}}
	m.Globals = []Global{{
		Type: GlobalType{ValType: ValI32, Mutable: true},
		Init: []Instruction{{Opcode: OpI32Const, Imm: I32Imm{Value: 7}}},
	}}
	m.Exports = []Export{{Name: "add", Kind: KindFunc, Idx: 1}}
	m.Elements = []Element{{
		Offset:   []Instruction{{Opcode: OpI32Const, Imm: I32Imm{Value: 0}}},
		FuncIdxs: []uint32{1},
	}}
	m.Code = []FuncBody{{
		Locals: []LocalEntry{{Count: 1, ValType: ValI32}},
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
			{Opcode: OpI32Add},
			{Opcode: OpEnd},
		}),
	}}
	m.Data = []DataSegment{{
		Offset: []Instruction{{Opcode: OpI32Const, Imm: I32Imm{Value: 8}}},
		Init:   []byte{1, 2, 3},
	}}
	m.CustomSections = []CustomSection{{Name: "note", Data: []byte("hi")}}
	return m
}

func TestModuleRoundTrip(t *testing.T) {
	m := sampleModule()
	bin := EncodeModule(m)

	got, err := DecodeModule(bin)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Types) != 2 || !got.Types[1].Equal(m.Types[1]) {
		t.Errorf("types: got %+v", got.Types)
	}
	if len(got.Imports) != 2 || got.Imports[0].Name != "host" || got.Imports[1].Desc.Kind != KindGlobal {
		t.Errorf("imports: got %+v", got.Imports)
	}
	if len(got.Funcs) != 1 || got.Funcs[0] != m.Funcs[0] {
		t.Errorf("funcs: got %v", got.Funcs)
	}
	if len(got.Tables) != 1 || got.Tables[0].Limits.Max == nil || *got.Tables[0].Limits.Max != 4 {
		t.Errorf("tables: got %+v", got.Tables)
	}
	if len(got.Globals) != 1 || got.Globals[0].Init[0].Imm.(I32Imm).Value != 7 {
		t.Errorf("globals: got %+v", got.Globals)
	}
	if len(got.Exports) != 1 || got.Exports[0].Name != "add" || got.Exports[0].Idx != 1 {
		t.Errorf("exports: got %+v", got.Exports)
	}
	if len(got.Elements) != 1 || len(got.Elements[0].FuncIdxs) != 1 {
		t.Errorf("elements: got %+v", got.Elements)
	}
	if len(got.Code) != 1 || !bytes.Equal(got.Code[0].Code, m.Code[0].Code) {
		t.Errorf("code: got %+v", got.Code)
	}
	if len(got.Data) != 1 || !bytes.Equal(got.Data[0].Init, []byte{1, 2, 3}) {
		t.Errorf("data: got %+v", got.Data)
	}
	if len(got.CustomSections) != 1 || got.CustomSections[0].Name != "note" {
		t.Errorf("custom: got %+v", got.CustomSections)
	}

	// re-encoding a decoded module is byte-stable
	if !bytes.Equal(EncodeModule(got), bin) {
		t.Error("re-encode not byte-stable")
	}
}

func TestDecodeBadMagic(t *testing.T) {
	if _, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeSectionOrder(t *testing.T) {
	// type section following function section violates ordering
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})
	buf.Write([]byte{0x03, 0x01, 0x00}) // function section, empty vec
	buf.Write([]byte{0x01, 0x01, 0x00}) // type section, empty vec
	if _, err := DecodeModule(buf.Bytes()); err == nil {
		t.Fatal("expected section order error")
	}
}

func TestFuncTypeIdxCombinedSpace(t *testing.T) {
	m := sampleModule()
	if idx, ok := m.FuncTypeIdx(0); !ok || idx != 0 {
		t.Errorf("imported func: got %d, %v", idx, ok)
	}
	if idx, ok := m.FuncTypeIdx(1); !ok || idx != 1 {
		t.Errorf("defined func: got %d, %v", idx, ok)
	}
	if _, ok := m.FuncTypeIdx(2); ok {
		t.Error("out of range accepted")
	}
	if m.NumImportedFuncs() != 1 || m.NumImportedGlobals() != 1 {
		t.Error("import counts wrong")
	}
}
