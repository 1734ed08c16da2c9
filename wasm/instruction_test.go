package wasm

import "testing"

func TestInstructionRoundTrip(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpI32Const, Imm: I32Imm{Value: -42}},
		{Opcode: OpI64Const, Imm: I64Imm{Value: 1 << 40}},
		{Opcode: OpF32Const, Imm: F32Imm{Value: 1.5}},
		{Opcode: OpF64Const, Imm: F64Imm{Value: -0.125}},
		{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 3}},
		{Opcode: OpLocalSet, Imm: LocalImm{LocalIdx: 0}},
		{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: 7}},
		{Opcode: OpCall, Imm: CallImm{FuncIdx: 200}},
		{Opcode: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: 2, TableIdx: 0}},
		{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}},
		{Opcode: OpBr, Imm: BranchImm{LabelIdx: 1}},
		{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1, 2}, Default: 3}},
		{Opcode: OpI32Load, Imm: MemoryImm{Align: 2, Offset: 16}},
		{Opcode: OpI32Store, Imm: MemoryImm{Align: 2, Offset: 0}},
		{Opcode: OpMemorySize, Imm: MemoryIdxImm{}},
		{Opcode: OpI32Add},
		{Opcode: OpDrop},
		{Opcode: OpSelect},
		{Opcode: OpEnd},
	}

	decoded, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("got %d instructions, want %d", len(decoded), len(instrs))
	}
	for i := range instrs {
		if decoded[i].Opcode != instrs[i].Opcode {
			t.Errorf("instr %d: opcode 0x%02x, want 0x%02x", i, decoded[i].Opcode, instrs[i].Opcode)
		}
	}
	if imm := decoded[0].Imm.(I32Imm); imm.Value != -42 {
		t.Errorf("i32.const: got %d", imm.Value)
	}
	if imm := decoded[7].Imm.(CallImm); imm.FuncIdx != 200 {
		t.Errorf("call: got func %d", imm.FuncIdx)
	}
	if imm := decoded[11].Imm.(BrTableImm); len(imm.Labels) != 3 || imm.Default != 3 {
		t.Errorf("br_table: got %+v", imm)
	}
	if imm := decoded[12].Imm.(MemoryImm); imm.Align != 2 || imm.Offset != 16 {
		t.Errorf("i32.load: got %+v", imm)
	}
}

func TestDecodeMiscInstructions(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscI32TruncSatF32S}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryFill, Operands: []uint32{0}}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryCopy, Operands: []uint32{0, 0}}},
		{Opcode: OpEnd},
	}
	decoded, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("got %d instructions", len(decoded))
	}
	fill := decoded[1].Imm.(MiscImm)
	if fill.SubOpcode != MiscMemoryFill || len(fill.Operands) != 1 {
		t.Errorf("memory.fill: got %+v", fill)
	}
}

func TestDecodeUnsupportedOpcode(t *testing.T) {
	// 0xFD is the SIMD prefix, outside the supported set.
	if _, err := DecodeInstructions([]byte{0xFD, 0x00, 0x0B}); err == nil {
		t.Fatal("expected error for SIMD prefix")
	}
}

func TestIsCall(t *testing.T) {
	idx, ok := (Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: 9}}).IsCall()
	if !ok || idx != 9 {
		t.Errorf("call: got %d, %v", idx, ok)
	}
	if _, ok := (Instruction{Opcode: OpCallIndirect, Imm: CallIndirectImm{}}).IsCall(); ok {
		t.Error("call_indirect misrecognized as direct call")
	}
}

func TestInstructionString(t *testing.T) {
	cases := []struct {
		in   Instruction
		want string
	}{
		{Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: 9}}, "i32.const 9"},
		{Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 2}}, "local.get 2"},
		{Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: 5}}, "call 5"},
		{Instruction{Opcode: OpI32Add}, "i32.add"},
		{Instruction{Opcode: OpEnd}, "end"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
