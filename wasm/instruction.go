package wasm

import (
	"bytes"
	"fmt"
)

// Instruction is a single decoded instruction: opcode plus typed immediate.
// Instructions are mutable; the expansion pass overwrites and splices them
// within a decoded body.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop, and if.
type BlockImm struct {
	Type int32 // s33: -64=void, value type, or type index
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call and return_call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds alignment and offset for loads and stores.
type MemoryImm struct {
	Offset uint64
	Align  uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the value of i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the value of i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the value of f32.const.
type F32Imm struct {
	Value float32
}

// F64Imm holds the value of f64.const.
type F64Imm struct {
	Value float64
}

// MiscImm holds the sub-opcode and operands of 0xFC-prefixed instructions.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// RefNullImm holds the heap type for ref.null.
type RefNullImm struct {
	HeapType int64
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the value types of a typed select.
type SelectTypeImm struct {
	Types []ValType
}

// IsCall reports whether the instruction is a direct call and returns
// its target function index.
func (i Instruction) IsCall() (uint32, bool) {
	if i.Opcode == OpCall || i.Opcode == OpReturnCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// DecodeInstructions decodes a raw code stream into instructions.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)
	for r.Len() > 0 {
		instr, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(r *bytes.Reader) (Instruction, error) {
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Opcode: op}

	switch op {
	case OpBlock, OpLoop, OpIf:
		bt, err := ReadLEB128s(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = BlockImm{Type: bt}

	case OpBr, OpBrIf:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}

	case OpBrTable:
		count, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = ReadLEB128u(r); err != nil {
				return instr, err
			}
		}
		def, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case OpCall, OpReturnCall:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = CallImm{FuncIdx: idx}

	case OpCallIndirect, OpReturnCallIndirect:
		typeIdx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		tableIdx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}

	case OpGlobalGet, OpGlobalSet:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case OpTableGet, OpTableSet:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = TableImm{TableIdx: idx}

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		align, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		offset, err := ReadLEB128u64(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = MemoryImm{Align: align, Offset: offset}

	case OpMemorySize, OpMemoryGrow:
		memIdx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: memIdx}

	case OpI32Const:
		v, err := ReadLEB128s(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = I32Imm{Value: v}

	case OpI64Const:
		v, err := ReadLEB128s64(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = I64Imm{Value: v}

	case OpF32Const:
		v, err := ReadFloat32(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = F32Imm{Value: v}

	case OpF64Const:
		v, err := ReadFloat64(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = F64Imm{Value: v}

	case OpRefNull:
		ht, err := ReadLEB128s64(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = RefNullImm{HeapType: ht}

	case OpRefFunc:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = RefFuncImm{FuncIdx: idx}

	case OpSelectType:
		count, err := ReadLEB128u(r)
		if err != nil {
			return instr, err
		}
		types := make([]ValType, count)
		for i := range types {
			b, err := r.ReadByte()
			if err != nil {
				return instr, err
			}
			types[i] = ValType(b)
		}
		instr.Imm = SelectTypeImm{Types: types}

	case OpPrefixMisc:
		imm, err := decodeMiscImm(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		// no immediate

	default:
		if op >= OpI32Eqz && op <= OpI64Extend32S {
			// numeric instruction, no immediate
			break
		}
		return instr, fmt.Errorf("unsupported opcode: 0x%02x", op)
	}

	return instr, nil
}

// miscOperandCount maps 0xFC sub-opcodes to their operand counts.
func miscOperandCount(subOp uint32) (int, bool) {
	switch subOp {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U,
		MiscI32TruncSatF64S, MiscI32TruncSatF64U,
		MiscI64TruncSatF32S, MiscI64TruncSatF32U,
		MiscI64TruncSatF64S, MiscI64TruncSatF64U:
		return 0, true
	case MiscDataDrop, MiscMemoryFill, MiscElemDrop,
		MiscTableGrow, MiscTableSize, MiscTableFill:
		return 1, true
	case MiscMemoryInit, MiscMemoryCopy, MiscTableInit, MiscTableCopy:
		return 2, true
	}
	return 0, false
}

func decodeMiscImm(r *bytes.Reader) (MiscImm, error) {
	subOp, err := ReadLEB128u(r)
	if err != nil {
		return MiscImm{}, err
	}
	count, ok := miscOperandCount(subOp)
	if !ok {
		return MiscImm{}, fmt.Errorf("unsupported 0xFC sub-opcode: %d", subOp)
	}
	imm := MiscImm{SubOpcode: subOp}
	if count > 0 {
		imm.Operands = make([]uint32, count)
		for i := range imm.Operands {
			if imm.Operands[i], err = ReadLEB128u(r); err != nil {
				return MiscImm{}, err
			}
		}
	}
	return imm, nil
}

// EncodeInstructionTo appends a single instruction to buf.
func EncodeInstructionTo(buf *bytes.Buffer, instr *Instruction) {
	buf.WriteByte(instr.Opcode)

	switch imm := instr.Imm.(type) {
	case BlockImm:
		WriteLEB128s(buf, imm.Type)
	case BranchImm:
		WriteLEB128u(buf, imm.LabelIdx)
	case BrTableImm:
		WriteLEB128u(buf, uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			WriteLEB128u(buf, l)
		}
		WriteLEB128u(buf, imm.Default)
	case CallImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case CallIndirectImm:
		WriteLEB128u(buf, imm.TypeIdx)
		WriteLEB128u(buf, imm.TableIdx)
	case LocalImm:
		WriteLEB128u(buf, imm.LocalIdx)
	case GlobalImm:
		WriteLEB128u(buf, imm.GlobalIdx)
	case TableImm:
		WriteLEB128u(buf, imm.TableIdx)
	case MemoryImm:
		WriteLEB128u(buf, imm.Align)
		WriteLEB128u64(buf, imm.Offset)
	case MemoryIdxImm:
		WriteLEB128u(buf, imm.MemIdx)
	case I32Imm:
		WriteLEB128s(buf, imm.Value)
	case I64Imm:
		WriteLEB128s64(buf, imm.Value)
	case F32Imm:
		WriteFloat32(buf, imm.Value)
	case F64Imm:
		WriteFloat64(buf, imm.Value)
	case RefNullImm:
		WriteLEB128s64(buf, imm.HeapType)
	case RefFuncImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case SelectTypeImm:
		WriteLEB128u(buf, uint32(len(imm.Types)))
		for _, t := range imm.Types {
			buf.WriteByte(byte(t))
		}
	case MiscImm:
		WriteLEB128u(buf, imm.SubOpcode)
		for _, o := range imm.Operands {
			WriteLEB128u(buf, o)
		}
	}
}

// EncodeInstructionsTo appends instrs to buf.
func EncodeInstructionsTo(buf *bytes.Buffer, instrs []Instruction) {
	for i := range instrs {
		EncodeInstructionTo(buf, &instrs[i])
	}
}

// EncodeInstructions encodes instructions to a fresh byte slice.
func EncodeInstructions(instrs []Instruction) []byte {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3)
	EncodeInstructionsTo(&buf, instrs)
	return buf.Bytes()
}
