package trace

import (
	"fmt"

	"github.com/wippyai/wasm-expand/wasm"
)

// stackEffect returns how many operand stack values an instruction pops and
// pushes. Control instructions and anything whose effect depends on label
// arities return an error: the tracer only reasons about straight-line code.
func stackEffect(instr wasm.Instruction, mod *wasm.Module) (pops, pushes int, err error) {
	op := instr.Opcode
	switch op {
	case wasm.OpNop:
		return 0, 0, nil

	case wasm.OpI32Const, wasm.OpI64Const, wasm.OpF32Const, wasm.OpF64Const:
		return 0, 1, nil

	case wasm.OpLocalGet:
		return 0, 1, nil
	case wasm.OpLocalSet:
		return 1, 0, nil
	case wasm.OpLocalTee:
		return 1, 1, nil
	case wasm.OpGlobalGet:
		return 0, 1, nil
	case wasm.OpGlobalSet:
		return 1, 0, nil

	case wasm.OpDrop:
		return 1, 0, nil
	case wasm.OpSelect, wasm.OpSelectType:
		return 3, 1, nil

	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U:
		return 1, 1, nil
	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store,
		wasm.OpI32Store8, wasm.OpI32Store16,
		wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return 2, 0, nil
	case wasm.OpMemorySize:
		return 0, 1, nil
	case wasm.OpMemoryGrow:
		return 1, 1, nil

	case wasm.OpTableGet:
		return 1, 1, nil
	case wasm.OpTableSet:
		return 2, 0, nil

	case wasm.OpRefNull, wasm.OpRefFunc:
		return 0, 1, nil
	case wasm.OpRefIsNull:
		return 1, 1, nil

	case wasm.OpCall, wasm.OpReturnCall:
		imm, ok := instr.Imm.(wasm.CallImm)
		if !ok {
			return 0, 0, fmt.Errorf("call without immediate")
		}
		ft := mod.GetFuncType(imm.FuncIdx)
		if ft == nil {
			return 0, 0, fmt.Errorf("%w: func %d", ErrUnknownSignature, imm.FuncIdx)
		}
		return len(ft.Params), len(ft.Results), nil

	case wasm.OpCallIndirect, wasm.OpReturnCallIndirect:
		imm, ok := instr.Imm.(wasm.CallIndirectImm)
		if !ok || int(imm.TypeIdx) >= len(mod.Types) {
			return 0, 0, fmt.Errorf("%w: call_indirect", ErrUnknownSignature)
		}
		ft := mod.Types[imm.TypeIdx]
		return len(ft.Params) + 1, len(ft.Results), nil

	case wasm.OpPrefixMisc:
		return miscStackEffect(instr)
	}

	// Numeric instructions, classified by opcode range.
	switch {
	case op == wasm.OpI32Eqz, op == wasm.OpI64Eqz:
		return 1, 1, nil
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU: // i32 comparisons
		return 2, 1, nil
	case op >= wasm.OpI64Eq && op <= wasm.OpF64Ge: // i64/f32/f64 comparisons
		return 2, 1, nil
	case op >= wasm.OpI32Clz && op <= wasm.OpI32Popcnt: // i32 unary
		return 1, 1, nil
	case op >= wasm.OpI32Add && op <= wasm.OpI32Rotr: // i32 binary
		return 2, 1, nil
	case op >= wasm.OpI64Clz && op <= wasm.OpI64Popcnt: // i64 unary
		return 1, 1, nil
	case op >= wasm.OpI64Add && op <= wasm.OpI64Rotr: // i64 binary
		return 2, 1, nil
	case op >= wasm.OpF32Abs && op <= wasm.OpF32Sqrt: // f32 unary
		return 1, 1, nil
	case op >= wasm.OpF32Add && op <= wasm.OpF32Copysign: // f32 binary
		return 2, 1, nil
	case op >= wasm.OpF64Abs && op <= wasm.OpF64Sqrt: // f64 unary
		return 1, 1, nil
	case op >= wasm.OpF64Add && op <= wasm.OpF64Copysign: // f64 binary
		return 2, 1, nil
	case op >= wasm.OpI32WrapI64 && op <= wasm.OpI64Extend32S: // conversions
		return 1, 1, nil
	}

	switch op {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf, wasm.OpElse, wasm.OpEnd,
		wasm.OpBr, wasm.OpBrIf, wasm.OpBrTable, wasm.OpReturn, wasm.OpUnreachable:
		return 0, 0, fmt.Errorf("%w: %s", ErrControlFlow, instr)
	}
	return 0, 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedOpcode, op)
}

func miscStackEffect(instr wasm.Instruction) (pops, pushes int, err error) {
	imm, ok := instr.Imm.(wasm.MiscImm)
	if !ok {
		return 0, 0, fmt.Errorf("%w: 0xfc", ErrUnsupportedOpcode)
	}
	switch imm.SubOpcode {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF32U,
		wasm.MiscI32TruncSatF64S, wasm.MiscI32TruncSatF64U,
		wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF32U,
		wasm.MiscI64TruncSatF64S, wasm.MiscI64TruncSatF64U:
		return 1, 1, nil
	case wasm.MiscMemoryInit, wasm.MiscMemoryCopy, wasm.MiscMemoryFill,
		wasm.MiscTableInit, wasm.MiscTableCopy, wasm.MiscTableFill:
		return 3, 0, nil
	case wasm.MiscDataDrop, wasm.MiscElemDrop:
		return 0, 0, nil
	case wasm.MiscTableGrow:
		return 2, 1, nil
	case wasm.MiscTableSize:
		return 0, 1, nil
	}
	return 0, 0, fmt.Errorf("%w: 0xfc sub-opcode %d", ErrUnsupportedOpcode, imm.SubOpcode)
}
