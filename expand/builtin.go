package expand

import (
	"github.com/wippyai/wasm-expand/wasm"
)

// PassthroughPlaceholder keeps the argument computation and drops the call:
// Placeholder(x) becomes x. Used when no obfuscating transform is wanted.
func PassthroughPlaceholder(arg []wasm.Instruction) []wasm.Instruction {
	return arg
}

// InlineXorCrypt lowers Crypt(block, key) to an inline i32.xor of the two
// operands, the reference primitive for (i32, i32) -> i32 crypt markers.
func InlineXorCrypt(_ uint32, block, key uint32) []wasm.Instruction {
	return []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: block}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: key}},
		{Opcode: wasm.OpI32Xor},
	}
}
