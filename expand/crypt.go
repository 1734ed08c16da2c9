package expand

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/wasm"
)

// CryptFunc produces the replacement for a crypt marker. It receives the
// index of the function being rewritten and the local variable indices of
// the data block and key operands.
type CryptFunc func(funcIdx uint32, block, key uint32) []wasm.Instruction

// expandCrypt replaces the fixed three-instruction pattern
//
//	local.get <block>
//	local.get <key>
//	call Crypt
//
// with the configured transform's output. The operand convention is a
// checked precondition: generators must emit exactly two local loads
// immediately before the call.
func (p *Pass) expandCrypt(funcIdx uint32, body []wasm.Instruction, callIdx int) ([]wasm.Instruction, int, error) {
	if p.cfg.Crypt == nil {
		return body, callIdx, errors.MissingProcessor(funcIdx, callIdx, memberCrypt)
	}

	block, key, err := cryptOperands(funcIdx, body, callIdx)
	if err != nil {
		return body, callIdx, err
	}

	start := callIdx - 2
	replacement := p.cfg.Crypt(funcIdx, block, key)
	body = splice(body, start, callIdx+1, replacement)

	p.log.Debug("expanded crypt",
		zap.Uint32("func", funcIdx),
		zap.Uint32("block", block),
		zap.Uint32("key", key),
		zap.Int("inserted", len(replacement)))
	return body, start + len(replacement), nil
}

func cryptOperands(funcIdx uint32, body []wasm.Instruction, callIdx int) (block, key uint32, err error) {
	if callIdx < 2 {
		return 0, 0, errors.BadOperandShape(funcIdx, callIdx,
			"crypt call without two preceding instructions")
	}
	blockImm, ok := localGetImm(body[callIdx-2])
	if !ok {
		return 0, 0, errors.BadOperandShape(funcIdx, callIdx,
			"crypt block operand is not local.get")
	}
	keyImm, ok := localGetImm(body[callIdx-1])
	if !ok {
		return 0, 0, errors.BadOperandShape(funcIdx, callIdx,
			"crypt key operand is not local.get")
	}
	return blockImm.LocalIdx, keyImm.LocalIdx, nil
}

func localGetImm(instr wasm.Instruction) (wasm.LocalImm, bool) {
	if instr.Opcode != wasm.OpLocalGet {
		return wasm.LocalImm{}, false
	}
	imm, ok := instr.Imm.(wasm.LocalImm)
	return imm, ok
}
