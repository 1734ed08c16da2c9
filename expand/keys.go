package expand

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/wasm"
)

// KeySlot identifies one of the 16 well-known configuration key slots
// referenced symbolically as KeyI0..KeyI15 by generated code.
type KeySlot uint8

// NumKeySlots is the number of key slots.
const NumKeySlots = 16

func (s KeySlot) String() string {
	return fmt.Sprintf("KeyI%d", uint8(s))
}

// parseKeyField recognizes field names of the exact form "KeyI<n>" with n in
// 0..15 and no leading zero. Anything else is not a key field.
func parseKeyField(name string) (KeySlot, bool) {
	const prefix = "KeyI"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	digits := name[len(prefix):]
	if len(digits) > 2 || digits[0] == '0' && len(digits) > 1 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= NumKeySlots {
		return 0, false
	}
	return KeySlot(n), true
}

// resolveKeyField substitutes a key-field read with the configured constant.
// The instruction is overwritten in place; the body length never changes.
func (p *Pass) resolveKeyField(funcIdx uint32, body []wasm.Instruction, idx int, member string) error {
	slot, ok := parseKeyField(member)
	if !ok {
		return errors.UnrecognizedKeyField(funcIdx, idx, member)
	}
	value, ok := p.cfg.Keys[slot]
	if !ok {
		return errors.MissingKeyValue(funcIdx, idx, member)
	}
	if imm, ok := body[idx].Imm.(wasm.GlobalImm); ok {
		gt := p.mod.GlobalTypeAt(imm.GlobalIdx)
		if gt == nil || gt.ValType != wasm.ValI32 {
			return errors.New(errors.PhaseExpand, errors.KindUnexpectedMarkerUse).
				Func(funcIdx).Instr(idx).Member(member).
				Detail("key field global is not i32").Build()
		}
	}
	body[idx] = wasm.Instruction{
		Opcode: wasm.OpI32Const,
		Imm:    wasm.I32Imm{Value: int32(value)},
	}
	p.log.Debug("resolved key field",
		zap.Uint32("func", funcIdx),
		zap.Int("instr", idx),
		zap.Stringer("slot", slot))
	return nil
}
