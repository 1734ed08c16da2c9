package expand

import (
	"testing"

	xerrors "github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/wasm"
)

func TestExpandCrypt(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		iconst(9),
		lget(1), lget(0), callTo(1),
		op(wasm.OpI32Add), op(wasm.OpEnd),
	})
	var gotFunc, gotBlock, gotKey uint32
	p := New(m, Config{
		Crypt: func(funcIdx uint32, block, key uint32) []wasm.Instruction {
			gotFunc, gotBlock, gotKey = funcIdx, block, key
			return []wasm.Instruction{iconst(7)}
		},
	})
	if err := p.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if gotFunc != 2 || gotBlock != 1 || gotKey != 0 {
		t.Errorf("transform args: func %d block %d key %d", gotFunc, gotBlock, gotKey)
	}
	// all three instructions of the pattern are gone
	wantBody(t, m, 0, []wasm.Instruction{
		iconst(9), iconst(7), op(wasm.OpI32Add), op(wasm.OpEnd),
	})
}

func TestExpandCryptInlineXor(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(0), lget(1), callTo(1), op(wasm.OpEnd),
	})
	if err := New(m, Config{Crypt: InlineXorCrypt}).Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	wantBody(t, m, 0, []wasm.Instruction{
		lget(0), lget(1), op(wasm.OpI32Xor), op(wasm.OpEnd),
	})
}

func TestExpandCryptMissingProcessor(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(0), lget(1), callTo(1), op(wasm.OpEnd),
	})
	err := New(m, Config{Placeholder: PassthroughPlaceholder}).Expand()
	wantKind(t, err, xerrors.KindMissingProcessor)
}

func TestExpandCryptBadOperandShape(t *testing.T) {
	cases := []struct {
		name string
		body []wasm.Instruction
	}{
		{"constant block operand", []wasm.Instruction{
			iconst(1), lget(0), callTo(1), op(wasm.OpEnd),
		}},
		{"constant key operand", []wasm.Instruction{
			lget(0), iconst(1), callTo(1), op(wasm.OpEnd),
		}},
		{"call too early in body", []wasm.Instruction{
			lget(0), callTo(1), op(wasm.OpEnd),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := markerModule(nil, tc.body)
			err := New(m, Config{Crypt: InlineXorCrypt}).Expand()
			wantKind(t, err, xerrors.KindBadOperandShape)
		})
	}
}
