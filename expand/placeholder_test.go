package expand

import (
	"errors"
	"testing"

	xerrors "github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/trace"
	"github.com/wippyai/wasm-expand/wasm"
)

func TestExpandPlaceholder(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(1),
		lget(0), iconst(5), op(wasm.OpI32Add), callTo(0),
		op(wasm.OpI32Add), op(wasm.OpEnd),
	})
	var seen []wasm.Instruction
	p := New(m, Config{
		Placeholder: func(arg []wasm.Instruction) []wasm.Instruction {
			seen = append([]wasm.Instruction(nil), arg...)
			return []wasm.Instruction{iconst(42)}
		},
	})
	if err := p.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	// the transform sees the argument span only, never the call
	want := []string{"local.get 0", "i32.const 5", "i32.add"}
	if len(seen) != len(want) {
		t.Fatalf("span: got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i].String() != want[i] {
			t.Fatalf("span instr %d: got %s, want %s", i, seen[i], want[i])
		}
	}

	// span and call replaced in place; surrounding instructions intact
	wantBody(t, m, 0, []wasm.Instruction{
		lget(1), iconst(42), op(wasm.OpI32Add), op(wasm.OpEnd),
	})
}

func TestExpandPlaceholderPassthrough(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(0), iconst(5), op(wasm.OpI32Add), callTo(0), op(wasm.OpEnd),
	})
	p := New(m, Config{Placeholder: PassthroughPlaceholder})
	if err := p.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	wantBody(t, m, 0, []wasm.Instruction{
		lget(0), iconst(5), op(wasm.OpI32Add), op(wasm.OpEnd),
	})
}

func TestExpandPlaceholderNestedCallArgument(t *testing.T) {
	// the argument is itself produced by a non-marker call; the span covers
	// the inner call and its own argument
	m := markerModule(nil, []wasm.Instruction{
		iconst(3), callTo(2), callTo(0), op(wasm.OpEnd),
	},
		// func 3: plain (i32,i32)->i32 helper, never expanded
		[]wasm.Instruction{lget(0), op(wasm.OpEnd)},
	)
	// retype func 2 to (i32)->i32 so it consumes one value
	m.Funcs[0] = 0

	var spanLen int
	p := New(m, Config{
		Placeholder: func(arg []wasm.Instruction) []wasm.Instruction {
			spanLen = len(arg)
			return arg
		},
	})
	if err := p.ExpandFunc(2); err != nil {
		t.Fatalf("ExpandFunc: %v", err)
	}
	if spanLen != 2 {
		t.Errorf("span length: got %d, want 2", spanLen)
	}
	wantBody(t, m, 0, []wasm.Instruction{
		iconst(3), callTo(2), op(wasm.OpEnd),
	})
}

func TestExpandPlaceholderMissingProcessor(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(0), callTo(0), op(wasm.OpEnd),
	})
	err := New(m, Config{Crypt: InlineXorCrypt}).Expand()
	wantKind(t, err, xerrors.KindMissingProcessor)
}

func TestExpandPlaceholderTraceFailure(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		iconst(1),
		{Opcode: wasm.OpBr, Imm: wasm.BranchImm{}},
		callTo(0), op(wasm.OpEnd),
	})
	err := New(m, Config{Placeholder: PassthroughPlaceholder}).Expand()
	wantKind(t, err, xerrors.KindTraceFailure)
	if !errors.Is(err, trace.ErrControlFlow) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestExpandPlaceholderWrongArity(t *testing.T) {
	m := markerModule(nil, []wasm.Instruction{
		lget(0), lget(1), callTo(0), op(wasm.OpEnd),
	})
	// retype the placeholder import to (i32,i32)->i32
	m.Imports[0].Desc.TypeIdx = 1

	err := New(m, Config{Placeholder: PassthroughPlaceholder}).Expand()
	wantKind(t, err, xerrors.KindBadOperandShape)
}
