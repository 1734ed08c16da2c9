package trace

import (
	"errors"
	"testing"

	"github.com/wippyai/wasm-expand/wasm"
)

func iconst(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func lget(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: i}}
}

func call(f uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: f}}
}

// traceModule defines funcs with a spread of arities:
//
//	0: (i32) -> i32
//	1: (i32, i32) -> i32
//	2: () -> i32
//	3: (i32) -> (i32, i32)
func traceModule() *wasm.Module {
	m := &wasm.Module{}
	m.Funcs = []uint32{
		m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}),
		m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}),
		m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}),
		m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32, wasm.ValI32}}),
	}
	return m
}

func TestTraceArguments(t *testing.T) {
	tr := NewStackTracer(traceModule())

	cases := []struct {
		name string
		body []wasm.Instruction
		idx  int
		want []int
	}{
		{
			name: "single const",
			body: []wasm.Instruction{iconst(1), call(0)},
			idx:  1,
			want: []int{0},
		},
		{
			name: "two flat args",
			body: []wasm.Instruction{iconst(1), lget(0), call(1)},
			idx:  2,
			want: []int{0, 1},
		},
		{
			name: "arg spanning an add",
			body: []wasm.Instruction{lget(0), iconst(1), iconst(2), {Opcode: wasm.OpI32Add}, call(1)},
			idx:  4,
			want: []int{0, 1},
		},
		{
			name: "nested call as producer",
			body: []wasm.Instruction{iconst(3), call(0), call(0)},
			idx:  2,
			want: []int{0},
		},
		{
			name: "zero-arg call",
			body: []wasm.Instruction{iconst(9), call(2)},
			idx:  1,
			want: []int{},
		},
		{
			name: "preceding unrelated values stay out of the span",
			body: []wasm.Instruction{iconst(5), iconst(6), call(0)},
			idx:  2,
			want: []int{1},
		},
		{
			name: "local.tee is transparent",
			body: []wasm.Instruction{iconst(4), {Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 0}}, call(0)},
			idx:  2,
			want: []int{0},
		},
		{
			// both results of call(3) are settled inside the span, so the
			// argument is still attributable
			name: "multi-result balanced by drop",
			body: []wasm.Instruction{iconst(1), call(3), {Opcode: wasm.OpDrop}, call(0)},
			idx:  3,
			want: []int{0},
		},
		{
			name: "store consumer",
			body: []wasm.Instruction{iconst(0), iconst(1), {Opcode: wasm.OpI32Store, Imm: wasm.MemoryImm{Align: 2}}},
			idx:  2,
			want: []int{0, 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.TraceArguments(tc.body, tc.idx)
			if err != nil {
				t.Fatalf("TraceArguments: %v", err)
			}
			if got == nil {
				t.Fatal("got nil span slice")
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestTraceFailures(t *testing.T) {
	tr := NewStackTracer(traceModule())

	cases := []struct {
		name    string
		body    []wasm.Instruction
		idx     int
		wantErr error
	}{
		{
			name:    "control flow in span",
			body:    []wasm.Instruction{iconst(1), {Opcode: wasm.OpBr, Imm: wasm.BranchImm{}}, call(0)},
			idx:     2,
			wantErr: ErrControlFlow,
		},
		{
			name:    "operand produced before the region",
			body:    []wasm.Instruction{call(0)},
			idx:     0,
			wantErr: ErrStackUnderflow,
		},
		{
			name:    "unknown callee signature",
			body:    []wasm.Instruction{iconst(1), call(99)},
			idx:     1,
			wantErr: ErrUnknownSignature,
		},
		{
			// call(3) pushes both args of call(1) at once; the second
			// argument has no span of its own.
			name:    "multi-result producer is ambiguous",
			body:    []wasm.Instruction{iconst(1), call(3), call(1)},
			idx:     2,
			wantErr: ErrAmbiguousProducer,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.TraceArguments(tc.body, tc.idx)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTraceIndexOutOfRange(t *testing.T) {
	tr := NewStackTracer(traceModule())
	if _, err := tr.TraceArguments([]wasm.Instruction{iconst(1)}, 5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}
