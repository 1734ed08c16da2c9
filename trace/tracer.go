// Package trace resolves operand provenance in straight-line WebAssembly
// code: given an instruction that consumes stack values, it determines which
// contiguous instruction spans produced them.
package trace

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-expand/wasm"
)

// Tracing failures. All of them mean the consumer's operands cannot be
// attributed to contiguous producer spans.
var (
	ErrControlFlow       = errors.New("trace: control transfer within span")
	ErrUnsupportedOpcode = errors.New("trace: unsupported opcode")
	ErrUnknownSignature  = errors.New("trace: unknown call signature")
	ErrStackUnderflow    = errors.New("trace: operand produced outside traced region")
	ErrAmbiguousProducer = errors.New("trace: ambiguous producer")
)

// StackTracer traces operand provenance by abstract interpretation of
// per-instruction stack effects. It needs the owning module to resolve
// call arities.
type StackTracer struct {
	mod *wasm.Module
}

// NewStackTracer creates a tracer for functions of mod.
func NewStackTracer(mod *wasm.Module) *StackTracer {
	return &StackTracer{mod: mod}
}

// TraceArguments returns, for each stack value consumed by body[idx], the
// index of the first instruction of the contiguous span that produces it,
// ordered first argument first. A consumer of zero values yields an empty,
// non-nil slice. Any control transfer, unsupported instruction, or dataflow
// the backward walk cannot attribute is an error.
func (t *StackTracer) TraceArguments(body []wasm.Instruction, idx int) ([]int, error) {
	if idx < 0 || idx >= len(body) {
		return nil, fmt.Errorf("trace: instruction index %d out of range", idx)
	}
	arity, _, err := stackEffect(body[idx], t.mod)
	if err != nil {
		return nil, err
	}

	starts := make([]int, arity)
	end := idx // exclusive end of the span for the argument being resolved
	for arg := arity - 1; arg >= 0; arg-- {
		start, err := t.producerStart(body, end)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", arg, body[idx], err)
		}
		starts[arg] = start
		end = start
	}
	return starts, nil
}

// producerStart walks backward from end (exclusive) until the net stack
// effect of the walked suffix produces exactly the one value consumed at end.
func (t *StackTracer) producerStart(body []wasm.Instruction, end int) (int, error) {
	needed := 1
	for k := end - 1; k >= 0; k-- {
		pops, pushes, err := stackEffect(body[k], t.mod)
		if err != nil {
			return 0, err
		}
		needed -= pushes
		if needed < 0 {
			// The producer pushes more values than this argument consumes
			// (multi-result call straddling the span boundary).
			return 0, ErrAmbiguousProducer
		}
		needed += pops
		if needed == 0 {
			return k, nil
		}
	}
	return 0, ErrStackUnderflow
}
