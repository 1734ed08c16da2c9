package expand

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/wasm"
)

// PlaceholderFunc produces the replacement for a placeholder marker. It
// receives the isolated argument span (never the call itself) and returns
// the instructions spliced in at the span's former position. It must not
// retain or mutate the input beyond the call.
type PlaceholderFunc func(arg []wasm.Instruction) []wasm.Instruction

// expandPlaceholder replaces the argument span and the call at callIdx with
// the configured transform's output. Returns the updated body and the index
// of the next unvisited original instruction.
func (p *Pass) expandPlaceholder(funcIdx uint32, body []wasm.Instruction, callIdx int) ([]wasm.Instruction, int, error) {
	if p.cfg.Placeholder == nil {
		return body, callIdx, errors.MissingProcessor(funcIdx, callIdx, memberPlaceholder)
	}

	starts, err := p.tracer.TraceArguments(body, callIdx)
	if err != nil {
		return body, callIdx, errors.TraceFailure(funcIdx, callIdx, err)
	}
	if len(starts) != 1 {
		return body, callIdx, errors.BadOperandShape(funcIdx, callIdx,
			"placeholder call must consume exactly one value")
	}
	start := starts[0]

	span := slices.Clone(body[start:callIdx])
	replacement := p.cfg.Placeholder(span)
	body = splice(body, start, callIdx+1, replacement)

	p.log.Debug("expanded placeholder",
		zap.Uint32("func", funcIdx),
		zap.Int("start", start),
		zap.Int("removed", callIdx+1-start),
		zap.Int("inserted", len(replacement)))
	return body, start + len(replacement), nil
}

// splice removes seq[start:end] and inserts repl at start.
func splice(seq []wasm.Instruction, start, end int, repl []wasm.Instruction) []wasm.Instruction {
	out := make([]wasm.Instruction, 0, len(seq)-(end-start)+len(repl))
	out = append(out, seq[:start]...)
	out = append(out, repl...)
	out = append(out, seq[end:]...)
	return out
}
