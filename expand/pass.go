package expand

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/trace"
	"github.com/wippyai/wasm-expand/wasm"
)

// Tracer resolves the provenance of the stack values consumed by an
// instruction: one producer-span start index per argument, first argument
// first. An empty result means the instruction consumes nothing; an error
// means provenance could not be determined.
type Tracer interface {
	TraceArguments(body []wasm.Instruction, idx int) ([]int, error)
}

// Config configures a Pass. The key mapping and both transforms must be
// fully set before Expand is called and must not change while it runs.
type Config struct {
	// Namespace is the import module name reserved for markers.
	// Empty selects DefaultNamespace.
	Namespace string

	// Keys maps key slots to their values. Every KeyI field actually
	// referenced by the module must have an entry.
	Keys map[KeySlot]uint32

	// Placeholder and Crypt produce replacement code for their markers.
	// A marker encountered with a nil transform fails the pass.
	Placeholder PlaceholderFunc
	Crypt       CryptFunc

	// Tracer overrides the operand provenance tracer. Nil selects a
	// trace.StackTracer over the module being rewritten.
	Tracer Tracer
}

// Pass rewrites marker operations in one module. A Pass is configured once
// at construction and is not safe for concurrent use.
type Pass struct {
	mod     *wasm.Module
	cfg     Config
	markers markerSet
	tracer  Tracer
	log     *zap.Logger
}

// New creates a pass over mod. The marker namespace is resolved here, once;
// a module that imports nothing from it yields a no-op pass.
func New(mod *wasm.Module, cfg Config) *Pass {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.NewStackTracer(mod)
	}
	return &Pass{
		mod:     mod,
		cfg:     cfg,
		markers: resolveMarkers(mod, namespace),
		tracer:  tracer,
		log:     Logger(),
	}
}

// Expand rewrites every function body in the module. The first failure
// aborts immediately and may leave the module partially rewritten.
func (p *Pass) Expand() error {
	if p.markers.empty() {
		p.log.Debug("no marker imports; nothing to expand")
		return nil
	}
	numImported := uint32(p.mod.NumImportedFuncs())
	for i := range p.mod.Code {
		if err := p.ExpandFunc(numImported + uint32(i)); err != nil {
			return err
		}
	}
	p.log.Info("marker expansion complete", zap.Int("functions", len(p.mod.Code)))
	return nil
}

// ExpandFunc rewrites the body of one defined function, identified by its
// index in the combined import+defined function index space.
func (p *Pass) ExpandFunc(funcIdx uint32) error {
	numImported := uint32(p.mod.NumImportedFuncs())
	if funcIdx < numImported || int(funcIdx-numImported) >= len(p.mod.Code) {
		return errors.New(errors.PhaseExpand, errors.KindOutOfBounds).
			Func(funcIdx).Detail("not a defined function").Build()
	}
	fb := &p.mod.Code[funcIdx-numImported]

	body, err := wasm.DecodeInstructions(fb.Code)
	if err != nil {
		return errors.Decode("function body", err)
	}

	body, changed, err := p.expandBody(funcIdx, body)
	if err != nil {
		return err
	}
	if changed {
		fb.Code = wasm.EncodeInstructions(body)
	}
	return nil
}

// expandBody performs the single forward scan. The cursor always lands on
// the next unvisited original instruction: substitutions advance it by one,
// splices advance it past the inserted replacement. Replacement instructions
// are never revisited and no original instruction is skipped, even though
// handlers change the sequence length under the scan.
func (p *Pass) expandBody(funcIdx uint32, body []wasm.Instruction) ([]wasm.Instruction, bool, error) {
	changed := false
	for i := 0; i < len(body); {
		kind, member := p.markers.classify(body[i])
		switch kind {
		case markerNone:
			i++

		case markerKeyField:
			if err := p.resolveKeyField(funcIdx, body, i, member); err != nil {
				return body, changed, err
			}
			changed = true
			i++

		case markerPlaceholder:
			var err error
			body, i, err = p.expandPlaceholder(funcIdx, body, i)
			if err != nil {
				return body, changed, err
			}
			changed = true

		case markerCrypt:
			var err error
			body, i, err = p.expandCrypt(funcIdx, body, i)
			if err != nil {
				return body, changed, err
			}
			changed = true

		case markerUnknown:
			return body, changed, errors.UnexpectedMarkerUse(funcIdx, i, member)
		}
	}
	return body, changed, nil
}
