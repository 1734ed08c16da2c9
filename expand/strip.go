package expand

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-expand/errors"
	"github.com/wippyai/wasm-expand/wasm"
)

// StripImports removes the marker imports left dead by a successful
// expansion and renumbers every function and global index reference in the
// module: code bodies, exports, element segments, the start function, and
// constant expressions. Every rewrite is computed against copies first and
// committed only after all of them succeed, so a marker import that is still
// referenced anywhere fails the strip with the module untouched. It must run
// after Expand.
func (p *Pass) StripImports() error {
	if p.markers.empty() {
		return nil
	}

	funcs := newIndexRemap(p.markers.funcs,
		uint32(p.mod.NumImportedFuncs())+uint32(len(p.mod.Funcs)))
	globals := newIndexRemap(p.markers.globals,
		uint32(p.mod.NumImportedGlobals())+uint32(len(p.mod.Globals)))

	// Compute phase: rewrite decoded copies, leaving the module alone.
	newCode := make([][]byte, len(p.mod.Code))
	for i := range p.mod.Code {
		body, err := wasm.DecodeInstructions(p.mod.Code[i].Code)
		if err != nil {
			return errors.Decode("function body", err)
		}
		changed, err := p.remapInstructions(body, funcs, globals)
		if err != nil {
			return err
		}
		if changed {
			newCode[i] = wasm.EncodeInstructions(body)
		}
	}

	newGlobalInit := make([][]wasm.Instruction, len(p.mod.Globals))
	for i := range p.mod.Globals {
		init := slices.Clone(p.mod.Globals[i].Init)
		if _, err := p.remapInstructions(init, funcs, globals); err != nil {
			return err
		}
		newGlobalInit[i] = init
	}

	newDataOffset := make([][]wasm.Instruction, len(p.mod.Data))
	for i := range p.mod.Data {
		offset := slices.Clone(p.mod.Data[i].Offset)
		if _, err := p.remapInstructions(offset, funcs, globals); err != nil {
			return err
		}
		newDataOffset[i] = offset
	}

	newElemOffset := make([][]wasm.Instruction, len(p.mod.Elements))
	newElemFuncs := make([][]uint32, len(p.mod.Elements))
	for i := range p.mod.Elements {
		offset := slices.Clone(p.mod.Elements[i].Offset)
		if _, err := p.remapInstructions(offset, funcs, globals); err != nil {
			return err
		}
		newElemOffset[i] = offset

		idxs := slices.Clone(p.mod.Elements[i].FuncIdxs)
		for j, fi := range idxs {
			idx, ok := funcs.apply(fi)
			if !ok {
				return p.stillReferenced(p.markers.funcs[fi])
			}
			idxs[j] = idx
		}
		newElemFuncs[i] = idxs
	}

	newExportIdx := make([]uint32, len(p.mod.Exports))
	for i, e := range p.mod.Exports {
		newExportIdx[i] = e.Idx
		switch e.Kind {
		case wasm.KindFunc:
			idx, ok := funcs.apply(e.Idx)
			if !ok {
				return p.stillReferenced(p.markers.funcs[e.Idx])
			}
			newExportIdx[i] = idx
		case wasm.KindGlobal:
			idx, ok := globals.apply(e.Idx)
			if !ok {
				return p.stillReferenced(p.markers.globals[e.Idx])
			}
			newExportIdx[i] = idx
		}
	}

	var newStart *uint32
	if p.mod.Start != nil {
		idx, ok := funcs.apply(*p.mod.Start)
		if !ok {
			return p.stillReferenced(p.markers.funcs[*p.mod.Start])
		}
		newStart = &idx
	}

	// Commit phase: nothing below can fail.
	for i := range p.mod.Code {
		if newCode[i] != nil {
			p.mod.Code[i].Code = newCode[i]
		}
	}
	for i := range p.mod.Globals {
		p.mod.Globals[i].Init = newGlobalInit[i]
	}
	for i := range p.mod.Data {
		p.mod.Data[i].Offset = newDataOffset[i]
	}
	for i := range p.mod.Elements {
		p.mod.Elements[i].Offset = newElemOffset[i]
		p.mod.Elements[i].FuncIdxs = newElemFuncs[i]
	}
	for i := range p.mod.Exports {
		p.mod.Exports[i].Idx = newExportIdx[i]
	}
	p.mod.Start = newStart

	kept := p.mod.Imports[:0]
	removed := 0
	var funcIdx, globalIdx uint32
	for _, imp := range p.mod.Imports {
		drop := false
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			_, drop = p.markers.funcs[funcIdx]
			funcIdx++
		case wasm.KindGlobal:
			_, drop = p.markers.globals[globalIdx]
			globalIdx++
		}
		if drop {
			removed++
			continue
		}
		kept = append(kept, imp)
	}
	p.mod.Imports = kept

	// The marker indices no longer exist; a second strip must be a no-op.
	p.markers = markerSet{}

	p.log.Info("stripped marker imports", zap.Int("removed", removed))
	return nil
}

func (p *Pass) stillReferenced(member string) error {
	return errors.New(errors.PhaseStrip, errors.KindUnexpectedMarkerUse).
		Member(member).Detail("marker import still referenced").Build()
}

// remapInstructions rewrites function and global index immediates in place.
func (p *Pass) remapInstructions(body []wasm.Instruction, funcs, globals indexRemap) (bool, error) {
	changed := false
	for i := range body {
		switch imm := body[i].Imm.(type) {
		case wasm.CallImm:
			idx, ok := funcs.apply(imm.FuncIdx)
			if !ok {
				return changed, p.stillReferenced(p.markers.funcs[imm.FuncIdx])
			}
			if idx != imm.FuncIdx {
				body[i].Imm = wasm.CallImm{FuncIdx: idx}
				changed = true
			}
		case wasm.RefFuncImm:
			idx, ok := funcs.apply(imm.FuncIdx)
			if !ok {
				return changed, p.stillReferenced(p.markers.funcs[imm.FuncIdx])
			}
			if idx != imm.FuncIdx {
				body[i].Imm = wasm.RefFuncImm{FuncIdx: idx}
				changed = true
			}
		case wasm.GlobalImm:
			idx, ok := globals.apply(imm.GlobalIdx)
			if !ok {
				return changed, p.stillReferenced(p.markers.globals[imm.GlobalIdx])
			}
			if idx != imm.GlobalIdx {
				body[i].Imm = wasm.GlobalImm{GlobalIdx: idx}
				changed = true
			}
		}
	}
	return changed, nil
}

// indexRemap maps pre-strip indices to post-strip indices. Removed indices
// have no mapping.
type indexRemap struct {
	newIdx []uint32
	gone   []bool
}

func newIndexRemap(removed map[uint32]string, total uint32) indexRemap {
	r := indexRemap{
		newIdx: make([]uint32, total),
		gone:   make([]bool, total),
	}
	var shift uint32
	for old := uint32(0); old < total; old++ {
		if _, ok := removed[old]; ok {
			r.gone[old] = true
			shift++
			continue
		}
		r.newIdx[old] = old - shift
	}
	return r
}

func (r indexRemap) apply(old uint32) (uint32, bool) {
	if int(old) >= len(r.newIdx) {
		// out of declared index space; leave for the validator to reject
		return old, true
	}
	if r.gone[old] {
		return 0, false
	}
	return r.newIdx[old], true
}
