package expand

import (
	"github.com/wippyai/wasm-expand/wasm"
)

// DefaultNamespace is the import module name reserved for marker members.
const DefaultNamespace = "codegen"

// Marker member names understood by the pass. Key fields follow the
// KeyI0..KeyI15 naming scheme checked by parseKeyField.
const (
	memberPlaceholder = "Placeholder"
	memberCrypt       = "Crypt"
)

type markerKind int

const (
	markerNone markerKind = iota
	markerKeyField
	markerPlaceholder
	markerCrypt
	markerUnknown // references the namespace in a shape no expander accepts
)

// markerSet holds the import indices belonging to the marker namespace,
// resolved once at pass construction. All classification afterwards compares
// indices, never names, so a same-named import from another namespace can
// never match.
type markerSet struct {
	funcs   map[uint32]string // function index -> import name
	globals map[uint32]string // global index -> import name
}

// resolveMarkers scans the import section for members of namespace.
func resolveMarkers(mod *wasm.Module, namespace string) markerSet {
	s := markerSet{
		funcs:   make(map[uint32]string),
		globals: make(map[uint32]string),
	}
	var funcIdx, globalIdx uint32
	for _, imp := range mod.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			if imp.Module == namespace {
				s.funcs[funcIdx] = imp.Name
			}
			funcIdx++
		case wasm.KindGlobal:
			if imp.Module == namespace {
				s.globals[globalIdx] = imp.Name
			}
			globalIdx++
		}
	}
	return s
}

func (s markerSet) empty() bool {
	return len(s.funcs) == 0 && len(s.globals) == 0
}

// classify determines whether instr is a marker operation and returns the
// member name involved. It never fails: any reference to a marker member
// outside the two accepted shapes (global.get of a field, call of a known
// function) classifies as markerUnknown, which the driver reports as an
// unexpected marker use instead of silently skipping.
func (s markerSet) classify(instr wasm.Instruction) (markerKind, string) {
	switch instr.Opcode {
	case wasm.OpGlobalGet:
		if imm, ok := instr.Imm.(wasm.GlobalImm); ok {
			if name, ok := s.globals[imm.GlobalIdx]; ok {
				return markerKeyField, name
			}
		}
	case wasm.OpGlobalSet:
		if imm, ok := instr.Imm.(wasm.GlobalImm); ok {
			if name, ok := s.globals[imm.GlobalIdx]; ok {
				return markerUnknown, name
			}
		}
	case wasm.OpCall:
		if imm, ok := instr.Imm.(wasm.CallImm); ok {
			if name, ok := s.funcs[imm.FuncIdx]; ok {
				switch name {
				case memberPlaceholder:
					return markerPlaceholder, name
				case memberCrypt:
					return markerCrypt, name
				default:
					return markerUnknown, name
				}
			}
		}
	case wasm.OpReturnCall:
		if imm, ok := instr.Imm.(wasm.CallImm); ok {
			if name, ok := s.funcs[imm.FuncIdx]; ok {
				return markerUnknown, name
			}
		}
	case wasm.OpRefFunc:
		if imm, ok := instr.Imm.(wasm.RefFuncImm); ok {
			if name, ok := s.funcs[imm.FuncIdx]; ok {
				return markerUnknown, name
			}
		}
	}
	return markerNone, ""
}
