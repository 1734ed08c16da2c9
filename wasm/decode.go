package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Decoding errors returned by DecodeModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// DecodeModule decodes a WebAssembly binary into a Module.
func DecodeModule(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(header[4:8]) != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	lastOrder := 0

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("section id: %w", err)
		}
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section size: %w", err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("section %d: size %d exceeds remaining input", id, size)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}

		// Custom sections may appear anywhere; other sections must be ordered.
		if id != SectionCustom {
			order := sectionOrder(id)
			if order < 0 {
				return nil, fmt.Errorf("unknown section id %d", id)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		sr := bytes.NewReader(body)
		if err := decodeSection(id, sr, m); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function section declares %d functions, code section has %d bodies",
			len(m.Funcs), len(m.Code))
	}
	return m, nil
}

// sectionOrder returns the canonical position of a section ID. DataCount
// sits between Element and Code.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	default:
		return -1
	}
}

func decodeSection(id byte, r *bytes.Reader, m *Module) error {
	switch id {
	case SectionCustom:
		return decodeCustomSection(r, m)
	case SectionType:
		return decodeTypeSection(r, m)
	case SectionImport:
		return decodeImportSection(r, m)
	case SectionFunction:
		return decodeFunctionSection(r, m)
	case SectionTable:
		return decodeTableSection(r, m)
	case SectionMemory:
		return decodeMemorySection(r, m)
	case SectionGlobal:
		return decodeGlobalSection(r, m)
	case SectionExport:
		return decodeExportSection(r, m)
	case SectionStart:
		idx, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		m.Start = &idx
		return nil
	case SectionElement:
		return decodeElementSection(r, m)
	case SectionDataCount:
		count, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		m.DataCount = &count
		return nil
	case SectionCode:
		return decodeCodeSection(r, m)
	case SectionData:
		return decodeDataSection(r, m)
	}
	return nil
}

func decodeCustomSection(r *bytes.Reader, m *Module) error {
	name, err := readName(r)
	if err != nil {
		return err
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: rest})
	return nil
}

func decodeTypeSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("type %d: unsupported type form 0x%02x", i, form)
		}
		ft, err := readFuncType(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func readFuncType(r *bytes.Reader) (FuncType, error) {
	params, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readValTypes(r *bytes.Reader) ([]ValType, error) {
	count, err := ReadLEB128u(r)
	if err != nil {
		return nil, err
	}
	types := make([]ValType, count)
	for i := range types {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		types[i] = ValType(b)
	}
	return types, nil
}

func decodeImportSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := readName(r)
		if err != nil {
			return err
		}
		name, err := readName(r)
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Desc: ImportDesc{Kind: kind}}
		switch kind {
		case KindFunc:
			if imp.Desc.TypeIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		case KindTable:
			tt, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &tt
		case KindMemory:
			lim, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &MemoryType{Limits: lim}
		case KindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &gt
		default:
			return fmt.Errorf("import %q.%q: unknown kind %d", mod, name, kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = ReadLEB128u(r); err != nil {
			return err
		}
	}
	return nil
}

func decodeTableSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Tables = make([]TableType, 0, count)
	for i := uint32(0); i < count; i++ {
		tt, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

func decodeMemorySection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Memories = make([]MemoryType, 0, count)
	for i := uint32(0); i < count; i++ {
		lim, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, MemoryType{Limits: lim})
	}
	return nil
}

func decodeGlobalSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Globals = make([]Global, 0, count)
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("global %d init: %w", i, err)
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func decodeExportSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

func decodeElementSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Elements = make([]Element, 0, count)
	for i := uint32(0); i < count; i++ {
		flags, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		if flags > 3 {
			return fmt.Errorf("element %d: expression form (flags %d) not supported", i, flags)
		}
		el := Element{Flags: flags}
		if flags == 2 {
			if el.TableIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		if flags == 0 || flags == 2 {
			if el.Offset, err = readConstExpr(r); err != nil {
				return fmt.Errorf("element %d offset: %w", i, err)
			}
		}
		if flags != 0 {
			if el.ElemKind, err = r.ReadByte(); err != nil {
				return err
			}
		}
		n, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		el.FuncIdxs = make([]uint32, n)
		for j := range el.FuncIdxs {
			if el.FuncIdxs[j], err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		m.Elements = append(m.Elements, el)
	}
	return nil
}

func decodeCodeSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return err
		}
		br := bytes.NewReader(body)
		localCount, err := ReadLEB128u(br)
		if err != nil {
			return err
		}
		locals := make([]LocalEntry, 0, localCount)
		for j := uint32(0); j < localCount; j++ {
			n, err := ReadLEB128u(br)
			if err != nil {
				return err
			}
			vt, err := br.ReadByte()
			if err != nil {
				return err
			}
			locals = append(locals, LocalEntry{Count: n, ValType: ValType(vt)})
		}
		code := make([]byte, br.Len())
		if _, err := io.ReadFull(br, code); err != nil {
			return err
		}
		m.Code = append(m.Code, FuncBody{Locals: locals, Code: code})
	}
	return nil
}

func decodeDataSection(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, 0, count)
	for i := uint32(0); i < count; i++ {
		flags, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		if flags > 2 {
			return fmt.Errorf("data %d: unknown flags %d", i, flags)
		}
		seg := DataSegment{Flags: flags}
		if flags == 2 {
			if seg.MemIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		if flags != 1 {
			if seg.Offset, err = readConstExpr(r); err != nil {
				return fmt.Errorf("data %d offset: %w", i, err)
			}
		}
		n, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		seg.Init = make([]byte, n)
		if _, err := io.ReadFull(r, seg.Init); err != nil {
			return err
		}
		m.Data = append(m.Data, seg)
	}
	return nil
}

// readConstExpr reads instructions up to and excluding the terminating end.
func readConstExpr(r *bytes.Reader) ([]Instruction, error) {
	var instrs []Instruction
	for {
		instr, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		if instr.Opcode == OpEnd {
			return instrs, nil
		}
		instrs = append(instrs, instr)
	}
}

func readName(r *bytes.Reader) (string, error) {
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func readLimits(r *bytes.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := ReadLEB128u(r)
	if err != nil {
		return Limits{}, err
	}
	lim := Limits{Min: min}
	if flags&1 != 0 {
		max, err := ReadLEB128u(r)
		if err != nil {
			return Limits{}, err
		}
		lim.Max = &max
	}
	return lim, nil
}

func readTableType(r *bytes.Reader) (TableType, error) {
	et, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	lim, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: ValType(et), Limits: lim}, nil
}

func readGlobalType(r *bytes.Reader) (GlobalType, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	return GlobalType{ValType: ValType(vt), Mutable: mut == 1}, nil
}
