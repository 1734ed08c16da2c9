package wasm

import (
	"bytes"
	"encoding/binary"
)

// EncodeModule encodes a Module back to binary form. Custom sections are
// appended after the data section regardless of their original position.
func EncodeModule(m *Module) []byte {
	var out bytes.Buffer
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], Version)
	out.Write(header[:])

	if len(m.Types) > 0 {
		writeSection(&out, SectionType, encodeTypeSection(m))
	}
	if len(m.Imports) > 0 {
		writeSection(&out, SectionImport, encodeImportSection(m))
	}
	if len(m.Funcs) > 0 {
		writeSection(&out, SectionFunction, encodeFunctionSection(m))
	}
	if len(m.Tables) > 0 {
		writeSection(&out, SectionTable, encodeTableSection(m))
	}
	if len(m.Memories) > 0 {
		writeSection(&out, SectionMemory, encodeMemorySection(m))
	}
	if len(m.Globals) > 0 {
		writeSection(&out, SectionGlobal, encodeGlobalSection(m))
	}
	if len(m.Exports) > 0 {
		writeSection(&out, SectionExport, encodeExportSection(m))
	}
	if m.Start != nil {
		var buf bytes.Buffer
		WriteLEB128u(&buf, *m.Start)
		writeSection(&out, SectionStart, buf.Bytes())
	}
	if len(m.Elements) > 0 {
		writeSection(&out, SectionElement, encodeElementSection(m))
	}
	if m.DataCount != nil {
		var buf bytes.Buffer
		WriteLEB128u(&buf, *m.DataCount)
		writeSection(&out, SectionDataCount, buf.Bytes())
	}
	if len(m.Code) > 0 {
		writeSection(&out, SectionCode, encodeCodeSection(m))
	}
	if len(m.Data) > 0 {
		writeSection(&out, SectionData, encodeDataSection(m))
	}
	for _, cs := range m.CustomSections {
		var buf bytes.Buffer
		writeName(&buf, cs.Name)
		buf.Write(cs.Data)
		writeSection(&out, SectionCustom, buf.Bytes())
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	WriteLEB128u(out, uint32(len(body)))
	out.Write(body)
}

func writeName(buf *bytes.Buffer, name string) {
	WriteLEB128u(buf, uint32(len(name)))
	buf.WriteString(name)
}

func writeConstExpr(buf *bytes.Buffer, expr []Instruction) {
	EncodeInstructionsTo(buf, expr)
	buf.WriteByte(OpEnd)
}

func writeLimits(buf *bytes.Buffer, lim Limits) {
	if lim.Max != nil {
		buf.WriteByte(1)
		WriteLEB128u(buf, lim.Min)
		WriteLEB128u(buf, *lim.Max)
		return
	}
	buf.WriteByte(0)
	WriteLEB128u(buf, lim.Min)
}

func writeTableType(buf *bytes.Buffer, tt TableType) {
	buf.WriteByte(byte(tt.ElemType))
	writeLimits(buf, tt.Limits)
}

func writeGlobalType(buf *bytes.Buffer, gt GlobalType) {
	buf.WriteByte(byte(gt.ValType))
	if gt.Mutable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func encodeTypeSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Types)))
	for _, ft := range m.Types {
		buf.WriteByte(FuncTypeByte)
		writeValTypes(&buf, ft.Params)
		writeValTypes(&buf, ft.Results)
	}
	return buf.Bytes()
}

func writeValTypes(buf *bytes.Buffer, types []ValType) {
	WriteLEB128u(buf, uint32(len(types)))
	for _, t := range types {
		buf.WriteByte(byte(t))
	}
}

func encodeImportSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		writeName(&buf, imp.Module)
		writeName(&buf, imp.Name)
		buf.WriteByte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			WriteLEB128u(&buf, imp.Desc.TypeIdx)
		case KindTable:
			writeTableType(&buf, *imp.Desc.Table)
		case KindMemory:
			writeLimits(&buf, imp.Desc.Memory.Limits)
		case KindGlobal:
			writeGlobalType(&buf, *imp.Desc.Global)
		}
	}
	return buf.Bytes()
}

func encodeFunctionSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Funcs)))
	for _, typeIdx := range m.Funcs {
		WriteLEB128u(&buf, typeIdx)
	}
	return buf.Bytes()
}

func encodeTableSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Tables)))
	for _, tt := range m.Tables {
		writeTableType(&buf, tt)
	}
	return buf.Bytes()
}

func encodeMemorySection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Memories)))
	for _, mt := range m.Memories {
		writeLimits(&buf, mt.Limits)
	}
	return buf.Bytes()
}

func encodeGlobalSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		writeGlobalType(&buf, g.Type)
		writeConstExpr(&buf, g.Init)
	}
	return buf.Bytes()
}

func encodeExportSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Exports)))
	for _, e := range m.Exports {
		writeName(&buf, e.Name)
		buf.WriteByte(e.Kind)
		WriteLEB128u(&buf, e.Idx)
	}
	return buf.Bytes()
}

func encodeElementSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Elements)))
	for _, el := range m.Elements {
		WriteLEB128u(&buf, el.Flags)
		if el.Flags == 2 {
			WriteLEB128u(&buf, el.TableIdx)
		}
		if el.Flags == 0 || el.Flags == 2 {
			writeConstExpr(&buf, el.Offset)
		}
		if el.Flags != 0 {
			buf.WriteByte(el.ElemKind)
		}
		WriteLEB128u(&buf, uint32(len(el.FuncIdxs)))
		for _, fi := range el.FuncIdxs {
			WriteLEB128u(&buf, fi)
		}
	}
	return buf.Bytes()
}

func encodeCodeSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Code)))
	for _, body := range m.Code {
		var fb bytes.Buffer
		WriteLEB128u(&fb, uint32(len(body.Locals)))
		for _, le := range body.Locals {
			WriteLEB128u(&fb, le.Count)
			fb.WriteByte(byte(le.ValType))
		}
		fb.Write(body.Code)
		WriteLEB128u(&buf, uint32(fb.Len()))
		buf.Write(fb.Bytes())
	}
	return buf.Bytes()
}

func encodeDataSection(m *Module) []byte {
	var buf bytes.Buffer
	WriteLEB128u(&buf, uint32(len(m.Data)))
	for _, seg := range m.Data {
		WriteLEB128u(&buf, seg.Flags)
		if seg.Flags == 2 {
			WriteLEB128u(&buf, seg.MemIdx)
		}
		if seg.Flags != 1 {
			writeConstExpr(&buf, seg.Offset)
		}
		WriteLEB128u(&buf, uint32(len(seg.Init)))
		buf.Write(seg.Init)
	}
	return buf.Bytes()
}
