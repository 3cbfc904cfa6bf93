// Copyright (c) 2024 The Cwerg-Go Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package elfwriter

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

// On-disk struct sizes, used by Layout to reserve space for the header and
// program header table before the first loadable section.
const (
	elfHeaderSize     = 64 // matches binary.Size(elf.Header64{}) for ELFCLASS64
	progHeaderSize    = 56 // matches binary.Size(elf.Prog64{})
	sectionHeaderSize = 64 // matches binary.Size(elf.Section64{})
	elfHeaderSize32   = 52 // matches binary.Size(elf.Header32{}) for ELFCLASS32
	progHeaderSize32  = 32 // matches binary.Size(elf.Prog32{})
	sectHeaderSize32  = 40 // matches binary.Size(elf.Section32{})
	sym64Size         = 24 // matches binary.Size(elf.Sym64{})
	sym32Size         = 16 // matches binary.Size(elf.Sym32{})
)

// Is64 reports whether this image's machine uses the 64-bit ELF class.
// AArch32 is the one 32-bit target this writer supports; AArch64 and
// x86-64 are both ELFCLASS64.
func (im *Image) Is64() bool { return im.Machine != elf.EM_ARM }

// strTabBuilder accumulates a NUL-separated string table, starting with
// the mandatory empty string at offset 0.
type strTabBuilder struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStrTabBuilder() *strTabBuilder {
	b := &strTabBuilder{offset: make(map[string]uint32)}
	b.buf.WriteByte(0)
	return b
}

func (b *strTabBuilder) add(s string) uint32 {
	if s == "" {
		return 0
	}
	if off, ok := b.offset[s]; ok {
		return off
	}
	off := uint32(b.buf.Len())
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	b.offset[s] = off
	return off
}

// Bytes emits the final ELF file image. Layout and every ApplyRelocs
// call must have already run. It synthesizes .symtab, .strtab and
// .shstrtab from im.Symbols/im.Sections, placing them in the PSEUDO
// group right after the last user section Layout placed; they are not
// SHF_ALLOC, so no program header covers them.
func (im *Image) Bytes() ([]byte, error) {
	if !im.laidOut {
		return nil, fmtErr("Bytes called before Layout")
	}
	entrySym := im.Symbol(im.EntrySymbolName)
	if entrySym == nil {
		return nil, fmtErr("missing %q symbol: entry point is mandatory", im.EntrySymbolName)
	}

	shstrtab := newStrTabBuilder()
	strtab := newStrTabBuilder()

	// Section index 0 is SHT_NULL by ELF convention; user sections follow
	// in Sections order, then the three synthesized pseudo sections.
	type shdr struct {
		name, typ, flags, addr, offset, size, link, info, align, entsize uint64
	}
	var shdrs []shdr
	shdrs = append(shdrs, shdr{}) // SHT_NULL

	secIndex := make(map[*Section]int, len(im.Sections))
	for _, s := range im.Sections {
		secIndex[s] = len(shdrs)
		shdrs = append(shdrs, shdr{
			name:   uint64(shstrtab.add(s.Name)),
			typ:    uint64(sht(s.Type)),
			flags:  uint64(shf(s.Flags)),
			addr:   s.Addr,
			offset: s.Offset,
			size:   s.Size(),
			align:  s.Align,
		})
	}

	symSize := uint64(sym64Size)
	if !im.Is64() {
		symSize = sym32Size
	}

	var symtabBuf bytes.Buffer
	writeSym := func(nameOff uint32, value, size uint64, info byte, shndx uint16) {
		if im.Is64() {
			binary.Write(&symtabBuf, binary.LittleEndian, uint32(nameOff))
			symtabBuf.WriteByte(info)
			symtabBuf.WriteByte(0)
			binary.Write(&symtabBuf, binary.LittleEndian, shndx)
			binary.Write(&symtabBuf, binary.LittleEndian, value)
			binary.Write(&symtabBuf, binary.LittleEndian, size)
		} else {
			binary.Write(&symtabBuf, binary.LittleEndian, uint32(nameOff))
			binary.Write(&symtabBuf, binary.LittleEndian, uint32(value))
			binary.Write(&symtabBuf, binary.LittleEndian, uint32(size))
			symtabBuf.WriteByte(info)
			symtabBuf.WriteByte(0)
			binary.Write(&symtabBuf, binary.LittleEndian, shndx)
		}
	}
	writeSym(0, 0, 0, 0, 0) // null symbol, index 0
	for _, sym := range im.Symbols {
		shndx := uint16(elf.SHN_ABS)
		if sym.Section != nil {
			shndx = uint16(secIndex[sym.Section])
		}
		writeSym(strtab.add(sym.Name), sym.Value, sym.Size, symInfo(sym), shndx)
	}

	symtabIdx := len(shdrs)
	offset := im.nextOffset
	offset = alignUp(offset, 8)
	symtabOff := offset
	shdrs = append(shdrs, shdr{
		name: uint64(shstrtab.add(".symtab")), typ: uint64(elf.SHT_SYMTAB),
		offset: symtabOff, size: uint64(symtabBuf.Len()), link: uint64(symtabIdx + 1),
		info: 1, align: 8, entsize: symSize,
	})
	offset += uint64(symtabBuf.Len())

	strtabOff := offset
	shdrs = append(shdrs, shdr{
		name: uint64(shstrtab.add(".strtab")), typ: uint64(elf.SHT_STRTAB),
		offset: strtabOff, size: uint64(strtab.buf.Len()), align: 1,
	})
	offset += uint64(strtab.buf.Len())

	shstrtabIdx := len(shdrs)
	shstrtabNameOff := shstrtab.add(".shstrtab")
	shstrtabOff := offset
	shdrs = append(shdrs, shdr{
		name: uint64(shstrtabNameOff), typ: uint64(elf.SHT_STRTAB),
		offset: shstrtabOff, size: uint64(shstrtab.buf.Len()), align: 1,
	})

	segs := im.segments()
	numLoadSegs := len(segs)

	var out bytes.Buffer
	if im.Is64() {
		phoff := uint64(elfHeaderSize)
		shoff := alignUp(shstrtabOff+uint64(shstrtab.buf.Len()), 8)
		writeHeader64(&out, im.Machine, entrySym.Value, phoff, shoff, uint16(numLoadSegs), uint16(len(shdrs)), uint16(shstrtabIdx))
		for _, p := range segs {
			writeProg64(&out, p)
		}
		writeBody(&out, im)
		padTo(&out, symtabOff)
		out.Write(symtabBuf.Bytes())
		out.Write(strtab.buf.Bytes())
		out.Write(shstrtab.buf.Bytes())
		padTo(&out, shoff)
		for _, h := range shdrs {
			writeShdr64(&out, h)
		}
	} else {
		phoff := uint64(elfHeaderSize32)
		shoff := alignUp(shstrtabOff+uint64(shstrtab.buf.Len()), 4)
		writeHeader32(&out, im.Machine, uint32(entrySym.Value), uint32(phoff), uint32(shoff), uint16(numLoadSegs), uint16(len(shdrs)), uint16(shstrtabIdx))
		for _, p := range segs {
			writeProg32(&out, p)
		}
		writeBody(&out, im)
		padTo(&out, symtabOff)
		out.Write(symtabBuf.Bytes())
		out.Write(strtab.buf.Bytes())
		out.Write(shstrtab.buf.Bytes())
		padTo(&out, shoff)
		for _, h := range shdrs {
			writeShdr32(&out, h)
		}
	}

	return out.Bytes(), nil
}

func symInfo(sym *Symbol) byte {
	bind := byte(elf.STB_LOCAL)
	if sym.Bind == SymGlobal {
		bind = byte(elf.STB_GLOBAL)
	}
	typ := byte(elf.STT_NOTYPE)
	switch sym.Kind {
	case SymFunc:
		typ = byte(elf.STT_FUNC)
	case SymObject:
		typ = byte(elf.STT_OBJECT)
	case SymSection:
		typ = byte(elf.STT_SECTION)
	}
	return bind<<4 | typ&0xf
}

func sht(t SectionType) elf.SectionType {
	switch t {
	case SHTNoBits:
		return elf.SHT_NOBITS
	case SHTSymTab:
		return elf.SHT_SYMTAB
	case SHTStrTab:
		return elf.SHT_STRTAB
	default:
		return elf.SHT_PROGBITS
	}
}

func shf(f SectionFlags) elf.SectionFlag {
	var out elf.SectionFlag
	if f.Has(SHFWrite) {
		out |= elf.SHF_WRITE
	}
	if f.Has(SHFAlloc) {
		out |= elf.SHF_ALLOC
	}
	if f.Has(SHFExecInstr) {
		out |= elf.SHF_EXECINSTR
	}
	return out
}

func padTo(buf *bytes.Buffer, off uint64) {
	for uint64(buf.Len()) < off {
		buf.WriteByte(0)
	}
}

// writeBody writes every user section's file-backed bytes at its assigned
// Offset. SHTNoBits (.bss) sections occupy no file bytes.
func writeBody(buf *bytes.Buffer, im *Image) {
	for _, s := range im.Sections {
		if s.Type == SHTNoBits {
			continue
		}
		padTo(buf, s.Offset)
		buf.Write(s.data)
	}
}

// WriteFile writes the image's Bytes to path as an executable file.
func (im *Image) WriteFile(path string) error {
	data, err := im.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0755)
}
