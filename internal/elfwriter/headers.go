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
)

func ident(class elf.Class) [elf.EI_NIDENT]byte {
	var id [elf.EI_NIDENT]byte
	id[0] = '\x7f'
	id[1] = 'E'
	id[2] = 'L'
	id[3] = 'F'
	id[elf.EI_CLASS] = byte(class)
	id[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	id[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	id[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)
	return id
}

func writeHeader64(buf *bytes.Buffer, machine elf.Machine, entry, phoff, shoff uint64, phnum, shnum, shstrndx uint16) {
	id := ident(elf.ELFCLASS64)
	h := elf.Header64{
		Ident:     id,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     phoff,
		Shoff:     shoff,
		Ehsize:    elfHeaderSize,
		Phentsize: progHeaderSize,
		Phnum:     phnum,
		Shentsize: sectionHeaderSize,
		Shnum:     shnum,
		Shstrndx:  shstrndx,
	}
	binary.Write(buf, binary.LittleEndian, h)
}

func writeHeader32(buf *bytes.Buffer, machine elf.Machine, entry, phoff, shoff uint32, phnum, shnum, shstrndx uint16) {
	id := ident(elf.ELFCLASS32)
	h := elf.Header32{
		Ident:     id,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     phoff,
		Shoff:     shoff,
		Ehsize:    elfHeaderSize32,
		Phentsize: progHeaderSize32,
		Phnum:     phnum,
		Shentsize: sectHeaderSize32,
		Shnum:     shnum,
		Shstrndx:  shstrndx,
	}
	binary.Write(buf, binary.LittleEndian, h)
}

func writeProg64(buf *bytes.Buffer, p progHeader) {
	ph := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(p.flags),
		Off:    p.offset,
		Vaddr:  p.vaddr,
		Paddr:  p.vaddr,
		Filesz: p.size,
		Memsz:  p.size,
		Align:  PageAlign,
	}
	binary.Write(buf, binary.LittleEndian, ph)
}

func writeProg32(buf *bytes.Buffer, p progHeader) {
	ph := elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(p.flags),
		Off:    uint32(p.offset),
		Vaddr:  uint32(p.vaddr),
		Paddr:  uint32(p.vaddr),
		Filesz: uint32(p.size),
		Memsz:  uint32(p.size),
		Align:  PageAlign,
	}
	binary.Write(buf, binary.LittleEndian, ph)
}

type shdrFields = struct {
	name, typ, flags, addr, offset, size, link, info, align, entsize uint64
}

func writeShdr64(buf *bytes.Buffer, h shdrFields) {
	sh := elf.Section64{
		Name:      uint32(h.name),
		Type:      uint32(h.typ),
		Flags:     h.flags,
		Addr:      h.addr,
		Off:       h.offset,
		Size:      h.size,
		Link:      uint32(h.link),
		Info:      uint32(h.info),
		Addralign: h.align,
		Entsize:   h.entsize,
	}
	binary.Write(buf, binary.LittleEndian, sh)
}

func writeShdr32(buf *bytes.Buffer, h shdrFields) {
	sh := elf.Section32{
		Name:      uint32(h.name),
		Type:      uint32(h.typ),
		Flags:     uint32(h.flags),
		Addr:      uint32(h.addr),
		Off:       uint32(h.offset),
		Size:      uint32(h.size),
		Link:      uint32(h.link),
		Info:      uint32(h.info),
		Addralign: uint32(h.align),
		Entsize:   uint32(h.entsize),
	}
	binary.Write(buf, binary.LittleEndian, sh)
}
